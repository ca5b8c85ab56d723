package report

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

// PostProcessor transforms report rows after the query ran. It receives the
// owning report so it can read sibling columns and aggregate across rows.
type PostProcessor interface {
	PostProcess(r *Report, c *Column) error
}

// FormatDate renders date values of the column with Layout (ISO by default).
// Values that are not dates are left untouched.
type FormatDate struct {
	Layout string
}

func (f FormatDate) PostProcess(r *Report, c *Column) error {
	idx, err := r.mustIndex(c.Name)
	if err != nil {
		return err
	}
	layout := f.Layout
	if layout == "" {
		layout = DateLayout
	}
	for _, row := range r.Rows {
		switch v := row[idx].(type) {
		case nil:
		case time.Time:
			row[idx] = v.Format(layout)
		default:
			if t, err := cast.ToTimeE(scalar(v)); err == nil {
				row[idx] = t.Format(layout)
			}
		}
	}
	return nil
}

// Ratio computes the column from two sibling columns of the same row:
// Numerator / Denominator * Scale, rounded to Places. A zero denominator
// yields 0.
type Ratio struct {
	Numerator   string
	Denominator string
	Scale       float64
	Places      int
}

func (p Ratio) PostProcess(r *Report, c *Column) error {
	idx, err := r.mustIndex(c.Name)
	if err != nil {
		return err
	}
	num, err := r.mustIndex(p.Numerator)
	if err != nil {
		return err
	}
	den, err := r.mustIndex(p.Denominator)
	if err != nil {
		return err
	}
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	for _, row := range r.Rows {
		n, _ := toFloat(row[num])
		d, _ := toFloat(row[den])
		if d == 0 {
			row[idx] = 0.0
			continue
		}
		row[idx] = round(n/d*scale, p.Places)
	}
	return nil
}

// PercentOfTotal sets the column to each row's share of the Source column
// total, as a percentage rounded to Places.
type PercentOfTotal struct {
	Source string
	Places int
}

func (p PercentOfTotal) PostProcess(r *Report, c *Column) error {
	idx, err := r.mustIndex(c.Name)
	if err != nil {
		return err
	}
	source := idx
	if p.Source != "" {
		if source, err = r.mustIndex(p.Source); err != nil {
			return err
		}
	}
	var total float64
	values := make([]float64, len(r.Rows))
	for i, row := range r.Rows {
		values[i], _ = toFloat(row[source])
		total += values[i]
	}
	for i, row := range r.Rows {
		if total == 0 {
			row[idx] = 0.0
			continue
		}
		row[idx] = round(values[i]/total*100, p.Places)
	}
	return nil
}

// Round rounds numeric values of the column to Places.
type Round struct {
	Places int
}

func (p Round) PostProcess(r *Report, c *Column) error {
	idx, err := r.mustIndex(c.Name)
	if err != nil {
		return err
	}
	for _, row := range r.Rows {
		if v, ok := toFloat(row[idx]); ok && row[idx] != nil {
			row[idx] = round(v, p.Places)
		}
	}
	return nil
}

func (r *Report) mustIndex(name string) (int, error) {
	idx, ok := r.ColumnIndex(name)
	if !ok {
		return 0, fmt.Errorf("%w: post processor references unknown column %q", ErrInvalidReport, name)
	}
	return idx, nil
}

// scalar turns driver byte slices into strings.
func scalar(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	f, err := cast.ToFloat64E(scalar(v))
	return f, err == nil
}

func round(v float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
