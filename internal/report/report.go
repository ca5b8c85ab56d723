package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/noah-isme/reportcat/pkg/export"
)

// Fragment separators used when a builder field is given as a slice.
const (
	FromSeparator    = ","
	JoinsSeparator   = " "
	WhereSeparator   = " and "
	GroupBySeparator = ","
	OrderBySeparator = ","
)

// Store is the relational boundary a report executes against. A nil slice
// with a nil error means the query returned nothing.
type Store interface {
	Query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error)
}

// Fragments are the builder-style query parts. Each accepts a string or a
// slice; slices are joined with the field's separator.
type Fragments struct {
	From    interface{}
	Joins   interface{}
	Where   interface{}
	GroupBy interface{}
	OrderBy interface{}
}

// Report is a named, parameterized query definition plus its result rows.
// An instance processes a single query and is not safe for concurrent use.
type Report struct {
	Name     string
	Abstract bool

	Params  []*Param
	Columns []*Column
	Charts  []*Chart
	Rows    [][]interface{}

	From    string
	Joins   string
	Where   string
	GroupBy string
	OrderBy string

	// Back points at the report to navigate back to; it holds at least "name".
	Back map[string]interface{}

	// Prepare runs after overrides are applied and before compilation so a
	// definition can derive fragments from coerced param values.
	Prepare func(r *Report) error
}

// New builds an empty report with the given fragments.
func New(name string, fragments Fragments) *Report {
	r := &Report{
		Name:    name,
		Params:  []*Param{},
		Columns: []*Column{},
		Charts:  []*Chart{},
		Rows:    [][]interface{}{},
	}
	r.SetFragments(fragments)
	return r
}

// SetFragments replaces every fragment that is non-nil in f.
func (r *Report) SetFragments(f Fragments) {
	if f.From != nil {
		r.From = fragment(f.From, FromSeparator)
	}
	if f.Joins != nil {
		r.Joins = fragment(f.Joins, JoinsSeparator)
	}
	if f.Where != nil {
		r.Where = fragment(f.Where, WhereSeparator)
	}
	if f.GroupBy != nil {
		r.GroupBy = fragment(f.GroupBy, GroupBySeparator)
	}
	if f.OrderBy != nil {
		r.OrderBy = fragment(f.OrderBy, OrderBySeparator)
	}
}

// AcceptArray joins slices with separator, stringifying elements. Any other
// value is returned unchanged.
func AcceptArray(value interface{}, separator string) interface{} {
	switch v := value.(type) {
	case []string:
		return strings.Join(v, separator)
	case []interface{}:
		parts := make([]string, len(v))
		for i, part := range v {
			parts[i] = FormatValue(part)
		}
		return strings.Join(parts, separator)
	default:
		return value
	}
}

func fragment(value interface{}, separator string) string {
	return FormatValue(AcceptArray(value, separator))
}

// AddParam appends a new param and returns it.
func (r *Report) AddParam(name string, typ ParamType, options map[string]interface{}) *Param {
	p := NewParam(name, typ, options)
	r.Params = append(r.Params, p)
	return p
}

// AddColumn appends a new column and returns it.
func (r *Report) AddColumn(name string, typ ColumnType, options ColumnOptions) *Column {
	c := NewColumn(name, typ, options)
	r.Columns = append(r.Columns, c)
	return c
}

// AddChart appends a new chart and returns it.
func (r *Report) AddChart(name string, typ ChartType, label string, values []string, options map[string]interface{}) *Chart {
	c := NewChart(name, typ, label, values, options)
	r.Charts = append(r.Charts, c)
	return c
}

// Param returns the first param named name, or nil.
func (r *Report) Param(name string) *Param {
	for _, p := range r.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Column returns the first column named name, or nil.
func (r *Report) Column(name string) *Column {
	if idx, ok := r.ColumnIndex(name); ok {
		return r.Columns[idx]
	}
	return nil
}

// ColumnIndex returns the position of the named column, which is also the
// position of its value in every row.
func (r *Report) ColumnIndex(name string) (int, bool) {
	for i, c := range r.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Apply assigns overrides to params of the same name. Unknown keys are ignored.
func (r *Report) Apply(overrides map[string]interface{}) error {
	for _, p := range r.Params {
		raw, ok := overrides[p.Name]
		if !ok {
			continue
		}
		if err := p.SetValue(raw); err != nil {
			return err
		}
	}
	return nil
}

// Configure applies overrides then runs Prepare.
func (r *Report) Configure(overrides map[string]interface{}) error {
	if err := r.Apply(overrides); err != nil {
		return err
	}
	if r.Prepare != nil {
		return r.Prepare(r)
	}
	return nil
}

// Generate configures the report, then compiles, executes and post-processes
// the query.
func (r *Report) Generate(ctx context.Context, store Store, overrides map[string]interface{}) error {
	if err := r.Configure(overrides); err != nil {
		return err
	}
	return r.Run(ctx, store)
}

// Run compiles, executes and post-processes the query of a configured report.
func (r *Report) Run(ctx context.Context, store Store) error {
	sql, err := r.ToSQL()
	if err != nil {
		return err
	}
	query, args, err := r.Bind(sql)
	if err != nil {
		return err
	}
	rows, err := store.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: report %s: %w", ErrQueryExecution, r.Name, err)
	}

	r.Rows = [][]interface{}{}
	for i, row := range rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("%w: report %s row %d has %d values for %d columns", ErrRowShape, r.Name, i, len(row), len(r.Columns))
		}
		r.Rows = append(r.Rows, row)
	}

	for _, c := range r.Columns {
		if err := c.PostProcess(r); err != nil {
			return fmt.Errorf("post process %s.%s: %w", r.Name, c.Name, err)
		}
	}
	return nil
}

// Attributes returns the report identity and current param values.
func (r *Report) Attributes() map[string]interface{} {
	attrs := map[string]interface{}{
		"id":   r.Name,
		"name": r.Name,
	}
	if r.Back != nil {
		attrs["back"] = r.Back
	}
	for _, p := range r.Params {
		attrs[p.Name] = p.Value()
	}
	return attrs
}

// VisibleColumns returns the columns that are not hidden, in declared order.
func (r *Report) VisibleColumns() []*Column {
	visible := make([]*Column, 0, len(r.Columns))
	for _, c := range r.Columns {
		if !c.Hidden() {
			visible = append(visible, c)
		}
	}
	return visible
}

// Dataset projects the rows onto the visible columns as strings.
func (r *Report) Dataset() export.Dataset {
	var (
		headers []string
		indexes []int
	)
	for i, c := range r.Columns {
		if c.Hidden() {
			continue
		}
		headers = append(headers, c.Name)
		indexes = append(indexes, i)
	}
	rows := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make([]string, len(indexes))
		for j, idx := range indexes {
			if idx < len(row) {
				record[j] = FormatValue(row[idx])
			}
		}
		rows = append(rows, record)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// ToCSV renders the visible columns as CSV with a header line.
func (r *Report) ToCSV() (string, error) {
	out, err := export.NewCSVExporter().Render(r.Dataset())
	if err != nil {
		return "", fmt.Errorf("report %s csv: %w", r.Name, err)
	}
	return string(out), nil
}

// ToPDF renders the visible columns as a PDF table titled with the report name.
func (r *Report) ToPDF() ([]byte, error) {
	out, err := export.NewPDFExporter().Render(r.Dataset(), r.Name)
	if err != nil {
		return nil, fmt.Errorf("report %s pdf: %w", r.Name, err)
	}
	return out, nil
}

// FormatValue renders a cell or fragment value as text. Dates at midnight
// print as YYYY-MM-DD.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(DateLayout)
		}
		return t.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}
