package builtin

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/noah-isme/reportcat/internal/report"
)

// DefaultRangeDays is how far back start_date defaults.
const DefaultRangeDays = 30

// dateRange is the abstract base for reports bucketed by a date column. It
// declares start_date, stop_date and period and owns the "period" column
// expression, the range filter and the grouping.
type dateRange struct {
	dialect dialect
	column  string
	filters []string
	now     func() time.Time
}

func (d dateRange) build(name string, fragments report.Fragments) (*report.Report, error) {
	r := report.New(name, fragments)
	today := d.now().UTC()

	start := r.AddParam("start_date", report.ParamDate, nil)
	if err := start.SetValue(today.AddDate(0, 0, -DefaultRangeDays)); err != nil {
		return nil, err
	}
	stop := r.AddParam("stop_date", report.ParamDate, nil)
	if err := stop.SetValue(today); err != nil {
		return nil, err
	}
	period := r.AddParam("period", report.ParamSelect, map[string]interface{}{"values": periods})
	if err := period.SetValue(PeriodDay); err != nil {
		return nil, err
	}

	r.AddColumn("period", report.ColumnDate, report.ColumnOptions{Processor: report.FormatDate{}})
	r.Prepare = d.prepare
	return r, nil
}

// prepare rewrites the period expression, the range filter and the grouping
// from the current param values. Filters are appended after the range.
func (d dateRange) prepare(r *report.Report) error {
	period := cast.ToString(r.Param("period").Value())
	valid := false
	for _, p := range periods {
		valid = valid || p == period
	}
	if !valid {
		return fmt.Errorf("%w: period %q is not one of %v", report.ErrInvalidReport, period, periods)
	}

	expr := d.dialect.truncate(period, d.column)
	r.Column("period").Options.SQL = expr

	day := d.dialect.truncate(PeriodDay, d.column)
	where := append([]string{day + " >= :start_date", day + " <= :stop_date"}, d.filters...)
	r.SetFragments(report.Fragments{Where: where, GroupBy: expr, OrderBy: "period"})
	return nil
}
