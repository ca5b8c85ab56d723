// Package builtin holds the report definitions shipped with the service.
package builtin

import (
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cast"

	"github.com/noah-isme/reportcat/internal/report"
)

// Report names.
const (
	DateRange    = "date_range"
	EventsByDay  = "events_by_day"
	EventsByType = "events_by_type"
	Retention    = "retention"
)

// InternalEventPrefix marks event kinds hidden unless include_internal is set.
const InternalEventPrefix = "internal."

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Config selects the tables and SQL dialect the definitions compile against.
type Config struct {
	Driver      string
	EventsTable string
	UsersTable  string
	Now         func() time.Time
}

type catalog struct {
	cfg     Config
	dialect dialect
}

// Definitions returns the built-in definitions, date_range included as an
// abstract base.
func Definitions(cfg Config) ([]report.Definition, error) {
	if cfg.EventsTable == "" {
		cfg.EventsTable = "events"
	}
	if cfg.UsersTable == "" {
		cfg.UsersTable = "users"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	for _, table := range []string{cfg.EventsTable, cfg.UsersTable} {
		if !tablePattern.MatchString(table) {
			return nil, fmt.Errorf("%w: table name %q", report.ErrInvalidReport, table)
		}
	}
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	c := catalog{cfg: cfg, dialect: d}

	return []report.Definition{
		{Name: DateRange, Abstract: true, Build: c.dateRangeBase},
		{Name: EventsByDay, Build: c.eventsByDay},
		{Name: EventsByType, Build: c.eventsByType},
		{Name: Retention, Build: c.retention},
	}, nil
}

// NewRegistry builds a registry holding the built-in definitions.
func NewRegistry(cfg Config) (*report.Registry, error) {
	defs, err := Definitions(cfg)
	if err != nil {
		return nil, err
	}
	return report.NewRegistry(defs...)
}

func (c catalog) events(column string, filters ...string) dateRange {
	return dateRange{dialect: c.dialect, column: column, filters: filters, now: c.cfg.Now}
}

func (c catalog) finish(r *report.Report) (*report.Report, error) {
	if err := r.Prepare(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c catalog) dateRangeBase() (*report.Report, error) {
	r, err := c.events("created_at").build(DateRange, report.Fragments{From: c.cfg.EventsTable})
	if err != nil {
		return nil, err
	}
	r.Abstract = true
	return c.finish(r)
}

func (c catalog) eventsByDay() (*report.Report, error) {
	r, err := c.events("created_at").build(EventsByDay, report.Fragments{From: c.cfg.EventsTable})
	if err != nil {
		return nil, err
	}
	r.AddColumn("total", report.ColumnInteger, report.ColumnOptions{SQL: "count(1)"})
	r.AddColumn("share", report.ColumnPercent, report.ColumnOptions{
		SQL:       "0",
		Processor: report.PercentOfTotal{Source: "total", Places: 2},
	})
	r.AddChart("events", report.ChartLine, "period", []string{"total"}, map[string]interface{}{"title": "Events"})
	return c.finish(r)
}

func (c catalog) eventsByType() (*report.Report, error) {
	r := report.New(EventsByType, report.Fragments{
		From:    c.cfg.EventsTable,
		GroupBy: "kind",
		OrderBy: []string{"total desc", "kind"},
	})
	r.AddParam("include_internal", report.ParamCheckBox, nil).Hide()
	if err := r.Param("include_internal").SetValue(false); err != nil {
		return nil, err
	}
	r.AddColumn("kind", report.ColumnString, report.ColumnOptions{})
	r.AddColumn("total", report.ColumnInteger, report.ColumnOptions{SQL: "count(1)"})
	r.AddChart("kinds", report.ChartPie, "kind", []string{"total"}, nil)
	r.Prepare = func(r *report.Report) error {
		r.Where = ""
		if !cast.ToBool(r.Param("include_internal").Value()) {
			r.Where = "kind NOT LIKE " + report.Inline(InternalEventPrefix+"%")
		}
		return nil
	}
	return c.finish(r)
}

func (c catalog) retention() (*report.Report, error) {
	r, err := c.events("u.created_at").build(Retention, report.Fragments{
		From:  c.cfg.UsersTable + " u",
		Joins: fmt.Sprintf("left join %s e on e.user_id = u.id and e.created_at > u.created_at", c.cfg.EventsTable),
	})
	if err != nil {
		return nil, err
	}
	r.AddColumn("signups", report.ColumnInteger, report.ColumnOptions{SQL: "count(distinct u.id)"})
	r.AddColumn("active", report.ColumnInteger, report.ColumnOptions{SQL: "count(distinct e.user_id)"})
	r.AddColumn("retention", report.ColumnPercent, report.ColumnOptions{
		SQL:       "0",
		Processor: report.Ratio{Numerator: "active", Denominator: "signups", Scale: 100, Places: 1},
	})
	r.AddChart("cohorts", report.ChartColumn, "period", []string{"signups", "active"}, nil)
	r.Back = map[string]interface{}{"name": EventsByDay}
	return c.finish(r)
}
