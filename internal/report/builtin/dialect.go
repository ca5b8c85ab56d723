package builtin

import (
	"fmt"

	"github.com/noah-isme/reportcat/internal/report"
)

// Periods accepted by date range reports.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

var periods = []string{PeriodDay, PeriodWeek, PeriodMonth}

// dialect renders the date expressions that differ between drivers. Weeks
// start on Monday everywhere.
type dialect interface {
	truncate(period, column string) string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", "postgres":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: no date dialect for driver %q", report.ErrInvalidReport, driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) truncate(period, column string) string {
	if period == PeriodDay {
		return fmt.Sprintf("CAST(%s AS date)", column)
	}
	return fmt.Sprintf("CAST(date_trunc('%s', %s) AS date)", period, column)
}

type mysqlDialect struct{}

func (mysqlDialect) truncate(period, column string) string {
	switch period {
	case PeriodWeek:
		return fmt.Sprintf("DATE(DATE_SUB(%[1]s, INTERVAL WEEKDAY(%[1]s) DAY))", column)
	case PeriodMonth:
		return fmt.Sprintf("DATE(DATE_FORMAT(%s, '%%Y-%%m-01'))", column)
	default:
		return fmt.Sprintf("DATE(%s)", column)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) truncate(period, column string) string {
	switch period {
	case PeriodWeek:
		return fmt.Sprintf("date(%s, 'weekday 0', '-6 days')", column)
	case PeriodMonth:
		return fmt.Sprintf("date(%s, 'start of month')", column)
	default:
		return fmt.Sprintf("date(%s)", column)
	}
}
