package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Column names double as SQL aliases and are written unquoted.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the definition invariants that compilation relies on.
func (r *Report) Validate() error {
	if strings.TrimSpace(r.From) == "" {
		return fmt.Errorf("%w: report %s has no from clause", ErrInvalidReport, r.Name)
	}
	if len(r.Columns) == 0 {
		return fmt.Errorf("%w: report %s has no columns", ErrInvalidReport, r.Name)
	}
	params := make(map[string]struct{}, len(r.Params))
	for _, p := range r.Params {
		if _, dup := params[p.Name]; dup {
			return fmt.Errorf("%w: report %s declares param %q twice", ErrInvalidReport, r.Name, p.Name)
		}
		params[p.Name] = struct{}{}
	}
	columns := make(map[string]struct{}, len(r.Columns))
	for _, c := range r.Columns {
		if !identifierPattern.MatchString(c.Name) {
			return fmt.Errorf("%w: report %s column name %q is not an identifier", ErrInvalidReport, r.Name, c.Name)
		}
		if _, dup := columns[c.Name]; dup {
			return fmt.Errorf("%w: report %s declares column %q twice", ErrInvalidReport, r.Name, c.Name)
		}
		columns[c.Name] = struct{}{}
	}
	for _, chart := range r.Charts {
		if err := chart.Validate(r); err != nil {
			return err
		}
	}
	return nil
}

// ToSQL compiles the SELECT statement. Clauses with empty content are omitted.
// Param references (":name") are left in place for Bind.
func (r *Report) ToSQL() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	selects := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		selects[i] = c.Expression() + " AS " + c.Name
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selects, ", "))
	b.WriteString(" FROM ")
	b.WriteString(strings.TrimSpace(r.From))
	if joins := strings.TrimSpace(r.Joins); joins != "" {
		b.WriteString(" ")
		b.WriteString(joins)
	}
	writeClause(&b, "WHERE", r.Where)
	writeClause(&b, "GROUP BY", r.GroupBy)
	writeClause(&b, "ORDER BY", r.OrderBy)
	return b.String(), nil
}

func writeClause(b *strings.Builder, keyword, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(keyword)
	b.WriteString(" ")
	b.WriteString(content)
}

// Bind replaces ":name" param references in query with "?" bind variables
// and returns the matching argument list. Quoted literals are left untouched.
// Reports without params are returned untouched. A reference to an undeclared
// param is an error.
//
// Outside quotes binding follows sqlx named-query rules, so a literal "::"
// must be written as "::::" in reports that declare params.
func (r *Report) Bind(query string) (string, []interface{}, error) {
	if len(r.Params) == 0 {
		return query, nil, nil
	}
	values := make(map[string]interface{}, len(r.Params))
	for _, p := range r.Params {
		values[p.Name] = p.Value()
	}
	masked, unmask := MaskLiterals(query)
	bound, args, err := sqlx.Named(masked, values)
	if err != nil {
		return "", nil, fmt.Errorf("%w: report %s: bind params: %v", ErrInvalidReport, r.Name, err)
	}
	return unmask(bound), args, nil
}

// InlineSQL returns the compiled statement with bound values written as
// literals. It is meant for display; execution always binds.
func (r *Report) InlineSQL() (string, error) {
	query, err := r.ToSQL()
	if err != nil {
		return "", err
	}
	bound, args, err := r.Bind(query)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return bound, nil
	}

	masked, unmask := MaskLiterals(bound)
	var (
		b    strings.Builder
		next int
	)
	for _, ch := range masked {
		if ch == '?' && next < len(args) {
			b.WriteString(Inline(args[next]))
			next++
			continue
		}
		b.WriteRune(ch)
	}
	return unmask(b.String()), nil
}

// Inline renders v as a SQL literal. Strings are single-quoted with embedded
// quotes and backslashes doubled and NUL bytes dropped.
func Inline(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return "'" + FormatValue(t) + "'"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return FormatValue(t)
	default:
		s := strings.ReplaceAll(FormatValue(t), "\x00", "")
		s = strings.ReplaceAll(s, `\`, `\\`)
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}
