package report

// ColumnType is informational; the engine never enforces it.
type ColumnType string

const (
	ColumnString  ColumnType = "string"
	ColumnInteger ColumnType = "integer"
	ColumnFloat   ColumnType = "float"
	ColumnDate    ColumnType = "date"
	ColumnPercent ColumnType = "percent"
)

// ColumnOptions holds the recognised column settings.
type ColumnOptions struct {
	// SQL replaces the column name as the select expression.
	SQL string
	// Hidden keeps the column in the query and rows but out of rendered output.
	Hidden bool
	// Processor runs once over all rows after the query.
	Processor PostProcessor
}

// Column is a named output field of a report.
type Column struct {
	Name    string
	Type    ColumnType
	Options ColumnOptions
}

// NewColumn builds a column.
func NewColumn(name string, typ ColumnType, options ColumnOptions) *Column {
	return &Column{Name: name, Type: typ, Options: options}
}

// Expression returns the SQL used to select the column.
func (c *Column) Expression() string {
	if c.Options.SQL != "" {
		return c.Options.SQL
	}
	return c.Name
}

// Hide excludes the column from CSV and tabular output.
func (c *Column) Hide() *Column {
	c.Options.Hidden = true
	return c
}

// Hidden reports whether the column is excluded from rendered output.
func (c *Column) Hidden() bool {
	return c.Options.Hidden
}

// PostProcess runs the column's processor over r.Rows. Without a processor it
// does nothing.
func (c *Column) PostProcess(r *Report) error {
	if c.Options.Processor == nil {
		return nil
	}
	return c.Options.Processor.PostProcess(r, c)
}
