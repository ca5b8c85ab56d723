package report

import "fmt"

// ChartType names a chart rendering.
type ChartType string

const (
	ChartLine   ChartType = "line"
	ChartBar    ChartType = "bar"
	ChartColumn ChartType = "column"
	ChartPie    ChartType = "pie"
	ChartArea   ChartType = "area"
)

// Chart describes a chart drawn from report columns. Label names the column
// used for the axis or slice labels; Values name the plotted columns.
type Chart struct {
	Name    string
	Type    ChartType
	Label   string
	Values  []string
	Options map[string]interface{}
}

// NewChart builds a chart.
func NewChart(name string, typ ChartType, label string, values []string, options map[string]interface{}) *Chart {
	if options == nil {
		options = map[string]interface{}{}
	}
	return &Chart{Name: name, Type: typ, Label: label, Values: values, Options: options}
}

// Validate checks that every referenced column is declared on r.
func (c *Chart) Validate(r *Report) error {
	if r.Column(c.Label) == nil {
		return fmt.Errorf("%w: chart %s label %q is not a column", ErrInvalidReport, c.Name, c.Label)
	}
	for _, value := range c.Values {
		if r.Column(value) == nil {
			return fmt.Errorf("%w: chart %s value %q is not a column", ErrInvalidReport, c.Name, value)
		}
	}
	return nil
}
