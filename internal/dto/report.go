package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/reportcat/internal/report"
)

// ReportSummary is a GET /reports list entry.
type ReportSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParamField describes the form control rendering a report param.
type ParamField struct {
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Control string      `json:"control"`
	Value   interface{} `json:"value"`
	Choices []string    `json:"choices,omitempty"`
	Hidden  bool        `json:"hidden"`
}

// ColumnHeader describes a visible report column.
type ColumnHeader struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ChartSpec describes a chart drawn from report columns.
type ChartSpec struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Label   string                 `json:"label"`
	Values  []string               `json:"values"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ReportResponse is the JSON rendering of a generated report. Columns and
// rows are limited to visible columns.
type ReportResponse struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
	Back       map[string]interface{} `json:"back,omitempty"`
	Params     []ParamField           `json:"params"`
	Columns    []ColumnHeader         `json:"columns"`
	Rows       [][]interface{}        `json:"rows"`
	Charts     []ChartSpec            `json:"charts"`
	Count      int                    `json:"count"`
}

var controls = map[report.ParamType]string{
	report.ParamTextField: "text",
	report.ParamSelect:    "select",
	report.ParamDate:      "date",
	report.ParamCheckBox:  "checkbox",
	report.ParamHidden:    "hidden",
}

// NewParamField describes p. Unknown param types fail with
// report.ErrUnsupportedParamType.
func NewParamField(p *report.Param) (ParamField, error) {
	control, ok := controls[p.Type]
	if !ok {
		return ParamField{}, fmt.Errorf("%w: %s (param %s)", report.ErrUnsupportedParamType, p.Type, p.Name)
	}
	return ParamField{
		Name:    p.Name,
		Type:    string(p.Type),
		Control: control,
		Value:   displayValue(p.Value()),
		Choices: p.Choices(),
		Hidden:  p.Hidden() || p.Type == report.ParamHidden,
	}, nil
}

// NewReportResponse renders a generated report.
func NewReportResponse(r *report.Report) (*ReportResponse, error) {
	resp := &ReportResponse{
		ID:         r.Name,
		Name:       r.Name,
		Attributes: make(map[string]interface{}),
		Back:       r.Back,
		Params:     make([]ParamField, 0, len(r.Params)),
		Columns:    []ColumnHeader{},
		Rows:       make([][]interface{}, 0, len(r.Rows)),
		Charts:     make([]ChartSpec, 0, len(r.Charts)),
		Count:      len(r.Rows),
	}
	for key, value := range r.Attributes() {
		resp.Attributes[key] = displayValue(value)
	}
	for _, p := range r.Params {
		field, err := NewParamField(p)
		if err != nil {
			return nil, err
		}
		resp.Params = append(resp.Params, field)
	}

	var visible []int
	for i, c := range r.Columns {
		if c.Hidden() {
			continue
		}
		visible = append(visible, i)
		resp.Columns = append(resp.Columns, ColumnHeader{Name: c.Name, Type: string(c.Type)})
	}
	for _, row := range r.Rows {
		out := make([]interface{}, len(visible))
		for j, idx := range visible {
			out[j] = displayValue(row[idx])
		}
		resp.Rows = append(resp.Rows, out)
	}

	for _, c := range r.Charts {
		resp.Charts = append(resp.Charts, ChartSpec{
			Name:    c.Name,
			Type:    string(c.Type),
			Label:   c.Label,
			Values:  c.Values,
			Options: c.Options,
		})
	}
	return resp, nil
}

// NewReportSummary lists a report by name.
func NewReportSummary(r *report.Report) ReportSummary {
	return ReportSummary{ID: r.Name, Name: r.Name}
}

func displayValue(v interface{}) interface{} {
	switch v.(type) {
	case time.Time, []byte:
		return report.FormatValue(v)
	default:
		return v
	}
}
