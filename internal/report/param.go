package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ParamType selects the coercion applied to a Param value and the form control
// used to render it.
type ParamType string

const (
	ParamTextField ParamType = "text_field"
	ParamSelect    ParamType = "select"
	ParamDate      ParamType = "date"
	ParamCheckBox  ParamType = "check_box"
	ParamHidden    ParamType = "hidden"
)

// DateLayout is the ISO layout accepted for date params.
const DateLayout = "2006-01-02"

// Param is a typed, named report input.
type Param struct {
	Name    string
	Type    ParamType
	Options map[string]interface{}

	value interface{}
}

// NewParam builds a param with empty options and no value.
func NewParam(name string, typ ParamType, options map[string]interface{}) *Param {
	if options == nil {
		options = map[string]interface{}{}
	}
	return &Param{Name: name, Type: typ, Options: options}
}

// Value returns the coerced value, or nil when never assigned.
func (p *Param) Value() interface{} {
	return p.value
}

// SetValue coerces raw according to the param type and stores the result.
// The previous value is kept when coercion fails.
func (p *Param) SetValue(raw interface{}) error {
	var (
		coerced interface{}
		err     error
	)
	switch p.Type {
	case ParamCheckBox:
		coerced, err = coerceCheckBox(raw)
	case ParamDate:
		coerced, err = coerceDate(raw)
	default:
		coerced = raw
	}
	if err != nil {
		return fmt.Errorf("param %s: %w", p.Name, err)
	}
	p.value = coerced
	return nil
}

// Hide marks the param as hidden from rendered forms.
func (p *Param) Hide() *Param {
	p.Options["hidden"] = true
	return p
}

// Hidden reports whether Hide was called or the hidden option is set.
func (p *Param) Hidden() bool {
	return cast.ToBool(p.Options["hidden"])
}

// Choices returns the select options declared under the "values" key.
func (p *Param) Choices() []string {
	raw, ok := p.Options["values"]
	if !ok {
		return nil
	}
	return cast.ToStringSlice(raw)
}

func coerceCheckBox(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.TrimSpace(v) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
	case []string:
		// HTML forms post a hidden "0" ahead of the checked "1".
		if len(v) > 0 {
			return coerceCheckBox(v[len(v)-1])
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidCheckBox, raw)
}

func coerceDate(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case time.Time:
		return civil(v.Year(), v.Month(), v.Day()), nil
	case string:
		parsed, err := time.Parse(DateLayout, strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, v)
		}
		return parsed, nil
	case map[string]string:
		parts := make(map[string]interface{}, len(v))
		for key, value := range v {
			parts[key] = value
		}
		return dateFromParts(parts)
	case map[string]interface{}:
		return dateFromParts(v)
	default:
		return nil, fmt.Errorf("%w: unsupported input %T", ErrInvalidDate, raw)
	}
}

func dateFromParts(parts map[string]interface{}) (interface{}, error) {
	year, err := datePart(parts, "year")
	if err != nil {
		return nil, err
	}
	month, err := datePart(parts, "month")
	if err != nil {
		return nil, err
	}
	day, err := datePart(parts, "day")
	if err != nil {
		return nil, err
	}
	date := civil(year, time.Month(month), day)
	// time.Date normalises overflow (Feb 30 -> Mar 2); reject instead.
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return nil, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	return date, nil
}

func datePart(parts map[string]interface{}, key string) (int, error) {
	raw, ok := parts[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidDate, key)
	}
	var (
		n   int
		err error
	)
	if s, isString := raw.(string); isString {
		// strconv keeps "09" decimal; cast would read it as octal.
		n, err = strconv.Atoi(strings.TrimSpace(s))
	} else {
		n, err = cast.ToIntE(raw)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s %v", ErrInvalidDate, key, raw)
	}
	return n, nil
}

func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
