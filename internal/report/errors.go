package report

import "errors"

// Engine errors. Callers match them with errors.Is; the wrapping error carries
// the offending name or value.
var (
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidCheckBox      = errors.New("invalid check box value")
	ErrUnsupportedParamType = errors.New("unsupported param type")
	ErrInvalidReport        = errors.New("invalid report definition")
	ErrQueryExecution       = errors.New("query execution failed")
	ErrRowShape             = errors.New("row width does not match columns")
	ErrReportNotFound       = errors.New("report not found")
)
