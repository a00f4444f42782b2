package errs

import (
	"fmt"
	"net/http"

	"companysync/internal/pkg/logx"
)

// CustomError is the error structure returned by the relay's HTTP handlers.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status code sent with this error.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError returns a *CustomError for a predefined code. Unknown codes fall back to ErrUnknown.
// An optional cause is logged, never exposed to the client.
func NewError(code int, cause ...error) *CustomError {
	templateErr, ok := errorMap[code]
	if !ok {
		logx.Warn("Unknown error code requested", "requested_code", code)
		templateErr = errorMap[ErrUnknown]
	}

	customErr := templateErr
	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(cause) > 0 && cause[0] != nil {
		logx.Error(cause[0], "Request failed with underlying error", "code", customErr.Code)
	}

	return &customErr
}
