package bank

import "fmt"

const (
	CodeValidation = "validation"
	CodeTimeout    = "timeout"
	CodeInternal   = "internal"
)

// Error is a structured bank error. Message is the caller-facing reason
// carried in the {error: ...} envelope; Status is the HTTP status the
// code maps to.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return 400
	case CodeTimeout:
		return 408
	default:
		return 500
	}
}

func newError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  statusForCode(code),
	}
}
