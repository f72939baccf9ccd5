package recipes

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a record with the same identity exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUserNameTaken indicates another user holds the requested username.
	ErrUserNameTaken = errors.New("username taken")
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func notFound(what string) *Error {
	return &Error{Status: 404, Code: "NOT_FOUND", Message: what + " not found"}
}

func validation(field, reason string) *Error {
	return &Error{
		Status:  400,
		Code:    "VALIDATION_ERROR",
		Message: "invalid " + field,
		Details: map[string]any{field: reason},
	}
}

func unauthenticated() *Error {
	return &Error{Status: 401, Code: "UNAUTHENTICATED", Message: "authentication required"}
}

func forbidden(message string) *Error {
	return &Error{Status: 403, Code: "FORBIDDEN", Message: message}
}
