package sdk

import "fmt"

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Common error codes
const (
	// Success
	CodeSuccess = 0

	// Common errors (1xxx)
	CodeInvalidParam   = 1001
	CodeInternalServer = 1002
	CodeUnauthorized   = 1003
	CodeForbidden      = 1004
	CodeNotFound       = 1005
	CodeEmptyMessage   = 1006

	// Auth errors (2xxx)
	CodeTokenInvalid  = 2001
	CodeTokenExpired  = 2002
	CodeTokenMissing  = 2003
	CodeTokenMismatch = 2004

	// Chat errors (3xxx)
	CodeUserNotFound    = 3001
	CodeProfileNotFound = 3002
	CodeConvNotFound    = 3003
	CodeSendFailed      = 3004
	CodeHistoryFailed   = 3005

	// Upload errors (4xxx)
	CodeInvalidFileType = 4001
	CodeFileTooLarge    = 4002
	CodeUploadFailed    = 4003
)

// Predefined errors
var (
	ErrInvalidParam   = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalServer = NewError(CodeInternalServer, "internal server error")
	ErrUnauthorized   = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden      = NewError(CodeForbidden, "forbidden")
	ErrNotFound       = NewError(CodeNotFound, "not found")
	ErrEmptyMessage   = NewError(CodeEmptyMessage, "message needs text content or a file")

	ErrUserNotFound = NewError(CodeUserNotFound, "user not found")
	ErrSendFailed   = NewError(CodeSendFailed, "message send failed")
)
