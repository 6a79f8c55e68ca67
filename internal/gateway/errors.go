package gateway

import "errors"

// Gateway errors
var (
	ErrConnClosed       = errors.New("connection closed")
	ErrWriteChannelFull = errors.New("write channel full")
	ErrInvalidProtocol  = errors.New("invalid protocol")
	ErrNotAnnounced     = errors.New("connection not announced")
	ErrUserIdMismatch   = errors.New("user Id mismatch")
	ErrPanic            = errors.New("panic error")
)
