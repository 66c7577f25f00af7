package service

import "errors"

// Rejection sentinels.  Result.Err maps a rejected Result onto one of these
// so transports can classify outcomes with errors.Is.
var (
	ErrTooLarge          = errors.New("document too large")
	ErrUnsupportedType   = errors.New("unsupported document type")
	ErrUnreadable        = errors.New("document unreadable")
	ErrNoExtractableText = errors.New("no extractable text")
	ErrQuotaExceeded     = errors.New("daily page quota exceeded")
)
