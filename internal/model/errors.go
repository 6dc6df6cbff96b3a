package model

import "errors"

// Failure kinds surfaced by the core components. Callers branch with
// errors.Is; wrapped messages carry the detail.
var (
	ErrNotFound               = errors.New("not found")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidState           = errors.New("invalid state")
	ErrInvalidQuestionKind    = errors.New("invalid question kind")
	ErrUnsupportedMediaFormat = errors.New("unsupported media format")
	ErrExternalService        = errors.New("external service failure")
)
