package sentinel

import "errors"

// Storage facts returned (optionally wrapped) by repositories and file stores.
// Services translate them into apperr kinds; handlers never see them directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
