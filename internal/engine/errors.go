package engine

import "errors"

// Sentinel errors returned by engine operations. Callers classify
// failures with errors.Is; wrapped messages carry the detail.
var (
	ErrValidation   = errors.New("validation failed")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room full")
	ErrPermission   = errors.New("operation not permitted")
	ErrConflict     = errors.New("room has active players")
	ErrPersistence  = errors.New("persistence failed")
)
