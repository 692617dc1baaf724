package apperror

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrSandboxLoad          = errors.New("sandbox load failure")
	ErrSandboxTrap          = errors.New("sandbox trap")
	ErrIllegalMove          = errors.New("illegal move")
	ErrGameFinished         = errors.New("game is already finished")
	ErrDuplicateName        = errors.New("bot name already exists")
	ErrInvalidName          = errors.New("invalid bot name")
	ErrInvalidPayload       = errors.New("invalid bot payload")
	ErrNotFound             = errors.New("not found")
)
