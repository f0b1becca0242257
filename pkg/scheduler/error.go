package scheduler

import "errors"

var (
	errInvalidInterval = errors.New("interval must be positive")
	errDuplicateJob    = errors.New("job already scheduled")
	errAlreadyStarted  = errors.New("scheduler already started")
)
