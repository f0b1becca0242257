package events

import "errors"

var (
	errUnknownDriver = errors.New("unknown events driver")
	errMissingTopic  = errors.New("events topic is required")
)
