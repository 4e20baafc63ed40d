package jobs

import "errors"

var (
	ErrNotFound          = errors.New("job not found")
	ErrNotReady          = errors.New("job has not completed")
	ErrQueueFull         = errors.New("job queue is full")
	ErrTerminal          = errors.New("job already finished")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrInvalidOptions    = errors.New("invalid options")
	ErrFileNotFound      = errors.New("artifact file not found")
)
