package gtfs

import "fmt"

type EncodeErrorKind string

const EncodeErrorMissingRequiredColumn EncodeErrorKind = "MissingRequiredColumn"

type EncodeError struct {
	Kind     EncodeErrorKind
	File     string
	Column   string
	EntityID string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s: %s has no value for %s in %s", e.Kind, e.EntityID, e.Column, e.File)
}
