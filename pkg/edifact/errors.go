package edifact

import "fmt"

type EncodeErrorKind string

const (
	EncodeErrorUnsupportedField EncodeErrorKind = "UnsupportedField"
	EncodeErrorMissingData      EncodeErrorKind = "MissingData"
)

type EncodeError struct {
	Kind    EncodeErrorKind
	Entity  string
	ID      string
	Field   string
	Message string
}

func (e *EncodeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s %s: %s", e.Kind, e.Entity, e.ID, e.Field, e.Message)
	}

	return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Entity, e.Field, e.Message)
}
