package canonical

import (
	"fmt"
	"strings"
)

type ParseErrorKind string

const (
	ParseErrorMissingField ParseErrorKind = "MissingField"
	ParseErrorTypeMismatch ParseErrorKind = "TypeMismatch"
	ParseErrorDuplicateID  ParseErrorKind = "DuplicateId"
)

type ParseError struct {
	Kind    ParseErrorKind
	Path    string
	Message string
}

func (e ParseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s at %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Path, e.Message)
}

// ParseErrors is the full batch of structural defects found in one payload
type ParseErrors []ParseError

func (e ParseErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}

	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("%d parse errors: %s", len(e), strings.Join(messages, "; "))
}
