package formats

import (
	"fmt"
	"strings"
)

// Target is an output format a conversion job can produce
type Target string

const (
	TargetEdifactSKDUPD Target = "edifact-skdupd"
	TargetEdifactTSDUPD Target = "edifact-tsdupd"
	TargetGTFS          Target = "gtfs"
	TargetGTFSRealtime  Target = "gtfs-realtime"
)

var Targets = []Target{TargetEdifactSKDUPD, TargetEdifactTSDUPD, TargetGTFS, TargetGTFSRealtime}

// Validation is a rule set a document can be validated against
type Validation string

const (
	ValidationJSONTransport Validation = "json-transport"
	ValidationEdifact       Validation = "edifact"
	ValidationGTFS          Validation = "gtfs"
)

var Validations = []Validation{ValidationJSONTransport, ValidationEdifact, ValidationGTFS}

type Level string

const (
	LevelStandard Level = "standard"
	LevelStrict   Level = "strict"
)

func ParseTarget(s string) (Target, error) {
	for _, target := range Targets {
		if strings.EqualFold(s, string(target)) {
			return target, nil
		}
	}

	return "", fmt.Errorf("unsupported output format %q", s)
}

func ParseValidation(s string) (Validation, error) {
	for _, validation := range Validations {
		if strings.EqualFold(s, string(validation)) {
			return validation, nil
		}
	}

	return "", fmt.Errorf("unsupported validation format %q", s)
}

// ParseLevel treats an empty string as the standard level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", string(LevelStandard):
		return LevelStandard, nil
	case string(LevelStrict):
		return LevelStrict, nil
	}

	return "", fmt.Errorf("unsupported validation level %q", s)
}

// ValidationFormat is the rule set run before encoding into this target
func (t Target) ValidationFormat() Validation {
	switch t {
	case TargetEdifactSKDUPD, TargetEdifactTSDUPD:
		return ValidationEdifact
	default:
		return ValidationGTFS
	}
}

func (t Target) IsEdifact() bool {
	return t == TargetEdifactSKDUPD || t == TargetEdifactTSDUPD
}
