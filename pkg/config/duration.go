package config

import (
	"fmt"
	"strings"
	"time"

	iso8601 "github.com/senseyeio/duration"
	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration syntax (90s) or ISO-8601 (PT5M)
type Duration time.Duration

// Calendar components of ISO-8601 durations are resolved against a fixed day
var durationReference = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(strings.ToUpper(s), "P") {
		parsed, err := iso8601.ParseISO8601(strings.ToUpper(s))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}

		return Duration(parsed.Shift(durationReference).Sub(durationReference)), nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	return Duration(parsed), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}

	parsed, err := ParseDuration(text)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
