package edifact

import (
	"fmt"
	"strings"
)

const DefaultUNA = "UNA:+.? '"

// Separators are the service characters advertised by the UNA segment
type Separators struct {
	Component byte
	Element   byte
	Decimal   byte
	Release   byte
	Reserved  byte
	Segment   byte
}

var DefaultSeparators = Separators{
	Component: ':',
	Element:   '+',
	Decimal:   '.',
	Release:   '?',
	Reserved:  ' ',
	Segment:   '\'',
}

// ParseUNA reads the separators from a 9 character UNA service string advice
func ParseUNA(una string) (Separators, error) {
	if len(una) != 9 || !strings.HasPrefix(una, "UNA") {
		return Separators{}, fmt.Errorf("invalid UNA string %q", una)
	}

	separators := Separators{
		Component: una[3],
		Element:   una[4],
		Decimal:   una[5],
		Release:   una[6],
		Reserved:  una[7],
		Segment:   una[8],
	}

	seen := map[byte]bool{}
	for _, c := range []byte{separators.Component, separators.Element, separators.Release, separators.Segment} {
		if seen[c] {
			return Separators{}, fmt.Errorf("invalid UNA string %q: separators must be distinct", una)
		}
		seen[c] = true
	}

	return separators, nil
}

func (s Separators) UNA() string {
	return string([]byte{'U', 'N', 'A', s.Component, s.Element, s.Decimal, s.Release, s.Reserved, s.Segment})
}

func (s Separators) reserved(c byte) bool {
	return c == s.Release || c == s.Segment || c == s.Element || c == s.Component
}

// Escape prefixes every separator and the release character itself with the
// release character, the release character first
func (s Separators) Escape(value string) string {
	release := string(s.Release)

	value = strings.ReplaceAll(value, release, release+release)
	value = strings.ReplaceAll(value, string(s.Segment), release+string(s.Segment))
	value = strings.ReplaceAll(value, string(s.Element), release+string(s.Element))
	value = strings.ReplaceAll(value, string(s.Component), release+string(s.Component))

	return value
}

func Escape(value string) string {
	return DefaultSeparators.Escape(value)
}
