package edifact

import (
	"fmt"
	"strings"
)

type ParsedSegment struct {
	Segment

	// Position is the 1-based index of the segment in the interchange
	Position int
}

type Interchange struct {
	Separators Separators
	HasUNA     bool
	Segments   []ParsedSegment

	// Trailing holds data after the last segment terminator
	Trailing string
}

// Parse splits an interchange into segments, elements and components,
// removing release characters. Line breaks between segments are ignored.
func Parse(text string) (*Interchange, error) {
	interchange := &Interchange{Separators: DefaultSeparators}

	if strings.HasPrefix(text, "UNA") {
		if len(text) < 9 {
			return nil, fmt.Errorf("truncated UNA service string advice")
		}

		separators, err := ParseUNA(text[:9])
		if err != nil {
			return nil, err
		}

		interchange.Separators = separators
		interchange.HasUNA = true
		text = text[9:]
	}

	separators := interchange.Separators

	var component strings.Builder
	var element []string
	var elements [][]string
	pending := false
	start := 0

	for i := 0; i < len(text); i++ {
		c := text[i]

		if !pending && (c == '\r' || c == '\n') {
			continue
		}
		if !pending {
			start = i
		}
		pending = true

		switch {
		case c == separators.Release:
			if i+1 >= len(text) {
				return nil, fmt.Errorf("release character at end of data")
			}
			i++
			component.WriteByte(text[i])
		case c == separators.Component:
			element = append(element, component.String())
			component.Reset()
		case c == separators.Element:
			element = append(element, component.String())
			component.Reset()
			elements = append(elements, element)
			element = nil
		case c == separators.Segment:
			element = append(element, component.String())
			component.Reset()
			elements = append(elements, element)
			element = nil

			segment := Segment{Tag: elements[0][0]}
			if len(elements) > 1 {
				segment.Elements = elements[1:]
			}
			interchange.Segments = append(interchange.Segments, ParsedSegment{
				Segment:  segment,
				Position: len(interchange.Segments) + 1,
			})

			elements = nil
			pending = false
		default:
			component.WriteByte(c)
		}
	}

	if pending {
		interchange.Trailing = strings.TrimSpace(text[start:])
	}

	return interchange, nil
}

// Find returns the segments with the tag in interchange order
func (i *Interchange) Find(tag string) []ParsedSegment {
	var found []ParsedSegment
	for _, segment := range i.Segments {
		if segment.Tag == tag {
			found = append(found, segment)
		}
	}

	return found
}
