package edifact

import "strings"

// Segment is a tag followed by data elements. Each element is a list of
// components, a simple element has exactly one.
type Segment struct {
	Tag      string
	Elements [][]string
}

func NewSegment(tag string, elements ...[]string) Segment {
	return Segment{Tag: tag, Elements: elements}
}

// E builds a data element from its components
func E(components ...string) []string {
	return components
}

func (s Segment) Render(separators Separators) string {
	var builder strings.Builder
	s.write(&builder, separators)

	return builder.String()
}

func (s Segment) write(builder *strings.Builder, separators Separators) {
	builder.WriteString(s.Tag)

	for _, element := range s.Elements {
		builder.WriteByte(separators.Element)

		for i, component := range element {
			if i > 0 {
				builder.WriteByte(separators.Component)
			}
			builder.WriteString(separators.Escape(component))
		}
	}

	builder.WriteByte(separators.Segment)
}

// Value returns a component of the segment, empty when it is absent
func (s Segment) Value(element int, component int) string {
	if element >= len(s.Elements) || component >= len(s.Elements[element]) {
		return ""
	}

	return s.Elements[element][component]
}
