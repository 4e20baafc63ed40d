package validation

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/travigo/tsiconverter/pkg/formats"
	"golang.org/x/exp/slices"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNotice  Severity = "notice"
)

func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(s)) {
	case SeverityError:
		return SeverityError, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityNotice:
		return SeverityNotice, nil
	}

	return "", fmt.Errorf("unknown severity %q", s)
}

// Locator points at an entity field of a canonical document, or at a line of
// an already serialized file
type Locator struct {
	Entity string `json:"entity,omitempty"`
	ID     string `json:"id,omitempty"`
	Field  string `json:"field,omitempty"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
}

func (l Locator) String() string {
	var parts []string

	if l.File != "" {
		if l.Line > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", l.File, l.Line))
		} else {
			parts = append(parts, l.File)
		}
	} else if l.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", l.Line))
	}
	if l.Entity != "" {
		parts = append(parts, l.Entity)
	}
	if l.ID != "" {
		parts = append(parts, l.ID)
	}
	if l.Field != "" {
		parts = append(parts, l.Field)
	}

	return strings.Join(parts, " ")
}

func compareLocators(a, b Locator) int {
	return cmp.Or(
		cmp.Compare(a.File, b.File),
		cmp.Compare(a.Line, b.Line),
		cmp.Compare(a.Entity, b.Entity),
		cmp.Compare(a.ID, b.ID),
		cmp.Compare(a.Field, b.Field),
	)
}

type Finding struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Locator  Locator  `json:"locator"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", f.Severity, f.Code, f.Locator, f.Message)
}

type Report struct {
	Format formats.Validation `json:"format"`
	Level  formats.Level      `json:"validation_level"`

	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
	Notices  []Finding `json:"notices"`
}

func newReport(format formats.Validation, level formats.Level) Report {
	return Report{
		Format:   format,
		Level:    level,
		Errors:   []Finding{},
		Warnings: []Finding{},
		Notices:  []Finding{},
	}
}

// Valid reports whether the document has no error severity findings
func (r *Report) Valid() bool {
	return len(r.Errors) == 0
}

// All returns the findings in output order
func (r *Report) All() []Finding {
	all := make([]Finding, 0, len(r.Errors)+len(r.Warnings)+len(r.Notices))
	all = append(all, r.Errors...)
	all = append(all, r.Warnings...)
	all = append(all, r.Notices...)

	return all
}

// Advisory returns the warnings and notices
func (r *Report) Advisory() []Finding {
	advisory := make([]Finding, 0, len(r.Warnings)+len(r.Notices))
	advisory = append(advisory, r.Warnings...)
	advisory = append(advisory, r.Notices...)

	return advisory
}

func (r *Report) add(finding Finding) {
	switch finding.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, finding)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, finding)
	default:
		r.Notices = append(r.Notices, finding)
	}
}

// sort orders every group by locator. The sort is stable so findings on the
// same locator keep rule registration order.
func (r *Report) sort() {
	byLocator := func(a, b Finding) int {
		return compareLocators(a.Locator, b.Locator)
	}

	slices.SortStableFunc(r.Errors, byLocator)
	slices.SortStableFunc(r.Warnings, byLocator)
	slices.SortStableFunc(r.Notices, byLocator)
}

func (r Report) sorted() Report {
	r.sort()
	return r
}
