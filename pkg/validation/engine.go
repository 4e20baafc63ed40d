package validation

import (
	"errors"
	"io"

	"github.com/travigo/tsiconverter/pkg/canonical"
	"github.com/travigo/tsiconverter/pkg/formats"
)

type Engine struct {
	registry *Registry
}

func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}

	return &Engine{registry: registry}
}

// Validate runs the rules of the format in registration order. Rules marked
// strict only run at the strict level.
func (e *Engine) Validate(document *canonical.Document, format formats.Validation, level formats.Level) Report {
	report := newReport(format, level)

	for _, rule := range e.registry.ForFormat(format) {
		if rule.Level() == formats.LevelStrict && level != formats.LevelStrict {
			continue
		}

		for _, violation := range rule.Check(document) {
			report.add(Finding{
				Code:     rule.Code(),
				Message:  violation.Message,
				Severity: rule.Severity(),
				Locator:  violation.Locator,
			})
		}
	}

	report.sort()

	return report
}

// ValidatePayload parses the raw JSON transport payload first. Parse errors are
// reported as error findings and no rule runs against a partial document.
func (e *Engine) ValidatePayload(raw []byte, format formats.Validation, level formats.Level) (Report, *canonical.Document) {
	document, err := canonical.Parse(raw)
	if err != nil {
		return parseReport(err, format, level), nil
	}

	return e.Validate(document, format, level), document
}

// ValidateReader is ValidatePayload for input in the given charset
func (e *Engine) ValidateReader(reader io.Reader, charsetLabel string, format formats.Validation, level formats.Level) (Report, *canonical.Document) {
	document, err := canonical.ParseReader(reader, charsetLabel)
	if err != nil {
		return parseReport(err, format, level), nil
	}

	return e.Validate(document, format, level), document
}

func parseReport(err error, format formats.Validation, level formats.Level) Report {
	report := newReport(format, level)
	for _, finding := range ParseFindings(err) {
		report.add(finding)
	}

	return report.sorted()
}

// ParseFindings converts a parse failure into error findings
func ParseFindings(err error) []Finding {
	var parseErrors canonical.ParseErrors
	if !errors.As(err, &parseErrors) {
		return []Finding{{
			Code:     string(canonical.ParseErrorTypeMismatch),
			Message:  err.Error(),
			Severity: SeverityError,
			Locator:  Locator{Entity: "document"},
		}}
	}

	findings := make([]Finding, 0, len(parseErrors))
	for _, parseError := range parseErrors {
		findings = append(findings, Finding{
			Code:     string(parseError.Kind),
			Message:  parseError.Message,
			Severity: SeverityError,
			Locator:  Locator{Entity: "document", Field: parseError.Path},
		})
	}

	return findings
}
