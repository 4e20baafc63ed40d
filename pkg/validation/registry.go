package validation

import (
	"github.com/travigo/tsiconverter/pkg/canonical"
	"github.com/travigo/tsiconverter/pkg/formats"
)

type Violation struct {
	Locator Locator
	Message string
}

type Check func(document *canonical.Document) []Violation

// Rule is a pure predicate over a canonical document
type Rule interface {
	Code() string
	Severity() Severity
	Level() formats.Level
	Check(document *canonical.Document) []Violation
}

type rule struct {
	code     string
	severity Severity
	level    formats.Level
	check    Check
}

func NewRule(code string, severity Severity, level formats.Level, check Check) Rule {
	return &rule{
		code:     code,
		severity: severity,
		level:    level,
		check:    check,
	}
}

func (r *rule) Code() string         { return r.code }
func (r *rule) Severity() Severity   { return r.severity }
func (r *rule) Level() formats.Level { return r.level }

func (r *rule) Check(document *canonical.Document) []Violation { return r.check(document) }

type registryKey struct {
	format   formats.Validation
	severity Severity
}

type registeredRule struct {
	format formats.Validation
	rule   Rule
}

type Registry struct {
	byKey map[registryKey][]Rule
	order []registeredRule
}

func NewRegistry() *Registry {
	return &Registry{
		byKey: map[registryKey][]Rule{},
	}
}

// Register adds the rule to each of the formats given
func (r *Registry) Register(rule Rule, validationFormats ...formats.Validation) {
	for _, format := range validationFormats {
		key := registryKey{format: format, severity: rule.Severity()}
		r.byKey[key] = append(r.byKey[key], rule)
		r.order = append(r.order, registeredRule{format: format, rule: rule})
	}
}

func (r *Registry) Rules(format formats.Validation, severity Severity) []Rule {
	return r.byKey[registryKey{format: format, severity: severity}]
}

// ForFormat returns the rules of a format in registration order
func (r *Registry) ForFormat(format formats.Validation) []Rule {
	var rules []Rule
	for _, registered := range r.order {
		if registered.format == format {
			rules = append(rules, registered.rule)
		}
	}

	return rules
}

// DefaultRegistry has every built-in rule set registered
func DefaultRegistry() *Registry {
	registry := NewRegistry()

	registerIntegrityRules(registry)
	registerGTFSRules(registry)
	registerEdifactRules(registry)

	return registry
}
