package validation

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"github.com/travigo/tsiconverter/pkg/canonical"
	"github.com/travigo/tsiconverter/pkg/formats"
)

// CustomRuleDefinition is a rule given in configuration. When is an expression
// evaluated against every entity of the given kind, a true result is a violation.
type CustomRuleDefinition struct {
	Code     string `yaml:"code" validate:"required"`
	Format   string `yaml:"format" validate:"required,oneof=json-transport edifact gtfs"`
	Severity string `yaml:"severity" validate:"required,oneof=error warning notice"`
	Level    string `yaml:"level" validate:"omitempty,oneof=standard strict"`
	Entity   string `yaml:"entity" validate:"required,oneof=agency station service call"`
	When     string `yaml:"when" validate:"required"`
	Message  string `yaml:"message"`
}

type customRule struct {
	definition CustomRuleDefinition
	severity   Severity
	level      formats.Level
	program    *vm.Program
}

var customRuleEnvironments = map[string]map[string]any{
	"agency":  agencyEnvironment(&canonical.Agency{}),
	"station": stationEnvironment(&canonical.Station{}),
	"service": serviceEnvironment(&canonical.Service{}),
	"call":    callEnvironment(&canonical.Service{}, &canonical.Call{}),
}

func NewCustomRule(definition CustomRuleDefinition) (Rule, formats.Validation, error) {
	format, err := formats.ParseValidation(definition.Format)
	if err != nil {
		return nil, "", err
	}
	severity, err := ParseSeverity(definition.Severity)
	if err != nil {
		return nil, "", err
	}
	level, err := formats.ParseLevel(definition.Level)
	if err != nil {
		return nil, "", err
	}

	environment, exists := customRuleEnvironments[definition.Entity]
	if !exists {
		return nil, "", fmt.Errorf("rule %s: unknown entity %q", definition.Code, definition.Entity)
	}

	program, err := expr.Compile(definition.When, expr.Env(environment), expr.AsBool())
	if err != nil {
		return nil, "", fmt.Errorf("rule %s: %w", definition.Code, err)
	}

	return &customRule{
		definition: definition,
		severity:   severity,
		level:      level,
		program:    program,
	}, format, nil
}

// RegisterCustomRules compiles each definition and appends it to the registry
func RegisterCustomRules(registry *Registry, definitions []CustomRuleDefinition) error {
	for _, definition := range definitions {
		rule, format, err := NewCustomRule(definition)
		if err != nil {
			return err
		}

		registry.Register(rule, format)
	}

	return nil
}

func (r *customRule) Code() string         { return r.definition.Code }
func (r *customRule) Severity() Severity   { return r.severity }
func (r *customRule) Level() formats.Level { return r.level }

func (r *customRule) Check(document *canonical.Document) []Violation {
	var violations []Violation

	evaluate := func(locator Locator, environment map[string]any) {
		output, err := expr.Run(r.program, environment)
		if err != nil {
			log.Error().Err(err).Str("rule", r.definition.Code).Msg("Failed to evaluate custom rule")
			return
		}

		if matched, _ := output.(bool); matched {
			violations = append(violations, Violation{Locator: locator, Message: r.message()})
		}
	}

	switch r.definition.Entity {
	case "agency":
		for i := range document.Agencies {
			agency := &document.Agencies[i]
			evaluate(Locator{Entity: "agency", ID: agency.ID}, agencyEnvironment(agency))
		}
	case "station":
		for i := range document.Stations {
			station := &document.Stations[i]
			evaluate(Locator{Entity: "station", ID: station.ID}, stationEnvironment(station))
		}
	case "service":
		for i := range document.Services {
			service := &document.Services[i]
			evaluate(serviceLocator(service, ""), serviceEnvironment(service))
		}
	case "call":
		for i := range document.Services {
			service := &document.Services[i]
			for j := range service.Calls {
				evaluate(serviceLocator(service, fmt.Sprintf("calls[%d]", j)), callEnvironment(service, &service.Calls[j]))
			}
		}
	}

	return violations
}

func (r *customRule) message() string {
	if r.definition.Message != "" {
		return r.definition.Message
	}

	return fmt.Sprintf("matched %s", r.definition.When)
}

func agencyEnvironment(agency *canonical.Agency) map[string]any {
	return map[string]any{
		"id":       agency.ID,
		"name":     agency.Name,
		"url":      agency.URL,
		"timezone": agency.Timezone,
		"lang":     agency.Lang,
		"phone":    agency.Phone,
		"email":    agency.Email,
	}
}

func stationEnvironment(station *canonical.Station) map[string]any {
	environment := map[string]any{
		"id":              station.ID,
		"code":            station.Code,
		"name":            station.Name,
		"description":     station.Description,
		"has_coordinates": station.HasCoordinates(),
		"lat":             0.0,
		"lon":             0.0,
		"zone_id":         station.ZoneID,
		"parent_station":  station.Parent,
		"platform_code":   station.Platform,
	}
	if station.HasCoordinates() {
		environment["lat"] = *station.Latitude
		environment["lon"] = *station.Longitude
	}

	return environment
}

func serviceEnvironment(service *canonical.Service) map[string]any {
	return map[string]any{
		"id":               service.ID,
		"agency_id":        service.AgencyID,
		"route_type":       service.RouteType,
		"route_short_name": service.ShortName,
		"route_long_name":  service.LongName,
		"headsign":         service.Headsign,
		"calls":            len(service.Calls),
		"variants":         len(service.Variants),
	}
}

// Times are exposed in seconds since the start of the service day
func callEnvironment(service *canonical.Service, call *canonical.Call) map[string]any {
	return map[string]any{
		"service_id":    service.ID,
		"station_id":    call.StationID,
		"arrival":       int(call.Arrival),
		"departure":     int(call.Departure),
		"dwell":         int(call.Departure - call.Arrival),
		"stop_sequence": call.StopSequence,
		"pickup_type":   call.PickupType,
		"drop_off_type": call.DropOffType,
		"stop_headsign": call.Headsign,
	}
}
