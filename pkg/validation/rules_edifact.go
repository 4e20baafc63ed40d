package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/travigo/tsiconverter/pkg/canonical"
	"github.com/travigo/tsiconverter/pkg/formats"
)

// MaxAlphanumericLength is the an..35 limit of the free text and name elements
const MaxAlphanumericLength = 35

func registerEdifactRules(registry *Registry) {
	registry.Register(NewRule("ValueTooLong", SeverityWarning, formats.LevelStrict, checkValueLength), formats.ValidationEdifact)
	registry.Register(NewRule("SingleCallService", SeverityWarning, formats.LevelStrict, checkSingleCall), formats.ValidationEdifact)
	registry.Register(NewRule("CoordinatesNotCarried", SeverityNotice, formats.LevelStandard, checkCoordinatesCarried), formats.ValidationEdifact)
}

func checkValueLength(document *canonical.Document) []Violation {
	var violations []Violation

	tooLong := func(locator Locator, value string) {
		if utf8.RuneCountInString(value) > MaxAlphanumericLength {
			violations = append(violations, Violation{
				Locator: locator,
				Message: fmt.Sprintf("value is %d characters, longer than an..%d", utf8.RuneCountInString(value), MaxAlphanumericLength),
			})
		}
	}

	for _, agency := range document.Agencies {
		tooLong(Locator{Entity: "agency", ID: agency.ID, Field: "name"}, agency.Name)
	}
	for _, station := range document.Stations {
		tooLong(Locator{Entity: "station", ID: station.ID, Field: "id"}, station.ID)
		tooLong(Locator{Entity: "station", ID: station.ID, Field: "name"}, station.Name)
	}
	for i := range document.Services {
		service := &document.Services[i]
		tooLong(serviceLocator(service, "route_short_name"), service.Identity())
		tooLong(serviceLocator(service, "headsign"), service.Headsign)
	}

	return violations
}

func checkSingleCall(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		if len(service.Calls) == 1 {
			violations = append(violations, Violation{
				Locator: serviceLocator(service, "calls"),
				Message: "service has a single call so no leg can be described",
			})
		}
	}

	return violations
}

func checkCoordinatesCarried(document *canonical.Document) []Violation {
	var violations []Violation

	for _, station := range document.Stations {
		if station.HasCoordinates() {
			violations = append(violations, Violation{
				Locator: Locator{Entity: "station", ID: station.ID, Field: "lat"},
				Message: "TSDUPD does not carry geographic location groups, coordinates need omit_coordinates",
			})
		}
	}

	return violations
}
