package validation

import (
	"fmt"

	"github.com/travigo/tsiconverter/pkg/canonical"
	"github.com/travigo/tsiconverter/pkg/formats"
)

func registerGTFSRules(registry *Registry) {
	registry.Register(NewRule("MissingCoordinates", SeverityError, formats.LevelStandard, checkMissingCoordinates), formats.ValidationGTFS)
	registry.Register(NewRule("MixedAgencyTimezones", SeverityError, formats.LevelStandard, checkMixedTimezones), formats.ValidationGTFS)
	registry.Register(NewRule("MissingAgencyURL", SeverityWarning, formats.LevelStandard, checkMissingAgencyURL), formats.ValidationGTFS)
	registry.Register(NewRule("MissingRouteName", SeverityWarning, formats.LevelStandard, checkMissingRouteName), formats.ValidationGTFS)
}

// stops.txt requires stop_lat and stop_lon
func checkMissingCoordinates(document *canonical.Document) []Violation {
	var violations []Violation

	for _, station := range document.Stations {
		if !station.HasCoordinates() {
			violations = append(violations, Violation{
				Locator: Locator{Entity: "station", ID: station.ID, Field: "lat"},
				Message: "station has no coordinates, stop_lat and stop_lon are required",
			})
		}
	}

	return violations
}

// Every agency in a feed must share the same agency_timezone
func checkMixedTimezones(document *canonical.Document) []Violation {
	if len(document.Agencies) < 2 {
		return nil
	}

	var violations []Violation
	first := document.Agencies[0].Timezone

	for _, agency := range document.Agencies[1:] {
		if agency.Timezone != first {
			violations = append(violations, Violation{
				Locator: Locator{Entity: "agency", ID: agency.ID, Field: "timezone"},
				Message: fmt.Sprintf("timezone %q differs from the feed timezone %q", agency.Timezone, first),
			})
		}
	}

	return violations
}

func checkMissingAgencyURL(document *canonical.Document) []Violation {
	var violations []Violation

	for _, agency := range document.Agencies {
		if agency.URL != "" {
			continue
		}

		message := "agency has no url"
		if document.Publisher != nil && document.Publisher.URL != "" {
			message = "agency has no url, the publisher url is used instead"
		}

		violations = append(violations, Violation{
			Locator: Locator{Entity: "agency", ID: agency.ID, Field: "url"},
			Message: message,
		})
	}

	return violations
}

func checkMissingRouteName(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		if service.ShortName == "" && service.LongName == "" {
			violations = append(violations, Violation{
				Locator: serviceLocator(service, "route_short_name"),
				Message: "either route_short_name or route_long_name should be given",
			})
		}
	}

	return violations
}
