package validation

import (
	"fmt"
	"time"

	"github.com/travigo/tsiconverter/pkg/canonical"
	"github.com/travigo/tsiconverter/pkg/formats"

	_ "time/tzdata"
)

var allFormats = []formats.Validation{formats.ValidationJSONTransport, formats.ValidationEdifact, formats.ValidationGTFS}

// Extended GTFS route types on top of the basic 0-7, 11 and 12
var extendedRouteTypes = map[int]bool{
	100: true, 101: true, 102: true, 103: true, 104: true, 105: true, 106: true, 107: true, 108: true,
	109: true, 110: true, 111: true, 112: true, 113: true, 114: true, 115: true, 116: true, 117: true,
	200: true, 201: true, 202: true, 203: true, 204: true, 205: true, 206: true, 207: true, 208: true, 209: true,
	400: true, 401: true, 402: true, 403: true, 404: true, 405: true,
	700: true, 701: true, 702: true, 703: true, 704: true, 705: true, 706: true, 707: true, 708: true,
	709: true, 710: true, 711: true, 712: true, 713: true, 714: true, 715: true, 716: true,
	800: true, 900: true, 901: true, 902: true, 903: true, 904: true, 905: true, 906: true,
	1000: true, 1100: true, 1200: true, 1300: true, 1400: true,
	1500: true, 1501: true, 1502: true, 1503: true, 1504: true, 1505: true, 1506: true, 1507: true,
	1700: true, 1702: true,
}

func ValidRouteType(routeType int) bool {
	if routeType >= 0 && routeType <= 7 {
		return true
	}
	if routeType == 11 || routeType == 12 {
		return true
	}

	return extendedRouteTypes[routeType]
}

func serviceLocator(service *canonical.Service, field string) Locator {
	return Locator{Entity: "service", ID: service.ID, Field: field}
}

func callField(i int, field string) string {
	return fmt.Sprintf("calls[%d].%s", i, field)
}

func registerIntegrityRules(registry *Registry) {
	registry.Register(NewRule("MissingAgencies", SeverityError, formats.LevelStandard, checkMissingAgencies), allFormats...)
	registry.Register(NewRule("MissingStations", SeverityError, formats.LevelStandard, checkMissingStations), allFormats...)
	registry.Register(NewRule("UnknownAgency", SeverityError, formats.LevelStandard, checkUnknownAgency), allFormats...)
	registry.Register(NewRule("UnknownStation", SeverityError, formats.LevelStandard, checkUnknownStation), allFormats...)
	registry.Register(NewRule("InvalidTimeOrder", SeverityError, formats.LevelStandard, checkTimeOrder), allFormats...)
	registry.Register(NewRule("StopSequenceNotIncreasing", SeverityError, formats.LevelStandard, checkStopSequence), allFormats...)
	registry.Register(NewRule("InvalidDateRange", SeverityError, formats.LevelStandard, checkDateRange), allFormats...)
	registry.Register(NewRule("InvalidCoordinates", SeverityError, formats.LevelStandard, checkCoordinates), allFormats...)
	registry.Register(NewRule("InvalidTimezone", SeverityError, formats.LevelStandard, checkTimezone), allFormats...)
	registry.Register(NewRule("InvalidRouteType", SeverityError, formats.LevelStandard, checkRouteType), allFormats...)
	registry.Register(NewRule("InvalidDirection", SeverityError, formats.LevelStandard, checkDirection), allFormats...)
	registry.Register(NewRule("UnknownAlertReference", SeverityError, formats.LevelStandard, checkAlertReferences), allFormats...)

	registry.Register(NewRule("ServiceWithoutCalls", SeverityWarning, formats.LevelStandard, checkServiceWithoutCalls), allFormats...)
	registry.Register(NewRule("ServiceWithoutVariants", SeverityWarning, formats.LevelStandard, checkServiceWithoutVariants), allFormats...)
	registry.Register(NewRule("EmptyDayPattern", SeverityWarning, formats.LevelStandard, checkEmptyDayPattern), allFormats...)
	registry.Register(NewRule("MissingPublisher", SeverityWarning, formats.LevelStandard, checkMissingPublisher), allFormats...)
	registry.Register(NewRule("MissingStationName", SeverityWarning, formats.LevelStrict, checkMissingStationName), allFormats...)

	registry.Register(NewRule("UnusedStation", SeverityNotice, formats.LevelStandard, checkUnusedStations), allFormats...)
	registry.Register(NewRule("UnusedAgency", SeverityNotice, formats.LevelStandard, checkUnusedAgencies), allFormats...)
	registry.Register(NewRule("PostMidnightCall", SeverityNotice, formats.LevelStandard, checkPostMidnight), allFormats...)
}

func checkMissingAgencies(document *canonical.Document) []Violation {
	if len(document.Services) > 0 && len(document.Agencies) == 0 {
		return []Violation{{
			Locator: Locator{Entity: "document", Field: "agencies"},
			Message: "services are present but no agency is defined",
		}}
	}
	return nil
}

func checkMissingStations(document *canonical.Document) []Violation {
	if len(document.Stations) > 0 {
		return nil
	}

	for _, service := range document.Services {
		if len(service.Calls) > 0 {
			return []Violation{{
				Locator: Locator{Entity: "document", Field: "stations"},
				Message: "services call at stations but no station is defined",
			}}
		}
	}
	return nil
}

func checkUnknownAgency(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		if _, exists := document.Agency(service.AgencyID); !exists {
			violations = append(violations, Violation{
				Locator: serviceLocator(service, "agency_id"),
				Message: fmt.Sprintf("service references unknown agency %q", service.AgencyID),
			})
		}
	}

	return violations
}

func checkUnknownStation(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		for j, call := range service.Calls {
			if _, exists := document.Station(call.StationID); !exists {
				violations = append(violations, Violation{
					Locator: serviceLocator(service, callField(j, "station_id")),
					Message: fmt.Sprintf("call references unknown station %q", call.StationID),
				})
			}
		}
	}

	return violations
}

func checkTimeOrder(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		for j, call := range service.Calls {
			if call.Departure < call.Arrival {
				violations = append(violations, Violation{
					Locator: serviceLocator(service, callField(j, "departure_time")),
					Message: fmt.Sprintf("departure %s is earlier than arrival %s", call.Departure, call.Arrival),
				})
			}

			if j > 0 && call.Arrival < service.Calls[j-1].Departure {
				violations = append(violations, Violation{
					Locator: serviceLocator(service, callField(j, "arrival_time")),
					Message: fmt.Sprintf("arrival %s is earlier than the previous departure %s", call.Arrival, service.Calls[j-1].Departure),
				})
			}
		}
	}

	return violations
}

func checkStopSequence(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		for j := 1; j < len(service.Calls); j++ {
			previous := service.Calls[j-1].StopSequence
			current := service.Calls[j].StopSequence

			if current <= previous {
				violations = append(violations, Violation{
					Locator: serviceLocator(service, callField(j, "stop_sequence")),
					Message: fmt.Sprintf("stop_sequence %d does not increase from %d", current, previous),
				})
			}
		}
	}

	return violations
}

func checkDateRange(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		for j, variant := range service.Variants {
			calendar := variant.Calendar
			if calendar.StartDate.IsZero() || calendar.EndDate.IsZero() {
				violations = append(violations, Violation{
					Locator: serviceLocator(service, fmt.Sprintf("variants[%d].calendar", j)),
					Message: "calendar has no date window",
				})
				continue
			}

			if calendar.EndDate.Before(calendar.StartDate) {
				violations = append(violations, Violation{
					Locator: serviceLocator(service, fmt.Sprintf("variants[%d].calendar.end_date", j)),
					Message: fmt.Sprintf("end_date %s is before start_date %s", calendar.EndDate, calendar.StartDate),
				})
			}
		}
	}

	return violations
}

func checkCoordinates(document *canonical.Document) []Violation {
	var violations []Violation

	for _, station := range document.Stations {
		locator := Locator{Entity: "station", ID: station.ID}

		if (station.Latitude == nil) != (station.Longitude == nil) {
			locator.Field = "lat"
			violations = append(violations, Violation{Locator: locator, Message: "latitude and longitude must be given together"})
			continue
		}
		if !station.HasCoordinates() {
			continue
		}

		if lat := *station.Latitude; lat < -90 || lat > 90 {
			locator.Field = "lat"
			violations = append(violations, Violation{Locator: locator, Message: fmt.Sprintf("latitude %v is outside [-90, 90]", lat)})
		}
		if lon := *station.Longitude; lon < -180 || lon > 180 {
			locator.Field = "lon"
			violations = append(violations, Violation{Locator: locator, Message: fmt.Sprintf("longitude %v is outside [-180, 180]", lon)})
		}
	}

	return violations
}

func checkTimezone(document *canonical.Document) []Violation {
	var violations []Violation

	for _, agency := range document.Agencies {
		if _, err := time.LoadLocation(agency.Timezone); err != nil || agency.Timezone == "" {
			violations = append(violations, Violation{
				Locator: Locator{Entity: "agency", ID: agency.ID, Field: "timezone"},
				Message: fmt.Sprintf("%q is not an IANA timezone", agency.Timezone),
			})
		}
	}

	return violations
}

func checkRouteType(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		if !ValidRouteType(service.RouteType) {
			violations = append(violations, Violation{
				Locator: serviceLocator(service, "route_type"),
				Message: fmt.Sprintf("route_type %d is not a known transit mode", service.RouteType),
			})
		}
	}

	return violations
}

func checkDirection(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		if service.Direction != nil && *service.Direction != 0 && *service.Direction != 1 {
			violations = append(violations, Violation{
				Locator: serviceLocator(service, "direction_id"),
				Message: fmt.Sprintf("direction_id %d must be 0 or 1", *service.Direction),
			})
		}
	}

	return violations
}

func checkAlertReferences(document *canonical.Document) []Violation {
	var violations []Violation

	for _, alert := range document.Alerts {
		for i, serviceID := range alert.ServiceIDs {
			if _, exists := document.Service(serviceID); !exists {
				violations = append(violations, Violation{
					Locator: Locator{Entity: "alert", ID: alert.ID, Field: fmt.Sprintf("service_ids[%d]", i)},
					Message: fmt.Sprintf("alert references unknown service %q", serviceID),
				})
			}
		}
		for i, stationID := range alert.StationIDs {
			if _, exists := document.Station(stationID); !exists {
				violations = append(violations, Violation{
					Locator: Locator{Entity: "alert", ID: alert.ID, Field: fmt.Sprintf("station_ids[%d]", i)},
					Message: fmt.Sprintf("alert references unknown station %q", stationID),
				})
			}
		}
		for i, agencyID := range alert.AgencyIDs {
			if _, exists := document.Agency(agencyID); !exists {
				violations = append(violations, Violation{
					Locator: Locator{Entity: "alert", ID: alert.ID, Field: fmt.Sprintf("agency_ids[%d]", i)},
					Message: fmt.Sprintf("alert references unknown agency %q", agencyID),
				})
			}
		}
	}

	return violations
}

func checkServiceWithoutCalls(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		if len(service.Calls) == 0 {
			violations = append(violations, Violation{
				Locator: serviceLocator(service, "calls"),
				Message: "service has no calls",
			})
		}
	}

	return violations
}

func checkServiceWithoutVariants(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		if len(service.Variants) == 0 {
			violations = append(violations, Violation{
				Locator: serviceLocator(service, "variants"),
				Message: "service has no variant so no operating calendar",
			})
		}
	}

	return violations
}

func checkEmptyDayPattern(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		for j, variant := range service.Variants {
			runs := false
			for _, day := range variant.Calendar.Days() {
				runs = runs || day
			}

			if !runs {
				violations = append(violations, Violation{
					Locator: serviceLocator(service, fmt.Sprintf("variants[%d].calendar", j)),
					Message: fmt.Sprintf("variant %q does not run on any day of the week", variant.ID),
				})
			}
		}
	}

	return violations
}

func checkMissingPublisher(document *canonical.Document) []Violation {
	if document.Publisher == nil || document.Publisher.Name == "" {
		return []Violation{{
			Locator: Locator{Entity: "document", Field: "publisher"},
			Message: "document has no named publisher",
		}}
	}
	return nil
}

func checkMissingStationName(document *canonical.Document) []Violation {
	var violations []Violation

	for _, station := range document.Stations {
		if station.Name == "" {
			violations = append(violations, Violation{
				Locator: Locator{Entity: "station", ID: station.ID, Field: "name"},
				Message: "station has no name",
			})
		}
	}

	return violations
}

func checkUnusedStations(document *canonical.Document) []Violation {
	used := map[string]bool{}
	for _, service := range document.Services {
		for _, call := range service.Calls {
			used[call.StationID] = true
		}
	}
	for _, station := range document.Stations {
		if station.Parent != "" {
			used[station.Parent] = true
		}
	}

	var violations []Violation
	for _, station := range document.Stations {
		if !used[station.ID] {
			violations = append(violations, Violation{
				Locator: Locator{Entity: "station", ID: station.ID},
				Message: "station is not called at by any service",
			})
		}
	}

	return violations
}

func checkUnusedAgencies(document *canonical.Document) []Violation {
	used := map[string]bool{}
	for _, service := range document.Services {
		used[service.AgencyID] = true
	}

	var violations []Violation
	for _, agency := range document.Agencies {
		if !used[agency.ID] {
			violations = append(violations, Violation{
				Locator: Locator{Entity: "agency", ID: agency.ID},
				Message: "agency does not operate any service",
			})
		}
	}

	return violations
}

func checkPostMidnight(document *canonical.Document) []Violation {
	var violations []Violation

	for i := range document.Services {
		service := &document.Services[i]
		for j, call := range service.Calls {
			if call.Departure.DayOffset() > 0 || call.Arrival.DayOffset() > 0 {
				violations = append(violations, Violation{
					Locator: serviceLocator(service, callField(j, "departure_time")),
					Message: "service continues past midnight of its service day",
				})
				break
			}
		}
	}

	return violations
}
