package validation

import (
	"fmt"
	"strconv"

	"github.com/travigo/tsiconverter/pkg/canonical"
	"github.com/travigo/tsiconverter/pkg/edifact"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/gtfs"
)

var knownMessageTypes = map[string]bool{
	string(edifact.MessageTypeSKDUPD): true,
	string(edifact.MessageTypeTSDUPD): true,
}

var knownSegmentTags = map[string]bool{
	"UNB": true, "UNG": true, "UNH": true, "BGM": true, "DTM": true, "NAD": true, "TDT": true,
	"FTX": true, "RFF": true, "LOC": true, "GIS": true, "UNT": true, "UNE": true, "UNZ": true,
}

func segmentLocator(segment edifact.ParsedSegment) Locator {
	return Locator{Entity: "segment", ID: segment.Tag, Line: segment.Position}
}

// ValidateEDIFACT checks the envelope of an already serialized interchange.
// Locators carry the 1-based segment position as the line.
func ValidateEDIFACT(text string, level formats.Level) Report {
	report := newReport(formats.ValidationEdifact, level)
	finding := func(code string, severity Severity, locator Locator, format string, args ...any) {
		report.add(Finding{Code: code, Severity: severity, Locator: locator, Message: fmt.Sprintf(format, args...)})
	}

	interchange, err := edifact.Parse(text)
	if err != nil {
		finding("MalformedInterchange", SeverityError, Locator{Entity: "interchange"}, "%s", err)
		return report.sorted()
	}

	if !interchange.HasUNA {
		finding("MissingUNA", SeverityWarning, Locator{Entity: "interchange"}, "no UNA service string advice, default separators assumed")
	}
	if interchange.Trailing != "" {
		finding("UnterminatedSegment", SeverityError, Locator{Entity: "segment", Line: len(interchange.Segments) + 1},
			"data after the last segment terminator: %q", interchange.Trailing)
	}

	segments := interchange.Segments
	if len(segments) == 0 || segments[0].Tag != "UNB" {
		finding("MissingInterchangeHeader", SeverityError, Locator{Entity: "segment", ID: "UNB", Line: 1}, "interchange does not start with UNB")
		return report.sorted()
	}

	interchangeReference := segments[0].Value(4, 0)
	messages := 0

	var header *edifact.ParsedSegment
	count := 0
	var trailer *edifact.ParsedSegment

	for i := range segments {
		segment := segments[i]

		if header != nil {
			count++
		}

		switch segment.Tag {
		case "UNH":
			if header != nil {
				finding("UnpairedMessageHeader", SeverityError, segmentLocator(*header), "message %s has no UNT before the next UNH", header.Value(0, 0))
			}
			header = &segments[i]
			count = 1
			messages++

			if messageType := segment.Value(1, 0); !knownMessageTypes[messageType] {
				finding("UnknownMessageType", SeverityError, segmentLocator(segment), "message type %q is not SKDUPD or TSDUPD", messageType)
			}
		case "UNT":
			if header == nil {
				finding("UnpairedMessageTrailer", SeverityError, segmentLocator(segment), "UNT without a preceding UNH")
				continue
			}

			declared, err := strconv.Atoi(segment.Value(0, 0))
			if err != nil || declared != count {
				finding("SegmentCountMismatch", SeverityError, segmentLocator(segment), "UNT declares %q segments, the message has %d", segment.Value(0, 0), count)
			}
			if reference := segment.Value(1, 0); reference != header.Value(0, 0) {
				finding("MessageReferenceMismatch", SeverityError, segmentLocator(segment), "UNT reference %q does not match UNH reference %q", reference, header.Value(0, 0))
			}

			header = nil
		case "UNZ":
			trailer = &segments[i]
		default:
			if level == formats.LevelStrict && !knownSegmentTags[segment.Tag] {
				finding("UnknownSegment", SeverityWarning, segmentLocator(segment), "segment tag %q is not used by schedule messages", segment.Tag)
			}
		}
	}

	if header != nil {
		finding("UnpairedMessageHeader", SeverityError, segmentLocator(*header), "message %s has no UNT", header.Value(0, 0))
	}

	if trailer == nil {
		finding("MissingInterchangeTrailer", SeverityError, Locator{Entity: "segment", ID: "UNZ", Line: len(segments) + 1}, "interchange has no UNZ")
		return report.sorted()
	}

	if declared, err := strconv.Atoi(trailer.Value(0, 0)); err != nil || declared != messages {
		finding("MessageCountMismatch", SeverityError, segmentLocator(*trailer), "UNZ declares %q messages, the interchange has %d", trailer.Value(0, 0), messages)
	}
	if reference := trailer.Value(1, 0); reference != interchangeReference {
		finding("InterchangeReferenceMismatch", SeverityError, segmentLocator(*trailer), "UNZ reference %q does not match UNB reference %q", reference, interchangeReference)
	}
	if trailer.Position != len(segments) {
		finding("DataAfterTrailer", SeverityError, segmentLocator(segments[len(segments)-1]), "segments follow the UNZ trailer")
	}

	return report.sorted()
}

var requiredColumns = map[string][]string{
	gtfs.AgencyFile:    {"agency_name", "agency_url", "agency_timezone"},
	gtfs.StopsFile:     {"stop_id"},
	gtfs.RoutesFile:    {"route_id", "route_type"},
	gtfs.TripsFile:     {"route_id", "service_id", "trip_id"},
	gtfs.StopTimesFile: {"trip_id", "stop_id", "stop_sequence"},
	gtfs.CalendarFile:  {"service_id", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "start_date", "end_date"},
}

type gtfsChecker struct {
	report *Report
}

func (c *gtfsChecker) add(code string, severity Severity, file string, line int, id string, field string, format string, args ...any) {
	c.report.add(Finding{
		Code:     code,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Locator:  Locator{File: file, Line: line, ID: id, Field: field},
	})
}

func (c *gtfsChecker) required(file string, line int, id string, field string, value string) {
	if value == "" {
		c.add("MissingRequiredValue", SeverityError, file, line, id, field, "%s has no value", field)
	}
}

// rowLine is the file line of a data row, the header being line 1
func rowLine(i int) int {
	return i + 2
}

// ValidateGTFS checks the files of an already serialized feed
func ValidateGTFS(files map[string][]byte, level formats.Level) Report {
	report := newReport(formats.ValidationGTFS, level)
	c := &gtfsChecker{report: &report}

	for _, name := range gtfs.RequiredFiles {
		content, exists := files[name]
		if !exists {
			c.add("MissingRequiredFile", SeverityError, name, 0, "", "", "%s is missing from the feed", name)
			continue
		}

		header, err := gtfs.Header(content)
		if err != nil {
			c.add("MalformedFile", SeverityError, name, 1, "", "", "%s", err)
			continue
		}

		present := map[string]bool{}
		for _, column := range header {
			present[column] = true
		}
		for _, column := range requiredColumns[name] {
			if !present[column] {
				c.add("MissingRequiredColumn", SeverityError, name, 1, "", column, "%s has no %s column", name, column)
			}
		}
	}

	if level == formats.LevelStrict {
		known := map[string]bool{gtfs.FeedInfoFile: true}
		for _, name := range gtfs.RequiredFiles {
			known[name] = true
		}
		for name := range files {
			if !known[name] {
				c.add("UnknownFile", SeverityNotice, name, 0, "", "", "%s is not produced or checked by this converter", name)
			}
		}
	}

	schedule, err := gtfs.ReadBundle(files)
	if err != nil {
		c.add("MalformedFile", SeverityError, "", 0, "", "", "%s", err)
		return report.sorted()
	}

	c.check(schedule)

	return report.sorted()
}

func (c *gtfsChecker) check(schedule *gtfs.Schedule) {
	agencies := map[string]bool{}
	for i, agency := range schedule.Agencies {
		c.required(gtfs.AgencyFile, rowLine(i), agency.ID, "agency_name", agency.Name)
		c.required(gtfs.AgencyFile, rowLine(i), agency.ID, "agency_timezone", agency.Timezone)
		agencies[agency.ID] = true
	}

	stops := map[string]bool{}
	for i, stop := range schedule.Stops {
		line := rowLine(i)
		c.required(gtfs.StopsFile, line, stop.ID, "stop_id", stop.ID)
		stops[stop.ID] = true

		c.coordinate(line, stop.ID, "stop_lat", stop.Latitude, 90)
		c.coordinate(line, stop.ID, "stop_lon", stop.Longitude, 180)
	}

	routes := map[string]bool{}
	for i, route := range schedule.Routes {
		line := rowLine(i)
		c.required(gtfs.RoutesFile, line, route.ID, "route_id", route.ID)
		routes[route.ID] = true

		if routeType, err := strconv.Atoi(route.Type); err != nil || !ValidRouteType(routeType) {
			c.add("InvalidRouteType", SeverityError, gtfs.RoutesFile, line, route.ID, "route_type", "route_type %q is not a known transit mode", route.Type)
		}

		switch {
		case route.AgencyID == "" && len(schedule.Agencies) > 1:
			c.add("MissingRequiredValue", SeverityError, gtfs.RoutesFile, line, route.ID, "agency_id", "agency_id is required when the feed has several agencies")
		case route.AgencyID != "" && !agencies[route.AgencyID]:
			c.add("UnknownAgency", SeverityError, gtfs.RoutesFile, line, route.ID, "agency_id", "route references unknown agency %q", route.AgencyID)
		}
	}

	calendars := map[string]bool{}
	for i, calendar := range schedule.Calendars {
		line := rowLine(i)
		calendars[calendar.ServiceID] = true

		for _, day := range calendar.Days() {
			if day != "0" && day != "1" {
				c.add("InvalidDayFlag", SeverityError, gtfs.CalendarFile, line, calendar.ServiceID, "", "day flag %q is not 0 or 1", day)
				break
			}
		}

		start, startErr := canonical.ParseDate(calendar.Start)
		if startErr != nil {
			c.add("InvalidDate", SeverityError, gtfs.CalendarFile, line, calendar.ServiceID, "start_date", "%s", startErr)
		}
		end, endErr := canonical.ParseDate(calendar.End)
		if endErr != nil {
			c.add("InvalidDate", SeverityError, gtfs.CalendarFile, line, calendar.ServiceID, "end_date", "%s", endErr)
		}
		if startErr == nil && endErr == nil && end.Before(start) {
			c.add("InvalidDateRange", SeverityError, gtfs.CalendarFile, line, calendar.ServiceID, "end_date", "end_date %s is before start_date %s", end, start)
		}
	}

	trips := map[string]bool{}
	for i, trip := range schedule.Trips {
		line := rowLine(i)
		c.required(gtfs.TripsFile, line, trip.ID, "trip_id", trip.ID)
		trips[trip.ID] = true

		if !routes[trip.RouteID] {
			c.add("UnknownRoute", SeverityError, gtfs.TripsFile, line, trip.ID, "route_id", "trip references unknown route %q", trip.RouteID)
		}
		if len(schedule.Calendars) > 0 && !calendars[trip.ServiceID] {
			c.add("UnknownServiceCalendar", SeverityWarning, gtfs.TripsFile, line, trip.ID, "service_id", "service_id %q has no calendar row", trip.ServiceID)
		}
	}

	lastSequence := map[string]int{}
	for i, stopTime := range schedule.StopTimes {
		line := rowLine(i)

		if !trips[stopTime.TripID] {
			c.add("UnknownTrip", SeverityError, gtfs.StopTimesFile, line, stopTime.TripID, "trip_id", "stop time references unknown trip %q", stopTime.TripID)
		}
		if !stops[stopTime.StopID] {
			c.add("UnknownStop", SeverityError, gtfs.StopTimesFile, line, stopTime.TripID, "stop_id", "stop time references unknown stop %q", stopTime.StopID)
		}

		arrival, arrivalOK := c.time(line, stopTime.TripID, "arrival_time", stopTime.ArrivalTime)
		departure, departureOK := c.time(line, stopTime.TripID, "departure_time", stopTime.DepartureTime)
		if arrivalOK && departureOK && departure < arrival {
			c.add("InvalidTimeOrder", SeverityError, gtfs.StopTimesFile, line, stopTime.TripID, "departure_time",
				"departure %s is earlier than arrival %s", departure, arrival)
		}

		sequence, err := strconv.Atoi(stopTime.StopSequence)
		if err != nil || sequence < 0 {
			c.add("InvalidStopSequence", SeverityError, gtfs.StopTimesFile, line, stopTime.TripID, "stop_sequence", "stop_sequence %q is not a non-negative integer", stopTime.StopSequence)
			continue
		}

		if previous, seen := lastSequence[stopTime.TripID]; seen && sequence <= previous {
			c.add("StopSequenceNotIncreasing", SeverityError, gtfs.StopTimesFile, line, stopTime.TripID, "stop_sequence",
				"stop_sequence %d does not increase from %d", sequence, previous)
		}
		lastSequence[stopTime.TripID] = sequence
	}
}

func (c *gtfsChecker) coordinate(line int, id string, field string, value string, limit float64) {
	if value == "" {
		c.add("MissingRequiredValue", SeverityError, gtfs.StopsFile, line, id, field, "%s has no value", field)
		return
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < -limit || parsed > limit {
		c.add("InvalidCoordinates", SeverityError, gtfs.StopsFile, line, id, field, "%s %q is outside [-%v, %v]", field, value, limit, limit)
	}
}

// Empty times are allowed for intermediate untimed stops
func (c *gtfsChecker) time(line int, id string, field string, value string) (canonical.ScheduleTime, bool) {
	if value == "" {
		return 0, false
	}

	parsed, err := canonical.ParseScheduleTime(value)
	if err != nil {
		c.add("InvalidTime", SeverityError, gtfs.StopTimesFile, line, id, field, "%s", err)
		return 0, false
	}

	return parsed, true
}
