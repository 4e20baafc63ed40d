package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulcager/osgridref"
	"golang.org/x/net/html/charset"
)

// ParseReader decodes the payload from the given charset before parsing it
func ParseReader(reader io.Reader, charsetLabel string) (*Document, error) {
	if charsetLabel != "" && !strings.EqualFold(charsetLabel, "utf-8") && !strings.EqualFold(charsetLabel, "utf8") {
		decoded, err := charset.NewReaderLabel(charsetLabel, reader)
		if err != nil {
			return nil, err
		}
		reader = decoded
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	return Parse(body)
}

// Parse builds a Document from the JSON transport payload. Every structural
// defect is collected and returned together as ParseErrors.
func Parse(raw []byte) (*Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var root any
	if err := decoder.Decode(&root); err != nil {
		return nil, ParseErrors{{Kind: ParseErrorTypeMismatch, Path: "$", Message: err.Error()}}
	}

	object, ok := root.(map[string]any)
	if !ok {
		return nil, ParseErrors{{Kind: ParseErrorTypeMismatch, Path: "$", Message: "document must be an object"}}
	}

	p := &parser{}
	document := p.document(object)

	if len(p.errors) > 0 {
		return nil, p.errors
	}

	document.Reindex()

	return document, nil
}

type parser struct {
	errors ParseErrors
}

func (p *parser) fail(kind ParseErrorKind, path string, format string, args ...any) {
	p.errors = append(p.errors, ParseError{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)})
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func present(object map[string]any, key string) (any, bool) {
	value, exists := object[key]
	if !exists || value == nil {
		return nil, false
	}
	return value, true
}

func (p *parser) document(object map[string]any) *Document {
	document := &Document{}

	if value, exists := present(object, "publisher"); exists {
		if publisherObject, ok := value.(map[string]any); ok {
			document.Publisher = p.publisher(publisherObject, "publisher")
		} else {
			p.fail(ParseErrorTypeMismatch, "publisher", "expected object")
		}
	}

	seenAgencies := map[string]bool{}
	for i, item := range p.list(object, "agencies", "") {
		path := index("agencies", i)
		agency := p.agency(item, path)
		p.unique(seenAgencies, agency.ID, join(path, "id"))
		document.Agencies = append(document.Agencies, agency)
	}

	seenStations := map[string]bool{}
	for i, item := range p.list(object, "stations", "") {
		path := index("stations", i)
		station := p.station(item, path)
		p.unique(seenStations, station.ID, join(path, "id"))
		document.Stations = append(document.Stations, station)
	}

	seenServices := map[string]bool{}
	for i, item := range p.list(object, "services", "") {
		path := index("services", i)
		service := p.service(item, path)
		p.unique(seenServices, service.ID, join(path, "id"))
		document.Services = append(document.Services, service)
	}

	seenAlerts := map[string]bool{}
	for i, item := range p.list(object, "alerts", "") {
		path := index("alerts", i)
		alert := p.alert(item, path)
		p.unique(seenAlerts, alert.ID, join(path, "id"))
		document.Alerts = append(document.Alerts, alert)
	}

	return document
}

func (p *parser) unique(seen map[string]bool, id string, path string) {
	if id == "" {
		return
	}
	if seen[id] {
		p.fail(ParseErrorDuplicateID, path, "duplicate id %q", id)
		return
	}
	seen[id] = true
}

func (p *parser) publisher(object map[string]any, path string) *Publisher {
	return &Publisher{
		ID:    p.str(object, "id", path, false),
		Name:  p.str(object, "name", path, false),
		URL:   p.str(object, "url", path, false),
		Email: p.str(object, "email", path, false),
		Lang:  p.str(object, "lang", path, false),
	}
}

func (p *parser) agency(object map[string]any, path string) Agency {
	return Agency{
		ID:       p.str(object, "id", path, true),
		Name:     p.str(object, "name", path, true),
		URL:      p.str(object, "url", path, false),
		Timezone: p.str(object, "timezone", path, true),
		Lang:     p.str(object, "lang", path, false),
		Phone:    p.str(object, "phone", path, false),
		Email:    p.str(object, "email", path, false),
	}
}

func (p *parser) station(object map[string]any, path string) Station {
	station := Station{
		ID:          p.str(object, "id", path, true),
		Code:        p.str(object, "code", path, false),
		Name:        p.str(object, "name", path, false),
		Description: p.str(object, "desc", path, false),
		Latitude:    p.float(object, "lat", path),
		Longitude:   p.float(object, "lon", path),
		ZoneID:      p.str(object, "zone_id", path, false),
		URL:         p.str(object, "url", path, false),
		Parent:      p.str(object, "parent_station", path, false),
		Platform:    p.str(object, "platform_code", path, false),
	}

	if wheelchair, ok := p.integer(object, "wheelchair_boarding", path, false); ok {
		station.WheelchairBoarding = wheelchair
	}

	// Only bother converting the grid reference if lat/lon isnt set
	easting := p.str(object, "easting", path, false)
	northing := p.str(object, "northing", path, false)
	gridType := p.str(object, "grid_type", path, false)

	if easting != "" && northing != "" && !station.HasCoordinates() && (gridType == "" || gridType == "UKOS") {
		gridRef, err := osgridref.ParseOsGridRef(fmt.Sprintf("%s,%s", easting, northing))
		if err != nil {
			p.fail(ParseErrorTypeMismatch, join(path, "easting"), "invalid grid reference: %s", err)
		} else {
			lat, lon := gridRef.ToLatLon()
			station.Latitude = &lat
			station.Longitude = &lon
		}
	}

	return station
}

func (p *parser) service(object map[string]any, path string) Service {
	service := Service{
		ID:        p.str(object, "id", path, true),
		AgencyID:  p.str(object, "agency_id", path, true),
		ShortName: p.str(object, "route_short_name", path, false),
		LongName:  p.str(object, "route_long_name", path, false),
		Headsign:  p.str(object, "headsign", path, false),
		Color:     p.str(object, "route_color", path, false),
		TextColor: p.str(object, "route_text_color", path, false),
	}

	if trainNumber := p.str(object, "train_number", path, false); trainNumber != "" && service.ShortName == "" {
		service.ShortName = trainNumber
	}

	if routeType, ok := p.integer(object, "route_type", path, true); ok {
		service.RouteType = routeType
	}

	if direction, ok := p.integer(object, "direction_id", path, false); ok {
		service.Direction = &direction
	}

	for i, item := range p.list(object, "variants", path) {
		service.Variants = append(service.Variants, p.variant(item, index(join(path, "variants"), i)))
	}

	seenVariants := map[string]bool{}
	for i, variant := range service.Variants {
		p.unique(seenVariants, variant.ID, join(index(join(path, "variants"), i), "id"))
	}

	for i, item := range p.list(object, "calls", path) {
		service.Calls = append(service.Calls, p.call(item, index(join(path, "calls"), i)))
	}

	return service
}

func (p *parser) variant(object map[string]any, path string) Variant {
	variant := Variant{
		ID: p.str(object, "id", path, true),
	}

	calendarPath := join(path, "calendar")
	value, exists := present(object, "calendar")
	if !exists {
		p.fail(ParseErrorMissingField, calendarPath, "required field is missing")
		return variant
	}

	calendarObject, ok := value.(map[string]any)
	if !ok {
		p.fail(ParseErrorTypeMismatch, calendarPath, "expected object")
		return variant
	}

	calendar := Calendar{
		ServiceID: p.str(calendarObject, "service_id", calendarPath, false),
		Monday:    p.boolean(calendarObject, "monday", calendarPath),
		Tuesday:   p.boolean(calendarObject, "tuesday", calendarPath),
		Wednesday: p.boolean(calendarObject, "wednesday", calendarPath),
		Thursday:  p.boolean(calendarObject, "thursday", calendarPath),
		Friday:    p.boolean(calendarObject, "friday", calendarPath),
		Saturday:  p.boolean(calendarObject, "saturday", calendarPath),
		Sunday:    p.boolean(calendarObject, "sunday", calendarPath),
		StartDate: p.date(calendarObject, "start_date", calendarPath),
		EndDate:   p.date(calendarObject, "end_date", calendarPath),
	}
	if calendar.ServiceID == "" {
		calendar.ServiceID = variant.ID
	}

	variant.Calendar = calendar

	return variant
}

func (p *parser) call(object map[string]any, path string) Call {
	call := Call{
		StationID: p.str(object, "station_id", path, true),
		Arrival:   p.scheduleTime(object, "arrival_time", path),
		Departure: p.scheduleTime(object, "departure_time", path),
		Headsign:  p.str(object, "stop_headsign", path, false),
	}

	if sequence, ok := p.integer(object, "stop_sequence", path, true); ok {
		if sequence < 0 {
			p.fail(ParseErrorTypeMismatch, join(path, "stop_sequence"), "must not be negative")
		}
		call.StopSequence = sequence
	}
	if pickup, ok := p.integer(object, "pickup_type", path, false); ok {
		call.PickupType = pickup
	}
	if dropOff, ok := p.integer(object, "drop_off_type", path, false); ok {
		call.DropOffType = dropOff
	}
	if timepoint, ok := p.integer(object, "timepoint", path, false); ok {
		call.Timepoint = &timepoint
	}

	return call
}

func (p *parser) alert(object map[string]any, path string) Alert {
	return Alert{
		ID:          p.str(object, "id", path, true),
		ServiceIDs:  p.strings(object, "service_ids", path),
		StationIDs:  p.strings(object, "station_ids", path),
		AgencyIDs:   p.strings(object, "agency_ids", path),
		Cause:       p.str(object, "cause", path, false),
		Effect:      p.str(object, "effect", path, false),
		Header:      p.str(object, "header", path, false),
		Description: p.str(object, "description", path, false),
		URL:         p.str(object, "url", path, false),
		Start:       p.timestamp(object, "start", path),
		End:         p.timestamp(object, "end", path),
	}
}

func (p *parser) list(object map[string]any, key string, path string) []map[string]any {
	value, exists := present(object, key)
	if !exists {
		return nil
	}

	fieldPath := join(path, key)
	items, ok := value.([]any)
	if !ok {
		p.fail(ParseErrorTypeMismatch, fieldPath, "expected array")
		return nil
	}

	objects := make([]map[string]any, 0, len(items))
	for i, item := range items {
		itemObject, ok := item.(map[string]any)
		if !ok {
			p.fail(ParseErrorTypeMismatch, index(fieldPath, i), "expected object")
			continue
		}
		objects = append(objects, itemObject)
	}

	return objects
}

func (p *parser) str(object map[string]any, key string, path string, required bool) string {
	value, exists := present(object, key)
	if !exists {
		if required {
			p.fail(ParseErrorMissingField, join(path, key), "required field is missing")
		}
		return ""
	}

	switch typed := value.(type) {
	case string:
		if required && strings.TrimSpace(typed) == "" {
			p.fail(ParseErrorMissingField, join(path, key), "required field is empty")
		}
		return typed
	case json.Number:
		return typed.String()
	default:
		p.fail(ParseErrorTypeMismatch, join(path, key), "expected string")
		return ""
	}
}

func (p *parser) strings(object map[string]any, key string, path string) []string {
	value, exists := present(object, key)
	if !exists {
		return nil
	}

	items, ok := value.([]any)
	if !ok {
		p.fail(ParseErrorTypeMismatch, join(path, key), "expected array")
		return nil
	}

	values := make([]string, 0, len(items))
	for i, item := range items {
		switch typed := item.(type) {
		case string:
			values = append(values, typed)
		case json.Number:
			values = append(values, typed.String())
		default:
			p.fail(ParseErrorTypeMismatch, index(join(path, key), i), "expected string")
		}
	}

	return values
}

func (p *parser) integer(object map[string]any, key string, path string, required bool) (int, bool) {
	value, exists := present(object, key)
	if !exists {
		if required {
			p.fail(ParseErrorMissingField, join(path, key), "required field is missing")
		}
		return 0, false
	}

	var text string
	switch typed := value.(type) {
	case json.Number:
		text = typed.String()
	case string:
		text = strings.TrimSpace(typed)
	default:
		p.fail(ParseErrorTypeMismatch, join(path, key), "expected integer")
		return 0, false
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		p.fail(ParseErrorTypeMismatch, join(path, key), "expected integer, got %q", text)
		return 0, false
	}

	return n, true
}

func (p *parser) float(object map[string]any, key string, path string) *float64 {
	value, exists := present(object, key)
	if !exists {
		return nil
	}

	var text string
	switch typed := value.(type) {
	case json.Number:
		text = typed.String()
	case string:
		text = strings.TrimSpace(typed)
		if text == "" {
			return nil
		}
	default:
		p.fail(ParseErrorTypeMismatch, join(path, key), "expected number")
		return nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.fail(ParseErrorTypeMismatch, join(path, key), "expected number, got %q", text)
		return nil
	}

	return &f
}

func (p *parser) boolean(object map[string]any, key string, path string) bool {
	value, exists := present(object, key)
	if !exists {
		return false
	}

	switch typed := value.(type) {
	case bool:
		return typed
	case json.Number:
		switch typed.String() {
		case "0":
			return false
		case "1":
			return true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "0", "false":
			return false
		case "1", "true":
			return true
		}
	}

	p.fail(ParseErrorTypeMismatch, join(path, key), "expected boolean")
	return false
}

func (p *parser) scheduleTime(object map[string]any, key string, path string) ScheduleTime {
	text := p.str(object, key, path, true)
	if text == "" {
		return 0
	}

	t, err := ParseScheduleTime(text)
	if err != nil {
		p.fail(ParseErrorTypeMismatch, join(path, key), "%s", err)
	}

	return t
}

func (p *parser) date(object map[string]any, key string, path string) Date {
	text := p.str(object, key, path, true)
	if text == "" {
		return Date{}
	}

	date, err := ParseDate(text)
	if err != nil {
		p.fail(ParseErrorTypeMismatch, join(path, key), "%s", err)
	}

	return date
}

// timestamp accepts RFC 3339 strings or unix seconds
func (p *parser) timestamp(object map[string]any, key string, path string) *time.Time {
	value, exists := present(object, key)
	if !exists {
		return nil
	}

	switch typed := value.(type) {
	case json.Number:
		seconds, err := typed.Int64()
		if err != nil {
			p.fail(ParseErrorTypeMismatch, join(path, key), "expected unix timestamp")
			return nil
		}
		t := time.Unix(seconds, 0).UTC()
		return &t
	case string:
		t, err := time.Parse(time.RFC3339, typed)
		if err != nil {
			p.fail(ParseErrorTypeMismatch, join(path, key), "expected RFC 3339 timestamp")
			return nil
		}
		return &t
	}

	p.fail(ParseErrorTypeMismatch, join(path, key), "expected timestamp")
	return nil
}
