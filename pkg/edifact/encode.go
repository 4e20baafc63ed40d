package edifact

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/travigo/tsiconverter/pkg/canonical"
)

type MessageType string

const (
	MessageTypeSKDUPD MessageType = "SKDUPD"
	MessageTypeTSDUPD MessageType = "TSDUPD"
)

const (
	DefaultVersion  = "CURRENT"
	DefaultSender   = "SENDER"
	DefaultReceiver = "RECEIVER"

	// Used when no timestamp is given so output stays reproducible
	defaultTimestamp = "2024-01-01T00:00:00Z"

	maxPartyLength = 35
)

type Options struct {
	Version  string
	UNA      string
	Sender   string
	Receiver string

	// Reference is the interchange control reference, the message reference
	// appends 01 to it. Derived from the publisher when empty.
	Reference string
	Timestamp time.Time

	OmitCoordinates bool
}

type Message struct {
	Type       MessageType
	Separators Separators

	InterchangeReference string
	Reference            string

	// Segments from UNB to UNZ, the UNA advice is not a segment
	Segments []Segment
}

// SegmentCount counts the segments from UNH to UNT inclusive
func (m *Message) SegmentCount() int {
	count := 0
	inMessage := false

	for _, segment := range m.Segments {
		if segment.Tag == "UNH" {
			inMessage = true
		}
		if inMessage {
			count++
		}
		if segment.Tag == "UNT" {
			inMessage = false
		}
	}

	return count
}

func (m *Message) String() string {
	var builder strings.Builder
	builder.WriteString(m.Separators.UNA())

	for _, segment := range m.Segments {
		segment.write(&builder, m.Separators)
	}

	return builder.String()
}

func (m *Message) Bytes() []byte {
	return []byte(m.String())
}

// DeterministicReference derives a 12 character reference from the publisher
func DeterministicReference(publisher *canonical.Publisher, version string) string {
	var name, url string
	if publisher != nil {
		name = publisher.Name
		url = publisher.URL
	}

	hash := sha1.Sum([]byte(fmt.Sprintf("%s-%s-%s", name, url, version)))

	return strings.ToUpper(hex.EncodeToString(hash[:])[:12])
}

type encoder struct {
	document *canonical.Document
	options  Options
	body     []Segment
}

func Encode(document *canonical.Document, messageType MessageType, options Options) (*Message, error) {
	if options.Version == "" {
		options.Version = DefaultVersion
	}
	if options.UNA == "" {
		options.UNA = DefaultUNA
	}
	if options.Receiver == "" {
		options.Receiver = DefaultReceiver
	}
	if options.Sender == "" {
		options.Sender = DefaultSender
		if document.Publisher != nil && document.Publisher.Name != "" {
			options.Sender = truncate(document.Publisher.Name, maxPartyLength)
		}
	}
	if options.Timestamp.IsZero() {
		options.Timestamp, _ = time.Parse(time.RFC3339, defaultTimestamp)
	}

	separators, err := ParseUNA(options.UNA)
	if err != nil {
		return nil, err
	}

	interchangeReference := options.Reference
	if interchangeReference == "" {
		interchangeReference = DeterministicReference(document.Publisher, options.Version)
	}
	messageReference := interchangeReference + "01"

	e := &encoder{document: document, options: options}

	switch messageType {
	case MessageTypeSKDUPD:
		err = e.skdupd()
	case MessageTypeTSDUPD:
		err = e.tsdupd()
	default:
		return nil, fmt.Errorf("unknown message type %q", messageType)
	}
	if err != nil {
		return nil, err
	}

	timestamp := options.Timestamp.UTC()

	segments := []Segment{
		NewSegment("UNB",
			E("UNOC", "3"),
			E(options.Sender),
			E(options.Receiver),
			E(timestamp.Format("060102"), timestamp.Format("1504")),
			E(interchangeReference),
		),
		NewSegment("UNH",
			E(messageReference),
			E(string(messageType), "D", "03B", "UN", "IATA", options.Version),
		),
		NewSegment("BGM", E(beginningCode(messageType)), E(messageReference), E("9")),
		NewSegment("DTM", E("137", timestamp.Format("200601021504"), "203")),
	}

	if start, end, exists := document.ValidityWindow(); exists {
		segments = append(segments,
			NewSegment("DTM", E("194", start.String(), "102")),
			NewSegment("DTM", E("206", end.String(), "102")),
		)
	}

	segments = append(segments, e.body...)

	message := &Message{
		Type:                 messageType,
		Separators:           separators,
		InterchangeReference: interchangeReference,
		Reference:            messageReference,
		Segments:             segments,
	}

	// UNT counts itself
	count := message.SegmentCount() + 1
	message.Segments = append(message.Segments,
		NewSegment("UNT", E(strconv.Itoa(count)), E(messageReference)),
		NewSegment("UNZ", E("1"), E(interchangeReference)),
	)

	return message, nil
}

func beginningCode(messageType MessageType) string {
	if messageType == MessageTypeTSDUPD {
		return "TSD"
	}

	return "SKD"
}

func (e *encoder) add(tag string, elements ...[]string) {
	e.body = append(e.body, NewSegment(tag, elements...))
}

func (e *encoder) skdupd() error {
	if len(e.document.Services) == 0 {
		return &EncodeError{
			Kind:    EncodeErrorMissingData,
			Entity:  "document",
			Field:   "services",
			Message: "SKDUPD needs at least one service",
		}
	}

	carriers := map[string]bool{}

	for i := range e.document.Services {
		service := &e.document.Services[i]

		if service.AgencyID != "" && !carriers[service.AgencyID] {
			carriers[service.AgencyID] = true

			name := ""
			if agency, exists := e.document.Agency(service.AgencyID); exists {
				name = agency.Name
			}
			e.add("NAD", E("CA"), E(service.AgencyID), E(""), E(name))
		}

		e.add("TDT", E("20"), E(service.Identity()))

		headsign := service.Headsign
		if headsign == "" {
			headsign = service.LongName
		}
		if headsign != "" {
			e.add("FTX", E("AAI"), E(""), E(""), E(headsign))
		}

		if service.Direction != nil {
			e.add("RFF", E("DIR", strconv.Itoa(*service.Direction)))
		}

		for _, variant := range service.Variants {
			e.variant(variant)

			days := variant.Calendar.Days()
			bits := make([]byte, 7)
			runs := false
			for i, day := range days {
				bits[i] = '0'
				if day {
					bits[i] = '1'
					runs = true
				}
			}
			if runs {
				e.add("FTX", E("CDV"), E(""), E(""), E(string(bits)))
			}
		}

		for _, call := range service.Calls {
			e.add("LOC", E("92"), E(call.StationID))
			e.add("DTM", E("132", clockTime(call.Arrival), "105"))
			e.add("DTM", E("133", clockTime(call.Departure), "105"))

			if offset := call.Departure.DayOffset(); offset > 0 {
				e.add("DTM", E("997", strconv.Itoa(offset), "900"))
			}
		}
	}

	return nil
}

func (e *encoder) tsdupd() error {
	if len(e.document.Stations) == 0 {
		return &EncodeError{
			Kind:    EncodeErrorMissingData,
			Entity:  "document",
			Field:   "stations",
			Message: "TSDUPD needs at least one station",
		}
	}

	for _, station := range e.document.Stations {
		if station.HasCoordinates() && !e.options.OmitCoordinates {
			return &EncodeError{
				Kind:    EncodeErrorUnsupportedField,
				Entity:  "station",
				ID:      station.ID,
				Field:   "lat",
				Message: "TSDUPD does not carry geographic location groups, set omit_coordinates to drop them",
			}
		}

		e.add("LOC", E("88"), E(station.ID), E(""), E(""), E(station.Name))
	}

	for i := range e.document.Services {
		service := &e.document.Services[i]

		e.add("TDT", E("20"), E(service.Identity()))
		if service.Direction != nil {
			e.add("RFF", E("DIR", strconv.Itoa(*service.Direction)))
		}

		for _, variant := range service.Variants {
			e.variant(variant)
		}

		for _, call := range service.Calls {
			e.add("LOC", E("92"), E(call.StationID))
		}
	}

	return nil
}

func (e *encoder) variant(variant canonical.Variant) {
	e.add("RFF", E("SRV", variant.Calendar.ServiceID))

	if !variant.Calendar.StartDate.IsZero() {
		e.add("DTM", E("324", variant.Calendar.StartDate.String(), "102"))
	}
	if !variant.Calendar.EndDate.IsZero() {
		e.add("DTM", E("325", variant.Calendar.EndDate.String(), "102"))
	}
}

// clockTime renders HHMM on the day the time falls on, DTM+997 carries the offset
func clockTime(t canonical.ScheduleTime) string {
	local := int(t) % 86400

	return fmt.Sprintf("%02d%02d", local/3600, local%3600/60)
}

func truncate(value string, length int) string {
	runes := []rune(value)
	if len(runes) <= length {
		return value
	}

	return string(runes[:length])
}
