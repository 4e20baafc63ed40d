package gtfs

import (
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/travigo/tsiconverter/pkg/canonical"
)

type Options struct {
	FeedVersion string
}

// TripID names the trip of a service variant
func TripID(service *canonical.Service, variant *canonical.Variant) string {
	if variant == nil {
		return service.ID
	}

	return service.ID + "_" + variant.ID
}

func formatCoordinate(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func flag(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

func Encode(document *canonical.Document, options Options) (*Bundle, error) {
	schedule, err := NewSchedule(document, options)
	if err != nil {
		return nil, err
	}

	return schedule.Bundle()
}

// NewSchedule maps the document onto feed rows in document order
func NewSchedule(document *canonical.Document, options Options) (*Schedule, error) {
	schedule := &Schedule{}

	fallbackURL := ""
	if document.Publisher != nil {
		fallbackURL = document.Publisher.URL
	}

	for _, agency := range document.Agencies {
		if agency.Name == "" {
			return nil, &EncodeError{Kind: EncodeErrorMissingRequiredColumn, File: AgencyFile, Column: "agency_name", EntityID: agency.ID}
		}
		if agency.Timezone == "" {
			return nil, &EncodeError{Kind: EncodeErrorMissingRequiredColumn, File: AgencyFile, Column: "agency_timezone", EntityID: agency.ID}
		}

		url := agency.URL
		if url == "" {
			url = fallbackURL
		}

		schedule.Agencies = append(schedule.Agencies, Agency{
			ID:       agency.ID,
			Name:     agency.Name,
			URL:      url,
			Timezone: agency.Timezone,
			Language: agency.Lang,
			Phone:    agency.Phone,
			Email:    agency.Email,
		})
	}

	for _, station := range document.Stations {
		if !station.HasCoordinates() {
			column := "stop_lat"
			if station.Latitude != nil {
				column = "stop_lon"
			}
			return nil, &EncodeError{Kind: EncodeErrorMissingRequiredColumn, File: StopsFile, Column: column, EntityID: station.ID}
		}

		stop := Stop{
			ID:           station.ID,
			Code:         station.Code,
			Name:         station.Name,
			Description:  station.Description,
			Latitude:     formatCoordinate(*station.Latitude),
			Longitude:    formatCoordinate(*station.Longitude),
			ZoneID:       station.ZoneID,
			URL:          station.URL,
			Parent:       station.Parent,
			PlatformCode: station.Platform,
		}
		if station.WheelchairBoarding != 0 {
			stop.Wheelchair = strconv.Itoa(station.WheelchairBoarding)
		}

		schedule.Stops = append(schedule.Stops, stop)
	}

	seenCalendars := map[string]bool{}

	for i := range document.Services {
		service := &document.Services[i]

		schedule.Routes = append(schedule.Routes, Route{
			ID:         service.ID,
			AgencyID:   service.AgencyID,
			ShortName:  service.ShortName,
			LongName:   service.LongName,
			Type:       strconv.Itoa(service.RouteType),
			Colour:     service.Color,
			TextColour: service.TextColor,
		})

		direction := ""
		if service.Direction != nil {
			direction = strconv.Itoa(*service.Direction)
		}

		if len(service.Variants) == 0 {
			schedule.addTrip(service, nil, service.ID, direction)
			continue
		}

		for j := range service.Variants {
			variant := &service.Variants[j]
			calendar := variant.Calendar

			schedule.addTrip(service, variant, calendar.ServiceID, direction)

			if seenCalendars[calendar.ServiceID] {
				continue
			}
			seenCalendars[calendar.ServiceID] = true

			schedule.Calendars = append(schedule.Calendars, Calendar{
				ServiceID: calendar.ServiceID,
				Monday:    flag(calendar.Monday),
				Tuesday:   flag(calendar.Tuesday),
				Wednesday: flag(calendar.Wednesday),
				Thursday:  flag(calendar.Thursday),
				Friday:    flag(calendar.Friday),
				Saturday:  flag(calendar.Saturday),
				Sunday:    flag(calendar.Sunday),
				Start:     calendar.StartDate.String(),
				End:       calendar.EndDate.String(),
			})
		}
	}

	if document.Publisher != nil {
		feedInfo := FeedInfo{
			PublisherName: document.Publisher.Name,
			PublisherURL:  document.Publisher.URL,
			Language:      feedLanguage(document),
			Version:       options.FeedVersion,
			ContactEmail:  document.Publisher.Email,
		}
		if start, end, exists := document.ValidityWindow(); exists {
			feedInfo.StartDate = start.String()
			feedInfo.EndDate = end.String()
		}

		schedule.FeedInfo = []FeedInfo{feedInfo}
	}

	return schedule, nil
}

func (s *Schedule) addTrip(service *canonical.Service, variant *canonical.Variant, serviceID string, direction string) {
	tripID := TripID(service, variant)

	s.Trips = append(s.Trips, Trip{
		RouteID:     service.ID,
		ServiceID:   serviceID,
		ID:          tripID,
		Headsign:    service.Headsign,
		DirectionID: direction,
	})

	for _, call := range service.Calls {
		stopTime := StopTime{
			TripID:        tripID,
			ArrivalTime:   call.Arrival.String(),
			DepartureTime: call.Departure.String(),
			StopID:        call.StationID,
			StopSequence:  strconv.Itoa(call.StopSequence),
			StopHeadsign:  call.Headsign,
		}
		if call.PickupType != 0 {
			stopTime.PickupType = strconv.Itoa(call.PickupType)
		}
		if call.DropOffType != 0 {
			stopTime.DropOffType = strconv.Itoa(call.DropOffType)
		}
		if call.Timepoint != nil {
			stopTime.Timepoint = strconv.Itoa(*call.Timepoint)
		}

		s.StopTimes = append(s.StopTimes, stopTime)
	}
}

func feedLanguage(document *canonical.Document) string {
	if document.Publisher.Lang != "" {
		return document.Publisher.Lang
	}
	for _, agency := range document.Agencies {
		if agency.Lang != "" {
			return agency.Lang
		}
	}

	return "mul"
}

// Bundle renders every populated file. The required files are always written,
// with a header row when empty.
func (s *Schedule) Bundle() (*Bundle, error) {
	bundle := &Bundle{Files: map[string][]byte{}}

	files := []struct {
		name     string
		rows     interface{}
		optional bool
		empty    bool
	}{
		{AgencyFile, &s.Agencies, false, len(s.Agencies) == 0},
		{StopsFile, &s.Stops, false, len(s.Stops) == 0},
		{RoutesFile, &s.Routes, false, len(s.Routes) == 0},
		{TripsFile, &s.Trips, false, len(s.Trips) == 0},
		{StopTimesFile, &s.StopTimes, false, len(s.StopTimes) == 0},
		{CalendarFile, &s.Calendars, false, len(s.Calendars) == 0},
		{FeedInfoFile, &s.FeedInfo, true, len(s.FeedInfo) == 0},
	}

	for _, file := range files {
		if file.optional && file.empty {
			continue
		}

		writer := &rowWriter{}
		if err := gocsv.MarshalCSV(file.rows, writer); err != nil {
			return nil, err
		}

		bundle.Files[file.name] = writer.Bytes()
	}

	return bundle, nil
}
