package canonical

import (
	"time"

	"github.com/jinzhu/copier"
)

type Document struct {
	Publisher *Publisher

	Agencies []Agency
	Stations []Station
	Services []Service
	Alerts   []Alert

	agencyIndex  map[string]int
	stationIndex map[string]int
	serviceIndex map[string]int
}

type Publisher struct {
	ID    string
	Name  string
	URL   string
	Email string
	Lang  string
}

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
	Lang     string
	Phone    string
	Email    string
}

type Station struct {
	ID          string
	Code        string
	Name        string
	Description string

	Latitude  *float64
	Longitude *float64

	ZoneID             string
	URL                string
	Parent             string
	Platform           string
	WheelchairBoarding int
}

func (s *Station) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

type Service struct {
	ID        string
	AgencyID  string
	RouteType int

	ShortName string
	LongName  string
	Headsign  string
	Direction *int

	Color     string
	TextColor string

	Variants []Variant
	Calls    []Call
}

// Identity is the public name of the service, falling back to its id
func (s *Service) Identity() string {
	if s.ShortName != "" {
		return s.ShortName
	}

	return s.ID
}

type Variant struct {
	ID       string
	Calendar Calendar
}

type Calendar struct {
	ServiceID string

	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool

	StartDate Date
	EndDate   Date
}

// Days returns the day-of-week flags starting on Monday
func (c *Calendar) Days() [7]bool {
	return [7]bool{c.Monday, c.Tuesday, c.Wednesday, c.Thursday, c.Friday, c.Saturday, c.Sunday}
}

func (c *Calendar) RunsOn(date Date) bool {
	if date.Before(c.StartDate) || c.EndDate.Before(date) {
		return false
	}

	weekday := date.Time(time.UTC).Weekday()
	// time.Weekday starts at Sunday
	index := (int(weekday) + 6) % 7

	return c.Days()[index]
}

type Call struct {
	StationID string

	Arrival   ScheduleTime
	Departure ScheduleTime

	StopSequence int

	Headsign    string
	PickupType  int
	DropOffType int
	Timepoint   *int
}

type Alert struct {
	ID string

	ServiceIDs []string
	StationIDs []string
	AgencyIDs  []string

	Cause  string
	Effect string

	Header      string
	Description string
	URL         string

	Start *time.Time
	End   *time.Time
}

// Copy returns a deep copy that shares no slices or pointers with the original
func (d *Document) Copy() (*Document, error) {
	copied := &Document{}
	if err := copier.CopyWithOption(copied, d, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	copied.Reindex()

	return copied, nil
}

// Reindex rebuilds the id lookups, needed only for documents built by hand
func (d *Document) Reindex() {
	d.agencyIndex = make(map[string]int, len(d.Agencies))
	for i, agency := range d.Agencies {
		if _, exists := d.agencyIndex[agency.ID]; !exists {
			d.agencyIndex[agency.ID] = i
		}
	}

	d.stationIndex = make(map[string]int, len(d.Stations))
	for i, station := range d.Stations {
		if _, exists := d.stationIndex[station.ID]; !exists {
			d.stationIndex[station.ID] = i
		}
	}

	d.serviceIndex = make(map[string]int, len(d.Services))
	for i, service := range d.Services {
		if _, exists := d.serviceIndex[service.ID]; !exists {
			d.serviceIndex[service.ID] = i
		}
	}
}

func (d *Document) Agency(id string) (*Agency, bool) {
	if d.agencyIndex == nil {
		for i := range d.Agencies {
			if d.Agencies[i].ID == id {
				return &d.Agencies[i], true
			}
		}
		return nil, false
	}

	i, exists := d.agencyIndex[id]
	if !exists {
		return nil, false
	}
	return &d.Agencies[i], true
}

func (d *Document) Station(id string) (*Station, bool) {
	if d.stationIndex == nil {
		for i := range d.Stations {
			if d.Stations[i].ID == id {
				return &d.Stations[i], true
			}
		}
		return nil, false
	}

	i, exists := d.stationIndex[id]
	if !exists {
		return nil, false
	}
	return &d.Stations[i], true
}

func (d *Document) Service(id string) (*Service, bool) {
	if d.serviceIndex == nil {
		for i := range d.Services {
			if d.Services[i].ID == id {
				return &d.Services[i], true
			}
		}
		return nil, false
	}

	i, exists := d.serviceIndex[id]
	if !exists {
		return nil, false
	}
	return &d.Services[i], true
}

// ValidityWindow is the earliest start and latest end date of every calendar
func (d *Document) ValidityWindow() (Date, Date, bool) {
	var start, end Date
	found := false

	for _, service := range d.Services {
		for _, variant := range service.Variants {
			if !found || variant.Calendar.StartDate.Before(start) {
				start = variant.Calendar.StartDate
			}
			if !found || end.Before(variant.Calendar.EndDate) {
				end = variant.Calendar.EndDate
			}
			found = true
		}
	}

	return start, end, found
}

// Timezone resolves the timezone of the agency running the service, UTC when unknown
func (d *Document) Timezone(service *Service) *time.Location {
	agency, exists := d.Agency(service.AgencyID)
	if !exists {
		return time.UTC
	}

	location, err := time.LoadLocation(agency.Timezone)
	if err != nil {
		return time.UTC
	}

	return location
}
