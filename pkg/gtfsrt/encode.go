package gtfsrt

import (
	"fmt"
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/travigo/tsiconverter/pkg/canonical"
	gtfsstatic "github.com/travigo/tsiconverter/pkg/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type FeedType string

const (
	FeedTypeVehiclePositions FeedType = "vehicle_positions"
	FeedTypeTripUpdates      FeedType = "trip_updates"
	FeedTypeAlerts           FeedType = "alerts"
)

var FeedTypes = []FeedType{FeedTypeVehiclePositions, FeedTypeTripUpdates, FeedTypeAlerts}

// ParseFeedType accepts the snake case names as well as VehiclePositions style
func ParseFeedType(s string) (FeedType, error) {
	normalised := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))

	for _, feedType := range FeedTypes {
		if normalised == strings.ReplaceAll(string(feedType), "_", "") {
			return feedType, nil
		}
	}

	return "", fmt.Errorf("unknown feed type %q", s)
}

func Encode(document *canonical.Document, feedType FeedType, asOf time.Time) (*gtfs.FeedMessage, error) {
	var entities []*gtfs.FeedEntity

	switch feedType {
	case FeedTypeTripUpdates:
		entities = tripUpdates(document, asOf)
	case FeedTypeVehiclePositions:
		entities = vehiclePositions(document, asOf)
	case FeedTypeAlerts:
		entities = alerts(document)
	default:
		return nil, fmt.Errorf("unknown feed type %q", feedType)
	}

	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(asOf.Unix())),
		},
		Entity: entities,
	}, nil
}

func Marshal(feed *gtfs.FeedMessage) ([]byte, error) {
	return proto.Marshal(feed)
}

// MarshalJSON renders the feed for inspection
func MarshalJSON(feed *gtfs.FeedMessage) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(feed)
}

// run is one service variant placed on a service day
type run struct {
	service  *canonical.Service
	variant  *canonical.Variant
	day      canonical.Date
	location *time.Location
}

func (r *run) at(t canonical.ScheduleTime) time.Time {
	return r.day.At(t, r.location)
}

func (r *run) start() time.Time {
	return r.at(r.service.Calls[0].Arrival)
}

func (r *run) end() time.Time {
	return r.at(r.service.Calls[len(r.service.Calls)-1].Arrival)
}

func (r *run) tripDescriptor() *gtfs.TripDescriptor {
	descriptor := &gtfs.TripDescriptor{
		TripId:               proto.String(gtfsstatic.TripID(r.service, r.variant)),
		RouteId:              proto.String(r.service.ID),
		StartDate:            proto.String(r.day.String()),
		ScheduleRelationship: gtfs.TripDescriptor_SCHEDULED.Enum(),
	}
	if len(r.service.Calls) > 0 {
		descriptor.StartTime = proto.String(r.service.Calls[0].Departure.String())
	}
	if r.service.Direction != nil {
		descriptor.DirectionId = proto.Uint32(uint32(*r.service.Direction))
	}

	return descriptor
}

// activeRun finds the variant of the service operating at asOf. A run from
// the previous service day wins while it is still under way.
func activeRun(document *canonical.Document, service *canonical.Service, asOf time.Time) *run {
	if len(service.Calls) == 0 {
		return nil
	}

	location := document.Timezone(service)
	today := canonical.NewDateFromTime(asOf.In(location))

	for _, day := range []canonical.Date{today.AddDays(-1), today} {
		for i := range service.Variants {
			variant := &service.Variants[i]
			if !variant.Calendar.RunsOn(day) {
				continue
			}

			candidate := &run{service: service, variant: variant, day: day, location: location}
			if day == today || !candidate.end().Before(asOf) {
				return candidate
			}
		}
	}

	return nil
}

func tripUpdates(document *canonical.Document, asOf time.Time) []*gtfs.FeedEntity {
	var entities []*gtfs.FeedEntity

	for i := range document.Services {
		service := &document.Services[i]

		active := activeRun(document, service, asOf)
		if active == nil {
			continue
		}

		updates := make([]*gtfs.TripUpdate_StopTimeUpdate, 0, len(service.Calls))
		for _, call := range service.Calls {
			updates = append(updates, &gtfs.TripUpdate_StopTimeUpdate{
				StopSequence:         proto.Uint32(uint32(call.StopSequence)),
				StopId:               proto.String(call.StationID),
				Arrival:              &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(active.at(call.Arrival).Unix())},
				Departure:            &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(active.at(call.Departure).Unix())},
				ScheduleRelationship: gtfs.TripUpdate_StopTimeUpdate_SCHEDULED.Enum(),
			})
		}

		entities = append(entities, &gtfs.FeedEntity{
			Id: proto.String(service.ID),
			TripUpdate: &gtfs.TripUpdate{
				Trip:           active.tripDescriptor(),
				StopTimeUpdate: updates,
				Timestamp:      proto.Uint64(uint64(asOf.Unix())),
			},
		})
	}

	return entities
}

func vehiclePositions(document *canonical.Document, asOf time.Time) []*gtfs.FeedEntity {
	var entities []*gtfs.FeedEntity

	for i := range document.Services {
		service := &document.Services[i]

		active := activeRun(document, service, asOf)
		if active == nil || asOf.Before(active.start()) || active.end().Before(asOf) {
			continue
		}

		vehicle := &gtfs.VehiclePosition{
			Trip: active.tripDescriptor(),
			Vehicle: &gtfs.VehicleDescriptor{
				Id:    proto.String(service.ID),
				Label: proto.String(service.Identity()),
			},
			Timestamp: proto.Uint64(uint64(asOf.Unix())),
		}

		locate(document, active, asOf, vehicle)

		entities = append(entities, &gtfs.FeedEntity{
			Id:      proto.String(service.ID),
			Vehicle: vehicle,
		})
	}

	return entities
}

// locate sets the stop status of the vehicle, and its position when the
// stations around it have coordinates
func locate(document *canonical.Document, active *run, asOf time.Time, vehicle *gtfs.VehiclePosition) {
	calls := active.service.Calls

	for i, call := range calls {
		arrival := active.at(call.Arrival)
		departure := active.at(call.Departure)

		if !asOf.Before(arrival) && !departure.Before(asOf) {
			vehicle.CurrentStatus = gtfs.VehiclePosition_STOPPED_AT.Enum()
			vehicle.CurrentStopSequence = proto.Uint32(uint32(call.StopSequence))
			vehicle.StopId = proto.String(call.StationID)

			if station, exists := document.Station(call.StationID); exists && station.HasCoordinates() {
				vehicle.Position = &gtfs.Position{
					Latitude:  proto.Float32(float32(*station.Latitude)),
					Longitude: proto.Float32(float32(*station.Longitude)),
				}
			}
			return
		}

		if i+1 >= len(calls) {
			return
		}

		next := calls[i+1]
		nextArrival := active.at(next.Arrival)
		if asOf.After(departure) && asOf.Before(nextArrival) {
			vehicle.CurrentStatus = gtfs.VehiclePosition_IN_TRANSIT_TO.Enum()
			vehicle.CurrentStopSequence = proto.Uint32(uint32(next.StopSequence))
			vehicle.StopId = proto.String(next.StationID)

			from, fromExists := document.Station(call.StationID)
			to, toExists := document.Station(next.StationID)
			if fromExists && toExists && from.HasCoordinates() && to.HasCoordinates() {
				fraction := float64(asOf.Sub(departure)) / float64(nextArrival.Sub(departure))

				vehicle.Position = &gtfs.Position{
					Latitude:  proto.Float32(float32(*from.Latitude + (*to.Latitude-*from.Latitude)*fraction)),
					Longitude: proto.Float32(float32(*from.Longitude + (*to.Longitude-*from.Longitude)*fraction)),
				}
			}
			return
		}
	}
}

func translated(text string) *gtfs.TranslatedString {
	if text == "" {
		return nil
	}

	return &gtfs.TranslatedString{
		Translation: []*gtfs.TranslatedString_Translation{{Text: proto.String(text)}},
	}
}

func enumName(s string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(s)))
}

func alerts(document *canonical.Document) []*gtfs.FeedEntity {
	var entities []*gtfs.FeedEntity

	for _, source := range document.Alerts {
		alert := &gtfs.Alert{
			Cause:           gtfs.Alert_UNKNOWN_CAUSE.Enum(),
			Effect:          gtfs.Alert_UNKNOWN_EFFECT.Enum(),
			HeaderText:      translated(source.Header),
			DescriptionText: translated(source.Description),
			Url:             translated(source.URL),
		}

		if value, exists := gtfs.Alert_Cause_value[enumName(source.Cause)]; exists {
			alert.Cause = gtfs.Alert_Cause(value).Enum()
		}
		if value, exists := gtfs.Alert_Effect_value[enumName(source.Effect)]; exists {
			alert.Effect = gtfs.Alert_Effect(value).Enum()
		}

		if source.Start != nil || source.End != nil {
			period := &gtfs.TimeRange{}
			if source.Start != nil {
				period.Start = proto.Uint64(uint64(source.Start.Unix()))
			}
			if source.End != nil {
				period.End = proto.Uint64(uint64(source.End.Unix()))
			}
			alert.ActivePeriod = []*gtfs.TimeRange{period}
		}

		for _, agencyID := range source.AgencyIDs {
			alert.InformedEntity = append(alert.InformedEntity, &gtfs.EntitySelector{AgencyId: proto.String(agencyID)})
		}
		for _, serviceID := range source.ServiceIDs {
			selector := &gtfs.EntitySelector{RouteId: proto.String(serviceID)}
			if service, exists := document.Service(serviceID); exists {
				selector.AgencyId = proto.String(service.AgencyID)
			}
			alert.InformedEntity = append(alert.InformedEntity, selector)
		}
		for _, stationID := range source.StationIDs {
			alert.InformedEntity = append(alert.InformedEntity, &gtfs.EntitySelector{StopId: proto.String(stationID)})
		}

		entities = append(entities, &gtfs.FeedEntity{
			Id:    proto.String(source.ID),
			Alert: alert,
		})
	}

	return entities
}
