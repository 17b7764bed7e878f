package ingest

import (
	"math"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// FeedStats counts what a GTFS-Realtime feed contributed.
type FeedStats struct {
	Entities     int `json:"entities"`
	Observations int `json:"observations"`
	Skipped      int `json:"skipped"`
}

// DecodeVehiclePositions turns the VehiclePosition entities of a
// GTFS-Realtime FeedMessage into observations keyed by vehicle id. Positions
// are lon/lat so the result should be summarized with the haversine metric.
// Entities lacking a vehicle id, a position or any timestamp are skipped.
func DecodeVehiclePositions(data []byte) ([]trajectory.Observation, FeedStats, error) {
	var feed gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &feed); err != nil {
		return nil, FeedStats{}, &trajectory.InvalidInputError{Index: -1, Field: "feed", Reason: err.Error()}
	}
	return vehicleObservations(&feed)
}

func vehicleObservations(feed *gtfsrtpb.FeedMessage) ([]trajectory.Observation, FeedStats, error) {
	var (
		stats FeedStats
		out   []trajectory.Observation
	)
	headerTS := feed.GetHeader().GetTimestamp()

	for _, e := range feed.GetEntity() {
		stats.Entities++
		vp := e.GetVehicle()
		if vp == nil {
			stats.Skipped++
			continue
		}
		id := vp.GetVehicle().GetId()
		if id == "" {
			id = vp.GetVehicle().GetLabel()
		}
		pos := vp.GetPosition()
		ts := vp.GetTimestamp()
		if ts == 0 {
			ts = headerTS
		}
		if id == "" || pos == nil || ts == 0 {
			stats.Skipped++
			continue
		}
		lon, lat := float64(pos.GetLongitude()), float64(pos.GetLatitude())
		if !finite(lon) || !finite(lat) {
			stats.Skipped++
			continue
		}

		attrs := make(map[string]trajectory.Value)
		if b := float64(pos.GetBearing()); pos.Bearing != nil && finite(b) {
			attrs["bearing"] = trajectory.NumberValue(b)
		}
		if v := float64(pos.GetSpeed()); pos.Speed != nil && finite(v) {
			attrs["speed"] = trajectory.NumberValue(v)
		}
		if trip := vp.GetTrip(); trip != nil {
			if trip.TripId != nil {
				attrs["trip_id"] = trajectory.StringValue(trip.GetTripId())
			}
			if trip.RouteId != nil {
				attrs["route_id"] = trajectory.StringValue(trip.GetRouteId())
			}
		}
		if vp.CurrentStatus != nil {
			attrs["current_status"] = trajectory.StringValue(vp.GetCurrentStatus().String())
		}

		out = append(out, trajectory.Observation{
			ObjectID:  id,
			Timestamp: time.Unix(int64(ts), 0).UTC(),
			Position:  trajectory.Position{X: lon, Y: lat},
			Attrs:     attrs,
		})
		stats.Observations++
	}
	return out, stats, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
