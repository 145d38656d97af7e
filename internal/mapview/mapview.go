// Package mapview builds the map collaborator's inputs: the road line the
// marker travels along, per-lane classified polylines and the initial viewport.
package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/roadwatch/pavement/internal/classify"
	"github.com/roadwatch/pavement/internal/survey"
)

// Viewport is the initial map view
type Viewport struct {
	Center    Center       `json:"center"`
	MaxBounds [][2]float64 `json:"max_bounds,omitempty"` // [[minLng,minLat],[maxLng,maxLat]]
}

// Center is a map center point
type Center struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoadFeature returns the coordinate sequence as one LineString feature.
// It returns nil when there are fewer than two coordinates.
func RoadFeature(coords []orb.Point, highway string) *geojson.Feature {
	if len(coords) < 2 {
		return nil
	}
	line := make(orb.LineString, len(coords))
	copy(line, coords)

	f := geojson.NewFeature(line)
	f.Properties["highway"] = highway
	f.Properties["points"] = len(line)
	f.Properties["lengthMeters"] = geo.Length(line)
	return f
}

// RoadCollection wraps RoadFeature in a FeatureCollection, empty when
// there is no line to draw
func RoadCollection(coords []orb.Point, highway string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if f := RoadFeature(coords, highway); f != nil {
		fc.Append(f)
	}
	return fc
}

// LaneCollection returns one LineString per lane segment that has geometry,
// carrying its classification for styling and popups
func LaneCollection(records []survey.Record, limits classify.Limits) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range records {
		rec := &records[i]
		limit := limits.RoughnessLimitFor(rec)

		for _, lane := range rec.Lanes {
			if lane.Geometry == nil {
				continue
			}
			f := geojson.NewFeature(orb.LineString{lane.Geometry.Start, lane.Geometry.End})
			f.Properties["row"] = rec.Row
			f.Properties["highway"] = rec.Highway
			f.Properties["startChainage"] = rec.StartChainage
			f.Properties["endChainage"] = rec.EndChainage
			f.Properties["lane"] = string(lane.Code)
			f.Properties["roughness"] = lane.Roughness
			f.Properties["rutting"] = lane.Rutting
			f.Properties["cracking"] = lane.Cracking
			f.Properties["ravelling"] = lane.Ravelling
			f.Properties["roughnessLimit"] = limit
			f.Properties["status"] = string(lane.Status)
			f.Properties["statusLabel"] = lane.Status.Label()
			f.Properties["highlights"] = lane.Highlights
			if rec.Remark != "" {
				f.Properties["remark"] = rec.Remark
			}
			fc.Append(f)
		}
	}
	return fc
}

// ComputeViewport centers the map on the mean of the coordinates and bounds
// it to their extent. ok is false when there are no coordinates.
func ComputeViewport(coords []orb.Point) (Viewport, bool) {
	if len(coords) == 0 {
		return Viewport{}, false
	}

	var sumLng, sumLat float64
	for _, p := range coords {
		sumLng += p.Lon()
		sumLat += p.Lat()
	}
	n := float64(len(coords))

	bound := orb.MultiPoint(coords).Bound()
	return Viewport{
		Center: Center{Lat: sumLat / n, Lng: sumLng / n},
		MaxBounds: [][2]float64{
			{bound.Min.Lon(), bound.Min.Lat()},
			{bound.Max.Lon(), bound.Max.Lat()},
		},
	}, true
}
