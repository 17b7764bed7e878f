package trajectory

import (
	"math"
	"strconv"
	"strings"
)

// Metric selects how distances and bearings between positions are measured
type Metric string

const (
	// Euclidean treats positions as planar coordinates.
	Euclidean Metric = "euclidean"
	// Haversine treats positions as lon/lat degrees on a sphere, in metres.
	Haversine Metric = "haversine"
)

// EarthRadius is the mean earth radius in metres.
const EarthRadius = 6371008.8

// ParseMetric accepts "", "euclidean" and "haversine". The empty string
// selects Euclidean.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", Euclidean:
		return Euclidean, nil
	case Haversine:
		return Haversine, nil
	}
	return "", &InvalidConfigError{Field: "metric", Reason: "unknown metric " + strconv.Quote(s)}
}

func (m Metric) orDefault() Metric {
	if m == "" {
		return Euclidean
	}
	return m
}

// Distance between two positions in the metric's unit.
func (m Metric) Distance(a, b Position) float64 {
	if m == Haversine {
		return haversine(a, b)
	}
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Bearing from a to b in degrees clockwise from north, in [0, 360).
func (m Metric) Bearing(a, b Position) float64 {
	var deg float64
	if m == Haversine {
		lat1, lat2 := radians(a.Y), radians(b.Y)
		dLon := radians(b.X - a.X)
		y := math.Sin(dLon) * math.Cos(lat2)
		x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
		deg = degrees(math.Atan2(y, x))
	} else {
		deg = degrees(math.Atan2(b.X-a.X, b.Y-a.Y))
	}
	return math.Mod(deg+360, 360)
}

func haversine(a, b Position) float64 {
	lat1, lat2 := radians(a.Y), radians(b.Y)
	dLat := lat2 - lat1
	dLon := radians(b.X - a.X)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

// BBox is an axis aligned bounding box
type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

func boundsOf(ps []Position) BBox {
	if len(ps) == 0 {
		return BBox{}
	}
	b := BBox{MinX: ps[0].X, MinY: ps[0].Y, MaxX: ps[0].X, MaxY: ps[0].Y}
	for _, p := range ps[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// GeometryType is the shape of a trip geometry
type GeometryType string

const (
	PointGeometry      GeometryType = "Point"
	LineStringGeometry GeometryType = "LineString"
)

// Geometry is the ordered path of a trip. It degrades to a Point when fewer
// than two distinct consecutive positions remain.
type Geometry struct {
	Type        GeometryType `json:"type"`
	Coordinates []Position   `json:"coordinates"`
}

// LineFrom builds a geometry through ps in order. Consecutive repeated
// positions are collapsed first.
func LineFrom(ps []Position) Geometry {
	coords := make([]Position, 0, len(ps))
	for i, p := range ps {
		if i > 0 && p == coords[len(coords)-1] {
			continue
		}
		coords = append(coords, p)
	}
	if len(coords) == 1 {
		return Geometry{Type: PointGeometry, Coordinates: coords}
	}
	return Geometry{Type: LineStringGeometry, Coordinates: coords}
}

func (g Geometry) IsEmpty() bool { return len(g.Coordinates) == 0 }

// WKT renders the geometry as well known text.
func (g Geometry) WKT() string {
	if g.IsEmpty() {
		if g.Type == PointGeometry {
			return "POINT EMPTY"
		}
		return "LINESTRING EMPTY"
	}
	var sb strings.Builder
	if g.Type == PointGeometry {
		sb.WriteString("POINT (")
	} else {
		sb.WriteString("LINESTRING (")
	}
	for i, c := range g.Coordinates {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatCoord(c.X))
		sb.WriteByte(' ')
		sb.WriteString(formatCoord(c.Y))
	}
	sb.WriteByte(')')
	return sb.String()
}

func lineStringMWKT(obs []Observation) string {
	if len(obs) == 0 {
		return "LINESTRING M EMPTY"
	}
	var sb strings.Builder
	sb.WriteString("LINESTRING M (")
	for i, o := range obs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatCoord(o.Position.X))
		sb.WriteByte(' ')
		sb.WriteString(formatCoord(o.Position.Y))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(o.Timestamp.Unix(), 10))
	}
	sb.WriteByte(')')
	return sb.String()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
