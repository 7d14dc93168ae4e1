package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Treasure positions arrive as WGS-84 degrees. Distances are computed directly
// on degrees via the haversine formula; the stored map location is projected to
// 3857 because SQLite has no spatial awareness and we persist point data as WKB.

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// DistanceMeters returns the great-circle distance in meters between two
// WGS-84 positions. Pure numeric function: it does not range-check its inputs,
// callers reject NaN and out-of-range coordinates via ValidateCoordinates.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// ValidateCoordinates rejects non-finite values and positions outside
// latitude [-90,90] / longitude [-180,180].
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Point3857FromWGS84 creates a Web Mercator point from WGS-84 degrees
func Point3857FromWGS84(
	latitude float64,
	longitude float64,
) (
	point geom.Point,
	err error,
) {
	if err := ValidateCoordinates(latitude, longitude); err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), err
	}
	var x, y float64
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(longitude, latitude, 0)
	point = geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
			Z:  0,
		},
	)
	return point, nil
}
