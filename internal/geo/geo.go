package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/evacsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Positions are always stored as 3857, because SQLite has no spatial awareness and we need to be
// able to read point data back through the inherent WKB Scan function.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Anchor pins the simulation origin to a WGS84 location. Simulation X points east and Z points
// north; Y is height above the anchor elevation.
type Anchor struct {
	Longitude float64
	Latitude  float64
	Elevation float64
}

// ParseAnchor parses a string in the format "long,lat" or "long,lat,elev".
func ParseAnchor(coords string) (Anchor, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return Anchor{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return Anchor{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil || lat <= -85 || lat >= 85 {
		return Anchor{}, ErrInvalidCoordinates
	}
	var elev float64
	if len(coordsSplit) > 2 {
		elev, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64)
		if err != nil {
			return Anchor{}, ErrInvalidCoordinates
		}
	}
	return Anchor{Longitude: long, Latitude: lat, Elevation: elev}, nil
}

// Coords3857From4326 creates a GPS point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
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

// Point projects a simulation position into EPSG:3857.
func (a Anchor) Point(v core.Vec3) geom.Point {
	xy := a.project(v)
	return geom.NewPoint(geom.Coordinates{
		XY:   xy,
		Z:    a.Elevation + v.Y,
		Type: geom.DimXYZ,
	})
}

// LonLat converts a simulation position back to WGS84.
func (a Anchor) LonLat(v core.Vec3) (lon, lat float64) {
	xy := a.project(v)
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ = f(xy.X, xy.Y, 0)
	return lon, lat
}

// TrailLineString projects an occupant trail as a 3D line.
func (a Anchor) TrailLineString(trail []core.Vec3) (geom.LineString, error) {
	if len(trail) < 2 {
		return geom.LineString{}, fmt.Errorf("trail must have at least 2 points, got %d", len(trail))
	}
	flat := make([]float64, 0, len(trail)*3)
	for _, v := range trail {
		xy := a.project(v)
		flat = append(flat, xy.X, xy.Y, a.Elevation+v.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ)), nil
}

// project offsets the anchor in web mercator meters, which stretch by 1/cos(latitude).
func (a Anchor) project(v core.Vec3) geom.XY {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(a.Longitude, a.Latitude, 0)
	k := 1 / math.Cos(a.Latitude*math.Pi/180)
	return geom.XY{X: x + v.X*k, Y: y + v.Z*k}
}
