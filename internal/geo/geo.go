// Package geo normalizes the coordinate shapes found in profile rows and
// provides great-circle distance math for the proximity filters.
package geo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

// Point is the canonical {lat,lng} shape. Everything outside this package
// works in Points; raw row encodings never escape Normalize.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point is inside the WGS84 coordinate range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Encode renders the point as the canonical JSON shape written by the
// presence tracker.
func (p Point) Encode() []byte {
	data, _ := json.Marshal(p)
	return data
}

// Normalize converts any of the historical location encodings to a Point:
//
//	{"lat":48.85,"lng":2.35}
//	{"latitude":48.85,"longitude":2.35}
//	[2.35,48.85]            (GeoJSON order: lng first)
//	"48.85,2.35"
//
// The boolean is false when the value cannot be interpreted as a coordinate.
func Normalize(raw []byte) (Point, bool) {
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return Point{}, false
	}

	switch raw[0] {
	case '{':
		var obj struct {
			Lat       *float64 `json:"lat"`
			Lng       *float64 `json:"lng"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Point{}, false
		}
		if obj.Lat != nil && obj.Lng != nil {
			return checked(Point{Lat: *obj.Lat, Lng: *obj.Lng})
		}
		if obj.Latitude != nil && obj.Longitude != nil {
			return checked(Point{Lat: *obj.Latitude, Lng: *obj.Longitude})
		}
		return Point{}, false
	case '[':
		var arr []float64
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) != 2 {
			return Point{}, false
		}
		return checked(Point{Lat: arr[1], Lng: arr[0]})
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Point{}, false
		}
		return parsePair(s)
	}
	return Point{}, false
}

func parsePair(s string) (Point, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return Point{}, false
	}
	return checked(Point{Lat: lat, Lng: lng})
}

func checked(p Point) (Point, bool) {
	if !p.Valid() {
		return Point{}, false
	}
	return p, true
}

// DistanceKm returns the haversine great-circle distance between two points.
func DistanceKm(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// WithinKm reports whether b is no farther than radius kilometers from a.
func WithinKm(a, b Point, radius float64) bool {
	return DistanceKm(a, b) <= radius
}
