package session

import "fmt"

// DefaultRadiusMeters applies when a session is created without an explicit
// check-in radius.
const DefaultRadiusMeters = 30.0

// Location is an immutable geocoordinate with a check-in radius. Distance
// math itself lives in the geo verification service, not here.
type Location struct {
	latitude    float64
	longitude   float64
	description string
	radius      float64
}

// NewLocation validates coordinate and radius bounds. A zero radius falls
// back to DefaultRadiusMeters.
func NewLocation(lat, lon float64, description string, radiusMeters float64) (Location, error) {
	if lat < -90 || lat > 90 {
		return Location{}, fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidLocation, lat)
	}
	if lon < -180 || lon > 180 {
		return Location{}, fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidLocation, lon)
	}
	if radiusMeters < 0 {
		return Location{}, fmt.Errorf("%w: radius must not be negative", ErrInvalidLocation)
	}
	if radiusMeters == 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return Location{latitude: lat, longitude: lon, description: description, radius: radiusMeters}, nil
}

// Latitude returns the coordinate latitude.
func (l Location) Latitude() float64 { return l.latitude }

// Longitude returns the coordinate longitude.
func (l Location) Longitude() float64 { return l.longitude }

// Description returns the optional human-readable place name.
func (l Location) Description() string { return l.description }

// RadiusMeters returns the allowed check-in radius.
func (l Location) RadiusMeters() float64 { return l.radius }
