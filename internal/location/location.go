package location

import (
	"fmt"
	"math"
)

// Permission is the authorization state reported by a location backend.
type Permission int

const (
	PermissionUndetermined Permission = iota
	PermissionDenied
	PermissionRestricted
	PermissionWhileInUse
	PermissionAlways
)

// Authorized reports whether updates may flow in this state.
func (p Permission) Authorized() bool {
	return p == PermissionWhileInUse || p == PermissionAlways
}

func (p Permission) String() string {
	switch p {
	case PermissionUndetermined:
		return "undetermined"
	case PermissionDenied:
		return "denied"
	case PermissionRestricted:
		return "restricted"
	case PermissionWhileInUse:
		return "whileInUse"
	case PermissionAlways:
		return "always"
	default:
		return fmt.Sprintf("permission(%d)", int(p))
	}
}

// MarshalJSON encodes the permission as its string name for the web clients.
func (p Permission) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// Reading is the current observable location state. Each update replaces the
// previous value wholesale; no history is kept.
type Reading struct {
	SpeedKmh       float64    `json:"speedKmh"`
	AltitudeMeters float64    `json:"altitudeMeters"`
	HeadingDegrees float64    `json:"headingDegrees"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	Permission     Permission `json:"permission"`
}

// Update is one position report from a backend. Speed is ground speed in
// meters per second; backends report a negative value when speed is unknown.
type Update struct {
	Latitude       float64
	Longitude      float64
	AltitudeMeters float64
	SpeedMS        float64
}

// Handlers receives backend events. Locations carries a batch in delivery
// order; only the final entry is current. Heading is magnetic degrees.
type Handlers struct {
	Locations func([]Update)
	Heading   func(float64)
}

// Backend is the platform location service a Source bridges. It owns the
// permission state and the raw position/heading stream.
type Backend interface {
	Name() string
	// Permission returns the current authorization state.
	Permission() Permission
	// RequestPermission asks for while-in-use authorization. The outcome is
	// reported through cb, possibly asynchronously, and cb may fire again if
	// the state changes later.
	RequestPermission(cb func(Permission))
	// StartUpdates begins the continuous position and heading stream.
	StartUpdates(Handlers) error
	// StopUpdates halts the stream.
	StopUpdates()
}

// normalizeHeading wraps degrees into [0,360). The upstream services usually
// guarantee the range already, but gpsd track and raw NMEA course values are
// unvalidated input, so the source enforces it. Non-finite input returns
// ok=false and is discarded by the caller.
func normalizeHeading(deg float64) (float64, bool) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0, false
	}
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h, true
}
