package domain

// GeometryMode says whether a closure is drawn as a single point or a
// multi-point road segment. The mode decides point arity and whether
// route snapping applies.
type GeometryMode string

const (
	ModePoint   GeometryMode = "point"
	ModeSegment GeometryMode = "segment"
)

// Valid reports whether m is a known geometry mode.
func (m GeometryMode) Valid() bool {
	return m == ModePoint || m == ModeSegment
}

// RequiredArity is the minimum number of points the mode needs to be
// submit-eligible. Point mode also caps at exactly one point.
func (m GeometryMode) RequiredArity() int {
	if m == ModePoint {
		return 1
	}
	return 2
}

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PointSet is an ordered sequence of user-clicked points. Insertion
// order is significant: it defines path direction in segment mode.
type PointSet []GeoPoint

// Clone returns an independent copy so callers can hold a snapshot
// while the live set keeps mutating.
func (ps PointSet) Clone() PointSet {
	if ps == nil {
		return nil
	}
	out := make(PointSet, len(ps))
	copy(out, ps)
	return out
}

// RouteResult is the outcome of snapping a PointSet to the road
// network. It is immutable once created; when the PointSet changes the
// result is superseded, never mutated.
type RouteResult struct {
	Path             []GeoPoint `json:"path"`
	DistanceKm       float64    `json:"distance_km"`
	PointCount       int        `json:"point_count"`
	DirectDistanceKm float64    `json:"direct_distance_km"`
}

// Efficiency is the ratio of great-circle distance to routed distance.
// It is a route quality signal, not a correctness guarantee.
func (r *RouteResult) Efficiency() float64 {
	if r.DistanceKm <= 0 {
		return 0
	}
	return r.DirectDistanceKm / r.DistanceKm
}

// TransportProfile selects the routing engine cost model.
type TransportProfile string

const (
	ProfileDriving TransportProfile = "driving"
	ProfileCycling TransportProfile = "cycling"
	ProfileWalking TransportProfile = "walking"
)

// Valid reports whether p is a supported transport profile.
func (p TransportProfile) Valid() bool {
	return p == ProfileDriving || p == ProfileCycling || p == ProfileWalking
}

// EffectiveGeometry is the geometry that would actually be submitted:
// raw clicks reconciled with any route computed for the current
// PointSet. It is derived on demand and never stored.
type EffectiveGeometry struct {
	Mode        GeometryMode `json:"mode"`
	Coordinates []GeoPoint   `json:"coordinates"`
	// Routed is true when Coordinates came from the routing engine
	// rather than straight from user clicks.
	Routed bool `json:"routed"`
	// DistanceKm is the routed distance when Routed, otherwise the
	// great-circle length of the clicked path. Zero in point mode.
	DistanceKm float64 `json:"distance_km"`
}
