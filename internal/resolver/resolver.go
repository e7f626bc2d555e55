// Package resolver finds the controller tuned on a radio frequency.
//
// Lookup order: the exact frequency, then the channel spacing alternate key,
// which wins when both are indexed. The station nearest to the caller is
// always computed and logged, but only as a diagnostic: it is never returned
// in place of a frequency match.
package resolver

import (
	"log/slog"
	"math"

	"atc_trmnl/internal/models"
)

// EarthRadiusMiles is the mean Earth radius in statute miles
const EarthRadiusMiles = 3960.0

// AlternateRule derives the alternate index key for a frequency reported by
// a simulator radio that truncates 25 kHz channels: keep the first PrefixLen
// characters and append Suffix. The zero value disables the fallback.
type AlternateRule struct {
	PrefixLen int
	Suffix    string
}

// DefaultAlternateRule turns "121.50" or "121.500" into "121.505"
var DefaultAlternateRule = AlternateRule{PrefixLen: 6, Suffix: "5"}

// Enabled reports whether the rule produces alternate keys
func (r AlternateRule) Enabled() bool {
	return r.PrefixLen > 0
}

// Key returns the alternate key for frequency
func (r AlternateRule) Key(frequency string) string {
	prefix := frequency
	if r.PrefixLen < len(frequency) {
		prefix = frequency[:r.PrefixLen]
	}
	return prefix + r.Suffix
}

// SnapshotSource provides the snapshot queries run against
type SnapshotSource interface {
	Snapshot() (*models.Snapshot, bool)
}

// SnapshotFunc adapts a function to SnapshotSource
type SnapshotFunc func() (*models.Snapshot, bool)

func (f SnapshotFunc) Snapshot() (*models.Snapshot, bool) { return f() }

// Match is the outcome of one resolution
type Match struct {
	Station    *models.ClientRecord `json:"-"`
	MatchedKey string               `json:"matched_key,omitempty"`
	Alternate  bool                 `json:"alternate"`

	Nearest      *models.ClientRecord `json:"-"`
	NearestMiles float64              `json:"nearest_miles"`

	SnapshotID string `json:"snapshot_id,omitempty"`
}

// Found reports whether a controller was matched
func (m Match) Found() bool { return m.Station != nil }

// Resolver resolves frequencies against the current snapshot
type Resolver struct {
	source SnapshotSource
	rule   AlternateRule
}

// New creates a resolver reading snapshots from source
func New(source SnapshotSource, rule AlternateRule) *Resolver {
	return &Resolver{source: source, rule: rule}
}

// Resolve returns the controller on frequency, or nil when none matches
func (r *Resolver) Resolve(frequency string, pos models.Position) *models.ClientRecord {
	return r.Explain(frequency, pos).Station
}

// Explain resolves frequency and reports how the match was made
func (r *Resolver) Explain(frequency string, pos models.Position) Match {
	snap, ok := r.source.Snapshot()
	if !ok || snap == nil {
		slog.Warn("No snapshot loaded yet, cannot resolve frequency", "frequency", frequency)
		return Match{}
	}
	return resolve(snap, r.rule, frequency, pos)
}

// Nearest returns the ATC station closest to pos in the current snapshot
func (r *Resolver) Nearest(pos models.Position) (*models.ClientRecord, float64, bool) {
	snap, ok := r.source.Snapshot()
	if !ok || snap == nil {
		return nil, 0, false
	}
	return Nearest(snap, pos)
}

func resolve(snap *models.Snapshot, rule AlternateRule, frequency string, pos models.Position) Match {
	m := Match{SnapshotID: snap.ID()}

	if c, ok := snap.ATC(frequency); ok {
		m.Station, m.MatchedKey = c, frequency
	}
	if rule.Enabled() {
		alt := rule.Key(frequency)
		// the alternate key overrides an exact match
		if c, ok := snap.ATC(alt); ok {
			m.Station, m.MatchedKey, m.Alternate = c, alt, true
		}
	}

	if nearest, miles, ok := Nearest(snap, pos); ok {
		m.Nearest, m.NearestMiles = nearest, miles
		slog.Info("Nearest valid station",
			"callsign", nearest.Callsign,
			"name", nearest.Name,
			"frequency", nearest.Frequency,
			"miles", math.Round(miles*10)/10,
		)
	} else {
		slog.Info("No ATC station with a valid position in snapshot", "snapshot_id", snap.ID())
	}

	if m.Station == nil {
		slog.Warn("No valid ATC found", "frequency", frequency)
	}
	return m
}

// Nearest scans every frequency indexed station. Stations with unparsable
// coordinates are skipped. ok is false when no station qualifies.
func Nearest(snap *models.Snapshot, pos models.Position) (*models.ClientRecord, float64, bool) {
	var closest *models.ClientRecord
	shortest := math.MaxFloat64

	for _, atc := range snap.ATCStations() {
		p, err := atc.Position()
		if err != nil {
			slog.Debug("Skipping station without valid position", "callsign", atc.Callsign, "error", err)
			continue
		}
		if d := Distance(pos, p); d < shortest {
			closest, shortest = atc, d
		}
	}
	if closest == nil {
		return nil, 0, false
	}
	return closest, shortest, true
}

// Distance returns the great-circle distance in statute miles (haversine)
func Distance(a, b models.Position) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMiles * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
