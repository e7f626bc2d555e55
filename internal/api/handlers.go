// Package api serves the read-only HTTP query surface over the current snapshot.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"atc_trmnl/internal/database"
	"atc_trmnl/internal/models"
	"atc_trmnl/internal/resolver"
	"atc_trmnl/internal/whazzup"
)

// FeedSource provides the latest parsed feed
type FeedSource interface {
	Current() (*whazzup.Feed, bool)
}

// Server holds the handler dependencies
type Server struct {
	feed     FeedSource
	resolver *resolver.Resolver
	refresh  database.RefreshRepository
	ws       http.Handler
}

// New creates the API. refresh and ws may be nil.
func New(feed FeedSource, r *resolver.Resolver, refresh database.RefreshRepository, ws http.Handler) *Server {
	return &Server{feed: feed, resolver: r, refresh: refresh, ws: ws}
}

// Handler returns the routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/resolve", s.handleResolve)
	mux.HandleFunc("GET /api/clients/{callsign}", s.handleClient)
	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type statusResponse struct {
	Loaded      bool                  `json:"loaded"`
	SnapshotID  string                `json:"snapshot_id,omitempty"`
	GeneratedAt *time.Time            `json:"generated_at,omitempty"`
	Counts      models.SnapshotCounts `json:"counts"`
	General     map[string]string     `json:"general,omitempty"`
	Stats       *whazzup.ParseStats   `json:"parse_stats,omitempty"`
	Bytes       int                   `json:"bytes,omitempty"`
	LastRefresh *models.Refresh       `json:"last_refresh,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{}

	if feed, ok := s.feed.Current(); ok && feed != nil {
		snap := feed.Snapshot
		generated := snap.GeneratedAt()
		resp.Loaded = true
		resp.SnapshotID = snap.ID()
		resp.GeneratedAt = &generated
		resp.Counts = snap.Counts()
		resp.General = snap.General().Map()
		resp.Stats = &feed.Stats
		resp.Bytes = feed.Bytes
	}

	if s.refresh != nil {
		last, err := s.refresh.Latest()
		if err != nil {
			slog.Error("Error reading last refresh", "error", err)
		}
		resp.LastRefresh = last
	}

	writeJSON(w, http.StatusOK, resp)
}

type stationJSON struct {
	Callsign  string `json:"callsign"`
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
	Facility  string `json:"facility"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

func station(c *models.ClientRecord) *stationJSON {
	if c == nil {
		return nil
	}
	return &stationJSON{
		Callsign:  c.Callsign,
		Name:      c.Name,
		Frequency: c.Frequency,
		Facility:  c.FacilityName(),
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	}
}

type resolveResponse struct {
	Frequency    string       `json:"frequency"`
	Found        bool         `json:"found"`
	Station      *stationJSON `json:"station,omitempty"`
	MatchedKey   string       `json:"matched_key,omitempty"`
	Alternate    bool         `json:"alternate"`
	Nearest      *stationJSON `json:"nearest,omitempty"`
	NearestMiles float64      `json:"nearest_miles,omitempty"`
	SnapshotID   string       `json:"snapshot_id,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	freq := strings.TrimSpace(q.Get("freq"))
	if freq == "" {
		jsonError(w, "missing freq parameter", http.StatusBadRequest)
		return
	}

	pos, err := parsePosition(q.Get("lat"), q.Get("lon"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, ok := s.feed.Current(); !ok {
		jsonError(w, "no snapshot loaded yet", http.StatusServiceUnavailable)
		return
	}

	m := s.resolver.Explain(freq, pos)
	writeJSON(w, http.StatusOK, resolveResponse{
		Frequency:    freq,
		Found:        m.Found(),
		Station:      station(m.Station),
		MatchedKey:   m.MatchedKey,
		Alternate:    m.Alternate,
		Nearest:      station(m.Nearest),
		NearestMiles: m.NearestMiles,
		SnapshotID:   m.SnapshotID,
	})
}

type clientResponse struct {
	Fields               map[string]string `json:"fields"`
	ClientType           string            `json:"client_type"`
	Facility             string            `json:"facility,omitempty"`
	Simulator            string            `json:"simulator,omitempty"`
	AdministrativeRating string            `json:"administrative_rating"`
	PilotRating          string            `json:"pilot_rating,omitempty"`
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	callsign := r.PathValue("callsign")

	feed, ok := s.feed.Current()
	if !ok {
		jsonError(w, "no snapshot loaded yet", http.StatusServiceUnavailable)
		return
	}

	c, ok := feed.Snapshot.Client(callsign)
	if !ok {
		jsonError(w, "unknown callsign "+callsign, http.StatusNotFound)
		return
	}

	resp := clientResponse{
		Fields:               c.Map(),
		ClientType:           c.ClientTypeName(),
		AdministrativeRating: c.AdministrativeRatingName(),
		PilotRating:          c.PilotRatingName(),
	}
	if c.IsATC() {
		resp.Facility = c.FacilityName()
	} else {
		resp.Simulator = c.SimulatorName()
	}
	writeJSON(w, http.StatusOK, resp)
}

// parsePosition treats missing coordinates as 0, like the simulator sensor does
func parsePosition(lat, lon string) (models.Position, error) {
	var pos models.Position
	var err error
	if lat != "" {
		if pos.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
			return pos, errInvalidParam("lat", lat)
		}
	}
	if lon != "" {
		if pos.Longitude, err = strconv.ParseFloat(lon, 64); err != nil {
			return pos, errInvalidParam("lon", lon)
		}
	}
	return pos, nil
}

func errInvalidParam(name, value string) error {
	return fmt.Errorf("invalid %s parameter %q", name, value)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}
