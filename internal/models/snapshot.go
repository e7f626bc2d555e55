package models

import (
	"sort"
	"time"
)

// Snapshot is one fully parsed view of the feed.
// It is immutable once constructed; a new parse produces a new Snapshot.
type Snapshot struct {
	id          string
	generatedAt time.Time
	general     *General
	clients     map[string]*ClientRecord
	servers     map[string]*ServerRecord
	airports    map[string]*AirportRecord
	atcByFreq   map[string]*ClientRecord
}

// SnapshotCounts summarizes the size of a snapshot
type SnapshotCounts struct {
	Clients  int `json:"clients"`
	ATC      int `json:"atc"`
	Servers  int `json:"servers"`
	Airports int `json:"airports"`
}

// NewSnapshot takes ownership of the given collections; callers must not modify them afterwards
func NewSnapshot(
	id string,
	generatedAt time.Time,
	general *General,
	clients map[string]*ClientRecord,
	servers map[string]*ServerRecord,
	airports map[string]*AirportRecord,
	atcByFreq map[string]*ClientRecord,
) *Snapshot {
	if general == nil {
		general = NewGeneral()
	}
	if clients == nil {
		clients = make(map[string]*ClientRecord)
	}
	if servers == nil {
		servers = make(map[string]*ServerRecord)
	}
	if airports == nil {
		airports = make(map[string]*AirportRecord)
	}
	if atcByFreq == nil {
		atcByFreq = make(map[string]*ClientRecord)
	}
	return &Snapshot{
		id:          id,
		generatedAt: generatedAt,
		general:     general,
		clients:     clients,
		servers:     servers,
		airports:    airports,
		atcByFreq:   atcByFreq,
	}
}

// ID returns the unique id assigned when the snapshot was built
func (s *Snapshot) ID() string {
	return s.id
}

// GeneratedAt returns the time the snapshot was built
func (s *Snapshot) GeneratedAt() time.Time {
	return s.generatedAt
}

// General returns the key/value pairs of the !GENERAL section
func (s *Snapshot) General() *General {
	return s.general
}

// Client returns the client record with the given callsign
func (s *Snapshot) Client(callsign string) (*ClientRecord, bool) {
	c, ok := s.clients[callsign]
	return c, ok
}

// Server returns the server record with the given ident
func (s *Snapshot) Server(ident string) (*ServerRecord, bool) {
	srv, ok := s.servers[ident]
	return srv, ok
}

// Airport returns the airport record with the given ICAO code
func (s *Snapshot) Airport(icao string) (*AirportRecord, bool) {
	a, ok := s.airports[icao]
	return a, ok
}

// ATC returns the controller indexed at frequency
func (s *Snapshot) ATC(frequency string) (*ClientRecord, bool) {
	c, ok := s.atcByFreq[frequency]
	return c, ok
}

// ATCStations returns every frequency-indexed controller, ordered by frequency
func (s *Snapshot) ATCStations() []*ClientRecord {
	freqs := make([]string, 0, len(s.atcByFreq))
	for f := range s.atcByFreq {
		freqs = append(freqs, f)
	}
	sort.Strings(freqs)

	stations := make([]*ClientRecord, 0, len(freqs))
	for _, f := range freqs {
		stations = append(stations, s.atcByFreq[f])
	}
	return stations
}

// Counts returns the number of records in each collection
func (s *Snapshot) Counts() SnapshotCounts {
	return SnapshotCounts{
		Clients:  len(s.clients),
		ATC:      len(s.atcByFreq),
		Servers:  len(s.servers),
		Airports: len(s.airports),
	}
}
