// Package whazzup parses the network status feed and its bootstrap descriptor.
//
// The feed is line oriented and split into sections by the markers
// !GENERAL, !CLIENTS, !SERVERS and !AIRPORTS. General lines are "key = value",
// the other sections hold colon delimited positional records. Parsing is
// total: a bad line is dropped and counted, the rest of the feed is kept.
package whazzup

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"atc_trmnl/internal/models"
)

// Section markers
const (
	SectionGeneral  = "!GENERAL"
	SectionClients  = "!CLIENTS"
	SectionServers  = "!SERVERS"
	SectionAirports = "!AIRPORTS"

	sectionToken = "!"
	fieldSep     = ":"
)

var (
	// ErrMalformedRecord is reported for a line that does not have the expected shape
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMissingSection is reported for a content line seen before any section marker
	ErrMissingSection = errors.New("line outside of any section")

	// ErrUnknownSection is reported for a marker that is not one of the four sections
	ErrUnknownSection = errors.New("unknown section marker")
)

// maxIssues bounds the number of issues kept in ParseStats
const maxIssues = 20

// Issue describes one dropped line
type Issue struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Text   string `json:"text"`
	err    error
}

// Err returns the sentinel error classifying the issue
func (i Issue) Err() error { return i.err }

// ParseStats summarizes one parse pass
type ParseStats struct {
	Lines          int     `json:"lines"`
	General        int     `json:"general"`
	Clients        int     `json:"clients"`
	Servers        int     `json:"servers"`
	Airports       int     `json:"airports"`
	Dropped        int     `json:"dropped"`
	Malformed      int     `json:"malformed"`
	MissingSection int     `json:"missing_section"`
	UnknownSection int     `json:"unknown_section"`
	Issues         []Issue `json:"issues,omitempty"`
}

func (s *ParseStats) drop(line int, text string, err error) {
	s.Dropped++
	switch {
	case errors.Is(err, ErrMissingSection):
		s.MissingSection++
	case errors.Is(err, ErrUnknownSection):
		s.UnknownSection++
	default:
		s.Malformed++
	}
	if len(s.Issues) < maxIssues {
		s.Issues = append(s.Issues, Issue{Line: line, Reason: err.Error(), Text: text, err: err})
	}
	slog.Warn("Dropped feed line", "line", line, "error", err)
}

// builder accumulates the collections of one parse pass
type builder struct {
	general  *models.General
	clients  map[string]*models.ClientRecord
	servers  map[string]*models.ServerRecord
	airports map[string]*models.AirportRecord
	// callsigns in document order, repeated when a callsign occurs again
	clientOrder []string
	stats       ParseStats
}

type handler func(b *builder, line string) error

var handlers = map[string]handler{
	SectionGeneral:  (*builder).parseGeneral,
	SectionClients:  (*builder).parseClient,
	SectionServers:  (*builder).parseServer,
	SectionAirports: (*builder).parseAirport,
}

// Parse builds a new snapshot from the decompressed feed text
func Parse(data []byte) (*models.Snapshot, ParseStats) {
	b := &builder{
		general:  models.NewGeneral(),
		clients:  make(map[string]*models.ClientRecord),
		servers:  make(map[string]*models.ServerRecord),
		airports: make(map[string]*models.AirportRecord),
	}

	var active handler
	for i, raw := range strings.Split(string(data), "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		b.stats.Lines++

		if strings.HasPrefix(line, sectionToken) {
			h, ok := handlers[line]
			if !ok {
				// lines up to the next known marker have no handler
				active = nil
				b.stats.drop(lineNo, line, ErrUnknownSection)
				continue
			}
			active = h
			continue
		}

		if active == nil {
			b.stats.drop(lineNo, line, ErrMissingSection)
			continue
		}
		if err := active(b, line); err != nil {
			b.stats.drop(lineNo, line, err)
		}
	}

	snap := models.NewSnapshot(uuid.NewString(), time.Now(), b.general, b.clients, b.servers, b.airports, b.indexATC())
	return snap, b.stats
}

// indexATC is the second pass: every ATC client keyed by frequency, last one in document order wins
func (b *builder) indexATC() map[string]*models.ClientRecord {
	atc := make(map[string]*models.ClientRecord)
	for _, callsign := range b.clientOrder {
		c := b.clients[callsign]
		if !c.IsATC() {
			continue
		}
		if c.Frequency == "" {
			slog.Debug("ATC client without frequency not indexed", "callsign", c.Callsign)
			continue
		}
		if prev, exists := atc[c.Frequency]; exists {
			slog.Debug("Frequency shared by several controllers, keeping the last one",
				"frequency", c.Frequency, "replaced", prev.Callsign, "callsign", c.Callsign)
		}
		atc[c.Frequency] = c
	}
	return atc
}

func (b *builder) parseGeneral(line string) error {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return fmt.Errorf("%w: general line without '='", ErrMalformedRecord)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: general line without key", ErrMalformedRecord)
	}
	stored := b.general.Set(key, strings.TrimSpace(value))
	if stored != models.NormalizeKey(key) {
		slog.Debug("General key already defined, renamed", "key", key, "stored_as", stored)
	}
	b.stats.General++
	return nil
}

func (b *builder) parseClient(line string) error {
	c := models.NewClientRecord(strings.Split(line, fieldSep))
	if c.Callsign == "" {
		return fmt.Errorf("%w: client without callsign", ErrMalformedRecord)
	}
	b.clientOrder = append(b.clientOrder, c.Callsign)
	b.clients[c.Callsign] = c
	b.stats.Clients++
	return nil
}

func (b *builder) parseServer(line string) error {
	s := models.NewServerRecord(strings.Split(line, fieldSep))
	if s.Ident == "" {
		return fmt.Errorf("%w: server without ident", ErrMalformedRecord)
	}
	b.servers[s.Ident] = s
	b.stats.Servers++
	return nil
}

func (b *builder) parseAirport(line string) error {
	a := models.NewAirportRecord(strings.Split(line, fieldSep))
	if a.ICAO == "" {
		return fmt.Errorf("%w: airport without icao code", ErrMalformedRecord)
	}
	b.airports[a.ICAO] = a
	b.stats.Airports++
	return nil
}
