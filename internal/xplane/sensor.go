// Package xplane reads the COM1 frequency and aircraft position that the
// simulator export plugin writes into a directory as small text files.
package xplane

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"atc_trmnl/internal/models"
)

const (
	// Com1File holds the active COM1 frequency as five digits, e.g. "12345"
	Com1File = "com1.txt"
	// LatLonFile holds latitude and longitude on two lines
	LatLonFile = "latlon.txt"
)

// ErrInvalidReading is returned for a file whose content cannot be decoded
var ErrInvalidReading = errors.New("invalid sensor reading")

// Reading is one COM1 scan
type Reading struct {
	Frequency string
	Changed   bool
	// Fallback is true when the file was missing or unreadable and UNICOM was assumed
	Fallback bool
}

// Sensor polls the plugin's export directory
type Sensor struct {
	dir string

	mu   sync.Mutex
	last string
}

// NewSensor creates a sensor reading files from dir.
// The first scan always reports a change.
func NewSensor(dir string) *Sensor {
	return &Sensor{dir: dir}
}

// Dir returns the export directory
func (s *Sensor) Dir() string {
	return s.dir
}

// ScanCom1 reads the COM1 file and reports whether the frequency differs
// from the previous scan. A missing or unreadable file yields UNICOM.
func (s *Sensor) ScanCom1() Reading {
	r := Reading{}
	freq, err := s.readCom1()
	if err != nil {
		slog.Warn("No COM1 data, selecting UNICOM until the simulator reports a frequency", "dir", s.dir, "error", err)
		freq = models.FrequencyUNICOM
		r.Fallback = true
	}

	s.mu.Lock()
	r.Changed = freq != s.last
	s.last = freq
	s.mu.Unlock()

	r.Frequency = freq
	return r
}

func (s *Sensor) readCom1() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, Com1File))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", Com1File, err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return DecodeFrequency(line)
}

// DecodeFrequency turns the plugin's dataref value into dotted MHz notation.
// The dataref drops the last digit, so "12345" becomes "123.450".
func DecodeFrequency(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 4 {
		return "", fmt.Errorf("%w: frequency %q too short", ErrInvalidReading, raw)
	}
	if _, err := strconv.Atoi(raw); err != nil {
		return "", fmt.Errorf("%w: frequency %q is not numeric", ErrInvalidReading, raw)
	}
	return raw[:3] + "." + raw[3:] + "0", nil
}

// Position reads the aircraft position. A missing or unreadable file yields (0, 0).
func (s *Sensor) Position() models.Position {
	pos, err := s.readPosition()
	if err != nil {
		slog.Warn("No position data, assuming (0, 0)", "dir", s.dir, "error", err)
		return models.Position{}
	}
	return pos
}

func (s *Sensor) readPosition() (models.Position, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, LatLonFile))
	if err != nil {
		return models.Position{}, fmt.Errorf("failed to read %s: %w", LatLonFile, err)
	}

	var coords []float64
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return models.Position{}, fmt.Errorf("%w: coordinate %q: %v", ErrInvalidReading, line, err)
		}
		coords = append(coords, v)
	}
	if len(coords) != 2 {
		return models.Position{}, fmt.Errorf("%w: expected 2 coordinates, got %d", ErrInvalidReading, len(coords))
	}
	return models.Position{Latitude: coords[0], Longitude: coords[1]}, nil
}
