package whazzup

import (
	"errors"
	"log/slog"
	"math/rand"
	"strings"

	"atc_trmnl/internal/models"
)

// DefaultStatusURL is the well-known location of the descriptor
const DefaultStatusURL = "http://www.ivao.aero/whazzup/status.txt"

// Descriptor keys
const (
	KeyNotice = "msg0"
	KeyURL    = "url0"
	KeyGzURL  = "gzurl0"
	KeyUser   = "user0"

	// Deprecated by the network, kept for reference
	KeyMETAR    = "metar0"
	KeyTAF      = "taf0"
	KeyShortTAF = "shorttaf0"
	KeyATIS     = "atis0"
)

// ErrNoFeedURL is returned when the descriptor lists neither a gzipped nor a plain feed
var ErrNoFeedURL = errors.New("descriptor has no feed url")

// ParseDescriptor parses the plain "key = value" descriptor text.
// Comment lines (# or ;) are skipped, lines without '=' such as the leading
// version line are dropped. It returns the number of dropped lines.
func ParseDescriptor(data []byte) (*models.Descriptor, int) {
	d := models.NewDescriptor()
	dropped := 0

	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			dropped++
			slog.Debug("Dropped descriptor line", "line", i+1, "text", line)
			continue
		}
		d.Add(key, strings.TrimSpace(value))
	}

	for _, n := range d.Values(KeyNotice) {
		slog.Info("Network notice", "message", n)
	}
	return d, dropped
}

// FeedURLs returns the candidate live feed urls, preferring the gzipped list
func FeedURLs(d *models.Descriptor) (urls []string, gzipped bool) {
	if urls := d.Values(KeyGzURL); len(urls) > 0 {
		return urls, true
	}
	return d.Values(KeyURL), false
}

// SelectFeedURL picks one feed url at random. intn may be nil to use math/rand.
func SelectFeedURL(d *models.Descriptor, intn func(n int) int) (string, bool, error) {
	urls, gzipped := FeedURLs(d)
	if len(urls) == 0 {
		return "", false, ErrNoFeedURL
	}
	if intn == nil {
		intn = rand.Intn
	}
	return urls[intn(len(urls))], gzipped, nil
}

// ListsFeedURL reports whether url is still one of the descriptor's feed urls
func ListsFeedURL(d *models.Descriptor, url string) bool {
	for _, key := range []string{KeyGzURL, KeyURL} {
		for _, u := range d.Values(key) {
			if u == url {
				return true
			}
		}
	}
	return false
}
