package whazzup

import (
	"fmt"
	"log/slog"
	"sync"

	"atc_trmnl/internal/fetcher"
	"atc_trmnl/internal/models"
)

// ParseFunc turns a fetched payload into a value of type T
type ParseFunc[T any] func(payload []byte) (T, error)

// Resource is the parse strategy attached to a fetcher. Every payload the
// fetcher delivers is parsed and, on success, replaces the current value
// as a unit. Subscribers are called after the swap with the new value.
type Resource[T any] struct {
	name  string
	parse ParseFunc[T]

	mu      sync.RWMutex
	current T
	loaded  bool

	subsMu sync.RWMutex
	subs   map[string]func(T)
	order  []string
}

var _ fetcher.Listener = (*Resource[int])(nil)

// NewResource creates an empty resource
func NewResource[T any](name string, parse ParseFunc[T]) *Resource[T] {
	return &Resource[T]{
		name:  name,
		parse: parse,
		subs:  make(map[string]func(T)),
	}
}

// OnFetch implements fetcher.Listener
func (r *Resource[T]) OnFetch(payload []byte) {
	value, err := r.parse(payload)
	if err != nil {
		slog.Error("Failed to parse resource, keeping previous value", "resource", r.name, "error", err)
		return
	}

	r.mu.Lock()
	r.current = value
	r.loaded = true
	r.mu.Unlock()

	r.subsMu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.subsMu.RUnlock()

	for _, id := range ids {
		r.subsMu.RLock()
		fn, ok := r.subs[id]
		r.subsMu.RUnlock()
		if ok {
			fn(value)
		}
	}
}

// Current returns the latest parsed value and whether one has been loaded yet
func (r *Resource[T]) Current() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.loaded
}

// Subscribe registers fn to be called after each successful swap
func (r *Resource[T]) Subscribe(id string, fn func(T)) error {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	if _, exists := r.subs[id]; exists {
		return fmt.Errorf("%w: %s", fetcher.ErrListenerExists, id)
	}
	r.subs[id] = fn
	r.order = append(r.order, id)
	return nil
}

// Unsubscribe removes the subscriber registered under id
func (r *Resource[T]) Unsubscribe(id string) error {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	if _, exists := r.subs[id]; !exists {
		return fmt.Errorf("%w: %s", fetcher.ErrListenerNotFound, id)
	}
	delete(r.subs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Feed is one parsed live feed with its parse summary
type Feed struct {
	Snapshot *models.Snapshot
	Stats    ParseStats
	Bytes    int
}

// ParseFeed is the ParseFunc of the live feed. Parsing is total, so it never fails.
func ParseFeed(payload []byte) (*Feed, error) {
	snap, stats := Parse(payload)
	slog.Info("Parsed feed",
		"snapshot_id", snap.ID(),
		"clients", stats.Clients,
		"atc", snap.Counts().ATC,
		"servers", stats.Servers,
		"airports", stats.Airports,
		"dropped", stats.Dropped,
	)
	return &Feed{Snapshot: snap, Stats: stats, Bytes: len(payload)}, nil
}

// ParseStatus is the ParseFunc of the descriptor
func ParseStatus(payload []byte) (*models.Descriptor, error) {
	d, dropped := ParseDescriptor(payload)
	if len(d.Keys()) == 0 {
		return nil, fmt.Errorf("descriptor has no key = value lines (%d dropped)", dropped)
	}
	return d, nil
}

// NewFeedResource returns the resource holding the live feed snapshot
func NewFeedResource() *Resource[*Feed] {
	return NewResource("feed", ParseFeed)
}

// NewStatusResource returns the resource holding the descriptor
func NewStatusResource() *Resource[*models.Descriptor] {
	return NewResource("status", ParseStatus)
}
