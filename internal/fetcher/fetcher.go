// Package fetcher periodically downloads a remote resource, optionally
// gunzips it, keeps the latest copy and hands it to registered listeners.
//
// A Fetcher runs its cycles on its own goroutine through a scheduler.Scheduler.
// Cycles of one fetcher never overlap. A failed cycle keeps the previous
// resource and does not notify anyone; the next cycle tries again.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"

	"atc_trmnl/internal/scheduler"
)

var (
	// ErrFetch wraps network errors, timeouts and non-2xx responses
	ErrFetch = errors.New("fetch failed")

	// ErrDecompress wraps gzip errors; it is handled exactly like ErrFetch
	ErrDecompress = errors.New("decompression failed")

	// ErrListenerExists is returned when Subscribe is called with a duplicate id
	ErrListenerExists = errors.New("listener id already exists")

	// ErrListenerNotFound is returned when Unsubscribe is called with an unknown id
	ErrListenerNotFound = errors.New("listener id not found")
)

// Listener receives the full payload of every successful fetch
type Listener interface {
	OnFetch(payload []byte)
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(payload []byte)

func (f ListenerFunc) OnFetch(payload []byte) { f(payload) }

// Config holds the settings of one fetcher
type Config struct {
	Name    string        // Used in logs
	URL     string        // http(s):// or file:// locator
	Period  time.Duration // Minimum time between two successful fetches
	Gzipped bool          // Payload is a gzip container
	Timeout time.Duration // Bound on a single HTTP request

	Client *http.Client     // Optional, built from Timeout when nil
	Now    func() time.Time // Optional clock, time.Now when nil
}

// Stats holds fetch counters
type Stats struct {
	Attempts    uint64    `json:"attempts"`
	Successes   uint64    `json:"successes"`
	Failures    uint64    `json:"failures"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
}

// Fetcher downloads one resource on a fixed period
type Fetcher struct {
	name    string
	url     string
	period  time.Duration
	gzipped bool
	client  *http.Client
	now     func() time.Time

	// guards resource, lastFetched, lastSuccess and lastError
	mu          sync.Mutex
	resource    []byte
	lastFetched time.Time
	lastSuccess time.Time
	lastError   string

	listenersMu sync.RWMutex
	listeners   map[string]Listener
	order       []string

	lifecycleMu sync.Mutex
	sched       *scheduler.Scheduler
	stopped     bool

	attempts  atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
}

// New creates a fetcher; call Start to begin the periodic cycle
func New(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	name := cfg.Name
	if name == "" {
		name = cfg.URL
	}

	return &Fetcher{
		name:      name,
		url:       cfg.URL,
		period:    cfg.Period,
		gzipped:   cfg.Gzipped,
		client:    client,
		now:       now,
		listeners: make(map[string]Listener),
	}
}

// URL returns the source locator
func (f *Fetcher) URL() string { return f.url }

// Gzipped reports whether payloads are decompressed before notification
func (f *Fetcher) Gzipped() bool { return f.gzipped }

// Name implements scheduler.Task
func (f *Fetcher) Name() string { return f.name }

// Interval implements scheduler.Task
func (f *Fetcher) Interval() time.Duration { return f.period }

// Subscribe registers a listener under id. Listeners are notified in registration order.
func (f *Fetcher) Subscribe(id string, l Listener) error {
	f.listenersMu.Lock()
	defer f.listenersMu.Unlock()

	if _, exists := f.listeners[id]; exists {
		return fmt.Errorf("%w: %s", ErrListenerExists, id)
	}
	f.listeners[id] = l
	f.order = append(f.order, id)
	return nil
}

// Unsubscribe removes the listener registered under id
func (f *Fetcher) Unsubscribe(id string) error {
	f.listenersMu.Lock()
	defer f.listenersMu.Unlock()

	if _, exists := f.listeners[id]; !exists {
		return fmt.Errorf("%w: %s", ErrListenerNotFound, id)
	}
	delete(f.listeners, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// Resource returns the latest successfully fetched payload, nil before the first success.
// The returned slice must not be modified.
func (f *Fetcher) Resource() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resource
}

// Stats returns a copy of the fetch counters
func (f *Fetcher) Stats() Stats {
	f.mu.Lock()
	lastSuccess, lastError := f.lastSuccess, f.lastError
	f.mu.Unlock()

	return Stats{
		Attempts:    f.attempts.Load(),
		Successes:   f.successes.Load(),
		Failures:    f.failures.Load(),
		LastSuccess: lastSuccess,
		LastError:   lastError,
	}
}

// Start begins the periodic cycle; the first fetch fires immediately.
// Start after Stop does nothing.
func (f *Fetcher) Start() {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	if f.stopped || f.sched != nil {
		return
	}
	f.sched = scheduler.New(context.Background())
	f.sched.AddTask(f)
	f.sched.Start()
	slog.Info("Fetcher started", "fetcher", f.name, "url", f.url, "period", f.period, "gzipped", f.gzipped)
}

// Stop cancels future cycles and waits for a cycle in flight to finish,
// including any listener it is notifying. A cycle interrupted by Stop does
// not notify the remaining listeners. Stop is idempotent and safe to call
// before Start. Listeners of this fetcher must use Cancel instead, since
// Stop would wait on their own cycle.
func (f *Fetcher) Stop() {
	sched, first := f.cancel()
	if sched == nil {
		return
	}
	sched.Wait()
	if first {
		slog.Info("Fetcher stopped", "fetcher", f.name)
	}
}

// Cancel stops future cycles without waiting for the current one.
// A later Stop still waits for it.
func (f *Fetcher) Cancel() {
	if sched, first := f.cancel(); sched != nil && first {
		slog.Info("Fetcher cancelled", "fetcher", f.name)
	}
}

// cancel marks the fetcher stopped and reports whether this call did it
func (f *Fetcher) cancel() (*scheduler.Scheduler, bool) {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	first := !f.stopped
	f.stopped = true
	if f.sched != nil {
		f.sched.Cancel()
	}
	return f.sched, first
}

// Run performs one cycle: fetch if the period has elapsed since the last
// successful fetch, store the payload, notify listeners.
func (f *Fetcher) Run(ctx context.Context) error {
	start := f.now()

	f.mu.Lock()
	last := f.lastFetched
	f.mu.Unlock()

	if !f.due(last, start) {
		return nil
	}

	f.attempts.Add(1)
	payload, err := f.fetch(ctx)
	if err != nil {
		f.failures.Add(1)
		f.mu.Lock()
		f.lastError = err.Error()
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.resource = payload
	f.lastFetched = start
	f.lastSuccess = f.now()
	f.lastError = ""
	f.mu.Unlock()
	f.successes.Add(1)

	slog.Debug("Fetched resource", "fetcher", f.name, "bytes", len(payload))

	if ctx.Err() != nil {
		return nil
	}
	f.notify(ctx, payload)
	return nil
}

// due reports whether a fetch is needed at now. Ticks may arrive slightly
// before a full period has elapsed, so a tenth of the period is tolerated.
func (f *Fetcher) due(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= f.period-f.period/10
}

// notify calls every listener still registered, outside of any lock
func (f *Fetcher) notify(ctx context.Context, payload []byte) {
	f.listenersMu.RLock()
	ids := make([]string, len(f.order))
	copy(ids, f.order)
	f.listenersMu.RUnlock()

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		f.listenersMu.RLock()
		l, ok := f.listeners[id]
		f.listenersMu.RUnlock()
		if !ok {
			continue
		}
		l.OnFetch(payload)
	}
}

// fetch downloads and, when configured, decompresses the resource
func (f *Fetcher) fetch(ctx context.Context) ([]byte, error) {
	raw, err := f.download(ctx)
	if err != nil {
		return nil, err
	}
	if !f.gzipped {
		return raw, nil
	}
	return gunzip(raw)
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	if path, ok := strings.CutPrefix(f.url, "file://"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %w", ErrFetch, path, err)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request for %s: %w", ErrFetch, f.url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get %s: %w", ErrFetch, f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrFetch, f.url, resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body of %s: %w", ErrFetch, f.url, err)
	}
	return b, nil
}

// gunzip fully decompresses a gzip container held in memory
func gunzip(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	defer zr.Close()

	b, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	return b, nil
}
