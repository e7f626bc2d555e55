package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"atc_trmnl/internal/api"
	"atc_trmnl/internal/config"
	"atc_trmnl/internal/database"
	"atc_trmnl/internal/fetcher"
	"atc_trmnl/internal/models"
	"atc_trmnl/internal/publish"
	"atc_trmnl/internal/resolver"
	"atc_trmnl/internal/scheduler"
	"atc_trmnl/internal/tasks"
	"atc_trmnl/internal/whazzup"
	"atc_trmnl/internal/ws"
	"atc_trmnl/internal/xplane"
)

const (
	feedListenerID   = "feed"
	statusListenerID = "status"
	relocateID       = "relocate"
	auditID          = "audit"
)

// Daemon represents the main daemon structure
type Daemon struct {
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	scheduler *scheduler.Scheduler
	database  *database.DB
	refreshes database.RefreshRepository

	status    *fetcher.Fetcher
	statusRes *whazzup.Resource[*models.Descriptor]
	feedRes   *whazzup.Resource[*whazzup.Feed]

	liveMu   sync.Mutex
	live     *fetcher.Fetcher
	stopping bool

	resolver  *resolver.Resolver
	hub       *ws.Hub
	collector *tasks.TuneCollector
	publisher *publish.Publisher

	server   *http.Server
	listener net.Listener
}

// New wires every component. Nothing runs until Start.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		scheduler: scheduler.New(ctx),
		database:  db,
		refreshes: db.RefreshRepository(),
		statusRes: whazzup.NewStatusResource(),
		feedRes:   whazzup.NewFeedResource(),
		hub:       ws.NewHub(),
	}

	d.resolver = resolver.New(resolver.SnapshotFunc(d.snapshot), resolver.AlternateRule{
		PrefixLen: cfg.Resolver.AlternatePrefixLen,
		Suffix:    cfg.Resolver.AlternateSuffix,
	})

	if err := d.feedRes.Subscribe(auditID, d.recordRefresh); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to subscribe to feed: %w", err)
	}

	if cfg.Feed.URL == "" {
		d.status = fetcher.New(fetcher.Config{
			Name:    "status",
			URL:     cfg.Status.URL,
			Period:  cfg.Status.RefreshPeriod,
			Timeout: cfg.Fetch.Timeout,
		})
		if err := d.status.Subscribe(statusListenerID, d.statusRes); err != nil {
			d.abort()
			return nil, fmt.Errorf("failed to subscribe to status: %w", err)
		}
		if err := d.statusRes.Subscribe(relocateID, d.onDescriptor); err != nil {
			d.abort()
			return nil, fmt.Errorf("failed to subscribe to descriptor: %w", err)
		}
	}

	d.collector = tasks.NewTuneCollectorWithConfig(
		db.TuneEventRepository(),
		cfg.BatchSize,
		time.Duration(cfg.BatchTimeout)*time.Second,
	)
	sinks := []tasks.Sink{d.hub, d.collector}

	if cfg.NATS.URL != "" {
		pub, err := publish.New(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			d.abort()
			return nil, fmt.Errorf("failed to initialize publisher: %w", err)
		}
		d.publisher = pub
		sinks = append(sinks, pub)
	}

	sensor := xplane.NewSensor(cfg.XPlane.Path)
	d.scheduler.AddTask(tasks.NewTuneTask(sensor, d.resolver, cfg.XPlane.LoopInterval, cfg.Voice.DisconnectOnUnicom, sinks...))

	if cfg.HTTP.Addr != "" {
		d.server = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.New(d.feedRes, d.resolver, d.refreshes, d.hub.Handler()).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return d, nil
}

func (d *Daemon) abort() {
	d.cancel()
	if err := d.database.Close(); err != nil {
		slog.Error("Error closing database", "error", err)
	}
}

// Start launches the fetchers, the tune loop and the HTTP server
func (d *Daemon) Start() error {
	slog.Info("Starting daemon")

	if d.server != nil {
		ln, err := net.Listen("tcp", d.server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", d.server.Addr, err)
		}
		d.listener = ln

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			slog.Info("HTTP server listening", "addr", ln.Addr().String())
			if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server stopped", "error", err)
			}
		}()
	}

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.hub.Run(d.ctx)
	}()
	go func() {
		defer d.wg.Done()
		_ = d.collector.Start(d.ctx)
	}()

	if d.status != nil {
		d.status.Start()
	} else {
		d.startLive(d.cfg.Feed.URL, d.cfg.Feed.Gzipped)
	}

	d.scheduler.Start()

	slog.Info("Daemon started successfully")
	return nil
}

// Addr returns the address the HTTP server listens on, empty when disabled or not started
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Stop gracefully stops the daemon
func (d *Daemon) Stop() error {
	slog.Info("Stopping daemon")

	// the status fetcher may be relocating the live one, stop it first
	if d.status != nil {
		d.status.Stop()
	}

	d.liveMu.Lock()
	d.stopping = true
	live := d.live
	d.liveMu.Unlock()
	if live != nil {
		live.Stop()
	}

	d.scheduler.Stop()

	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.server.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down HTTP server", "error", err)
		}
		cancel()
	}

	d.cancel()
	d.wg.Wait()

	if d.publisher != nil {
		d.publisher.Close()
	}

	if err := d.database.Close(); err != nil {
		slog.Error("Error closing database", "error", err)
	}

	slog.Info("Daemon stopped")
	return nil
}

// Resolver returns the frequency resolver over the live snapshot
func (d *Daemon) Resolver() *resolver.Resolver {
	return d.resolver
}

// LiveURL returns the url of the live feed currently followed
func (d *Daemon) LiveURL() string {
	d.liveMu.Lock()
	defer d.liveMu.Unlock()
	if d.live == nil {
		return ""
	}
	return d.live.URL()
}

func (d *Daemon) snapshot() (*models.Snapshot, bool) {
	feed, ok := d.feedRes.Current()
	if !ok || feed == nil {
		return nil, false
	}
	return feed.Snapshot, true
}

// onDescriptor follows the descriptor: the live fetcher is (re)created when
// it does not exist yet or its url is no longer listed.
func (d *Daemon) onDescriptor(desc *models.Descriptor) {
	d.liveMu.Lock()
	if d.stopping {
		d.liveMu.Unlock()
		return
	}
	if d.live != nil && whazzup.ListsFeedURL(desc, d.live.URL()) {
		d.liveMu.Unlock()
		return
	}
	d.liveMu.Unlock()

	url, gzipped, err := whazzup.SelectFeedURL(desc, nil)
	if err != nil {
		slog.Error("Descriptor lists no live feed, keeping the current one", "error", err, "current", d.LiveURL())
		return
	}
	d.startLive(url, gzipped)
}

// startLive points the live feed at url, replacing any previous fetcher
func (d *Daemon) startLive(url string, gzipped bool) {
	f := fetcher.New(fetcher.Config{
		Name:    "feed",
		URL:     url,
		Period:  d.cfg.Feed.RefreshPeriod,
		Gzipped: gzipped,
		Timeout: d.cfg.Fetch.Timeout,
	})
	if err := f.Subscribe(feedListenerID, d.feedRes); err != nil {
		slog.Error("Error subscribing to live feed", "error", err)
		return
	}

	d.liveMu.Lock()
	if d.stopping {
		d.liveMu.Unlock()
		return
	}
	old := d.live
	d.live = f
	f.Start()
	d.liveMu.Unlock()

	if old != nil {
		slog.Info("Live feed relocated", "from", old.URL(), "to", url)
		old.Stop()
	}
}

func (d *Daemon) recordRefresh(feed *whazzup.Feed) {
	counts := feed.Snapshot.Counts()
	ref := &models.Refresh{
		SnapshotID: feed.Snapshot.ID(),
		Source:     d.LiveURL(),
		FetchedAt:  feed.Snapshot.GeneratedAt(),
		Bytes:      feed.Bytes,
		Clients:    counts.Clients,
		ATC:        counts.ATC,
		Servers:    counts.Servers,
		Airports:   counts.Airports,
		Dropped:    feed.Stats.Dropped,
	}
	if err := d.refreshes.Insert(ref); err != nil {
		slog.Error("Error recording refresh", "snapshot_id", ref.SnapshotID, "error", err)
	}
}
