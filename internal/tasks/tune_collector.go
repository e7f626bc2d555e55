package tasks

import (
	"context"
	"log/slog"
	"time"

	"atc_trmnl/internal/database"
	"atc_trmnl/internal/models"
)

// TuneCollector commits tune events to the audit store in batches
type TuneCollector struct {
	repo          database.TuneEventRepository
	events        chan *models.TuneEvent
	batchSize     int           // maximum number of events in a batch before committing
	flushInterval time.Duration // time to flush a batch even if not full
}

// NewTuneCollector uses a batch size of 20 events and a 5 second flush interval
func NewTuneCollector(repo database.TuneEventRepository) *TuneCollector {
	return NewTuneCollectorWithConfig(repo, 20, 5*time.Second)
}

// NewTuneCollectorWithConfig creates a collector with custom batch settings
func NewTuneCollectorWithConfig(repo database.TuneEventRepository, batchSize int, flushInterval time.Duration) *TuneCollector {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &TuneCollector{
		repo:          repo,
		events:        make(chan *models.TuneEvent, batchSize*4),
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Publish queues ev for the next batch. It never blocks: when the queue is
// full the event is dropped from the audit log and an error is logged.
func (c *TuneCollector) Publish(ev *models.TuneEvent) error {
	select {
	case c.events <- ev:
		return nil
	default:
		slog.Error("Tune event queue full, event not audited", "id", ev.ID, "action", ev.Action)
		return ErrQueueFull
	}
}

// Start collects events and writes them in batches. It blocks until ctx is
// cancelled, flushing whatever is pending before returning.
// Batches are flushed when they reach batchSize or flushInterval elapses.
func (c *TuneCollector) Start(ctx context.Context) error {
	batch := make([]*models.TuneEvent, 0, c.batchSize)

	flushBatch := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.repo.InsertBatch(batch); err != nil {
			slog.Error("Error inserting batch of tune events", "batch_size", len(batch), "error", err)
		} else {
			slog.Debug("Inserted batch of tune events", "batch_size", len(batch))
		}
		batch = batch[:0]
	}

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// drain what is already queued
			for {
				select {
				case ev := <-c.events:
					if ev != nil {
						batch = append(batch, ev)
					}
				default:
					flushBatch()
					return ctx.Err()
				}
			}

		case <-ticker.C:
			flushBatch()

		case ev := <-c.events:
			if ev == nil {
				continue
			}
			batch = append(batch, ev)
			if len(batch) >= c.batchSize {
				flushBatch()
			}
		}
	}
}
