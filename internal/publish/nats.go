// Package publish forwards tune events to a NATS subject so other processes
// (a voice bridge, a dashboard) can react to frequency changes.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"atc_trmnl/internal/models"
)

// DefaultSubject is the subject tune events are published on
const DefaultSubject = "atc_trmnl.tune"

// ErrNotConnected is returned by a publisher whose connection is closed
var ErrNotConnected = errors.New("nats connection not available")

// Publisher publishes tune events to NATS
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// New connects to the NATS server at url
func New(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	nc, err := nats.Connect(url,
		nats.Name("atc_trmnl"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("Connected to NATS", "url", nc.ConnectedUrl(), "subject", subject)
	return &Publisher{conn: nc, subject: subject}, nil
}

// Subject returns the subject events are published on
func (p *Publisher) Subject() string {
	return p.subject
}

// Publish sends one tune event
func (p *Publisher) Publish(ev *models.TuneEvent) error {
	if p.conn == nil || p.conn.IsClosed() {
		return ErrNotConnected
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal tune event: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish tune event: %w", err)
	}
	return nil
}

// Subscribe calls handler for every tune event received on the subject
func (p *Publisher) Subscribe(handler func(*models.TuneEvent)) (*nats.Subscription, error) {
	if p.conn == nil || p.conn.IsClosed() {
		return nil, ErrNotConnected
	}

	sub, err := p.conn.Subscribe(p.subject, func(msg *nats.Msg) {
		var ev models.TuneEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Error("Error unmarshaling tune event", "subject", msg.Subject, "error", err)
			return
		}
		handler(&ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}

// Flush waits until the server has processed every published event
func (p *Publisher) Flush() error {
	if p.conn == nil {
		return ErrNotConnected
	}
	return p.conn.Flush()
}

// Close drains and closes the connection
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
