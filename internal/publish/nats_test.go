package publish

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atc_trmnl/internal/models"
)

// connectOrSkip returns a publisher on a local server, skipping the test when none is running
func connectOrSkip(t *testing.T, subject string) *Publisher {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping NATS integration test in short mode")
	}
	p, err := New(nats.DefaultURL, subject)
	if err != nil {
		t.Skipf("No NATS server at %s: %v", nats.DefaultURL, err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestNew_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "unsupported scheme", url: "invalid://url:12345"},
		{name: "nothing listening", url: "nats://127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.url, "")
			require.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestPublisher_NilConnection(t *testing.T) {
	p := &Publisher{subject: DefaultSubject}

	assert.ErrorIs(t, p.Publish(&models.TuneEvent{}), ErrNotConnected)
	_, err := p.Subscribe(func(*models.TuneEvent) {})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, p.Flush(), ErrNotConnected)
	// Close must not panic without a connection
	p.Close()
}

func TestPublisher_RoundTrip(t *testing.T) {
	p := connectOrSkip(t, "atc_trmnl.test."+t.Name())

	received := make(chan *models.TuneEvent, 1)
	sub, err := p.Subscribe(func(ev *models.TuneEvent) { received <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ev := models.NewTuneEvent(models.TuneActionJoin, "121.505", models.Position{Latitude: 41.8, Longitude: 12.25})
	ev.Channel = "GUARD_B"
	require.NoError(t, p.Publish(ev))
	require.NoError(t, p.Flush())

	select {
	case got := <-received:
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, "GUARD_B", got.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("tune event not received")
	}
}
