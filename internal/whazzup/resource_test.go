package whazzup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atc_trmnl/internal/fetcher"
	"atc_trmnl/internal/models"
)

func TestResource_SwapsAndNotifies(t *testing.T) {
	r := NewFeedResource()
	_, loaded := r.Current()
	assert.False(t, loaded)

	var seen []*Feed
	require.NoError(t, r.Subscribe("seen", func(f *Feed) {
		// the swap happened before notification
		current, ok := r.Current()
		require.True(t, ok)
		assert.Same(t, f, current)
		seen = append(seen, f)
	}))

	r.OnFetch([]byte(sampleFeed))
	r.OnFetch([]byte("!CLIENTS\nONLY:1:Only:PILOT\n"))

	require.Len(t, seen, 2)
	current, _ := r.Current()
	assert.Equal(t, 1, current.Snapshot.Counts().Clients)
	assert.NotEqual(t, seen[0].Snapshot.ID(), seen[1].Snapshot.ID())
	assert.Equal(t, len(sampleFeed), seen[0].Bytes)
}

func TestResource_ParseErrorKeepsPrevious(t *testing.T) {
	calls := 0
	r := NewResource("test", func(p []byte) (string, error) {
		if string(p) == "bad" {
			return "", errors.New("bad payload")
		}
		return string(p), nil
	})
	require.NoError(t, r.Subscribe("count", func(string) { calls++ }))

	r.OnFetch([]byte("good"))
	r.OnFetch([]byte("bad"))

	v, ok := r.Current()
	assert.True(t, ok)
	assert.Equal(t, "good", v)
	assert.Equal(t, 1, calls)
}

func TestResource_Unsubscribe(t *testing.T) {
	r := NewStatusResource()
	calls := 0
	require.NoError(t, r.Subscribe("a", func(*models.Descriptor) { calls++ }))
	assert.ErrorIs(t, r.Subscribe("a", func(*models.Descriptor) {}), fetcher.ErrListenerExists)

	r.OnFetch([]byte("url0 = http://x\n"))
	require.NoError(t, r.Unsubscribe("a"))
	assert.ErrorIs(t, r.Unsubscribe("a"), fetcher.ErrListenerNotFound)
	r.OnFetch([]byte("url0 = http://y\n"))

	assert.Equal(t, 1, calls)
	d, _ := r.Current()
	assert.Equal(t, []string{"http://y"}, d.Values(KeyURL))
}

func TestParseStatus_RejectsEmptyDescriptor(t *testing.T) {
	_, err := ParseStatus([]byte("<html>error page</html>\n"))
	assert.Error(t, err)
}
