package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects every payload it is notified with
type recorder struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *recorder) OnFetch(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func gzipBytes(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newServer(t *testing.T, status int, body []byte) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetcher_RunNotifiesListeners(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, []byte("hello"))
	f := New(Config{Name: "test", URL: srv.URL, Period: time.Minute, Timeout: time.Second})

	var order []string
	require.NoError(t, f.Subscribe("a", ListenerFunc(func(p []byte) { order = append(order, "a:"+string(p)) })))
	require.NoError(t, f.Subscribe("b", ListenerFunc(func(p []byte) { order = append(order, "b:"+string(p)) })))

	require.NoError(t, f.Run(context.Background()))

	assert.Equal(t, []string{"a:hello", "b:hello"}, order)
	assert.Equal(t, []byte("hello"), f.Resource())
	stats := f.Stats()
	assert.Equal(t, uint64(1), stats.Attempts)
	assert.Equal(t, uint64(1), stats.Successes)
	assert.False(t, stats.LastSuccess.IsZero())
}

func TestFetcher_Gzipped(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, gzipBytes(t, "!GENERAL\nVERSION = 8\n"))
	f := New(Config{URL: srv.URL, Period: time.Minute, Gzipped: true})
	rec := &recorder{}
	require.NoError(t, f.Subscribe("rec", rec))

	require.NoError(t, f.Run(context.Background()))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, "!GENERAL\nVERSION = 8\n", string(rec.payloads[0]))
}

func TestFetcher_FailuresKeepResource(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    []byte
		gzipped bool
		wantErr error
	}{
		{name: "non-2xx status", status: http.StatusServiceUnavailable, body: []byte("down"), wantErr: ErrFetch},
		{name: "corrupt gzip", status: http.StatusOK, body: []byte("not gzip"), gzipped: true, wantErr: ErrDecompress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fail atomic.Bool
			good := []byte("good")
			if tt.gzipped {
				good = gzipBytes(t, "good")
			}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if fail.Load() {
					w.WriteHeader(tt.status)
					_, _ = w.Write(tt.body)
					return
				}
				_, _ = w.Write(good)
			}))
			defer srv.Close()

			now := time.Now()
			f := New(Config{URL: srv.URL, Period: time.Minute, Gzipped: tt.gzipped, Now: func() time.Time { return now }})
			rec := &recorder{}
			require.NoError(t, f.Subscribe("rec", rec))

			require.NoError(t, f.Run(context.Background()))
			require.Equal(t, 1, rec.count())

			fail.Store(true)
			now = now.Add(2 * time.Minute)
			err := f.Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, "good", string(f.Resource()))
			assert.Equal(t, 1, rec.count())
			assert.Equal(t, uint64(1), f.Stats().Failures)
			assert.NotEmpty(t, f.Stats().LastError)
		})
	}
}

func TestFetcher_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := New(Config{URL: url, Period: time.Minute, Timeout: 200 * time.Millisecond})
	err := f.Run(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
	assert.Nil(t, f.Resource())
}

func TestFetcher_SkipsUntilPeriodElapsed(t *testing.T) {
	srv, hits := newServer(t, http.StatusOK, []byte("x"))
	now := time.Now()
	f := New(Config{URL: srv.URL, Period: time.Minute, Now: func() time.Time { return now }})

	require.NoError(t, f.Run(context.Background()))
	now = now.Add(10 * time.Second)
	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(time.Minute)
	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcher_Unsubscribe(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, []byte("x"))
	now := time.Now()
	f := New(Config{URL: srv.URL, Period: time.Second, Now: func() time.Time { return now }})
	rec := &recorder{}

	require.NoError(t, f.Subscribe("rec", rec))
	assert.ErrorIs(t, f.Subscribe("rec", rec), ErrListenerExists)

	require.NoError(t, f.Run(context.Background()))
	require.NoError(t, f.Unsubscribe("rec"))
	assert.ErrorIs(t, f.Unsubscribe("rec"), ErrListenerNotFound)

	now = now.Add(time.Hour)
	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, 1, rec.count())
}

func TestFetcher_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whazzup.txt")
	require.NoError(t, os.WriteFile(path, []byte("!CLIENTS\n"), 0o644))

	f := New(Config{URL: "file://" + path, Period: time.Minute})
	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, "!CLIENTS\n", string(f.Resource()))

	missing := New(Config{URL: "file://" + filepath.Join(t.TempDir(), "nope"), Period: time.Minute})
	assert.ErrorIs(t, missing.Run(context.Background()), ErrFetch)
}

func TestFetcher_StartFetchesImmediately(t *testing.T) {
	srv, hits := newServer(t, http.StatusOK, []byte("x"))
	f := New(Config{URL: srv.URL, Period: time.Hour})
	rec := &recorder{}
	require.NoError(t, f.Subscribe("rec", rec))

	f.Start()
	defer f.Stop()

	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcher_NoActivityAfterStop(t *testing.T) {
	srv, hits := newServer(t, http.StatusOK, []byte("x"))
	f := New(Config{URL: srv.URL, Period: 20 * time.Millisecond})
	rec := &recorder{}
	require.NoError(t, f.Subscribe("rec", rec))

	f.Start()
	assert.Eventually(t, func() bool { return rec.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	f.Stop()

	fetches, notifications := hits.Load(), rec.count()
	time.Sleep(5 * 20 * time.Millisecond)

	assert.Equal(t, fetches, hits.Load())
	assert.Equal(t, notifications, rec.count())
}

func TestFetcher_StopIsIdempotent(t *testing.T) {
	f := New(Config{URL: "http://127.0.0.1:0", Period: time.Second})

	f.Stop()
	f.Stop()
	f.Start()
	f.Stop()

	assert.Equal(t, uint64(0), f.Stats().Attempts)
}

func TestFetcher_CancelFromListener(t *testing.T) {
	srv, hits := newServer(t, http.StatusOK, []byte("x"))
	f := New(Config{URL: srv.URL, Period: 10 * time.Millisecond})

	cancelled := make(chan struct{})
	require.NoError(t, f.Subscribe("canceller", ListenerFunc(func([]byte) {
		f.Cancel()
		close(cancelled)
	})))

	f.Start()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not notified")
	}

	f.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcher_StopWaitsForListener(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, []byte("x"))
	f := New(Config{URL: srv.URL, Period: time.Hour})

	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, f.Subscribe("slow", ListenerFunc(func([]byte) {
		close(entered)
		<-release
		finished.Store(true)
	})))

	f.Start()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not notified")
	}

	stopped := make(chan struct{})
	go func() {
		f.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a listener was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.True(t, finished.Load())
}

func TestFetcher_Due(t *testing.T) {
	f := New(Config{URL: "http://127.0.0.1:0", Period: time.Minute})
	last := time.Now()

	assert.True(t, f.due(time.Time{}, last))
	assert.False(t, f.due(last, last.Add(53*time.Second)))
	// a tick landing just short of the period still fetches
	assert.True(t, f.due(last, last.Add(54*time.Second)))
	assert.True(t, f.due(last, last.Add(time.Minute)))
}
