package download_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dashgrab/internal/download"
	"dashgrab/internal/fetch"
	"dashgrab/internal/logger"
	"dashgrab/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *fetch.Fetcher {
	return fetch.New(logger.Nop(), fetch.Options{Policy: fetch.Policy{Attempts: 3, Delay: time.Millisecond, Timeout: 2 * time.Second}})
}

// segmentOrigin serves init.mp4 and seg_<n>.m4s and counts requests per path.
type segmentOrigin struct {
	mu       sync.Mutex
	requests map[string]int
	status   map[string]int
}

func newSegmentOrigin() *segmentOrigin {
	return &segmentOrigin{requests: map[string]int{}, status: map[string]int{}}
}

func (o *segmentOrigin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/track/")
	o.mu.Lock()
	o.requests[name]++
	status := o.status[name]
	o.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if name == "init.mp4" {
		w.Write([]byte("INIT|"))
		return
	}
	var n int
	if _, err := fmt.Sscanf(name, "seg_%d.m4s", &n); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fmt.Fprintf(w, "SEG-%d|", n)
}

func (o *segmentOrigin) count(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requests[name]
}

func trackRequest(baseURL, path string, segments int, report download.Reporter) download.TrackRequest {
	return download.TrackRequest{
		Name:    "audio",
		BaseURL: baseURL + "/track/",
		Representation: models.Representation{
			ID:           "a128",
			MimeCategory: models.MimeAudio,
			Template: models.SegmentTemplate{
				Media:          "seg_$Number$.m4s",
				Initialization: "init.mp4",
				Duration:       4,
				Timescale:      1,
			},
		},
		DurationSeconds: float64(segments*4) - 1,
		Path:            path,
		Report:          report,
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSegmented_ConcatenatesInOrder(t *testing.T) {
	origin := newSegmentOrigin()
	server := httptest.NewServer(origin)
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "track.m4a")

	var fractions []float64
	report := func(e download.Event) {
		if e.Phase == download.PhaseSegment {
			fractions = append(fractions, e.Fraction)
		}
	}

	d := download.NewSegmented(newTestFetcher(), logger.Nop())
	require.NoError(t, d.Download(context.Background(), trackRequest(server.URL, path, 3, report)))

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "INIT|SEG-0|SEG-1|SEG-2|", string(first))
	assert.Equal(t, []float64{1.0 / 3, 2.0 / 3, 1}, fractions)
	assert.Equal(t, []string{"track.m4a"}, dirEntries(t, dir), "no lock or pending files remain")
	assert.Equal(t, 0, origin.count("seg_3.m4s"))

	// A second run against identical bytes produces an identical file.
	require.NoError(t, d.Download(context.Background(), trackRequest(server.URL, path, 3, nil)))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSegmented_ExhaustedSegmentAbortsAndCleansUp(t *testing.T) {
	origin := newSegmentOrigin()
	origin.status["seg_1.m4s"] = http.StatusInternalServerError
	server := httptest.NewServer(origin)
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "track.m4a")

	d := download.NewSegmented(newTestFetcher(), logger.Nop())
	err := d.Download(context.Background(), trackRequest(server.URL, path, 4, nil))
	require.Error(t, err)

	var segErr *download.SegmentError
	require.True(t, errors.As(err, &segErr))
	assert.Equal(t, 1, segErr.Segment.Index)
	assert.Equal(t, server.URL+"/track/seg_1.m4s", segErr.Segment.URL)
	assert.True(t, errors.Is(err, fetch.ErrExhausted))

	assert.NoFileExists(t, path)
	assert.Empty(t, dirEntries(t, dir))
	assert.Equal(t, 3, origin.count("seg_1.m4s"))
	assert.Equal(t, 0, origin.count("seg_2.m4s"))
	assert.Equal(t, 0, origin.count("seg_3.m4s"))
}

func TestSegmented_InitFailureRequestsNoSegments(t *testing.T) {
	origin := newSegmentOrigin()
	origin.status["init.mp4"] = http.StatusForbidden
	server := httptest.NewServer(origin)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "track.m4a")
	err := download.NewSegmented(newTestFetcher(), logger.Nop()).
		Download(context.Background(), trackRequest(server.URL, path, 2, nil))

	var segErr *download.SegmentError
	require.True(t, errors.As(err, &segErr))
	assert.True(t, segErr.Segment.IsInit)
	assert.Equal(t, 0, origin.count("seg_0.m4s"))
	assert.NoFileExists(t, path)
}

func TestSegmented_MissingLastSegmentCommits(t *testing.T) {
	origin := newSegmentOrigin()
	origin.status["seg_2.m4s"] = http.StatusNotFound
	server := httptest.NewServer(origin)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "track.m4a")
	err := download.NewSegmented(newTestFetcher(), logger.Nop()).
		Download(context.Background(), trackRequest(server.URL, path, 3, nil))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "INIT|SEG-0|SEG-1|", string(data))
}

func TestSegmented_MissingEarlierSegmentIsFatal(t *testing.T) {
	origin := newSegmentOrigin()
	origin.status["seg_1.m4s"] = http.StatusNotFound
	server := httptest.NewServer(origin)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "track.m4a")
	err := download.NewSegmented(newTestFetcher(), logger.Nop()).
		Download(context.Background(), trackRequest(server.URL, path, 3, nil))
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestSegmented_FailureLeavesExistingFileUntouched(t *testing.T) {
	origin := newSegmentOrigin()
	origin.status["seg_0.m4s"] = http.StatusBadGateway
	server := httptest.NewServer(origin)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "track.m4a")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := download.NewSegmented(newTestFetcher(), logger.Nop()).
		Download(context.Background(), trackRequest(server.URL, path, 2, nil))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestSegmented_ZeroDurationWritesInitOnly(t *testing.T) {
	origin := newSegmentOrigin()
	server := httptest.NewServer(origin)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "track.m4a")
	req := trackRequest(server.URL, path, 1, nil)
	req.DurationSeconds = 0
	require.NoError(t, download.NewSegmented(newTestFetcher(), logger.Nop()).Download(context.Background(), req))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "INIT|", string(data))
}

func TestTarget_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")

	first, err := download.OpenTarget(path)
	require.NoError(t, err)

	_, err = download.OpenTarget(path)
	assert.True(t, errors.Is(err, download.ErrTargetBusy))

	_, err = first.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, first.Discard())
	assert.NoFileExists(t, path)

	second, err := download.OpenTarget(path)
	require.NoError(t, err)
	_, err = second.Write([]byte("fresh"))
	require.NoError(t, err)
	require.NoError(t, second.Commit())
	assert.NoError(t, second.Discard(), "discard after commit is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestDirect_ReportsFractionOfContentLength(t *testing.T) {
	body := strings.Repeat("x", 100*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Write([]byte(body))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "episode.mp4")
	var events []download.Event
	report := func(e download.Event) { events = append(events, e) }

	err := download.NewDirect(newTestFetcher(), logger.Nop()).
		Download(context.Background(), server.URL+"/file.mp4", path, "episode", report)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	require.NotEmpty(t, events)
	last := 0.0
	for _, e := range events {
		if e.Phase != download.PhaseTransfer {
			continue
		}
		assert.False(t, e.Indeterminate)
		assert.GreaterOrEqual(t, e.Fraction, last)
		last = e.Fraction
	}
	assert.Equal(t, 1.0, last)
	assert.Equal(t, download.PhaseDone, events[len(events)-1].Phase)
}

func TestDirect_UnknownLengthIsIndeterminate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("part-one|"))
		w.(http.Flusher).Flush()
		w.Write([]byte("part-two"))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "episode.mp3")
	var transfer []download.Event
	report := func(e download.Event) {
		if e.Phase == download.PhaseTransfer {
			transfer = append(transfer, e)
		}
	}

	err := download.NewDirect(newTestFetcher(), logger.Nop()).
		Download(context.Background(), server.URL, path, "episode", report)
	require.NoError(t, err)

	require.NotEmpty(t, transfer)
	for _, e := range transfer {
		assert.True(t, e.Indeterminate)
	}
	assert.Equal(t, int64(len("part-one|part-two")), transfer[len(transfer)-1].Bytes)
}

func TestDirect_RetryRestartsFromZero(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		w.Header().Set("Content-Length", "10")
		if n == 1 {
			w.Write([]byte("broken"))
			return
		}
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "episode.mp4")
	var retries int
	report := func(e download.Event) {
		if e.Phase == download.PhaseRetry {
			retries++
		}
	}

	err := download.NewDirect(newTestFetcher(), logger.Nop()).
		Download(context.Background(), server.URL, path, "episode", report)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.Equal(t, 1, retries)
}

func TestDirect_FailureRemovesPartialFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "episode.mp4")
	err := download.NewDirect(newTestFetcher(), logger.Nop()).
		Download(context.Background(), server.URL, path, "episode", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrExhausted))
	assert.Empty(t, dirEntries(t, dir))
}

// removePending deletes every pending file in dir, leaving lock files alone.
func removePending(t *testing.T, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Error(err)
		return
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".lock") {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

func TestDirect_LogsPendingFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		removePending(t, dir)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var logs strings.Builder
	log := logger.NewWithWriter("warn", &logs)
	fetcher := fetch.New(logger.Nop(), fetch.Options{Policy: fetch.Policy{Attempts: 1, Timeout: time.Second}})
	path := filepath.Join(dir, "Title.mp4")

	err := download.NewDirect(fetcher, log).Download(context.Background(), server.URL+"/720.mp4", path, "720p", nil)
	require.Error(t, err)
	assert.NoFileExists(t, path)
	assert.Contains(t, logs.String(), "Failed to remove pending file for "+path)
}

func TestSegmented_LogsPendingFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	origin := newSegmentOrigin()
	origin.status["seg_1.m4s"] = http.StatusServiceUnavailable
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "seg_1.m4s") {
			removePending(t, dir)
		}
		origin.ServeHTTP(w, r)
	}))
	defer server.Close()

	var logs strings.Builder
	log := logger.NewWithWriter("warn", &logs)
	path := filepath.Join(dir, "Title.m4a")

	err := download.NewSegmented(newTestFetcher(), log).Download(context.Background(), trackRequest(server.URL, path, 3, nil))
	require.Error(t, err)
	assert.NoFileExists(t, path)
	assert.Contains(t, logs.String(), "Failed to remove pending file for "+path)
}
