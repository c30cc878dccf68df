package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type testEntry struct {
	guid  string
	title string
	date  string
}

func rssFeed(entries ...testEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title>`)
	for _, e := range entries {
		fmt.Fprintf(&b, `<item><title>%s</title><link>https://example.com/%s</link><guid>%s</guid><description>About %s</description><pubDate>%s</pubDate></item>`,
			e.title, e.guid, e.guid, e.title, e.date)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func testFetcher(t *testing.T, sources []Source, opts ...Option) *Fetcher {
	t.Helper()
	registry, err := NewRegistryFromSources(sources)
	if err != nil {
		t.Fatal(err)
	}
	defaults := []Option{
		WithRetries(0),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}
	return NewFetcher(registry, NewHTTPClient(5*time.Second, true), append(defaults, opts...)...)
}

func TestFetcher_TimedOutEndpointIsSkipped(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	valid := feedServer(t, rssFeed(
		testEntry{"older", "Linux 6.11 released", "Mon, 03 Jul 2023 10:00:00 GMT"},
		testEntry{"newer", "Linux 6.12 released", "Mon, 03 Jul 2023 11:00:00 GMT"},
	))

	fetcher := testFetcher(t, []Source{
		{Category: "linux", Endpoints: []string{slow.URL, valid.URL}},
	}, WithRequestTimeout(100*time.Millisecond))

	items := fetcher.Fetch(context.Background(), "linux")

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID != "newer" || items[1].ID != "older" {
		t.Errorf("Expected newest first, got %s then %s", items[0].ID, items[1].ID)
	}
}

func TestFetcher_DedupFirstSeenWins(t *testing.T) {
	first := feedServer(t, rssFeed(
		testEntry{"shared", "From first endpoint", "Mon, 03 Jul 2023 10:00:00 GMT"},
	))
	second := feedServer(t, rssFeed(
		testEntry{"shared", "From second endpoint", "Mon, 03 Jul 2023 12:00:00 GMT"},
		testEntry{"unique", "Only in second", "Mon, 03 Jul 2023 09:00:00 GMT"},
	))

	fetcher := testFetcher(t, []Source{
		{Category: "linux", Endpoints: []string{first.URL, second.URL}},
	})

	items := fetcher.Fetch(context.Background(), "linux")

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Title != "From first endpoint" {
		t.Errorf("Expected first occurrence to win, got '%s'", items[0].Title)
	}
	if items[1].ID != "unique" {
		t.Errorf("Expected 'unique' second, got '%s'", items[1].ID)
	}
}

func TestFetcher_SortsNewestFirstAndLimits(t *testing.T) {
	server := feedServer(t, rssFeed(
		testEntry{"a", "A", "Mon, 03 Jul 2023 08:00:00 GMT"},
		testEntry{"e", "E", "Mon, 03 Jul 2023 12:00:00 GMT"},
		testEntry{"c", "C", "Mon, 03 Jul 2023 10:00:00 GMT"},
		testEntry{"b", "B", "Mon, 03 Jul 2023 09:00:00 GMT"},
		testEntry{"d", "D", "Mon, 03 Jul 2023 11:00:00 GMT"},
	))

	fetcher := testFetcher(t, []Source{
		{Category: "windows", Endpoints: []string{server.URL}},
	})

	items := fetcher.Fetch(context.Background(), "windows")

	if len(items) != DefaultLimit {
		t.Fatalf("Expected %d items, got %d", DefaultLimit, len(items))
	}
	var ids []string
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	if got := strings.Join(ids, ","); got != "e,d,c" {
		t.Errorf("Expected 'e,d,c', got '%s'", got)
	}

	one := fetcher.FetchN(context.Background(), "windows", 1)
	if len(one) != 1 || one[0].ID != "e" {
		t.Errorf("Expected only the newest item, got %+v", one)
	}
}

func TestFetcher_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	body := rssFeed(testEntry{"x", "X", "Mon, 03 Jul 2023 10:00:00 GMT"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	fetcher := testFetcher(t, []Source{
		{Category: "linux", Endpoints: []string{server.URL}},
	}, WithRetries(2))

	items := fetcher.Fetch(context.Background(), "linux")

	if len(items) != 1 {
		t.Fatalf("Expected 1 item after retry, got %d", len(items))
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestFetcher_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := testFetcher(t, []Source{
		{Category: "linux", Endpoints: []string{server.URL}},
	}, WithRetries(3))

	items := fetcher.Fetch(context.Background(), "linux")

	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestFetcher_MalformedAndEmptyEndpointsAreSkipped(t *testing.T) {
	malformed := feedServer(t, "<html>not a feed</html>")
	empty := feedServer(t, "")
	valid := feedServer(t, rssFeed(testEntry{"ok", "OK", "Mon, 03 Jul 2023 10:00:00 GMT"}))

	fetcher := testFetcher(t, []Source{
		{Category: "linux", Endpoints: []string{malformed.URL, empty.URL, valid.URL}},
	})

	items := fetcher.Fetch(context.Background(), "linux")

	if len(items) != 1 || items[0].ID != "ok" {
		t.Errorf("Expected only the valid endpoint's item, got %+v", items)
	}
}

func TestFetcher_AppliesCategoryFilters(t *testing.T) {
	server := feedServer(t, rssFeed(
		testEntry{"1", "Windows 11 update", "Mon, 03 Jul 2023 10:00:00 GMT"},
		testEntry{"2", "Best phones of the year", "Mon, 03 Jul 2023 11:00:00 GMT"},
	))

	fetcher := testFetcher(t, []Source{
		{
			Category:  "windows",
			Endpoints: []string{server.URL},
			Filters:   []SourceFilter{{Field: "title", Includes: []string{"windows", "microsoft"}}},
		},
	})

	items := fetcher.Fetch(context.Background(), "windows")

	if len(items) != 1 || items[0].ID != "1" {
		t.Errorf("Expected only the Windows item, got %+v", items)
	}
}

func TestFetcher_SendsUserAgent(t *testing.T) {
	var userAgent string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		userAgent = r.Header.Get("User-Agent")
		mu.Unlock()
		fmt.Fprint(w, rssFeed(testEntry{"1", "One", "Mon, 03 Jul 2023 10:00:00 GMT"}))
	}))
	defer server.Close()

	fetcher := testFetcher(t, []Source{
		{Category: "linux", Endpoints: []string{server.URL}},
	}, WithUserAgent("relay-test/1.0"))

	fetcher.Fetch(context.Background(), "linux")

	mu.Lock()
	defer mu.Unlock()
	if userAgent != "relay-test/1.0" {
		t.Errorf("Expected User-Agent 'relay-test/1.0', got '%s'", userAgent)
	}
}

func TestFetcher_UnknownCategory(t *testing.T) {
	fetcher := testFetcher(t, DefaultSources())

	if items := fetcher.Fetch(context.Background(), "android"); items != nil {
		t.Errorf("Expected nil for unknown category, got %+v", items)
	}
}

type recordingRecorder struct {
	mu       sync.Mutex
	fetches  map[bool]int
	lastSize int
}

func (r *recordingRecorder) ObserveFetch(category string, ok bool, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches[ok]++
}

func (r *recordingRecorder) ObserveItems(category string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSize = count
}

func TestFetcher_ReportsToRecorder(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer broken.Close()
	valid := feedServer(t, rssFeed(testEntry{"1", "One", "Mon, 03 Jul 2023 10:00:00 GMT"}))

	recorder := &recordingRecorder{fetches: map[bool]int{}}
	fetcher := testFetcher(t, []Source{
		{Category: "linux", Endpoints: []string{broken.URL, valid.URL}},
	}, WithRecorder(recorder))

	fetcher.Fetch(context.Background(), "linux")

	if recorder.fetches[true] != 1 || recorder.fetches[false] != 1 {
		t.Errorf("Expected one success and one failure, got %v", recorder.fetches)
	}
	if recorder.lastSize != 1 {
		t.Errorf("Expected 1 item observed, got %d", recorder.lastSize)
	}
}

func TestNewHTTPClient_BlocksLoopbackByDefault(t *testing.T) {
	server := feedServer(t, rssFeed(testEntry{"1", "One", "Mon, 03 Jul 2023 10:00:00 GMT"}))

	client := NewHTTPClient(time.Second, false)
	resp, err := client.Get(server.URL)
	if err == nil {
		resp.Body.Close()
		t.Error("Expected loopback request to be refused")
	}
}
