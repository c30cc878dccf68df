package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
)

const maxFeedSize = 10 << 20

// Recorder receives fetch observations. The metrics package implements it.
type Recorder interface {
	ObserveFetch(category string, ok bool, duration time.Duration)
	ObserveItems(category string, count int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveFetch(string, bool, time.Duration) {}
func (noopRecorder) ObserveItems(string, int)                 {}

// Fetcher reads every endpoint of a category and merges the results.
// Network and parse failures never surface as errors; the endpoint is
// skipped with a warning.
type Fetcher struct {
	registry       *Registry
	client         *http.Client
	parser         *Parser
	filterer       *Filterer
	tagger         *LanguageTagger
	recorder       Recorder
	userAgent      string
	requestTimeout time.Duration
	retries        uint64
	newBackOff     func() backoff.BackOff
}

type Option func(*Fetcher)

// WithRequestTimeout overrides the per-source timeout for every endpoint.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) { f.requestTimeout = timeout }
}

func WithRetries(retries uint64) Option {
	return func(f *Fetcher) { f.retries = retries }
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(f *Fetcher) { f.newBackOff = newBackOff }
}

func WithTagger(tagger *LanguageTagger) Option {
	return func(f *Fetcher) { f.tagger = tagger }
}

func WithRecorder(recorder Recorder) Option {
	return func(f *Fetcher) {
		if recorder != nil {
			f.recorder = recorder
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		if userAgent != "" {
			f.userAgent = userAgent
		}
	}
}

func WithParser(parser *Parser) Option {
	return func(f *Fetcher) { f.parser = parser }
}

func NewFetcher(registry *Registry, client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		registry:   registry,
		client:     client,
		parser:     NewParser(),
		filterer:   NewFilterer(),
		recorder:   noopRecorder{},
		userAgent:  DefaultUserAgent,
		retries:    2,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Fetch returns up to the source's limit of items, newest first.
func (f *Fetcher) Fetch(ctx context.Context, category string) []NewsItem {
	source, err := f.registry.GetSource(category)
	if err != nil {
		slog.Warn("Unknown category", "category", category)
		return nil
	}
	return f.fetch(ctx, source, source.Settings.Limit)
}

// FetchN is Fetch with an explicit limit.
func (f *Fetcher) FetchN(ctx context.Context, category string, limit int) []NewsItem {
	source, err := f.registry.GetSource(category)
	if err != nil {
		slog.Warn("Unknown category", "category", category)
		return nil
	}
	return f.fetch(ctx, source, limit)
}

func (f *Fetcher) fetch(ctx context.Context, source *Source, limit int) []NewsItem {
	var items []NewsItem

	for _, endpoint := range source.Endpoints {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		endpointItems, err := f.fetchEndpoint(ctx, source, endpoint)
		f.recorder.ObserveFetch(source.Category, err == nil, time.Since(start))
		if err != nil {
			slog.Warn("Failed to fetch feed", "category", source.Category, "endpoint", endpoint, "error", err)
			continue
		}
		if len(endpointItems) == 0 {
			slog.Warn("Feed returned no entries", "category", source.Category, "endpoint", endpoint)
			continue
		}

		slog.Debug("Feed fetched", "category", source.Category, "endpoint", endpoint, "items", len(endpointItems))
		items = append(items, endpointItems...)
	}

	items = f.filterer.Run(items, source)
	items = lo.UniqBy(items, func(item NewsItem) string { return item.ID })

	slices.SortStableFunc(items, func(a, b NewsItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	if f.tagger != nil {
		for i := range items {
			items[i] = f.tagger.Tag(items[i])
		}
	}

	f.recorder.ObserveItems(source.Category, len(items))
	return items
}

func (f *Fetcher) fetchEndpoint(ctx context.Context, source *Source, endpoint string) ([]NewsItem, error) {
	timeout := f.requestTimeout
	if timeout <= 0 {
		timeout = time.Duration(source.Settings.Timeout) * time.Second
	}

	operation := func() ([]byte, error) {
		return f.download(ctx, endpoint, timeout)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), f.retries), ctx)
	data, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		return nil, err
	}

	return f.parser.Run(data, source.Category)
}

func (f *Fetcher) download(ctx context.Context, endpoint string, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return nil, backoff.Permanent(ErrEmptyFeed)
	}

	return data, nil
}

var ErrEmptyFeed = errors.New("empty response body")

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}
