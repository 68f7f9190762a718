package universe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"PivotScreener/internal/fileutil"
	"PivotScreener/internal/model"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; PivotScreener/1.0)"

// Options configures the resolver tiers.
type Options struct {
	URL          string
	CachePath    string
	TTL          time.Duration
	FetchTimeout time.Duration
	Suffix       string
	UserAgent    string
	MarkerColumn string
	// Now is the clock used for cache age. Defaults to time.Now.
	Now func() time.Time
}

// Resolver produces the ticker universe from fresh cache, remote list, stale cache or the
// embedded fallback, in that order.
type Resolver struct {
	opts   Options
	client *http.Client
}

// NewResolver fills defaults. A nil client gets one bounded by FetchTimeout.
func NewResolver(opts Options, client *http.Client) *Resolver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MarkerColumn == "" {
		opts.MarkerColumn = "Symbol"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: opts.FetchTimeout}
	}
	return &Resolver{opts: opts, client: client}
}

// Resolve never returns an empty universe.
func (r *Resolver) Resolve(ctx context.Context) model.TickerUniverse {
	if u, ok := r.freshCache(); ok {
		return u
	}

	symbols, err := r.fetchRemote(ctx)
	if err == nil {
		return model.TickerUniverse{Symbols: symbols, FetchedAt: r.opts.Now(), Provenance: model.ProvenanceRemote}
	}
	log.Warn().Err(err).Str("url", r.opts.URL).Msg("ticker list fetch failed")

	if u, ok := r.staleCache(); ok {
		return u
	}

	log.Warn().Msg("no usable ticker cache, using embedded fallback")
	return model.TickerUniverse{
		Symbols:    Fallback(r.opts.Suffix),
		FetchedAt:  r.opts.Now(),
		Provenance: model.ProvenanceFallback,
	}
}

func (r *Resolver) freshCache() (model.TickerUniverse, bool) {
	if r.opts.CachePath == "" || r.opts.TTL <= 0 {
		return model.TickerUniverse{}, false
	}
	info, err := os.Stat(r.opts.CachePath)
	if err != nil {
		return model.TickerUniverse{}, false
	}
	if r.opts.Now().Sub(info.ModTime()) >= r.opts.TTL {
		return model.TickerUniverse{}, false
	}
	symbols, err := r.readCache()
	if err != nil {
		log.Debug().Err(err).Str("path", r.opts.CachePath).Msg("fresh cache unreadable")
		return model.TickerUniverse{}, false
	}
	return model.TickerUniverse{Symbols: symbols, FetchedAt: info.ModTime(), Provenance: model.ProvenanceFreshCache}, true
}

func (r *Resolver) staleCache() (model.TickerUniverse, bool) {
	if r.opts.CachePath == "" {
		return model.TickerUniverse{}, false
	}
	info, err := os.Stat(r.opts.CachePath)
	if err != nil {
		return model.TickerUniverse{}, false
	}
	symbols, err := r.readCache()
	if err != nil {
		log.Warn().Err(err).Str("path", r.opts.CachePath).Msg("stale cache unreadable")
		return model.TickerUniverse{}, false
	}
	return model.TickerUniverse{Symbols: symbols, FetchedAt: info.ModTime(), Provenance: model.ProvenanceStaleCache}, true
}

func (r *Resolver) readCache() ([]string, error) {
	f, err := os.Open(r.opts.CachePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSymbols(f, r.opts.MarkerColumn, r.opts.Suffix)
}

func (r *Resolver) fetchRemote(ctx context.Context) ([]string, error) {
	if r.opts.URL == "" {
		return nil, fmt.Errorf("no ticker list url configured")
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticker list fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ticker list read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ticker list: status %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte(r.opts.MarkerColumn)) {
		return nil, ErrMarkerMissing
	}
	symbols, err := ParseSymbols(bytes.NewReader(body), r.opts.MarkerColumn, r.opts.Suffix)
	if err != nil {
		return nil, err
	}

	if r.opts.CachePath != "" {
		if err := fileutil.WriteAtomic(r.opts.CachePath, body); err != nil {
			log.Warn().Err(err).Str("path", r.opts.CachePath).Msg("ticker cache write failed")
		}
	}
	log.Info().Int("tickers", len(symbols)).Msg("ticker list fetched")
	return symbols, nil
}
