package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"PivotScreener/internal/calculator"
	"PivotScreener/internal/collector"
	"PivotScreener/internal/config"
	"PivotScreener/internal/metrics"
	"PivotScreener/internal/recorder"
	"PivotScreener/internal/scanner"
	"PivotScreener/internal/strategy"
	"PivotScreener/internal/universe"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	resolver *universe.Resolver
	fetcher  collector.Fetcher
	scanner  *scanner.Scanner
	metrics  *metrics.Recorder
	history  *recorder.SQLiteRecorder
	recorder recorder.Recorder
}

func newResolver(cfg *config.Config) *universe.Resolver {
	return universe.NewResolver(universe.Options{
		URL:          cfg.Universe.URL,
		CachePath:    cfg.Universe.CachePath,
		TTL:          cfg.CacheTTL(),
		FetchTimeout: cfg.UniverseFetchTimeout(),
		Suffix:       cfg.Universe.ExchangeSuffix,
		UserAgent:    cfg.Universe.UserAgent,
		MarkerColumn: cfg.Universe.MarkerColumn,
	}, nil)
}

func newFetcher(cfg *config.Config, mock bool) collector.Fetcher {
	if mock {
		return &collector.MockFetcher{}
	}
	opts := collector.Options{
		BaseURL:           cfg.DataSource.BaseURL,
		APIKey:            cfg.DataSource.APIKey,
		Period:            cfg.DataSource.Period,
		Interval:          cfg.DataSource.Interval,
		Location:          cfg.Location(),
		Timeout:           cfg.FetchTimeout(),
		RequestsPerSecond: cfg.DataSource.RequestsPerSecond,
		Workers:           cfg.DataSource.Workers,
		Proxy:             cfg.DataSource.Proxy,
	}
	if cfg.DataSource.BaseURL != "" {
		return collector.NewRESTFetcher(opts)
	}
	opts.BaseURL = cfg.DataSource.YahooBaseURL
	return collector.NewYahooFetcher(opts)
}

// newRecorder always writes the JSON report and adds SQLite history and Redis publishing
// when configured. Optional backends that fail to open are skipped with a warning.
func newRecorder(ctx context.Context, cfg *config.Config) (recorder.Recorder, *recorder.SQLiteRecorder) {
	recs := recorder.MultiRecorder{recorder.NewJSONRecorder(cfg.Output.ReportPath)}

	var history *recorder.SQLiteRecorder
	if cfg.Output.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Output.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Output.SQLitePath).Msg("sqlite history disabled")
		} else {
			history = sr
			recs = append(recs, sr)
		}
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis publishing disabled")
			_ = client.Close()
		} else {
			recs = append(recs, recorder.NewRedisRecorder(client, cfg.Redis.Prefix, cfg.RedisTTL()))
		}
	}
	return recs, history
}

func newApp(ctx context.Context, cfg *config.Config, mock bool) (*app, error) {
	evaluator, err := strategy.NewEvaluator(cfg.ToStrategyConfig(), calculator.CalculateEMA)
	if err != nil {
		return nil, fmt.Errorf("strategy config: %w", err)
	}

	a := &app{
		cfg:      cfg,
		resolver: newResolver(cfg),
		fetcher:  newFetcher(cfg, mock),
		metrics:  metrics.New(),
	}
	a.recorder, a.history = newRecorder(ctx, cfg)

	loc := cfg.Location()
	a.scanner = scanner.New(a.resolver, a.fetcher, evaluator, a.recorder, scanner.Options{
		BulkTimeout: cfg.BulkTimeout(),
		Suffix:      cfg.Universe.ExchangeSuffix,
		Now:         func() time.Time { return time.Now().In(loc) },
		Metrics:     a.metrics,
	})
	log.Info().
		Str("data_source", a.fetcher.Name()).
		Str("report", cfg.Output.ReportPath).
		Bool("history", a.history != nil).
		Msg("screener wired")
	return a, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Warn().Err(err).Msg("close recorders")
	}
}
