package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"PivotScreener/internal/model"
	"PivotScreener/internal/notifier"
)

// ErrScanInProgress is returned when a scan is requested while one is running.
var ErrScanInProgress = errors.New("scan already in progress")

// ScanRunner is the part of the scanner the scheduler drives.
type ScanRunner interface {
	Run(ctx context.Context) (*model.ScanResult, error)
	Latest() *model.ScanResult
	LastRun() *model.ScanResult
}

// Sender delivers notifications.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the daily scan on a cron schedule and on demand.
type Scheduler struct {
	Cron    *cron.Cron
	Scanner ScanRunner
	// Notifier is optional.
	Notifier   Sender
	Ctx        context.Context
	RunTimeout time.Duration
	// Exchange prefixes chart links, e.g. "NSE".
	Exchange string

	running atomic.Bool
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in loc.
func NewScheduler(ctx context.Context, scanner ScanRunner, sender Sender, loc *time.Location, runTimeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		Scanner:    scanner,
		Notifier:   sender,
		Ctx:        ctx,
		RunTimeout: runTimeout,
		Exchange:   "NSE",
	}
}

// Register adds the scan job.
func (s *Scheduler) Register(scanCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes one scan synchronously and notifies the result.
func (s *Scheduler) RunNow() (*model.ScanResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer s.running.Store(false)

	ctx := s.Ctx
	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
		defer cancel()
	}
	res, err := s.Scanner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scan aborted")
		s.trySend(fmt.Sprintf("❌ Scan aborted: %v", err))
		return nil, err
	}
	s.trySend(notifier.FormatScanReport(res, s.Exchange))
	return res, nil
}

// Trigger starts a scan in the background. It reports false when one is already running.
func (s *Scheduler) Trigger() bool {
	if s.running.Load() {
		return false
	}
	go func() {
		if _, err := s.RunNow(); errors.Is(err, ErrScanInProgress) {
			log.Debug().Msg("triggered scan skipped, another one started first")
		}
	}()
	return true
}

// Running reports whether a scan is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

func (s *Scheduler) scanTask() {
	log.Info().Msg("running scheduled scan")
	if _, err := s.RunNow(); errors.Is(err, ErrScanInProgress) {
		log.Warn().Msg("scheduled scan skipped, previous scan still running")
	}
}

// HandleCommand processes a bot command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.HelpText()
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/scan":
		if !s.Trigger() {
			return "⏳ A scan is already running."
		}
		return "🔎 Scan started, results will follow."
	case "/report":
		return notifier.FormatScanReport(s.Scanner.Latest(), s.Exchange)
	case "/diag":
		return notifier.FormatDiagnostics(s.Scanner.LastRun())
	default:
		return notifier.HelpText()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

// cronLogger routes cron's own logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
