package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"PivotScreener/internal/api"
	"PivotScreener/internal/config"
	"PivotScreener/internal/logging"
	"PivotScreener/internal/model"
	"PivotScreener/internal/notifier"
	"PivotScreener/internal/recorder"
	"PivotScreener/internal/scheduler"
)

var (
	cfgPath string
	cfg     *config.Config
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("screener failed")
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "screener",
		Short:         "Daily CPR and Camarilla pivot screener for NSE equities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			if !cmd.Flags().Changed("config") {
				if v := os.Getenv("CONFIG_PATH"); v != "" {
					cfgPath = v
				}
			}
			c, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := logging.Setup(c.Log.Level, c.Log.Format, os.Stderr); err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			cfg = c
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "configs/config.yaml", "path to the YAML config file")

	root.AddCommand(scanCmd(), serveCmd(), universeCmd())
	return root
}

func scanCmd() *cobra.Command {
	var asJSON, mock bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan, write the report and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, mock)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout())
			defer cancel()
			res, err := a.scanner.Run(ctx)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Report)
			}
			printSummary(cmd, res)
			if res.Status != model.ScanStatusOK {
				return fmt.Errorf("data source unavailable: %s", res.Diagnostics.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report JSON instead of a summary")
	cmd.Flags().BoolVar(&mock, "mock", false, "use generated bars instead of a live data source")
	return cmd
}

func printSummary(cmd *cobra.Command, res *model.ScanResult) {
	out := cmd.OutOrStdout()
	rep := res.Report
	fmt.Fprintf(out, "Scan %s at %s: %s\n", rep.RunID, rep.LastUpdated, res.Status)
	fmt.Fprintf(out, "Universe: %d tickers (%s)\n", res.Diagnostics.Universe, res.Diagnostics.Provenance)
	fmt.Fprintf(out, "Outcomes: %s\n", res.Diagnostics.String())
	for _, tag := range []model.StrategyTag{model.TagDojiSetup, model.TagInsideCamarilla} {
		matches := rep.Filter(tag)
		tickers := make([]string, 0, len(matches))
		for _, m := range matches {
			tickers = append(tickers, m.Ticker)
		}
		sort.Strings(tickers)
		fmt.Fprintf(out, "%s (%d): %v\n", tag, len(tickers), tickers)
	}
}

func serveCmd() *cobra.Command {
	var mock, runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled scans and serve the report API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, mock)
			if err != nil {
				return err
			}
			defer a.Close()

			if rep, err := recorder.LoadReport(cfg.Output.ReportPath); err == nil {
				if err := a.scanner.Seed(rep); err != nil {
					log.Warn().Err(err).Msg("ignore previous report")
				} else {
					log.Info().Str("last_updated", rep.LastUpdated).Msg("serving previous report until the next scan")
				}
			} else if !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("path", cfg.Output.ReportPath).Msg("load previous report")
			}

			var (
				sender scheduler.Sender
				tn     *notifier.TelegramNotifier
			)
			if cfg.Telegram.BotToken != "" {
				tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.DataSource.Proxy)
				sender = tn
			}

			sched := scheduler.NewScheduler(ctx, a.scanner, sender, cfg.Location(), cfg.RunTimeout())
			if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if runOnStart || os.Getenv("RUN_ON_START") == "true" {
				log.Info().Msg("running initial scan")
				sched.Trigger()
			}

			var history api.HistoryStore
			if a.history != nil {
				history = a.history
			}
			srv := api.NewServer(a.scanner, sched, history, a.metrics.Handler())

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx, cfg.HTTP.Addr) })
			if tn != nil {
				g.Go(func() error {
					tn.StartPolling(gctx, sched.HandleCommand)
					return nil
				})
				log.Info().Msg("telegram polling started")
			}
			log.Info().Str("cron", cfg.Schedule.ScanCron).Msg("screener running, press Ctrl+C to stop")

			err = g.Wait()
			log.Info().Msg("shutdown signal received, stopping")
			return err
		},
	}
	cmd.Flags().BoolVar(&mock, "mock", false, "use generated bars instead of a live data source")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "trigger a scan immediately")
	return cmd
}

func universeCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "universe",
		Short: "Resolve the ticker universe and report where it came from",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := newResolver(cfg).Resolve(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d tickers from %s\n", len(u.Symbols), u.Provenance)
			if list {
				for _, s := range u.Symbols {
					fmt.Fprintln(out, s)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print every symbol")
	return cmd
}
