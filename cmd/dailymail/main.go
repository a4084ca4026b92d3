// Command dailymail sends the daily digest to every subscriber, once or on a
// cron schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"newsdigest/config"
	"newsdigest/database"
	"newsdigest/job"
	"newsdigest/logger"
	"newsdigest/mailer"
	"newsdigest/market"
	"newsdigest/news"
	"newsdigest/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("NEWSDIGEST_CONFIG"), "path to the YAML config file")
	schedule := flag.String("schedule", "", `cron expression to keep running, e.g. "0 7 * * *"; empty runs once`)
	flag.Parse()

	if err := run(*configPath, *schedule); err != nil {
		fmt.Fprintln(os.Stderr, "dailymail:", err)
		os.Exit(1)
	}
}

func run(configPath, schedule string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if schedule == "" {
		schedule = cfg.Job.Schedule
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close(db)

	renderer, err := mailer.NewRenderer(log)
	if err != nil {
		return err
	}
	transport, err := mailer.NewTransport(cfg.Mail, log)
	if err != nil {
		return err
	}

	var primary market.Primary
	if cfg.Market.AlphaVantageKey != "" {
		primary = market.NewAlphaVantage(cfg.Market)
	} else {
		log.Warn("no alphavantage key configured, using secondary and synthetic market data")
	}
	fetcher := market.NewFetcher(cfg.Market, primary, market.NewYahoo(cfg.Market), log,
		market.WithQuoteCache(store.NewQuoteCache(db)))

	runner := job.NewRunner(
		store.NewSubscribers(db),
		fetcher,
		news.New(cfg.News, log),
		renderer,
		transport,
		cfg.Server.BaseURL,
		cfg.Job.Workers,
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if schedule == "" {
		return runOnce(ctx, runner, log)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { _ = runOnce(ctx, runner, log) }); err != nil {
		return errors.Wrapf(err, "invalid schedule %q", schedule)
	}
	c.Start()
	log.Info("scheduler started", "schedule", schedule)

	<-ctx.Done()
	log.Info("stopping scheduler")
	<-c.Stop().Done()
	return nil
}

// runOnce executes one run and logs its report. Partial runs are not an
// error; only a run that could not start is.
func runOnce(ctx context.Context, runner *job.Runner, log *slog.Logger) error {
	report, err := runner.Run(ctx)
	if err != nil {
		log.Error("daily run failed", "error", err)
		return err
	}
	log.Info("daily run finished",
		"run_id", report.RunID,
		"outcome", report.Outcome(),
		"total", report.Total,
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Finished.Sub(report.Started),
	)
	return nil
}
