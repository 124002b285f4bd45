// Command batch runs one compensation job or one payout window and exits.
//
//	batch -job rank-sweep
//	batch -window 2026-03-02T06:00
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/binarycomp-backend/internal/app"
	"github.com/angelmondragon/binarycomp-backend/internal/cron"
	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
	"github.com/angelmondragon/binarycomp-backend/pkg/config"
	"github.com/angelmondragon/binarycomp-backend/pkg/db"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
	"github.com/angelmondragon/binarycomp-backend/pkg/redis"
)

const (
	exitOK      = 0
	exitFailure = 1
	// exitPartial reports a window run in which some events failed.
	exitPartial = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one batch invocation and returns the process exit code. Every
// resource it opens is closed before it returns.
func run(args []string, stdout, stderr io.Writer) int {
	fail := func(format string, a ...any) int {
		fmt.Fprintf(stderr, format+"\n", a...)
		return exitFailure
	}

	flags := flag.NewFlagSet("batch", flag.ContinueOnError)
	flags.SetOutput(stderr)
	jobName := flags.String("job", "", "cron job to run once (rank-sweep, payout-window, payout-hold-release, payout-reconcile, notification-cleanup)")
	windowLabel := flags.String("window", "", "payout window to (re)compute, as labelled by the engine")
	if err := flags.Parse(args); err != nil {
		return exitFailure
	}
	if (*jobName == "") == (*windowLabel == "") {
		return fail("exactly one of -job or -window is required")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fail("load config: %v", err)
	}
	cfg.Service.Kind = "batch"

	logg := logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Output:      stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fail("bootstrap database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	// One-shot runs export no metrics.
	domain, err := app.New(app.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient.DB(),
		TxRunner: dbClient,
	})
	if err != nil {
		return fail("wire services: %v", err)
	}

	if *windowLabel != "" {
		window, err := payouts.ParseWindow(*windowLabel, cfg.Payouts.Location())
		if err != nil {
			return fail("parse window: %v", err)
		}
		report, err := domain.PayoutEngine.RunWindow(ctx, window)
		printReport(stdout, report)
		if err != nil {
			return fail("run window: %v", err)
		}
		return windowExitCode(report)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fail("bootstrap redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	jobs, err := domain.Jobs(redisClient, redisClient.CheckpointKey("payout-window"))
	if err != nil {
		return fail("build jobs: %v", err)
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		return fail("create lock: %v", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		return fail("create cron service: %v", err)
	}
	if err := service.RunOnce(ctx, *jobName); err != nil {
		return fail("run %s: %v", *jobName, err)
	}
	logg.Info(ctx, "batch job finished")
	return exitOK
}

func windowExitCode(report *payouts.WindowReport) int {
	if report != nil && report.Failed > 0 {
		return exitPartial
	}
	return exitOK
}

func printReport(w io.Writer, report *payouts.WindowReport) {
	if report == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
