package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"horse.fit/safeagree/internal/cli"
	"horse.fit/safeagree/internal/logging"
	"horse.fit/safeagree/internal/policy"
)

// scheduleDisabled turns off one job when given as its schedule.
const scheduleDisabled = "off"

type libraryRefresher interface {
	RefreshEveryone(ctx context.Context) (refreshed int, failed int, err error)
}

type orphanSweeper interface {
	Sweep(ctx context.Context, dryRun bool) (*policy.SweepReport, error)
}

type scheduleJobs struct {
	refreshSpec string
	sweepSpec   string
	jobTimeout  time.Duration
	refresher   libraryRefresher
	sweeper     orphanSweeper
}

func runSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	refreshSpec := fs.String("refresh-schedule", "", "Cron spec for library refresh (default $REFRESH_SCHEDULE, \"off\" disables)")
	sweepSpec := fs.String("sweep-schedule", "", "Cron spec for orphan sweep (default $SWEEP_SCHEDULE, \"off\" disables)")
	jobTimeout := fs.Duration("job-timeout", 2*time.Hour, "Maximum duration of one job run")
	runNow := fs.Bool("run-now", false, "Run every enabled job once at startup")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rt, err := openRuntime(envLoader, 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	jobs := scheduleJobs{
		refreshSpec: firstNonBlank(*refreshSpec, rt.cfg.RefreshSchedule),
		sweepSpec:   firstNonBlank(*sweepSpec, rt.cfg.SweepSchedule),
		jobTimeout:  *jobTimeout,
		refresher:   rt.library,
		sweeper:     rt.sweeper,
	}
	logger := logging.Component(rt.logger, "scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler, err := buildScheduler(ctx, logger, jobs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up schedule: %v\n", err)
		return 2
	}
	if len(scheduler.Entries()) == 0 {
		fmt.Fprintln(os.Stderr, "Every job is disabled; nothing to schedule")
		return 2
	}

	if *runNow {
		for _, entry := range scheduler.Entries() {
			entry.WrappedJob.Run()
		}
	}

	scheduler.Start()
	logger.Info().
		Str("refresh_schedule", jobs.refreshSpec).
		Str("sweep_schedule", jobs.sweepSpec).
		Msg("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down scheduler")

	cancel()
	<-scheduler.Stop().Done()
	return 0
}

// buildScheduler registers the enabled jobs. Overlapping runs of the same
// job are skipped.
func buildScheduler(ctx context.Context, logger zerolog.Logger, jobs scheduleJobs) (*cron.Cron, error) {
	cronLog := cronLogger{logger: logger}
	scheduler := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if spec := strings.TrimSpace(jobs.refreshSpec); !isDisabled(spec) {
		if jobs.refresher == nil {
			return nil, fmt.Errorf("refresh job has no library")
		}
		if _, err := scheduler.AddFunc(spec, func() {
			runCtx, cancel := jobContext(ctx, jobs.jobTimeout)
			defer cancel()

			started := time.Now()
			refreshed, failed, err := jobs.refresher.RefreshEveryone(runCtx)
			event := logger.Info()
			if err != nil {
				event = logger.Error().Err(err)
			}
			event.
				Int("refreshed", refreshed).
				Int("failed", failed).
				Dur("elapsed", time.Since(started)).
				Msg("scheduled library refresh finished")
		}); err != nil {
			return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
		}
	}

	if spec := strings.TrimSpace(jobs.sweepSpec); !isDisabled(spec) {
		if jobs.sweeper == nil {
			return nil, fmt.Errorf("sweep job has no sweeper")
		}
		if _, err := scheduler.AddFunc(spec, func() {
			runCtx, cancel := jobContext(ctx, jobs.jobTimeout)
			defer cancel()

			report, err := jobs.sweeper.Sweep(runCtx, false)
			if err != nil {
				logger.Error().Err(err).Msg("scheduled sweep failed")
				return
			}
			logger.Info().
				Int("scanned", report.Scanned).
				Int("deleted", len(report.Deleted)).
				Msg("scheduled sweep finished")
		}); err != nil {
			return nil, fmt.Errorf("sweep schedule %q: %w", spec, err)
		}
	}

	return scheduler, nil
}

func jobContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func isDisabled(spec string) bool {
	return spec == "" || strings.EqualFold(spec, scheduleDisabled)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
