package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/verdict/adapter"
	redisadapter "github.com/pithecene-io/verdict/adapter/redis"
	"github.com/pithecene-io/verdict/adapter/webhook"
	"github.com/pithecene-io/verdict/cli/config"
	"github.com/pithecene-io/verdict/cli/render"
	"github.com/pithecene-io/verdict/eventbus"
	"github.com/pithecene-io/verdict/ipc"
	"github.com/pithecene-io/verdict/log"
	"github.com/pithecene-io/verdict/metrics"
	"github.com/pithecene-io/verdict/runner"
	"github.com/pithecene-io/verdict/runtime"
	"github.com/pithecene-io/verdict/suite"
	"github.com/pithecene-io/verdict/types"
)

// DefaultSuitePath is the suite file used when --suite is not given.
const DefaultSuitePath = "verdict.yaml"

// RunCommand returns the run command.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute a suite and report its verdict",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "suite",
				Aliases: []string{"s"},
				Usage:   "Path to suite file",
				Value:   DefaultSuitePath,
			},
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run ID (default: random UUID)",
			},
			&cli.IntFlag{
				Name:  "attempt",
				Usage: "Attempt number (starts at 1)",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail the run on pending or undefined scenarios",
			},
			&cli.StringSliceFlag{
				Name:  "tags",
				Usage: "Run only scenarios carrying one of these tags",
			},
			&cli.StringFlag{
				Name:  "events-out",
				Usage: "Write the event stream to this file",
			},
			&cli.StringFlag{
				Name:  "metrics-out",
				Usage: "Write run metrics in Prometheus text format to this file",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON run report to this file (- for stderr)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Stream hook and scenario output to stderr",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log lifecycle steps at debug level",
			},
		}, OutputFlags()...),
		Action: runAction,
	}
}

// runChoice is the resolved configuration of one run. Flags override the
// suite file.
type runChoice struct {
	runID      string
	attempt    int
	strict     bool
	tags       []string
	eventsOut  string
	metricsOut string
	reportPath string
	verbose    bool
	debug      bool
}

// runIO carries the process surfaces a run touches.
type runIO struct {
	stderr io.Writer
	getenv func(string) string
	// clock stamps events. Nil means the system clock.
	clock eventbus.Clock
}

// runOutcome is everything a finished run produced.
type runOutcome struct {
	result   *runtime.RunResult
	err      error
	exitCode int
	report   *runtime.RunReport
}

func runAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeError)
	}

	s, err := config.Load(c.String("suite"))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeError)
	}

	choice, err := resolveRunChoice(c, s)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeError)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := executeRun(ctx, s, choice, runIO{stderr: os.Stderr, getenv: os.Getenv})
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeError)
	}
	if out.err != nil {
		return cli.Exit(fmt.Sprintf("run abandoned: %v", out.err), out.exitCode)
	}

	if !c.Bool("quiet") {
		if err := r.Render(out.report); err != nil {
			return fmt.Errorf("failed to render result: %w", err)
		}
	}
	return cli.Exit("", out.exitCode)
}

func resolveRunChoice(c *cli.Context, s *config.Suite) (runChoice, error) {
	choice := runChoice{
		runID:      c.String("run-id"),
		attempt:    c.Int("attempt"),
		strict:     s.Strict,
		tags:       c.StringSlice("tags"),
		eventsOut:  s.EventsOut,
		metricsOut: s.MetricsOut,
		reportPath: s.Report,
		verbose:    c.Bool("verbose"),
		debug:      c.Bool("debug"),
	}
	if c.IsSet("strict") {
		choice.strict = c.Bool("strict")
	}
	if c.IsSet("events-out") {
		choice.eventsOut = c.String("events-out")
	}
	if c.IsSet("metrics-out") {
		choice.metricsOut = c.String("metrics-out")
	}
	if c.IsSet("report") {
		choice.reportPath = c.String("report")
	}
	if choice.runID == "" {
		choice.runID = uuid.NewString()
	}
	if choice.attempt < 1 {
		return runChoice{}, fmt.Errorf("invalid --attempt: must be >= 1, got %d", choice.attempt)
	}
	return choice, nil
}

// executeRun runs s to completion and writes the configured outputs. The
// returned error is a setup failure; run failures are in the outcome.
func executeRun(ctx context.Context, s *config.Suite, choice runChoice, rio runIO) (out *runOutcome, err error) {
	runMeta := &types.RunMeta{RunID: choice.runID, Suite: s.Name, Attempt: choice.attempt}
	if err := runMeta.Validate(); err != nil {
		return nil, err
	}

	level := zapcore.InfoLevel
	if choice.debug {
		level = zapcore.DebugLevel
	}
	logger := log.NewLoggerWithWriter(runMeta, rio.stderr, level)
	defer func() { _ = logger.Sync() }()

	bus := eventbus.New(runMeta.RunID, rio.clock)
	tracker := runtime.NewStatusTracker(choice.strict)
	bus.Subscribe(types.EventTypeTestCaseFinished, tracker)

	if choice.eventsOut != "" {
		closeEvents, err := streamEvents(bus, choice.eventsOut)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := closeEvents(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	opts := suite.Options{RunID: runMeta.RunID, Tags: choice.tags, Now: bus.Instant}
	if choice.verbose {
		opts.Output = rio.stderr
	}
	plan, err := suite.Build(s, opts)
	if err != nil {
		return nil, err
	}

	shared := runner.New(runner.Config{
		Bus:       bus,
		BeforeAll: plan.BeforeAll,
		AfterAll:  plan.AfterAll,
		Logger:    logger,
	})
	collector := metrics.NewCollector(runMeta.Suite, runMeta.RunID)

	orchestrator, err := runtime.NewRunOrchestrator(&runtime.RunConfig{
		Bus: bus,
		Runners: runner.NewSingletonSupplier(func(context.Context) (runtime.Runner, error) {
			return shared, nil
		}),
		ExitStatus: tracker,
		RunMeta:    runMeta,
		Logger:     logger,
		Collector:  collector,
		Getenv:     rio.getenv,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	result, runErr := orchestrator.Execute(ctx, plan.Features)
	collector.AbsorbEvents(bus.Stats().TotalEvents)

	out = &runOutcome{
		result:   result,
		err:      runErr,
		exitCode: runtime.DetermineExitCode(result, runErr),
	}

	if choice.metricsOut != "" {
		if err := collector.WriteTextfile(choice.metricsOut); err != nil {
			logger.Sugar().Warnf("failed to write metrics to %s: %v", choice.metricsOut, err)
		}
	}
	if runErr != nil {
		return out, nil
	}

	snap := collector.Snapshot()
	counts := tracker.Counts()
	out.report = runtime.BuildRunReport(result, snap, counts, out.exitCode)
	if choice.reportPath != "" {
		if err := runtime.WriteRunReport(out.report, choice.reportPath); err != nil {
			logger.Warn("failed to write report", map[string]any{"path": choice.reportPath, "error": err.Error()})
		}
	}

	if s.Adapter.Type != "" {
		event := adapter.FromResult(result, snap.EventsDelivered, counts, bus.Instant())
		if err := publishRunFinished(context.WithoutCancel(ctx), s.Adapter, event); err != nil {
			logger.Warn("failed to publish run finished event", map[string]any{
				"adapter": s.Adapter.Type,
				"error":   err.Error(),
			})
		}
	}

	return out, nil
}

// streamEvents writes every bus event to path as framed envelopes. The
// returned function flushes and closes the file and reports the first
// write error.
func streamEvents(bus *eventbus.Bus, path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create events file: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := ipc.NewFrameEncoder(w)
	bus.SubscribeAll(enc)

	return func() error {
		errs := []error{enc.Err(), w.Flush(), f.Close()}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("failed to write events to %s: %w", path, err)
		}
		return nil
	}, nil
}

// buildAdapter creates the adapter configured in the suite.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case config.AdapterWebhook:
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case config.AdapterRedis:
		retries := redisadapter.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return redisadapter.New(redisadapter.Config{
			URL:       cfg.URL,
			Channel:   cfg.Channel,
			LatestKey: cfg.LatestKey,
			LatestTTL: cfg.LatestTTL.Duration,
			Timeout:   cfg.Timeout.Duration,
			Retries:   retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %q", cfg.Type)
	}
}

func publishRunFinished(ctx context.Context, cfg config.AdapterConfig, event *adapter.RunFinishedEvent) error {
	a, err := buildAdapter(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return a.Publish(ctx, event)
}
