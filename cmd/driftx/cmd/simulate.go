package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/go-drift/driftx/cmd/driftx/internal/config"
	"github.com/go-drift/driftx/cmd/driftx/internal/scenario"
	"github.com/go-drift/driftx/cmd/driftx/internal/telemetry"
	"github.com/go-drift/driftx/pkg/errors"
	driftlog "github.com/go-drift/driftx/pkg/log"
)

func init() {
	RegisterCommand(&Command{
		Name:  "simulate",
		Short: "Run a scenario and print each step",
		Long: `Run a scenario against a fresh shared cache and print every step.

Each line shows the step, the resolved instance, the reference count and
cache membership of the step's key, and the running created/disposed
totals. The cache content after the last step is printed as a snapshot.

Expectations are evaluated and shown but do not change the exit status;
use "driftx check" for that.`,
		Usage: "driftx simulate <scenario.yaml>",
		Run: func(args []string) error {
			return runScenario(args, false)
		},
	})
	RegisterCommand(&Command{
		Name:  "check",
		Short: "Verify a scenario's expectations",
		Long: `Run a scenario and verify the expect blocks of its steps.

Exits with a non-zero status when any expectation fails.`,
		Usage: "driftx check <scenario.yaml>",
		Run: func(args []string) error {
			return runScenario(args, true)
		},
	})
	RegisterCommand(&Command{
		Name:  "version",
		Short: "Show version information",
		Long:  "Show the driftx version and build time.",
		Usage: "driftx version",
		Run: func([]string) error {
			printVersion()
			return nil
		},
	})
}

func runScenario(args []string, verify bool) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one scenario file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.close()

	opts := scenario.Options{}
	if sess.cfg.Debug {
		opts.Logger = sess.logger.Named("cache")
	}
	rep, err := scenario.Run(ctx, s, opts)
	if err != nil {
		return err
	}

	if !verify {
		scenario.Print(stdout, rep)
		return nil
	}

	failures := rep.Failures()
	for _, f := range failures {
		fmt.Fprintf(stdout, "FAIL %s\n", f)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%s: %d expectation(s) failed", rep.Scenario, len(failures))
	}
	fmt.Fprintf(stdout, "ok   %s (%d steps)\n", rep.Scenario, len(s.Steps))
	return nil
}

// session holds the process-wide services a command run installs.
type session struct {
	cfg      *config.Resolved
	logger   *zap.Logger
	shutdown func(context.Context) error
}

func openSession(ctx context.Context) (*session, error) {
	root, err := config.FindProjectRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.ResolveFile(root, configPath)
	if err != nil {
		return nil, err
	}

	logger, err := driftlog.New(driftlog.Options{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
	})
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("app", cfg.AppName))

	shutdown, err := telemetry.Setup(ctx, cfg.AppName, cfg.TraceEndpoint)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("tracing: %w", err)
	}

	errors.SetHandler(errors.NewZapHandler(logger))
	return &session{cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

func (s *session) close() {
	errors.SetHandler(nil)
	if err := s.shutdown(context.Background()); err != nil {
		s.logger.Warn("trace shutdown failed", zap.Error(err))
	}
	// Sync returns EINVAL for terminals.
	_ = s.logger.Sync()
}
