package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/unitrack-go/internal/devapi"
	"github.com/yndnr/unitrack-go/internal/infra/buildinfo"
	"github.com/yndnr/unitrack-go/internal/infra/filewatch"
	"github.com/yndnr/unitrack-go/internal/infra/shutdown"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
	"github.com/yndnr/unitrack-go/internal/telemetry/metric"
	"github.com/yndnr/unitrack-go/internal/telemetry/tracer"
)

func main() {
	app := &cli.App{
		Name:    "unitrack-devapi",
		Usage:   "In-memory UniTrack backend for development",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{devapi.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides the configuration)",
			},
			&cli.BoolFlag{
				Name:  "no-seed",
				Usage: "Start without the demo accounts",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	path := c.String("config")
	cfg, err := devapi.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.Bool("no-seed") {
		cfg.Seed.Enabled = false
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	log.Info("starting unitrack-devapi", "version", buildinfo.Get().Version, "config", cfg.Redacted())

	ctx, stop := shutdown.WithSignals(c.Context)
	defer stop()

	wait, err := cfg.ShutdownWait()
	if err != nil {
		return err
	}
	sh := shutdown.NewHandler(wait, log.Slog())

	opts := []devapi.Option{
		devapi.WithLogger(log),
		devapi.WithMetrics(metric.NewRegistry(true)),
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tp, err := tracer.New(ctx, tracer.Config{
			ServiceName: "unitrack-devapi",
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		sh.OnShutdown("tracer", tp.Shutdown)
		opts = append(opts, devapi.WithTracing(tp.TracerProvider()))
	}

	srv, err := devapi.New(cfg, opts...)
	if err != nil {
		return err
	}
	sh.OnShutdown("http", srv.Shutdown)

	if path != "" {
		if err := watchLogLevel(ctx, sh, path, log); err != nil {
			log.Warn("config watch disabled", "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	select {
	case err = <-errCh:
		if err != nil {
			log.Error("dev api stopped", "error", err)
		}
	case <-ctx.Done():
	}
	if serr := sh.Shutdown(); serr != nil && err == nil {
		err = serr
	}
	log.Info("unitrack-devapi stopped")
	return err
}

// watchLogLevel re-reads the configuration file on change and applies its
// log level. Other settings need a restart.
func watchLogLevel(ctx context.Context, sh *shutdown.Handler, path string, log logger.Logger) error {
	w, err := filewatch.New(filewatch.WithLogger(log.Slog()))
	if err != nil {
		return err
	}
	err = w.Add(path, func(filewatch.Event) {
		next, err := devapi.Load(path)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if next.Log.Level != logger.GetLevel() {
			logger.SetLevel(next.Log.Level)
			log.Info("log level changed", "level", next.Log.Level)
		}
	})
	if err != nil {
		w.Close()
		return err
	}
	w.Start(ctx)
	sh.OnShutdown("config-watch", func(context.Context) error { return w.Close() })
	return nil
}
