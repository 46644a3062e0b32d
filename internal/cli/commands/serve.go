package commands

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
	"github.com/rulekit/rulekit/internal/metrics"
	"github.com/rulekit/rulekit/internal/ruleset"
	"github.com/rulekit/rulekit/internal/server"
)

// RunServe starts the HTTP API and blocks until SIGINT or SIGTERM.
func RunServe(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	var listen, rulesetPath string
	var watch bool
	fs.StringVar(&listen, "listen", "", "listen address host:port (overrides server.listen_address)")
	fs.StringVar(&rulesetPath, "ruleset", "", "ruleset YAML to import at startup (overrides ruleset.path)")
	fs.BoolVar(&watch, "watch", false, "re-import the ruleset when it changes")
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	env, err := cliutil.NewEnv(g)
	if err != nil {
		return fail(g, err)
	}
	cfg := env.Config
	if listen != "" {
		cfg.Server.ListenAddress = listen
	}
	if rulesetPath != "" {
		cfg.Ruleset.Path = rulesetPath
	}
	if watch {
		cfg.Ruleset.Watch = true
	}
	logger := env.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := env.OpenOrCreateStore(ctx)
	if err != nil {
		return fail(g, err)
	}
	defer s.Close()

	if cfg.Ruleset.Path != "" {
		res, err := ruleset.LoadAndImport(ctx, s, cfg.Ruleset.Path)
		if err != nil {
			return fail(g, err)
		}
		logger.Info("Ruleset imported",
			slog.String("path", cfg.Ruleset.Path),
			slog.Int("created", len(res.Created)),
			slog.Int("skipped", res.Skipped))

		if cfg.Ruleset.Watch {
			w, err := ruleset.NewWatcher(cfg.Ruleset.Path, cfg.Ruleset.Debounce, logger)
			if err != nil {
				return fail(g, err)
			}
			defer w.Stop()
			go func() {
				err := w.Watch(ctx, func() error {
					res, err := ruleset.LoadAndImport(ctx, s, cfg.Ruleset.Path)
					if err != nil {
						return err
					}
					logger.Info("Ruleset reloaded",
						slog.Int("created", len(res.Created)),
						slog.Int("skipped", res.Skipped))
					return nil
				})
				if err != nil {
					logger.Error("Ruleset watcher stopped", slog.String("error", err.Error()))
				}
			}()
		}
	}

	opts := server.Options{Store: s, Logger: logger}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.NewCollector(cfg.Metrics.Namespace)
		opts.MetricsPath = cfg.Metrics.Path
	}
	if err := server.New(cfg.Server, opts).Run(ctx); err != nil {
		return fail(g, err)
	}
	logger.Info("Server shutdown complete")
	return 0
}
