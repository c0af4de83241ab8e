// spider crawls the federated social graph of ActivityPub/Mastodon-compatible
// servers, starting from a seed instance, and checkpoints what it learns to
// a single JSON document.
//
// Usage:
//
//	spider state.json https://mastodon.social
//	spider --seed https://mastodon.social state.json
//	spider --state state.json --admin-addr :8090 --daemon "0 * * * *"
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/klppl/spider/internal/adminserver"
	"github.com/klppl/spider/internal/config"
	"github.com/klppl/spider/internal/crawl"
	"github.com/klppl/spider/internal/gateway"
	"github.com/klppl/spider/internal/health"
	"github.com/klppl/spider/internal/metrics"
	"github.com/klppl/spider/internal/store"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	app := &cli.App{
		Name:  "spider",
		Usage: "crawl the federated social graph starting from a seed instance",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "state", Aliases: []string{"s"}, Usage: "checkpoint file path"},
			&cli.StringFlag{Name: "seed", Usage: "seed instance URL, e.g. https://mastodon.social"},
			&cli.IntFlag{Name: "new-users", Usage: "stop once this many new users are discovered"},
			&cli.IntFlag{Name: "new-toots", Usage: "stop once this many new toots are discovered"},
			&cli.IntFlag{Name: "loops-max", Usage: "hard ceiling on scheduler iterations"},
			&cli.DurationFlag{Name: "fetch-timeout", Usage: "per-request timeout"},
			&cli.Float64Flag{Name: "rps", Usage: "outbound requests per second (0 disables pacing)"},
			&cli.StringFlag{Name: "admin-addr", Usage: "bind address for the admin HTTP server, e.g. :8090"},
			&cli.StringFlag{Name: "daemon", Usage: "cron expression; re-runs the crawl on a schedule instead of once"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("spider exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.Load()
	applyFlags(cfg, c)

	if c.Args().Present() {
		cfg.StateFile = c.Args().Get(0)
	}
	if c.Args().Len() > 1 {
		cfg.SeedURL = c.Args().Get(1)
	}
	if cfg.StateFile == "" {
		return cli.Exit("state file is required (positional arg, --state, or SPIDER_STATE_FILE)", 1)
	}

	st := store.New()
	present, err := loadState(st, cfg.StateFile)
	if err != nil {
		return cli.Exit(fmt.Sprintf("loading state file: %v", err), 1)
	}
	if present && st.Snapshot().Instances == 0 {
		return cli.Exit(fmt.Sprintf("state file %q is present but structurally invalid (no instances after parse)", cfg.StateFile), 1)
	}

	gw := gateway.New(cfg.RequestsPerSecond, cfg.FetchTimeout)
	ht := health.New()
	m := metrics.New()
	m.Update(st.Snapshot())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.AdminAddr != "" {
		srv := adminserver.New(cfg.AdminAddr, st, m)
		go srv.Start(ctx)
	}

	runOnce := func() {
		cr := crawl.New(st, gw, ht, m, rng())
		if err := cr.Run(ctx, cfg.SeedURL, cfg.NewUsers, cfg.NewToots, cfg.LoopsMax); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("crawl run failed", "error", err)
		}
		if err := st.Save(cfg.StateFile); err != nil {
			slog.Error("checkpoint save failed", "error", err)
		}
	}

	if cfg.DaemonCron == "" {
		runOnce()
		return nil
	}

	return runDaemon(ctx, cfg.DaemonCron, runOnce)
}

func runDaemon(ctx context.Context, cronExpr string, job func()) error {
	sched := cron.New()
	if _, err := sched.AddFunc(cronExpr, job); err != nil {
		return cli.Exit(fmt.Sprintf("invalid --daemon cron expression: %v", err), 1)
	}
	slog.Info("starting daemon schedule", "cron", cronExpr)
	sched.Start()
	<-ctx.Done()
	stopCtx := sched.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
	}
	return nil
}

// rng returns an injectable random source backed by math/rand's global
// generator (auto-seeded since Go 1.20). Tests supply their own
// deterministic func(int) int instead of calling this.
func rng() func(int) int {
	return rand.Intn
}

// loadState populates st from path if it exists, reporting whether the file
// was present at all. A missing file is fine (a fresh crawl); the caller
// decides whether a present-but-empty-after-parse file is an error (§6).
func loadState(st *store.Store, path string) (present bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return false, nil
	}
	return true, st.Load(path)
}

// applyFlags overrides cfg fields with any CLI flags the user actually set,
// leaving env-var/defaults in place otherwise.
func applyFlags(cfg *config.Config, c *cli.Context) {
	if c.IsSet("state") {
		cfg.StateFile = c.String("state")
	}
	if c.IsSet("seed") {
		cfg.SeedURL = c.String("seed")
	}
	if c.IsSet("new-users") {
		cfg.NewUsers = c.Int("new-users")
	}
	if c.IsSet("new-toots") {
		cfg.NewToots = c.Int("new-toots")
	}
	if c.IsSet("loops-max") {
		cfg.LoopsMax = c.Int("loops-max")
	}
	if c.IsSet("fetch-timeout") {
		cfg.FetchTimeout = c.Duration("fetch-timeout")
	}
	if c.IsSet("rps") {
		cfg.RequestsPerSecond = c.Float64("rps")
	}
	if c.IsSet("admin-addr") {
		cfg.AdminAddr = c.String("admin-addr")
	}
	if c.IsSet("daemon") {
		cfg.DaemonCron = c.String("daemon")
	}
}
