// Command feedctl hosts the single-writer control loop: it loads
// the subscription tree and item store, drives the scheduler and fetch
// queue, and keeps the tree's in-memory state as the single source of
// truth a future GUI or CLI front-end would attach to.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedcore/internal/control"
	"feedcore/internal/fetchclient"
	"feedcore/internal/guidindex"
	"feedcore/internal/infra/worker"
	"feedcore/internal/netsafety"
	"feedcore/internal/nodesource"
	"feedcore/internal/notify"
	"feedcore/internal/observability/logging"
	"feedcore/internal/persist/layout"
	"feedcore/internal/persist/opml"
	"feedcore/internal/scheduler"
	"feedcore/internal/store/sqlite"
	"feedcore/internal/tree"
)

func main() {
	logger := initLogger()

	dirs, err := layout.DefaultDirs("feedcore")
	if err != nil {
		logger.Error("failed to resolve layout directories", slog.Any("error", err))
		os.Exit(1)
	}
	if err := dirs.EnsureAll(); err != nil {
		logger.Error("failed to create layout directories", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("layout resolved",
		slog.String("config", dirs.Config),
		slog.String("data", dirs.Data),
		slog.String("cache", dirs.Cache))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := worker.NewWorkerMetrics()
	workerMetrics.MustRegister()
	cfg, err := worker.LoadDaemonConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load daemon configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("daemon configuration loaded",
		slog.Duration("tick_interval", cfg.TickInterval),
		slog.Int("workers", cfg.Workers),
		slog.String("backup_schedule", cfg.BackupSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Int("health_port", cfg.HealthPort))

	t, err := loadTree(logger, dirs.FeedListPath())
	if err != nil {
		logger.Error("failed to load feed list", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := sqlite.Open(dirs.ItemStorePath())
	if err != nil {
		logger.Error("failed to open item store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close item store", slog.Any("error", err))
		}
	}()

	idx := guidindex.New()
	queue := fetchclient.NewQueue()
	client, err := fetchclient.New()
	if err != nil {
		logger.Error("failed to build fetch client", slog.Any("error", err))
		os.Exit(1)
	}

	sched := scheduler.New(scheduler.Config{
		DefaultUpdateIntervalMinutes: cfg.DefaultUpdateIntervalMinutes,
		BackoffCeilingMinutes:        cfg.BackoffCeilingMinutes,
		TickInterval:                 cfg.TickInterval,
		FaviconRefreshInterval:       cfg.FaviconRefreshInterval,
		EnqueueRatePerSecond:         cfg.EnqueueRatePerSecond,
	}, t, queue)

	hub := buildNotifyHub(logger, cfg.NotifyRatePerSecond)

	controller := control.New(t, db, idx, queue, client, sched, dirs, hub, cfg.Workers, logger)
	registerNodeSources(logger, controller, t)

	go controller.Run(ctx)
	go hub.Run(ctx)

	healthServer := worker.NewHealthServer(addrForPort(cfg.HealthPort), logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	startMetricsServer(ctx, logger)
	startBackupCron(logger, t, dirs, cfg, workerMetrics)

	healthServer.SetReady(true)
	logger.Info("feedctl started", slog.Int("subscriptions", len(t.Root().Children)))

	waitForShutdown(ctx, cancel, logger, t, dirs)
}

func initLogger() *slog.Logger {
	var logger *slog.Logger
	if os.Getenv("LOG_FORMAT") == "text" {
		logger = logging.NewTextLogger()
	} else {
		logger = logging.NewLogger()
	}
	slog.SetDefault(logger)
	return logger
}

func addrForPort(port int) string {
	return fmt.Sprintf(":%d", port)
}

// loadTree reads the OPML feed list at path, or returns a fresh empty
// tree if no feed list has been saved yet (first run).
func loadTree(logger *slog.Logger, path string) (*tree.Tree, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		logger.Info("no feed list found, starting with an empty tree", slog.String("path", path))
		return tree.New(), nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	t, err := opml.Load(f)
	if err != nil {
		return nil, err
	}
	logger.Info("feed list loaded", slog.String("path", path), slog.Int("subscriptions", len(t.Root().Children)))
	return t, nil
}

// saveTree persists the current tree to the OPML feed list on graceful
// shutdown, mirroring Liferea's "save feed list on exit" behavior.
func saveTree(logger *slog.Logger, t *tree.Tree, path string) {
	f, err := os.Create(path)
	if err != nil {
		logger.Error("failed to save feed list", slog.Any("error", err))
		return
	}
	defer func() { _ = f.Close() }()

	if err := opml.Save(t, f, true); err != nil {
		logger.Error("failed to encode feed list", slog.Any("error", err))
		return
	}
	logger.Info("feed list saved", slog.String("path", path))
}

func buildNotifyHub(logger *slog.Logger, eventsPerSecond float64) *notify.Hub {
	var sinks []notify.Sink
	if url := os.Getenv("FEEDCTL_WEBHOOK_URL"); url != "" {
		if err := netsafety.ValidateURL(url, true); err != nil {
			logger.Error("refusing to enable webhook sink", slog.Any("error", err))
		} else {
			sinks = append(sinks, notify.NewWebhookSink("webhook", url, 10*time.Second))
			logger.Info("webhook notification sink enabled")
		}
	}
	if url := os.Getenv("FEEDCTL_DISCORD_WEBHOOK_URL"); url != "" {
		if err := netsafety.ValidateURL(url, true); err != nil {
			logger.Error("refusing to enable discord sink", slog.Any("error", err))
		} else {
			sinks = append(sinks, notify.NewDiscordSink(url, 10*time.Second))
			logger.Info("discord notification sink enabled")
		}
	}
	return notify.NewHub(sinks, eventsPerSecond, logger)
}

// registerNodeSources wires a nodesource.Source for every SourceRoot
// node already present in the loaded tree, so a remote
// aggregator a user subscribed to on a previous run keeps syncing
// across restarts.
func registerNodeSources(logger *slog.Logger, controller *control.Controller, t *tree.Tree) {
	root := t.Root()
	for _, childID := range root.Children {
		n, err := t.NodeFromID(childID)
		if err != nil || n.Source == nil {
			continue
		}
		endpoints, creds, err := nodeSourceEnvConfig(n.Source.ProviderID)
		if err != nil {
			logger.Warn("skipping node source with incomplete configuration",
				slog.String("node", string(n.ID)),
				slog.String("provider", n.Source.ProviderID),
				slog.Any("error", err))
			continue
		}
		src := nodesource.NewSource(n.ID, endpoints, creds, newHTTPDoer())
		controller.RegisterSource(n.ID, src)
		logger.Info("node source registered", slog.String("node", string(n.ID)), slog.String("provider", n.Source.ProviderID))
	}
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, t *tree.Tree, dirs layout.Dirs) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("shutdown signal received")
	cancel()
	saveTree(logger, t, dirs.FeedListPath())

	time.Sleep(200 * time.Millisecond)
	logger.Info("feedctl stopped")
}
