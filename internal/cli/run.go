package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ibarwick/config-log/internal/api"
	"github.com/ibarwick/config-log/internal/api/handler"
	"github.com/ibarwick/config-log/internal/app/service"
	"github.com/ibarwick/config-log/internal/app/worker"
	"github.com/ibarwick/config-log/internal/common"
	"github.com/ibarwick/config-log/internal/common/security"
	"github.com/ibarwick/config-log/internal/domain/model"
	"github.com/ibarwick/config-log/internal/domain/repository"
	"github.com/ibarwick/config-log/internal/platform/bgworker"
	"github.com/ibarwick/config-log/internal/platform/config"
	"github.com/ibarwick/config-log/internal/platform/database"
	"github.com/ibarwick/config-log/internal/platform/queue"

	"github.com/spf13/cobra"
)

const hostPollInterval = time.Second

// openRepository connects to the target database. Tests replace it.
var openRepository worker.Connector = func(ctx context.Context, cfg *config.Config) (repository.ConfigLogRepository, func(), error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPgConfigLogRepository(db), func() { database.Close(db) }, nil
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the config_log worker until terminated",
		Long: `Validate the dependent objects, record the current settings, then wait
for reload requests (SIGHUP, the Redis reload channel or POST /api/v1/reload)
and record settings again on each one. SIGTERM stops the worker cleanly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(rootOpts)
			return runWorker(cmd.Context(), cfg, newLogger(cmd.ErrOrStderr(), cfg.Verbose))
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	security.InitJWT(cfg.JWTKey)

	rt := bgworker.NewRuntime(bgworker.WatchHost(ctx, cfg.HostPID, hostPollInterval))
	stopSignals := bgworker.HandleSignals(ctx, rt, model.TaskName, logger)
	defer stopSignals()

	rdb, err := queue.ConnectRedis(ctx, cfg)
	if err != nil {
		return common.Fatal("redis", err, "could not connect to redis at %s", cfg.RedisAddr)
	}

	var cleanup cleanupStack

	var (
		notifier service.ChangeNotifier
		lock     worker.InstanceLock
		events   handler.EventLister
	)
	if rdb != nil {
		cleanup.push(func() { queue.CloseRedis(rdb) })
		changes := service.NewRedisChangeNotifier(rdb, cfg.EventsKey, cfg.EventsMax)
		notifier, events = changes, changes
		lock = worker.NewRedisInstanceLock(rdb, cfg.Task, cfg.LockTTL, logger)
		if err := worker.SubscribeReloads(ctx, rdb, cfg.ReloadChannel, rt, logger); err != nil {
			cleanup.run(err, logger)
			return common.Fatal("redis", err, "could not subscribe to %s", cfg.ReloadChannel)
		}
	}

	w := worker.NewConfigLogWorker(worker.Options{
		Config:   cfg,
		Runtime:  rt,
		Connect:  openRepository,
		Notifier: notifier,
		Lock:     lock,
		Logger:   logger,
	})

	if cfg.HTTPAddr != "" {
		server := &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      api.NewRouter(handler.NewWorkerHandler(w, rt, events, logger)),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		go func() {
			logger.Printf("INFO: %s: control API listening on %s", model.TaskName, cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("ERROR: %s: control API stopped: %v", model.TaskName, err)
			}
		}()
		cleanup.push(func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Printf("WARN: %s: control API shutdown failed: %v", model.TaskName, err)
			}
		})
	}

	sup := bgworker.NewSupervisor(model.TaskName, rt, cfg.RestartDelay, logger)
	sup.Register(w)
	err = sup.Run(ctx)
	cleanup.run(err, logger)
	return err
}

// cleanupStack holds shutdown steps, run last-in first-out. After host
// death nothing is run: the process exits without closing anything.
type cleanupStack []func()

func (s *cleanupStack) push(fn func()) {
	*s = append(*s, fn)
}

func (s cleanupStack) run(err error, logger *log.Logger) {
	if errors.Is(err, common.ErrHostDied) {
		logger.Printf("WARN: %s: host died, skipping shutdown of connections", model.TaskName)
		return
	}
	for i := len(s) - 1; i >= 0; i-- {
		s[i]()
	}
}
