package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ibarwick/config-log/internal/app/service"
	"github.com/ibarwick/config-log/internal/common"
	"github.com/ibarwick/config-log/internal/domain/model"
	"github.com/ibarwick/config-log/internal/domain/repository"
	"github.com/ibarwick/config-log/internal/platform/bgworker"
	"github.com/ibarwick/config-log/internal/platform/config"

	"github.com/google/uuid"
)

// TaskRuntime is the part of the host the control loop depends on.
type TaskRuntime interface {
	WaitForEvent(timeout time.Duration) bgworker.Wake
	ConsumeReload() bool
	TerminateRequested() bool
}

// Connector opens the connection to the target database. The returned
// close func is called when the worker stops cleanly.
type Connector func(ctx context.Context, cfg *config.Config) (repository.ConfigLogRepository, func(), error)

// InstanceLock keeps a single worker per database and schema.
type InstanceLock interface {
	Acquire(ctx context.Context) error
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

type Options struct {
	Config   *config.Config
	Runtime  TaskRuntime
	Connect  Connector
	Notifier service.ChangeNotifier // optional
	Lock     InstanceLock           // optional
	Logger   *log.Logger
}

// ConfigLogWorker is the config_log background task. Each Run goes through
// STARTING, RUNNING and TERMINATING; fatal errors end the run early.
type ConfigLogWorker struct {
	name     string
	cfg      *config.Config
	rt       TaskRuntime
	connect  Connector
	notifier service.ChangeNotifier
	lock     InstanceLock
	logger   *log.Logger

	mu     sync.Mutex
	status model.WorkerStatus
}

func NewConfigLogWorker(opts Options) *ConfigLogWorker {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &ConfigLogWorker{
		name:     model.TaskName,
		cfg:      opts.Config,
		rt:       opts.Runtime,
		connect:  opts.Connect,
		notifier: opts.Notifier,
		lock:     opts.Lock,
		logger:   logger,
		status:   model.WorkerStatus{State: model.StateStopped, Config: opts.Config.Task},
	}
}

// Run implements bgworker.Task. It returns nil after a requested shutdown,
// an error wrapping common.ErrHostDied when the host goes away and an
// InvariantViolation on any fatal condition.
func (w *ConfigLogWorker) Run(ctx context.Context) error {
	runID := uuid.NewString()
	w.begin(runID)

	repo, closeDB, err := w.connect(ctx, w.cfg)
	if err != nil {
		return w.fail(common.Fatal("connect", err, "could not connect to database %q", w.cfg.Task.Database))
	}

	if w.lock != nil {
		if err := w.lock.Acquire(ctx); err != nil {
			closeDB()
			return w.fail(common.Fatal("lock", err, "could not acquire instance lock"))
		}
	}

	svc := service.NewConfigLogService(repo, w.notifier, w.logger).WithRun(runID, w.cfg.Task.Database)
	objects, err := svc.ValidateAndInit(ctx, w.cfg.Task.Schema, model.DefaultTableName, model.DefaultFunctionName)
	if err != nil {
		w.cleanup(closeDB)
		return w.fail(err)
	}
	w.running(objects)

	for {
		wake := w.rt.WaitForEvent(w.cfg.Naptime)

		// emergency bailout, no cleanup
		if wake.Has(bgworker.WakeHostDeath) {
			w.logger.Printf("ERROR: %s: host process died, exiting", w.name)
			return w.fail(fmt.Errorf("%s: %w", w.name, common.ErrHostDied))
		}

		// terminate wins over a reload seen in the same wake
		if w.rt.TerminateRequested() {
			break
		}

		if w.rt.ConsumeReload() {
			w.reloadConfig()
			changed, err := svc.InvokeLogger(ctx, objects, model.TriggerReload)
			if err != nil {
				w.cleanup(closeDB)
				return w.fail(err)
			}
			w.invoked(changed)
		}

		if w.lock != nil {
			if err := w.lock.Refresh(ctx); err != nil {
				w.cleanup(closeDB)
				return w.fail(common.Fatal("lock", err, "instance lock lost"))
			}
		}
	}

	w.setState(model.StateTerminating)
	w.logger.Printf("INFO: %s: shutting down", w.name)
	w.cleanup(closeDB)
	w.setState(model.StateStopped)
	return nil
}

// Status returns a snapshot of the worker's progress.
func (w *ConfigLogWorker) Status() model.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.status
	if st.Objects != nil {
		objects := *st.Objects
		st.Objects = &objects
	}
	return st
}

func (w *ConfigLogWorker) reloadConfig() {
	next, ignored, err := w.cfg.Reload()
	if err != nil {
		w.logger.Printf("ERROR: %s: configuration reload failed: %v", w.name, err)
	} else {
		for _, name := range ignored {
			w.logger.Printf("WARN: %s: %s changed but requires a restart; keeping current value", w.name, name)
		}
		w.cfg = next
	}
	w.mu.Lock()
	w.status.Reloads++
	w.mu.Unlock()
}

func (w *ConfigLogWorker) cleanup(closeDB func()) {
	if w.lock != nil {
		// the run context may already be gone during shutdown
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.lock.Release(releaseCtx); err != nil {
			w.logger.Printf("WARN: %s: failed to release instance lock: %v", w.name, err)
		}
		cancel()
	}
	if closeDB != nil {
		closeDB()
	}
}

func (w *ConfigLogWorker) begin(runID string) {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = model.WorkerStatus{
		State:     model.StateStarting,
		RunID:     runID,
		Config:    w.cfg.Task,
		StartedAt: &now,
	}
}

// running records the move to RUNNING. ValidateAndInit already made the
// first logger call, whose result it does not report.
func (w *ConfigLogWorker) running(objects *model.DependentObjects) {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.State = model.StateRunning
	w.status.Objects = objects
	w.status.Invocations = 1
	w.status.LastInvocationAt = &now
}

func (w *ConfigLogWorker) invoked(changed bool) {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Invocations++
	w.status.LastInvocationAt = &now
	w.status.LastChanged = &changed
}

func (w *ConfigLogWorker) setState(state model.WorkerState) {
	w.mu.Lock()
	w.status.State = state
	w.mu.Unlock()
}

func (w *ConfigLogWorker) fail(err error) error {
	msg := err.Error()
	w.mu.Lock()
	w.status.State = model.StateStopped
	w.status.LastError = &msg
	w.mu.Unlock()
	return err
}
