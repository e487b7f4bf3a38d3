package bgworker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ibarwick/config-log/internal/common"

	"github.com/cenkalti/backoff/v4"
)

// Task is a restartable unit of work. Run returns nil on a clean shutdown.
type Task interface {
	Run(ctx context.Context) error
}

type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

// Supervisor runs a registered task and restarts it after a fixed delay
// whenever it fails. A clean exit, host death or a terminate request ends
// supervision.
type Supervisor struct {
	name         string
	rt           *Runtime
	restartDelay time.Duration
	logger       *log.Logger
	task         Task
	starts       int
}

func NewSupervisor(name string, rt *Runtime, restartDelay time.Duration, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{name: name, rt: rt, restartDelay: restartDelay, logger: logger}
}

func (s *Supervisor) Register(task Task) {
	s.task = task
}

// Starts reports how many times the task has been started.
func (s *Supervisor) Starts() int {
	return s.starts
}

// Run blocks until supervision ends and returns the final task error, nil
// on clean shutdown. With a restart delay of zero the first failure is
// returned as is.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.task == nil {
		return common.Errorf("supervisor %s: no task registered: %w", s.name, common.ErrInvalidArgument)
	}

	if s.restartDelay <= 0 {
		s.starts++
		return s.task.Run(ctx)
	}

	op := func() error {
		if s.starts > 0 && s.rt.TerminateRequested() {
			return nil
		}
		s.starts++
		err := s.task.Run(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrHostDied) ||
			s.rt.HostDead() || s.rt.TerminateRequested() || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.NewConstantBackOff(s.restartDelay), ctx)
	err := backoff.RetryNotify(op, bo, func(err error, next time.Duration) {
		s.logger.Printf("ERROR: %s: task exited with error: %v", s.name, err)
		if hint := common.HintFromError(err); hint != "" {
			s.logger.Printf("INFO: %s: hint: %s", s.name, hint)
		}
		s.logger.Printf("INFO: %s: restarting in %s", s.name, next)
	})

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
