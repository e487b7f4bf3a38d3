package bgworker

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/ibarwick/config-log/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(rt *Runtime, delay time.Duration) (*Supervisor, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSupervisor("config_log worker", rt, delay, log.New(&buf, "", 0)), &buf
}

func TestSupervisor_RestartsFailedTask(t *testing.T) {
	s, logs := newTestSupervisor(NewRuntime(nil), time.Millisecond)

	calls := 0
	s.Register(TaskFunc(func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return common.Fatal("ValidateAndInit", common.ErrObjectNotFound, "expected config log table 'public.pg_settings_log' not found")
		}
		return nil
	}))

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, s.Starts())
	assert.Contains(t, logs.String(), "restarting in 1ms")
	assert.Contains(t, logs.String(), "pg_settings_log")
}

func TestSupervisor_ZeroDelayReturnsFirstFailure(t *testing.T) {
	s, _ := newTestSupervisor(NewRuntime(nil), 0)
	boom := errors.New("boom")

	s.Register(TaskFunc(func(ctx context.Context) error { return boom }))

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.Starts())
}

func TestSupervisor_HostDeathIsNotRestarted(t *testing.T) {
	s, _ := newTestSupervisor(NewRuntime(nil), time.Millisecond)

	s.Register(TaskFunc(func(ctx context.Context) error {
		return common.Errorf("wait: %w", common.ErrHostDied)
	}))

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, common.ErrHostDied)
	assert.Equal(t, 1, s.Starts())
}

func TestSupervisor_TerminateStopsRestarts(t *testing.T) {
	rt := NewRuntime(nil)
	s, _ := newTestSupervisor(rt, time.Millisecond)
	boom := errors.New("boom")

	s.Register(TaskFunc(func(ctx context.Context) error {
		rt.RequestTerminate()
		return boom
	}))

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.Starts())
}

func TestSupervisor_NoTask(t *testing.T) {
	s, _ := newTestSupervisor(NewRuntime(nil), time.Second)
	assert.ErrorIs(t, s.Run(context.Background()), common.ErrInvalidArgument)
}
