package cli

import (
	"bytes"
	"fmt"
	"log"
	"testing"

	"github.com/ibarwick/config-log/internal/common"

	"github.com/stretchr/testify/assert"
)

func TestCleanupStack_RunsInReverseOrder(t *testing.T) {
	var order []string
	var s cleanupStack
	s.push(func() { order = append(order, "redis") })
	s.push(func() { order = append(order, "http") })

	var logs bytes.Buffer
	s.run(nil, log.New(&logs, "", 0))

	assert.Equal(t, []string{"http", "redis"}, order)
	assert.Empty(t, logs.String())
}

func TestCleanupStack_RunsAfterFatalError(t *testing.T) {
	ran := false
	var s cleanupStack
	s.push(func() { ran = true })

	s.run(common.Fatal("lock", common.ErrLockHeld, "instance lock lost"), log.New(&bytes.Buffer{}, "", 0))

	assert.True(t, ran)
}

func TestCleanupStack_SkippedAfterHostDeath(t *testing.T) {
	ran := false
	var s cleanupStack
	s.push(func() { ran = true })

	var logs bytes.Buffer
	s.run(fmt.Errorf("config_log worker: %w", common.ErrHostDied), log.New(&logs, "", 0))

	assert.False(t, ran, "no shutdown work once the host is gone")
	assert.Contains(t, logs.String(), "host died, skipping shutdown")
}
