package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ibarwick/config-log/internal/common"
	"github.com/ibarwick/config-log/internal/domain/model"
	"github.com/ibarwick/config-log/internal/domain/repository"
)

const missingObjectHint = "ensure superuser search_path includes the schema used by config_log; " +
	"check CONFIG_LOG_* settings"

// ConfigLogService validates the objects the worker depends on and runs the
// configuration logger function.
type ConfigLogService struct {
	repo     repository.ConfigLogRepository
	notifier ChangeNotifier
	logger   *log.Logger
	taskName string
	runID    string
	database string
	now      func() time.Time
}

// NewConfigLogService builds the service. notifier may be nil.
func NewConfigLogService(repo repository.ConfigLogRepository, notifier ChangeNotifier, logger *log.Logger) *ConfigLogService {
	if logger == nil {
		logger = log.Default()
	}
	return &ConfigLogService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		taskName: model.TaskName,
		now:      time.Now,
	}
}

// WithRun tags published change events with the run and database they came from.
func (s *ConfigLogService) WithRun(runID, database string) *ConfigLogService {
	s.runID = runID
	s.database = database
	return s
}

// ValidateAndInit checks that table and function exist in schema, then
// runs the logger once to catch changes made while the worker was not
// running. Any failure is an InvariantViolation.
func (s *ConfigLogService) ValidateAndInit(ctx context.Context, schema, table, function string) (*model.DependentObjects, error) {
	objects, err := s.ValidateObjects(ctx, schema, table, function)
	if err != nil {
		return nil, err
	}
	if _, err := s.InvokeLogger(ctx, objects, model.TriggerStartup); err != nil {
		return nil, err
	}
	return objects, nil
}

// ValidateObjects is ValidateAndInit without the initial logger call.
func (s *ConfigLogService) ValidateObjects(ctx context.Context, schema, table, function string) (*model.DependentObjects, error) {
	const op = "ValidateAndInit"
	if schema == "" || table == "" || function == "" {
		return nil, common.Fatal(op, common.ErrInvalidArgument,
			"schema, table and function names must be non-empty (schema=%q table=%q function=%q)", schema, table, function)
	}

	err := s.repo.WithinTx(ctx, true, func(q repository.ConfigLogQuerier) error {
		n, err := q.CountBaseTables(ctx, schema, table)
		if err != nil {
			return common.Fatal(op, err, "checking config log table '%s.%s'", schema, table)
		}
		if n == 0 {
			return &common.InvariantViolation{
				Op:      op,
				Message: fmt.Sprintf("expected config log table '%s.%s' not found", schema, table),
				Hint:    missingObjectHint,
				Err:     common.ErrObjectNotFound,
			}
		}

		n, err = q.CountFunctions(ctx, schema, function)
		if err != nil {
			return common.Fatal(op, err, "checking config log function '%s.%s'", schema, function)
		}
		if n == 0 {
			return &common.InvariantViolation{
				Op:      op,
				Message: fmt.Sprintf("expected config log function '%s.%s' not found", schema, function),
				Hint:    missingObjectHint,
				Err:     common.ErrObjectNotFound,
			}
		}
		return nil
	})
	if err != nil {
		return nil, asFatal(op, err)
	}

	s.logInfo("initialized, database objects validated")
	return &model.DependentObjects{Schema: schema, TableName: table, FunctionName: function}, nil
}

// InvokeLogger calls the logger function in its own transaction and
// returns its result unaltered.
func (s *ConfigLogService) InvokeLogger(ctx context.Context, objects *model.DependentObjects, trigger model.Trigger) (bool, error) {
	const op = "InvokeLogger"
	if objects == nil {
		return false, common.Fatal(op, common.ErrInvalidArgument, "logger invoked before objects were validated")
	}

	var changed bool
	err := s.repo.WithinTx(ctx, false, func(q repository.ConfigLogQuerier) error {
		var err error
		changed, err = q.CallLogger(ctx, objects.Schema, objects.FunctionName)
		if err != nil {
			return common.Fatal(op, err, "executing %s.%s()", objects.Schema, objects.FunctionName)
		}
		return nil
	})
	if err != nil {
		return false, asFatal(op, err)
	}

	s.logInfo(objects.FunctionName + "() executed")
	if changed {
		s.logInfo("configuration changes recorded")
		s.publish(ctx, objects, trigger)
	} else {
		s.logInfo("no configuration changes detected")
	}
	return changed, nil
}

func (s *ConfigLogService) publish(ctx context.Context, objects *model.DependentObjects, trigger model.Trigger) {
	if s.notifier == nil {
		return
	}
	event := model.ChangeEvent{
		RunID:      s.runID,
		Database:   s.database,
		Schema:     objects.Schema,
		Table:      objects.TableName,
		Function:   objects.FunctionName,
		Trigger:    trigger,
		Changed:    true,
		RecordedAt: s.now().UTC(),
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Printf("WARN: %s: failed to publish change event: %v", s.taskName, err)
	}
}

func (s *ConfigLogService) logInfo(msg string) {
	s.logger.Printf("INFO: %s: %s", s.taskName, msg)
}

// asFatal makes sure every error leaving the service is an InvariantViolation,
// including begin/commit failures raised outside the query callbacks.
func asFatal(op string, err error) error {
	var iv *common.InvariantViolation
	if errors.As(err, &iv) {
		return err
	}
	return common.Fatal(op, err, "transaction failed")
}
