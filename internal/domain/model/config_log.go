package model

import "time"

const (
	// TaskName is the name the worker reports in its log lines.
	TaskName = "config_log worker"

	DefaultTableName    = "pg_settings_log"
	DefaultFunctionName = "pg_settings_logger"
)

// TaskConfig is fixed when the task starts; changing it needs a restart.
type TaskConfig struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
}

// DependentObjects are the database objects the worker relies on. Only the
// validator produces them, so holding one means both objects were found.
type DependentObjects struct {
	Schema       string `json:"schema"`
	TableName    string `json:"table_name"`
	FunctionName string `json:"function_name"`
}

// Trigger names what caused a logging invocation.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerReload  Trigger = "reload"
	TriggerManual  Trigger = "manual"
)

// ChangeEvent is published whenever the logger function reports recorded changes.
type ChangeEvent struct {
	RunID      string    `json:"run_id"`
	Database   string    `json:"database"`
	Schema     string    `json:"schema"`
	Table      string    `json:"table"`
	Function   string    `json:"function"`
	Trigger    Trigger   `json:"trigger"`
	Changed    bool      `json:"changed"`
	RecordedAt time.Time `json:"recorded_at"`
}
