package model

import "time"

type WorkerState string

const (
	StateStopped     WorkerState = "STOPPED"
	StateStarting    WorkerState = "STARTING"
	StateRunning     WorkerState = "RUNNING"
	StateTerminating WorkerState = "TERMINATING"
)

// WorkerStatus is a point-in-time snapshot of the control loop.
type WorkerStatus struct {
	State            WorkerState       `json:"state"`
	RunID            string            `json:"run_id,omitempty"`
	Config           TaskConfig        `json:"config"`
	Objects          *DependentObjects `json:"objects,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	Invocations      int               `json:"invocations"`
	Reloads          int               `json:"reloads"`
	LastInvocationAt *time.Time        `json:"last_invocation_at,omitempty"`
	LastChanged      *bool             `json:"last_changed,omitempty"`
	LastError        *string           `json:"last_error,omitempty"`
}

// RoleAdmin is the token role allowed to use the control endpoints.
const RoleAdmin = "admin"
