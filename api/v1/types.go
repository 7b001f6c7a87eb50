// Package v1 defines the wire types of the agent's HTTP API.
package v1

import "time"

// Device is the API view of a bench instrument.
type Device struct {
	Id               string  `json:"id,omitempty"`
	Type             string  `json:"type"`
	Port             string  `json:"port,omitempty"`
	ConnectionStatus string  `json:"connection_status"`
	LastError        *string `json:"last_error,omitempty"`
}

// Limit is a direction-aware pass/fail threshold.
type Limit struct {
	LowerBound *float64 `json:"lower_bound,omitempty"`
	UpperBound *float64 `json:"upper_bound,omitempty"`
	Direction  string   `json:"direction"`
}

// Reading is one measured value with its verdict.
type Reading struct {
	Phase     string    `json:"phase"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Verdict   string    `json:"verdict"`
}

// PhaseResult summarizes one phase of a session.
type PhaseResult struct {
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	Limit        Limit   `json:"limit"`
	Verdict      string  `json:"verdict"`
	Completed    bool    `json:"completed"`
	ReadingCount int     `json:"reading_count"`
	LastValue    *float64 `json:"last_value,omitempty"`
	Error        *string `json:"error,omitempty"`
}

// InspectionSession is the API view of the session state machine.
type InspectionSession struct {
	Id             string        `json:"id,omitempty"`
	Barcode        string        `json:"barcode,omitempty"`
	ModelId        string        `json:"model_id,omitempty"`
	Status         string        `json:"status"`
	CurrentPhase   string        `json:"current_phase,omitempty"`
	Phases         []PhaseResult `json:"phases"`
	OverallVerdict string        `json:"overall_verdict"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Error          *string       `json:"error,omitempty"`
}

// StreamStatus is the operator-visible state of the driver event stream.
type StreamStatus struct {
	State string  `json:"state"`
	Error *string `json:"error,omitempty"`
}

// AgentStatus aggregates the stream, session and device states.
type AgentStatus struct {
	Stream  StreamStatus      `json:"stream"`
	Session InspectionSession `json:"session"`
	Devices []Device          `json:"devices"`
}

// PhaseSpec declares one phase of an inspection model.
type PhaseSpec struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Limit Limit  `json:"limit"`
}

// InspectionModel is a catalog entry.
type InspectionModel struct {
	Id     string      `json:"id"`
	Name   string      `json:"name"`
	Phases []PhaseSpec `json:"phases"`
}

// ModelCatalog lists the models and the operator's selection.
type ModelCatalog struct {
	Selected string            `json:"selected"`
	Models   []InspectionModel `json:"models"`
}

// Settings carries the inspection timings in seconds.
type Settings struct {
	MeasurementDurationSeconds float64 `json:"measurement_duration_seconds"`
	WaitDurationSeconds        float64 `json:"wait_duration_seconds"`
	IntervalSeconds            float64 `json:"interval_seconds"`
	CommandTimeoutSeconds      float64 `json:"command_timeout_seconds"`
}

// SessionRecord is one archived finished session.
type SessionRecord struct {
	Session    InspectionSession `json:"session"`
	Overall    string            `json:"overall"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// StartRequest begins an inspection. ModelId is optional; the selected
// model applies when omitted.
type StartRequest struct {
	Barcode string `json:"barcode"`
	ModelId string `json:"model_id,omitempty"`
}

// SelectModelRequest changes the operator's model selection.
type SelectModelRequest struct {
	ModelId string `json:"model_id"`
}
