package models

import "encoding/json"

// Event types pushed by the driver backend over the stream.
const (
	EventBarcodeScanned     = "barcode_scanned"
	EventMeasurementUpdate  = "measurement_update"
	EventMessageLog         = "message_log"
	EventInspectionStarted  = "inspection_started"
	EventPhaseUpdate        = "phase_update"
	EventStepStart          = "step_start"
	EventPhaseComplete      = "phase_complete"
	EventStepComplete       = "step_complete"
	EventInspectionComplete = "inspection_complete"
	EventInspectionStopped  = "inspection_stopped"
	EventInspectionError    = "inspection_error"
)

var knownEventTypes = map[string]struct{}{
	EventBarcodeScanned:     {},
	EventMeasurementUpdate:  {},
	EventMessageLog:         {},
	EventInspectionStarted:  {},
	EventPhaseUpdate:        {},
	EventStepStart:          {},
	EventPhaseComplete:      {},
	EventStepComplete:       {},
	EventInspectionComplete: {},
	EventInspectionStopped:  {},
	EventInspectionError:    {},
}

// KnownEventType reports whether the stream event type is recognized.
// Unknown types are logged and dropped, never treated as fatal.
func KnownEventType(t string) bool {
	_, ok := knownEventTypes[t]
	return ok
}

// StreamEvent is the envelope pushed by the driver. Data is decoded lazily
// per event type; the stream client only checks JSON structure.
type StreamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type BarcodeScannedData struct {
	Barcode string `json:"barcode"`
}

// MeasurementUpdateData carries either a numeric value (with optional unit)
// or a raw instrument response line. When both are present, value wins.
type MeasurementUpdateData struct {
	Phase string   `json:"phase"`
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Raw   string   `json:"raw,omitempty"`
}

type MessageLogData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type InspectionStartedData struct {
	Barcode string `json:"barcode"`
	ModelID string `json:"model_id,omitempty"`
}

type PhaseData struct {
	Phase string `json:"phase"`
}

type InspectionErrorData struct {
	Message string `json:"message"`
}

// StreamState represents the lifecycle of one stream instance. DISCONNECTED
// is terminal: a fresh instance must be created to retry.
type StreamState string

const (
	StreamStateConnecting   StreamState = "connecting"
	StreamStateConnected    StreamState = "connected"
	StreamStateDisconnected StreamState = "disconnected"
)

// StreamStatus is the operator-visible state of the event stream.
type StreamStatus struct {
	State StreamState
	Error error
}
