package models

// AgentStatus is the aggregate surfaced on the status endpoint: the event
// stream, the session summary, and the cached device states.
type AgentStatus struct {
	Stream  StreamStatus
	Session InspectionSession
	Devices []Device
}
