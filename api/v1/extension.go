package v1

import (
	"time"

	"github.com/testbench/inspection-agent/internal/models"
)

// NewDevice converts a models.Device to its API view.
func NewDevice(d models.Device) Device {
	out := Device{
		Id:               d.ID,
		Type:             string(d.Type),
		Port:             d.Port,
		ConnectionStatus: string(d.State),
	}
	if d.State == "" {
		out.ConnectionStatus = string(models.ConnectionStateDisconnected)
	}
	if d.LastError != "" {
		e := d.LastError
		out.LastError = &e
	}
	return out
}

func NewDevices(devices []models.Device) []Device {
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, NewDevice(d))
	}
	return out
}

func NewLimit(l models.Limit) Limit {
	return Limit{
		LowerBound: l.LowerBound,
		UpperBound: l.UpperBound,
		Direction:  string(l.Direction),
	}
}

func NewReading(r models.Reading) Reading {
	return Reading{
		Phase:     r.Phase,
		Value:     r.Value,
		Unit:      r.Unit,
		Timestamp: r.Timestamp,
		Verdict:   string(r.Verdict),
	}
}

func NewReadings(readings []models.Reading) []Reading {
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		out = append(out, NewReading(r))
	}
	return out
}

func NewPhaseResult(p models.PhaseResult) PhaseResult {
	out := PhaseResult{
		Name:         p.Name,
		Kind:         string(p.Kind),
		Limit:        NewLimit(p.Limit),
		Verdict:      string(p.Verdict),
		Completed:    p.Completed,
		ReadingCount: len(p.Readings),
	}
	if len(p.Readings) > 0 {
		v := p.Readings[len(p.Readings)-1].Value
		out.LastValue = &v
	}
	if p.Error != "" {
		e := p.Error
		out.Error = &e
	}
	return out
}

// NewInspectionSession converts a session snapshot, including the derived
// overall verdict.
func NewInspectionSession(s models.InspectionSession) InspectionSession {
	out := InspectionSession{
		Id:             s.ID,
		Barcode:        s.Barcode,
		ModelId:        s.ModelID,
		Status:         string(s.Status),
		CurrentPhase:   s.CurrentPhase,
		Phases:         make([]PhaseResult, 0, len(s.Phases)),
		OverallVerdict: string(s.OverallVerdict()),
	}
	for _, p := range s.Phases {
		out.Phases = append(out.Phases, NewPhaseResult(p))
	}
	out.StartedAt = timePtr(s.StartedAt)
	out.FinishedAt = timePtr(s.FinishedAt)
	if s.Error != "" {
		e := s.Error
		out.Error = &e
	}
	return out
}

func NewStreamStatus(s models.StreamStatus) StreamStatus {
	out := StreamStatus{State: string(s.State)}
	if s.Error != nil {
		e := s.Error.Error()
		out.Error = &e
	}
	return out
}

func NewAgentStatus(s models.AgentStatus) AgentStatus {
	return AgentStatus{
		Stream:  NewStreamStatus(s.Stream),
		Session: NewInspectionSession(s.Session),
		Devices: NewDevices(s.Devices),
	}
}

func NewInspectionModel(m models.InspectionModel) InspectionModel {
	out := InspectionModel{
		Id:     m.ID,
		Name:   m.Name,
		Phases: make([]PhaseSpec, 0, len(m.Phases)),
	}
	for _, p := range m.Phases {
		out.Phases = append(out.Phases, PhaseSpec{
			Name:  p.Name,
			Kind:  string(p.Kind),
			Limit: NewLimit(p.Limit),
		})
	}
	return out
}

func NewSettings(s models.TestSettings) Settings {
	return Settings{
		MeasurementDurationSeconds: s.MeasurementDuration.Seconds(),
		WaitDurationSeconds:        s.WaitDuration.Seconds(),
		IntervalSeconds:            s.Interval.Seconds(),
		CommandTimeoutSeconds:      s.CommandTimeout.Seconds(),
	}
}

// ToModel converts API settings back to the internal representation.
func (s Settings) ToModel() models.TestSettings {
	return models.TestSettings{
		MeasurementDuration: secondsToDuration(s.MeasurementDurationSeconds),
		WaitDuration:        secondsToDuration(s.WaitDurationSeconds),
		Interval:            secondsToDuration(s.IntervalSeconds),
		CommandTimeout:      secondsToDuration(s.CommandTimeoutSeconds),
	}
}

func NewSessionRecord(r models.SessionRecord) SessionRecord {
	return SessionRecord{
		Session:    NewInspectionSession(r.Session),
		Overall:    string(r.Overall),
		RecordedAt: r.RecordedAt,
	}
}

func NewSessionRecords(records []models.SessionRecord) []SessionRecord {
	out := make([]SessionRecord, 0, len(records))
	for _, r := range records {
		out = append(out, NewSessionRecord(r))
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
