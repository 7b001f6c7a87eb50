// Package services contains the agent's domain services: device connection
// lifecycle, the event stream owner, the inspection session controller and
// the synchronous safety path.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testbench/inspection-agent/internal/metrics"
	"github.com/testbench/inspection-agent/internal/models"
	"github.com/testbench/inspection-agent/internal/store"
	"github.com/testbench/inspection-agent/pkg/driver"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
	"github.com/testbench/inspection-agent/pkg/scpi"
)

const eventBuffer = 256

// DriverGateway is the command side of the driver backend used by the
// session controller.
type DriverGateway interface {
	StartSequentialInspection(ctx context.Context, req driver.SequentialRequest) error
	StopInspection(ctx context.Context) error
}

// Broadcaster pushes agent events to the operator websocket hub.
type Broadcaster interface {
	Publish(eventType string, data any)
}

// InspectionService is the session state machine: IDLE → RUNNING →
// {COMPLETED, ERROR}, RUNNING → IDLE on stop. At most one session is RUNNING.
// Stream events are consumed run-to-completion by a single goroutine; a
// generation counter fences out results and events that belong to a stopped
// run.
type InspectionService struct {
	driver  DriverGateway
	devices *DeviceService
	store   *store.Store
	hub     Broadcaster
	metrics *metrics.Metrics

	events chan models.StreamEvent

	mu        sync.Mutex
	session   models.InspectionSession
	gen       uint64
	cancelRun context.CancelFunc

	phaseCapacity int

	log *zap.SugaredLogger
}

func NewInspectionService(gateway DriverGateway, devices *DeviceService, st *store.Store, hub Broadcaster, m *metrics.Metrics, phaseCapacity int) *InspectionService {
	return &InspectionService{
		driver:        gateway,
		devices:       devices,
		store:         st,
		hub:           hub,
		metrics:       m,
		events:        make(chan models.StreamEvent, eventBuffer),
		session:       models.InspectionSession{Status: models.SessionStatusIdle},
		phaseCapacity: phaseCapacity,
		log:           zap.S().Named("inspection_service"),
	}
}

// Enqueue hands a stream event to the controller goroutine. Order of
// delivery is the order of arrival.
func (s *InspectionService) Enqueue(ev models.StreamEvent) {
	s.events <- ev
}

// OnStreamError feeds the terminal stream error through the same ordered
// queue, so in-flight events settle first. A RUNNING session ends in ERROR.
func (s *InspectionService) OnStreamError(err error) {
	data, _ := json.Marshal(models.InspectionErrorData{Message: err.Error()})
	s.events <- models.StreamEvent{Type: models.EventInspectionError, Data: data}
}

// Run consumes the event queue until the context is cancelled. The single
// consumer is what guarantees run-to-completion handling.
func (s *InspectionService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		}
	}
}

// Start begins a sequential inspection for a barcode. An empty modelID
// selects the operator's current model. Starting while a session is RUNNING
// returns SessionConflictError with zero side effects.
func (s *InspectionService) Start(ctx context.Context, barcode, modelID string) error {
	model, gen, err := s.beginSession(barcode, modelID)
	if err != nil {
		return err
	}

	settings := s.store.Settings().Get()
	req := driver.SequentialRequest{
		Barcode:             barcode,
		ModelID:             model.ID,
		MeasurementDuration: settings.MeasurementDuration.Seconds(),
		WaitDuration:        settings.WaitDuration.Seconds(),
		IntervalSeconds:     settings.Interval.Seconds(),
	}
	if err := s.driver.StartSequentialInspection(ctx, req); err != nil {
		s.failRun(gen, fmt.Sprintf("starting inspection: %v", err))
		return err
	}

	s.metrics.SessionsStarted.Inc()
	s.hub.Publish(models.EventInspectionStarted, models.InspectionStartedData{Barcode: barcode, ModelID: model.ID})
	s.log.Infow("inspection started", "barcode", barcode, "model", model.ID)
	return nil
}

// Stop resets any non-IDLE session to IDLE: a RUNNING session is aborted,
// a COMPLETED or ERROR one is cleared. Local state resets immediately; the
// remote stop is only issued for a RUNNING session and is best effort, its
// failure never blocks the reset. Stop while IDLE is a no-op.
func (s *InspectionService) Stop(ctx context.Context) error {
	s.mu.Lock()
	status := s.session.Status
	if status == models.SessionStatusIdle {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.session = models.InspectionSession{Status: models.SessionStatusIdle}
	s.mu.Unlock()

	if status == models.SessionStatusRunning {
		if err := s.driver.StopInspection(ctx); err != nil {
			s.log.Warnw("remote stop failed, local state already reset", "error", err)
		}
		s.metrics.SessionsStopped.Inc()
	}

	s.hub.Publish(models.EventInspectionStopped, nil)
	s.log.Infow("inspection stopped", "from", status)
	return nil
}

// Status returns a deep copy of the current session.
func (s *InspectionService) Status() models.InspectionSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.session)
}

func (s *InspectionService) handleEvent(ctx context.Context, ev models.StreamEvent) {
	s.metrics.EventsReceived.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case models.EventBarcodeScanned:
		var data models.BarcodeScannedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			s.log.Warnw("dropping malformed barcode event", "error", err)
			return
		}
		s.hub.Publish(ev.Type, data)
		if err := s.Start(ctx, data.Barcode, ""); err != nil {
			s.log.Warnw("barcode did not start an inspection", "barcode", data.Barcode, "error", err)
		}

	case models.EventInspectionStarted:
		var data models.InspectionStartedData
		_ = json.Unmarshal(ev.Data, &data)
		s.hub.Publish(ev.Type, data)

	case models.EventPhaseUpdate, models.EventStepStart:
		var data models.PhaseData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		s.setCurrentPhase(s.generation(), data.Phase)

	case models.EventMeasurementUpdate:
		s.handleMeasurement(ev.Data)

	case models.EventPhaseComplete, models.EventStepComplete:
		var data models.PhaseData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		s.completePhase(s.generation(), data.Phase)

	case models.EventInspectionComplete:
		s.finishRun(s.generation())

	case models.EventInspectionStopped:
		s.resetToIdle(s.generation())

	case models.EventInspectionError:
		var data models.InspectionErrorData
		_ = json.Unmarshal(ev.Data, &data)
		s.failRun(s.generation(), data.Message)

	case models.EventMessageLog:
		var data models.MessageLogData
		_ = json.Unmarshal(ev.Data, &data)
		s.log.Infow("driver message", "level", data.Level, "message", data.Message)
		s.hub.Publish(ev.Type, data)
	}
}

func (s *InspectionService) handleMeasurement(raw json.RawMessage) {
	var m models.MeasurementUpdateData
	if err := json.Unmarshal(raw, &m); err != nil {
		s.log.Warnw("dropping malformed measurement event", "error", err)
		return
	}

	s.mu.Lock()
	if s.session.Status != models.SessionStatusRunning {
		s.mu.Unlock()
		s.metrics.EventsDropped.Inc()
		return
	}
	gen := s.gen
	phaseName := m.Phase
	if phaseName == "" {
		phaseName = s.session.CurrentPhase
	}
	phase := s.session.Phase(phaseName)
	if phase == nil {
		s.mu.Unlock()
		s.metrics.EventsDropped.Inc()
		s.log.Warnw("dropping measurement for unknown phase", "phase", phaseName)
		return
	}
	kind := phase.Kind
	limit := phase.Limit
	s.mu.Unlock()

	var reading models.Reading
	if m.Value != nil {
		unit := m.Unit
		if unit == "" {
			unit = scpi.Unit(kind)
		}
		// numeric telemetry gets its verdict from the phase limit
		reading = models.Reading{
			Phase:     phaseName,
			Value:     *m.Value,
			Unit:      unit,
			Timestamp: time.Now(),
			Verdict:   limit.Evaluate(*m.Value),
		}
	} else {
		var err error
		reading, err = scpi.Parse(m.Raw, kind)
		if err != nil {
			s.metrics.ParseFailures.Inc()
			s.log.Warnw("unparseable measurement", "phase", phaseName, "raw", m.Raw)
		}
		reading.Phase = phaseName
	}

	s.recordReading(gen, phaseName, reading)
}

// beginSession flips IDLE (or a terminal state) to RUNNING under the
// single-flight invariant: exactly one RUNNING session, fresh buffers, a
// bumped generation.
func (s *InspectionService) beginSession(barcode, modelID string) (models.InspectionModel, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status == models.SessionStatusRunning {
		return models.InspectionModel{}, 0, srvErrors.NewSessionConflictError()
	}

	if modelID == "" {
		modelID = s.store.Settings().SelectedModelID()
	}
	model, err := s.store.Models().Get(modelID)
	if err != nil {
		return models.InspectionModel{}, 0, err
	}

	for _, deviceType := range requiredDevices(model) {
		if s.devices.Status(deviceType) != models.ConnectionStateConnected {
			return models.InspectionModel{}, 0, srvErrors.NewDeviceNotConnectedError(string(deviceType))
		}
	}

	s.gen++
	s.cancelRun = nil
	s.session = model.NewSession(uuid.NewString(), barcode, s.phaseCapacity)
	s.session.StartedAt = time.Now()
	s.store.History().Reset()

	return model, s.gen, nil
}

// armCancel registers the cancel function interrupting the in-flight run.
// Refused when the generation already moved on.
func (s *InspectionService) armCancel(gen uint64, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.session.Status != models.SessionStatusRunning {
		return false
	}
	s.cancelRun = cancel
	return true
}

func (s *InspectionService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *InspectionService) setCurrentPhase(gen uint64, phase string) {
	s.mu.Lock()
	if gen != s.gen || s.session.Status != models.SessionStatusRunning {
		s.mu.Unlock()
		return
	}
	s.session.CurrentPhase = phase
	s.mu.Unlock()

	s.hub.Publish(models.EventPhaseUpdate, models.PhaseData{Phase: phase})
}

func (s *InspectionService) recordReading(gen uint64, phase string, reading models.Reading) {
	s.mu.Lock()
	if gen != s.gen || s.session.Status != models.SessionStatusRunning {
		s.mu.Unlock()
		s.metrics.EventsDropped.Inc()
		return
	}
	p := s.session.Phase(phase)
	if p == nil {
		s.mu.Unlock()
		s.metrics.EventsDropped.Inc()
		return
	}
	p.AppendReading(reading)
	s.mu.Unlock()

	s.store.History().Append(phase, reading)
	s.metrics.ReadingsTotal.WithLabelValues(string(reading.Verdict)).Inc()
	s.hub.Publish(models.EventMeasurementUpdate, reading)
}

func (s *InspectionService) failPhase(gen uint64, phase, message string) {
	s.mu.Lock()
	if gen != s.gen || s.session.Status != models.SessionStatusRunning {
		s.mu.Unlock()
		return
	}
	p := s.session.Phase(phase)
	if p == nil {
		s.mu.Unlock()
		return
	}
	p.Error = message
	p.Finalize()
	verdict := p.Verdict
	s.mu.Unlock()

	s.log.Warnw("phase failed", "phase", phase, "error", message)
	s.hub.Publish(models.EventPhaseComplete, phasePayload{Phase: phase, Verdict: verdict})
}

func (s *InspectionService) completePhase(gen uint64, phase string) {
	s.mu.Lock()
	if gen != s.gen || s.session.Status != models.SessionStatusRunning {
		s.mu.Unlock()
		return
	}
	p := s.session.Phase(phase)
	if p == nil {
		s.mu.Unlock()
		return
	}
	p.Finalize()
	verdict := p.Verdict
	s.mu.Unlock()

	s.hub.Publish(models.EventPhaseComplete, phasePayload{Phase: phase, Verdict: verdict})
}

func (s *InspectionService) finishRun(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.session.Status != models.SessionStatusRunning {
		s.mu.Unlock()
		return
	}
	s.session.Status = models.SessionStatusCompleted
	s.session.CurrentPhase = ""
	s.session.FinishedAt = time.Now()
	s.cancelRun = nil
	overall := s.session.OverallVerdict()
	record := models.SessionRecord{
		Session:    copySession(s.session),
		Overall:    overall,
		RecordedAt: time.Now(),
	}
	s.mu.Unlock()

	s.store.Results().Add(record)
	s.metrics.SessionsCompleted.WithLabelValues(string(overall)).Inc()
	s.hub.Publish(models.EventInspectionComplete, verdictPayload{Verdict: overall})
	s.log.Infow("inspection completed", "verdict", overall)
}

func (s *InspectionService) failRun(gen uint64, message string) {
	s.mu.Lock()
	if gen != s.gen || s.session.Status != models.SessionStatusRunning {
		s.mu.Unlock()
		return
	}
	s.session.Status = models.SessionStatusError
	s.session.CurrentPhase = ""
	s.session.Error = message
	s.session.FinishedAt = time.Now()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	record := models.SessionRecord{
		Session:    copySession(s.session),
		Overall:    models.VerdictFail,
		RecordedAt: time.Now(),
	}
	s.mu.Unlock()

	s.store.Results().Add(record)
	s.metrics.SessionErrors.Inc()
	s.hub.Publish(models.EventInspectionError, models.InspectionErrorData{Message: message})
	s.log.Errorw("inspection failed", "error", message)
}

func (s *InspectionService) resetToIdle(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.session.Status != models.SessionStatusRunning {
		s.mu.Unlock()
		return
	}
	s.gen++
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.session = models.InspectionSession{Status: models.SessionStatusIdle}
	s.mu.Unlock()

	s.hub.Publish(models.EventInspectionStopped, nil)
	s.log.Infow("inspection stopped by driver")
}

type phasePayload struct {
	Phase   string         `json:"phase"`
	Verdict models.Verdict `json:"verdict"`
}

type verdictPayload struct {
	Verdict models.Verdict `json:"verdict"`
}

// requiredDevices maps a model's phase kinds onto the instruments that must
// be CONNECTED before a run starts.
func requiredDevices(model models.InspectionModel) []models.DeviceType {
	seen := make(map[models.DeviceType]struct{})
	var out []models.DeviceType
	for _, phase := range model.Phases {
		deviceType := models.DeviceTypeSafetyTester
		if phase.Kind == models.TestKindPower {
			deviceType = models.DeviceTypePowerMeter
		}
		if _, ok := seen[deviceType]; !ok {
			seen[deviceType] = struct{}{}
			out = append(out, deviceType)
		}
	}
	return out
}

func copySession(s models.InspectionSession) models.InspectionSession {
	out := s
	out.Phases = make([]models.PhaseResult, len(s.Phases))
	for i, p := range s.Phases {
		cp := p
		cp.Readings = make([]models.Reading, len(p.Readings))
		copy(cp.Readings, p.Readings)
		out.Phases[i] = cp
	}
	return out
}
