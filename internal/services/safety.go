package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/testbench/inspection-agent/internal/models"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
	"github.com/testbench/inspection-agent/pkg/scheduler"
	"github.com/testbench/inspection-agent/pkg/scpi"
)

// defaultSafetyModelID is the model the safety start uses when no model is
// named in the request.
const defaultSafetyModelID = "safety-3t"

// Commander runs one command/response round trip against an instrument. The
// timeout is mandatory: a stuck instrument must never block the run forever.
type Commander interface {
	SendCommand(ctx context.Context, command string, timeout time.Duration) (string, error)
}

// SafetyService is the synchronous inspection path: each phase is exactly
// one blocking command/response round trip against the safety tester. Round
// trips run on the scheduler so an explicit stop interrupts an outstanding
// one; a timed-out phase fails with a recorded error and the run continues
// with the next phase.
type SafetyService struct {
	inspection *InspectionService
	commander  Commander
	scheduler  *scheduler.Scheduler

	log *zap.SugaredLogger
}

func NewSafetyService(inspection *InspectionService, commander Commander, s *scheduler.Scheduler) *SafetyService {
	return &SafetyService{
		inspection: inspection,
		commander:  commander,
		scheduler:  s,
		log:        zap.S().Named("safety_service"),
	}
}

// Start begins a synchronous safety run. An empty modelID selects the
// built-in safety model. The session single-flight rule applies exactly as
// for the sequential path.
func (s *SafetyService) Start(ctx context.Context, barcode, modelID string) error {
	if modelID == "" {
		modelID = defaultSafetyModelID
	}

	model, err := s.inspection.store.Models().Get(modelID)
	if err != nil {
		return err
	}
	for _, phase := range model.Phases {
		if _, err := scpi.TestCommand(phase.Kind); err != nil {
			return srvErrors.NewInvalidStateError("model " + model.ID + " has a phase without a synchronous test command")
		}
	}

	model, gen, err := s.inspection.beginSession(barcode, modelID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if !s.inspection.armCancel(gen, cancel) {
		cancel()
		return srvErrors.NewInvalidStateError("session ended before the safety run started")
	}

	s.inspection.metrics.SessionsStarted.Inc()
	s.inspection.hub.Publish(models.EventInspectionStarted, models.InspectionStartedData{Barcode: barcode, ModelID: model.ID})
	s.log.Infow("safety inspection started", "barcode", barcode, "model", model.ID)

	go s.run(runCtx, gen, model)
	return nil
}

// Identify probes the safety tester with *IDN? and returns the parsed
// banner.
func (s *SafetyService) Identify(ctx context.Context) (scpi.Identity, error) {
	timeout := s.inspection.store.Settings().Get().CommandTimeout
	raw, err := s.commander.SendCommand(ctx, scpi.CmdIdentify, timeout)
	if err != nil {
		return scpi.Identity{}, err
	}
	return scpi.ParseIdentity(raw)
}

func (s *SafetyService) run(runCtx context.Context, gen uint64, model models.InspectionModel) {
	defer func() {
		if runCtx.Err() == nil {
			s.inspection.finishRun(gen)
		}
	}()

	settings := s.inspection.store.Settings().Get()

	for _, phase := range model.Phases {
		if runCtx.Err() != nil {
			return
		}

		s.inspection.setCurrentPhase(gen, phase.Name)

		command, err := scpi.TestCommand(phase.Kind)
		if err != nil {
			s.inspection.failPhase(gen, phase.Name, err.Error())
			continue
		}

		start := time.Now()
		future := s.scheduler.AddWork(func(ctx context.Context) (any, error) {
			return s.commander.SendCommand(ctx, command, settings.CommandTimeout)
		})

		var result scheduler.Result[any]
		select {
		case <-runCtx.Done():
			future.Stop()
			return
		case result = <-future.C():
		}
		s.inspection.metrics.CommandDuration.Observe(time.Since(start).Seconds())

		if result.Err != nil {
			if srvErrors.IsTimeoutError(result.Err) {
				s.inspection.metrics.CommandTimeouts.Inc()
			}
			s.inspection.failPhase(gen, phase.Name, result.Err.Error())
			continue
		}

		raw, _ := result.Data.(string)
		reading, perr := scpi.Parse(raw, phase.Kind)
		if perr != nil {
			s.inspection.metrics.ParseFailures.Inc()
			s.log.Warnw("unparseable safety result", "phase", phase.Name, "raw", raw)
		}
		reading.Phase = phase.Name

		s.inspection.recordReading(gen, phase.Name, reading)
		s.inspection.completePhase(gen, phase.Name)
	}
}
