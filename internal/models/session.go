package models

import "time"

// SessionStatus represents the state of the inspection session state machine.
type SessionStatus string

const (
	// SessionStatusIdle - no inspection in progress, waiting for a barcode
	SessionStatusIdle SessionStatus = "idle"
	// SessionStatusRunning - phases are being executed
	SessionStatusRunning SessionStatus = "running"
	// SessionStatusCompleted - all phases finished, verdicts final
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusError - the session terminated with an error
	SessionStatusError SessionStatus = "error"
)

// Verdict classifies a reading or a phase against its limit.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictPending Verdict = "PENDING"
)

// LimitDirection selects how a limit is compared against a value.
type LimitDirection string

const (
	DirectionAtMost  LimitDirection = "at_most"
	DirectionAtLeast LimitDirection = "at_least"
	DirectionInRange LimitDirection = "in_range"
)

// Limit is a direction-aware pass/fail threshold. Bounds are inclusive.
type Limit struct {
	LowerBound *float64
	UpperBound *float64
	Direction  LimitDirection
}

// Evaluate returns the verdict for a value against the limit.
func (l Limit) Evaluate(value float64) Verdict {
	switch l.Direction {
	case DirectionAtMost:
		if l.UpperBound != nil && value > *l.UpperBound {
			return VerdictFail
		}
		return VerdictPass
	case DirectionAtLeast:
		if l.LowerBound != nil && value < *l.LowerBound {
			return VerdictFail
		}
		return VerdictPass
	case DirectionInRange:
		if l.LowerBound != nil && value < *l.LowerBound {
			return VerdictFail
		}
		if l.UpperBound != nil && value > *l.UpperBound {
			return VerdictFail
		}
		return VerdictPass
	default:
		return VerdictPending
	}
}

// Reading is one measured value with its verdict. Immutable once created.
type Reading struct {
	Phase     string
	Value     float64
	Unit      string
	Timestamp time.Time
	Verdict   Verdict
}

// PhaseResult accumulates readings and the final verdict for one phase.
// The readings buffer is a ring: oldest entries are evicted at capacity.
type PhaseResult struct {
	Name      string
	Kind      TestKind
	Limit     Limit
	Readings  []Reading
	Capacity  int
	Verdict   Verdict
	Completed bool
	Error     string
}

// AppendReading adds a reading, evicting the oldest at capacity.
func (p *PhaseResult) AppendReading(r Reading) {
	if p.Capacity > 0 && len(p.Readings) >= p.Capacity {
		copy(p.Readings, p.Readings[1:])
		p.Readings[len(p.Readings)-1] = r
		return
	}
	p.Readings = append(p.Readings, r)
}

// Finalize marks the phase completed and computes its verdict: FAIL if any
// reading failed or a hard device error was recorded, PASS otherwise.
func (p *PhaseResult) Finalize() {
	p.Completed = true
	if p.Error != "" {
		p.Verdict = VerdictFail
		return
	}
	for _, r := range p.Readings {
		if r.Verdict == VerdictFail {
			p.Verdict = VerdictFail
			return
		}
	}
	p.Verdict = VerdictPass
}

// InspectionSession is one barcode-triggered run of all phases for a model.
type InspectionSession struct {
	ID           string
	Barcode      string
	ModelID      string
	Status       SessionStatus
	CurrentPhase string
	Phases       []PhaseResult
	StartedAt    time.Time
	FinishedAt   time.Time
	Error        string
}

// Phase returns the phase result with the given name, or nil.
func (s *InspectionSession) Phase(name string) *PhaseResult {
	for i := range s.Phases {
		if s.Phases[i].Name == name {
			return &s.Phases[i]
		}
	}
	return nil
}

// OverallVerdict aggregates the phase verdicts: FAIL if any phase failed,
// PASS only if every phase completed with PASS, PENDING otherwise.
func (s *InspectionSession) OverallVerdict() Verdict {
	if len(s.Phases) == 0 {
		return VerdictPending
	}
	allPass := true
	for _, p := range s.Phases {
		if p.Verdict == VerdictFail {
			return VerdictFail
		}
		if !p.Completed || p.Verdict != VerdictPass {
			allPass = false
		}
	}
	if allPass {
		return VerdictPass
	}
	return VerdictPending
}

// SessionRecord is the terminal snapshot of a finished session kept in the
// in-memory results archive.
type SessionRecord struct {
	Session    InspectionSession
	Overall    Verdict
	RecordedAt time.Time
}
