package models

import "fmt"

// TestKind classifies what an instrument measures in a phase. It selects the
// SCPI command and the unit suffix used when parsing responses.
type TestKind string

const (
	// TestKindPower - numeric power telemetry streamed during a phase
	TestKindPower TestKind = "power"
	// TestKindDielectric - dielectric withstand (ACW), leakage current in mA
	TestKindDielectric TestKind = "dielectric"
	// TestKindInsulation - insulation resistance (IR) in MΩ
	TestKindInsulation TestKind = "insulation"
	// TestKindGroundBond - ground bond (GB) resistance in Ω
	TestKindGroundBond TestKind = "ground_bond"
)

// PhaseSpec declares one ordered phase of an inspection model.
type PhaseSpec struct {
	Name  string   `validate:"required"`
	Kind  TestKind `validate:"required,oneof=power dielectric insulation ground_bond"`
	Limit Limit
}

// InspectionModel is the per-product catalog entry: the ordered phases and
// their limits. Phase order is fixed and never reordered.
type InspectionModel struct {
	ID     string      `validate:"required"`
	Name   string      `validate:"required"`
	Phases []PhaseSpec `validate:"required,min=1,dive"`
}

func ptr(v float64) *float64 { return &v }

// BuiltinModels returns the catalog shipped with the agent: a three-phase
// power model and the safety-tester model.
func BuiltinModels() []InspectionModel {
	return []InspectionModel{
		{
			ID:   "power-3p",
			Name: "Three-phase power inspection",
			Phases: []PhaseSpec{
				{Name: "P1", Kind: TestKindPower, Limit: Limit{LowerBound: ptr(0), UpperBound: ptr(100), Direction: DirectionInRange}},
				{Name: "P2", Kind: TestKindPower, Limit: Limit{LowerBound: ptr(0), UpperBound: ptr(100), Direction: DirectionInRange}},
				{Name: "P3", Kind: TestKindPower, Limit: Limit{LowerBound: ptr(0), UpperBound: ptr(100), Direction: DirectionInRange}},
			},
		},
		{
			ID:   "safety-3t",
			Name: "Safety tester inspection",
			Phases: []PhaseSpec{
				{Name: "dielectric", Kind: TestKindDielectric, Limit: Limit{UpperBound: ptr(0.5), Direction: DirectionAtMost}},
				{Name: "insulation", Kind: TestKindInsulation, Limit: Limit{LowerBound: ptr(1.0), Direction: DirectionAtLeast}},
				{Name: "ground_bond", Kind: TestKindGroundBond, Limit: Limit{UpperBound: ptr(0.1), Direction: DirectionAtMost}},
			},
		},
	}
}

// NewSession builds a fresh session for the model with empty phase buffers.
func (m InspectionModel) NewSession(id, barcode string, phaseCapacity int) InspectionSession {
	phases := make([]PhaseResult, 0, len(m.Phases))
	for _, spec := range m.Phases {
		phases = append(phases, PhaseResult{
			Name:     spec.Name,
			Kind:     spec.Kind,
			Limit:    spec.Limit,
			Capacity: phaseCapacity,
			Verdict:  VerdictPending,
		})
	}
	return InspectionSession{
		ID:      id,
		Barcode: barcode,
		ModelID: m.ID,
		Status:  SessionStatusRunning,
		Phases:  phases,
	}
}

// PhaseKind returns the test kind declared for a phase name.
func (m InspectionModel) PhaseKind(name string) (TestKind, error) {
	for _, p := range m.Phases {
		if p.Name == name {
			return p.Kind, nil
		}
	}
	return "", fmt.Errorf("model %s has no phase %s", m.ID, name)
}
