package models

// Phase is one state of the economic cycle.
type Phase string

const (
	PhaseNormal     Phase = "NORMAL"
	PhaseBoom       Phase = "BOOM"
	PhaseOverheat   Phase = "OVERHEAT"
	PhaseRecession  Phase = "RECESSION"
	PhaseDepression Phase = "DEPRESSION"
	PhaseRecovery   Phase = "RECOVERY"
)

// PhaseSpec holds the duration range, multipliers and daily event chance of a phase.
type PhaseSpec struct {
	MinDays          int     `json:"min_days"`
	MaxDays          int     `json:"max_days"`
	SellMultiplier   float64 `json:"sell_multiplier"`
	BuyMultiplier    float64 `json:"buy_multiplier"`
	SalaryMultiplier float64 `json:"salary_multiplier"`
	EventChance      float64 `json:"event_chance"`
}

var phaseOrder = []Phase{PhaseNormal, PhaseBoom, PhaseOverheat, PhaseRecession, PhaseDepression, PhaseRecovery}

var phaseSpecs = map[Phase]PhaseSpec{
	PhaseNormal:     {MinDays: 7, MaxDays: 14, SellMultiplier: 1.00, BuyMultiplier: 1.00, SalaryMultiplier: 1.00, EventChance: 0.05},
	PhaseBoom:       {MinDays: 5, MaxDays: 10, SellMultiplier: 1.20, BuyMultiplier: 1.10, SalaryMultiplier: 1.10, EventChance: 0.10},
	PhaseOverheat:   {MinDays: 3, MaxDays: 7, SellMultiplier: 1.35, BuyMultiplier: 1.25, SalaryMultiplier: 1.15, EventChance: 0.20},
	PhaseRecession:  {MinDays: 5, MaxDays: 10, SellMultiplier: 0.85, BuyMultiplier: 0.90, SalaryMultiplier: 0.95, EventChance: 0.15},
	PhaseDepression: {MinDays: 4, MaxDays: 8, SellMultiplier: 0.70, BuyMultiplier: 0.80, SalaryMultiplier: 0.85, EventChance: 0.25},
	PhaseRecovery:   {MinDays: 5, MaxDays: 10, SellMultiplier: 0.90, BuyMultiplier: 0.95, SalaryMultiplier: 0.95, EventChance: 0.10},
}

func (p Phase) Spec() PhaseSpec { return phaseSpecs[p] }

// Next returns the following phase; the cycle is fixed with no branching.
func (p Phase) Next() Phase {
	for i, ph := range phaseOrder {
		if ph == p {
			return phaseOrder[(i+1)%len(phaseOrder)]
		}
	}
	return PhaseNormal
}

func ParsePhase(s string) (Phase, bool) {
	p := Phase(s)
	_, ok := phaseSpecs[p]
	return p, ok
}

// Phases lists the cycle in order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// CycleState is the persisted and reported cycle snapshot.
type CycleState struct {
	Phase              Phase   `json:"phase"`
	RemainingDays      int     `json:"remaining_days"`
	PhaseTotalDays     int     `json:"phase_total_days"`
	TotalDaysElapsed   int64   `json:"total_days_elapsed"`
	CompletedCycles    int     `json:"completed_cycles"`
	CurrentMultiplier  float64 `json:"current_multiplier"`
	PreviousMultiplier float64 `json:"previous_multiplier"`
}
