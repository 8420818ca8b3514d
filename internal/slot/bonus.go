package slot

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrIllegalTransition is returned when the bonus machine is driven out of order
var ErrIllegalTransition = errors.New("illegal bonus state transition")

// Phase is a BonusMachine state
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseSpinning Phase = "spinning"
	PhaseFreeSpin Phase = "free_spin"
)

// BonusRules configures free-spin entry and retriggers
type BonusRules struct {
	TriggerScatters   int `yaml:"trigger_scatters" json:"trigger_scatters"`
	Award             int `yaml:"award" json:"award"`
	AwardPerExtra     int `yaml:"award_per_extra" json:"award_per_extra"`
	RetriggerAward    int `yaml:"retrigger_award" json:"retrigger_award"`
	RetriggerPerExtra int `yaml:"retrigger_per_extra" json:"retrigger_per_extra"`
	// MaxSpins bounds the spins awarded to one sequence, retriggers included
	MaxSpins int `yaml:"max_spins" json:"max_spins"`
}

// Validate checks the rules terminate
func (r BonusRules) Validate() error {
	if r.TriggerScatters < 1 {
		return fmt.Errorf("trigger scatters must be positive")
	}
	if r.Award < 1 {
		return fmt.Errorf("free spin award must be positive")
	}
	if r.AwardPerExtra < 0 || r.RetriggerAward < 0 || r.RetriggerPerExtra < 0 {
		return fmt.Errorf("free spin awards cannot be negative")
	}
	if r.MaxSpins < r.Award {
		return fmt.Errorf("max spins %d below initial award %d", r.MaxSpins, r.Award)
	}
	return nil
}

func (r BonusRules) award(scatters, base, perExtra int) int {
	if scatters < r.TriggerScatters || base <= 0 {
		return 0
	}
	return base + perExtra*(scatters-r.TriggerScatters)
}

// BonusState is the state carried across a free-spin sequence
type BonusState struct {
	Phase                 Phase           `json:"phase"`
	SpinsRemaining        int             `json:"spins_remaining"`
	Awarded               int             `json:"awarded"`
	Played                int             `json:"played"`
	AccumulatedMultiplier int             `json:"accumulated_multiplier"`
	PendingPayout         decimal.Decimal `json:"pending_payout"`
}

// Transition records a state change for observers
type Transition struct {
	From           Phase `json:"from"`
	To             Phase `json:"to"`
	Spin           int   `json:"spin"`
	Scatters       int   `json:"scatters"`
	Awarded        int   `json:"awarded"`
	SpinsRemaining int   `json:"spins_remaining"`
}

// BonusMachine drives Idle -> Spinning -> (FreeSpin)* -> Idle
type BonusMachine struct {
	rules       BonusRules
	state       BonusState
	spin        int
	transitions []Transition
}

// NewBonusMachine returns an idle machine
func NewBonusMachine(rules BonusRules) *BonusMachine {
	return &BonusMachine{rules: rules, state: idleState()}
}

func idleState() BonusState {
	return BonusState{Phase: PhaseIdle, PendingPayout: decimal.Zero}
}

// State returns a copy of the current state
func (m *BonusMachine) State() BonusState {
	return m.state
}

// Transitions returns every recorded state change
func (m *BonusMachine) Transitions() []Transition {
	return m.transitions
}

func (m *BonusMachine) move(to Phase, scatters, awarded int) {
	m.transitions = append(m.transitions, Transition{
		From:           m.state.Phase,
		To:             to,
		Spin:           m.spin,
		Scatters:       scatters,
		Awarded:        awarded,
		SpinsRemaining: m.state.SpinsRemaining,
	})
	m.state.Phase = to
}

// Start accepts a stake and begins the base spin
func (m *BonusMachine) Start() error {
	if m.state.Phase != PhaseIdle {
		return fmt.Errorf("%w: start from %s", ErrIllegalTransition, m.state.Phase)
	}
	m.spin = 0
	m.move(PhaseSpinning, 0, 0)
	return nil
}

// EndBaseSpin books the base spin payout and enters free spins when the final
// grid holds enough scatters. It returns the number of spins awarded.
func (m *BonusMachine) EndBaseSpin(scatters int, payout decimal.Decimal) (int, error) {
	if m.state.Phase != PhaseSpinning {
		return 0, fmt.Errorf("%w: end base spin in %s", ErrIllegalTransition, m.state.Phase)
	}
	m.state.PendingPayout = m.state.PendingPayout.Add(payout)

	awarded := m.grant(m.rules.award(scatters, m.rules.Award, m.rules.AwardPerExtra))
	if awarded == 0 {
		return 0, nil
	}
	m.state.SpinsRemaining = awarded
	m.move(PhaseFreeSpin, scatters, awarded)
	return awarded, nil
}

// BeginFreeSpin consumes one free spin
func (m *BonusMachine) BeginFreeSpin() error {
	if m.state.Phase != PhaseFreeSpin || m.state.SpinsRemaining <= 0 {
		return fmt.Errorf("%w: no free spin available", ErrIllegalTransition)
	}
	m.spin++
	m.state.SpinsRemaining--
	m.state.Played++
	return nil
}

// EndFreeSpin books a free spin payout and applies any retrigger. It returns
// the number of spins added.
func (m *BonusMachine) EndFreeSpin(scatters int, payout decimal.Decimal, accumulated int) (int, error) {
	if m.state.Phase != PhaseFreeSpin {
		return 0, fmt.Errorf("%w: end free spin in %s", ErrIllegalTransition, m.state.Phase)
	}
	m.state.PendingPayout = m.state.PendingPayout.Add(payout)
	m.state.AccumulatedMultiplier = accumulated

	added := m.grant(m.rules.award(scatters, m.rules.RetriggerAward, m.rules.RetriggerPerExtra))
	if added > 0 {
		m.state.SpinsRemaining += added
		m.move(PhaseFreeSpin, scatters, added)
	}
	return added, nil
}

// grant clamps an award to what is left of the sequence cap
func (m *BonusMachine) grant(n int) int {
	if left := m.rules.MaxSpins - m.state.Awarded; n > left {
		n = left
	}
	if n < 0 {
		n = 0
	}
	m.state.Awarded += n
	return n
}

// Done reports whether no further free spin is due
func (m *BonusMachine) Done() bool {
	return m.state.Phase != PhaseFreeSpin || m.state.SpinsRemaining == 0
}

// Settle returns the final state of the round and resets the machine to idle
func (m *BonusMachine) Settle() BonusState {
	final := m.state
	if m.state.Phase != PhaseIdle {
		m.move(PhaseIdle, 0, 0)
	}
	m.state = idleState()
	return final
}
