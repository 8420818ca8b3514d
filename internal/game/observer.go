package game

import (
	"github.com/alexbotov/cascade/internal/slot"
	"go.uber.org/zap"
)

// EventType names what an observer is told about
type EventType string

const (
	EventGridUpdated       EventType = "grid_updated"
	EventCascadeResolved   EventType = "cascade_resolved"
	EventBonusStateChanged EventType = "bonus_state_changed"
	EventRoundSettled      EventType = "round_settled"
)

// Event is one presentation update of a round, replayed from its trace
type Event struct {
	Type       EventType         `json:"type"`
	RoundID    string            `json:"round_id"`
	PlayerID   string            `json:"player_id"`
	GameID     string            `json:"game_id"`
	Spin       int               `json:"spin"`
	Mode       slot.Mode         `json:"mode,omitempty"`
	Grid       *slot.Grid        `json:"grid,omitempty"`
	Step       *slot.CascadeStep `json:"step,omitempty"`
	Transition *slot.Transition  `json:"transition,omitempty"`
	Result     *RoundResult      `json:"result,omitempty"`
}

// Observer receives round events. Notify must not block; the engine does not
// wait on observers and ignores their failures.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// Notify calls f
func (f ObserverFunc) Notify(ev Event) {
	f(ev)
}

// traceEvents orders a round trace into observer events: the start transition,
// then each spin's grid and cascades followed by the transitions it caused.
func traceEvents(roundID, playerID string, trace *slot.RoundTrace) []Event {
	base := Event{RoundID: roundID, PlayerID: playerID, GameID: trace.GameID}
	var events []Event

	transitions := trace.Transitions
	next := 0
	emitTransitions := func(until func(slot.Transition) bool) {
		for next < len(transitions) && until(transitions[next]) {
			ev := base
			ev.Type = EventBonusStateChanged
			t := transitions[next]
			ev.Spin = t.Spin
			ev.Transition = &t
			events = append(events, ev)
			next++
		}
	}

	emitTransitions(func(t slot.Transition) bool { return t.From == slot.PhaseIdle })

	for i := range trace.Spins {
		spin := &trace.Spins[i]

		ev := base
		ev.Type = EventGridUpdated
		ev.Spin = spin.Index
		ev.Mode = spin.Mode
		ev.Grid = spin.Initial
		events = append(events, ev)

		for j := range spin.Steps {
			ev := base
			ev.Type = EventCascadeResolved
			ev.Spin = spin.Index
			ev.Mode = spin.Mode
			ev.Step = &spin.Steps[j]
			ev.Grid = spin.Steps[j].Grid
			events = append(events, ev)
		}

		emitTransitions(func(t slot.Transition) bool { return t.Spin <= spin.Index })
	}
	emitTransitions(func(slot.Transition) bool { return true })

	return events
}

// publish hands ev to every observer, isolating the round from observer panics
func (e *Engine) publish(ev Event) {
	e.mu.RLock()
	observers := e.observers
	e.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("observer panicked",
						zap.String("round_id", ev.RoundID),
						zap.String("event", string(ev.Type)),
						zap.Any("panic", r))
				}
			}()
			o.Notify(ev)
		}()
	}
}
