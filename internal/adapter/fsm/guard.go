// Package fsm validates occupancy state flips using looplab/fsm.
package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/propiq/propiq/internal/domain"
)

// Compile-time check: Guard implements domain.OccupancyGuard.
var _ domain.OccupancyGuard = (*Guard)(nil)

// propertyEvents and unitEvents convert the domain transition tables into
// looplab/fsm EventDesc format, consolidating transitions with the same
// event+destination into a single EventDesc with multiple source states.
var (
	propertyEvents = buildEvents(domain.PropertyTransitions)
	unitEvents     = buildEvents(domain.UnitTransitions)
)

func buildEvents(transitions []domain.OccupancyTransition) []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range transitions {
		k := key{event: string(t.Event), dst: t.Dst}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], t.Src)
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Guard implements domain.OccupancyGuard. It creates a short-lived FSM
// instance per call, initialized with the current state, because looplab/fsm
// is stateful (it tracks the current state internally).
type Guard struct{}

// New creates a new FSM-backed occupancy guard.
func New() *Guard {
	return &Guard{}
}

// Property checks whether event is valid from the property's current status
// and returns the destination status.
func (g *Guard) Property(ctx context.Context, current domain.PropertyStatus, event domain.OccupancyEvent) (domain.PropertyStatus, error) {
	next, err := apply(ctx, propertyEvents, string(current), event)
	if err != nil {
		return "", err
	}
	return domain.PropertyStatus(next), nil
}

// Unit checks whether event is valid from the unit's current status and
// returns the destination status.
func (g *Guard) Unit(ctx context.Context, current domain.UnitStatus, event domain.OccupancyEvent) (domain.UnitStatus, error) {
	next, err := apply(ctx, unitEvents, string(current), event)
	if err != nil {
		return "", err
	}
	return domain.UnitStatus(next), nil
}

func apply(ctx context.Context, events []loopfsm.EventDesc, current string, event domain.OccupancyEvent) (string, error) {
	machine := loopfsm.NewFSM(current, events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", &domain.OccupancyError{
				Event:   event,
				Current: current,
			}
		}
		return "", err
	}

	return machine.Current(), nil
}
