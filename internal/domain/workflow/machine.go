package workflow

import (
	"fmt"
	"slices"
	"strings"
)

type Machine struct {
	name        string
	initial     Status
	statuses    []Status
	transitions []Transition
}

// NewMachine validates the table: every transition needs a target, at least
// one source and one actor, and no two transitions may share an action and
// a source status.
func NewMachine(name string, initial Status, statuses []Status, transitions ...Transition) (*Machine, error) {
	known := map[Status]bool{}
	for _, s := range statuses {
		known[s] = true
	}
	if !known[initial] {
		return nil, fmt.Errorf("%s: initial status %q not declared", name, initial)
	}

	seen := map[string]bool{}
	for _, t := range transitions {
		if t.Action == "" || t.To == "" {
			return nil, fmt.Errorf("%s: transition missing action or target", name)
		}
		if !known[t.To] {
			return nil, fmt.Errorf("%s: %s targets undeclared status %q", name, t.Action, t.To)
		}
		if len(t.From) == 0 || len(t.Actors) == 0 {
			return nil, fmt.Errorf("%s: %s needs source statuses and actors", name, t.Action)
		}
		for _, from := range t.From {
			if !known[from] {
				return nil, fmt.Errorf("%s: %s from undeclared status %q", name, t.Action, from)
			}
			key := string(t.Action) + "|" + string(from)
			if seen[key] {
				return nil, fmt.Errorf("%s: duplicate transition %s from %s", name, t.Action, from)
			}
			seen[key] = true
		}
	}

	return &Machine{name: name, initial: initial, statuses: statuses, transitions: transitions}, nil
}

func MustMachine(name string, initial Status, statuses []Status, transitions ...Transition) *Machine {
	m, err := NewMachine(name, initial, statuses, transitions...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Machine) Name() string {
	return m.name
}

func (m *Machine) Initial() Status {
	return m.initial
}

func (m *Machine) Statuses() []Status {
	return slices.Clone(m.statuses)
}

func (m *Machine) Known(status Status) bool {
	return slices.Contains(m.statuses, status)
}

// Fire checks an action against the current status and the requester's
// relations and describes the resulting change. It never mutates state.
func (m *Machine) Fire(current Status, action Action, actors Actors, reason string) (Outcome, error) {
	var candidate *Transition
	actionKnown := false
	for i := range m.transitions {
		t := &m.transitions[i]
		if t.Action != action {
			continue
		}
		actionKnown = true
		if slices.Contains(t.From, current) {
			candidate = t
			break
		}
	}
	if !actionKnown {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if candidate == nil {
		return Outcome{}, fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, humanize(string(action)), current)
	}

	actor, ok := matchActor(candidate.Actors, actors)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrActorNotAllowed, humanize(string(action)))
	}

	reason = strings.TrimSpace(reason)
	if candidate.RequiresReason && reason == "" {
		return Outcome{}, ErrReasonRequired
	}

	return Outcome{
		Action:      candidate.Action,
		From:        current,
		To:          candidate.To,
		Actor:       actor,
		Reason:      reason,
		Stamps:      slices.Clone(candidate.Stamps),
		Notices:     slices.Clone(candidate.Notices),
		AuditAction: candidate.AuditAction,
	}, nil
}

// Available lists the actions the requester could fire right now.
func (m *Machine) Available(current Status, actors Actors) []Action {
	var out []Action
	for _, t := range m.transitions {
		if !slices.Contains(t.From, current) {
			continue
		}
		if _, ok := matchActor(t.Actors, actors); !ok {
			continue
		}
		if !slices.Contains(out, t.Action) {
			out = append(out, t.Action)
		}
	}
	return out
}

// Terminal is true when no transition leaves status.
func (m *Machine) Terminal(status Status) bool {
	for _, t := range m.transitions {
		if slices.Contains(t.From, status) {
			return false
		}
	}
	return true
}

func matchActor(allowed []Actor, actors Actors) (Actor, bool) {
	for _, a := range allowed {
		if actors.Has(a) {
			return a, true
		}
	}
	return "", false
}

func humanize(value string) string {
	return strings.ReplaceAll(value, "_", " ")
}
