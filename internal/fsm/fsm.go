// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm runs strict, table-driven state machines. An event without an
// edge from the current state is an error, never a silent no-op.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidTransition is returned when no edge exists for (state, event).
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrDuplicateTransition is returned by New when a table lists (state, event) twice.
	ErrDuplicateTransition = errors.New("duplicate transition")
)

// Transition is one edge of the table. Guard can veto the edge before anything
// happens; Action runs after the guard and its error also vetoes the edge.
type Transition[S ~string, E ~string] struct {
	From   S
	Event  E
	To     S
	Guard  func(ctx context.Context, from S, event E) error
	Action func(ctx context.Context, from S, to S, event E) error
}

type edgeKey[S ~string, E ~string] struct {
	from  S
	event E
}

// Machine holds the current state and applies events one at a time.
// Guards and actions may read State but must not call Fire.
type Machine[S ~string, E ~string] struct {
	fire sync.Mutex // serialises Fire

	mu    sync.RWMutex
	state S
	edges map[edgeKey[S, E]]Transition[S, E]
}

// New indexes transitions and starts the machine in initial.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	edges := make(map[edgeKey[S, E]]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := edgeKey[S, E]{from: t.From, event: t.Event}
		if prev, ok := edges[k]; ok {
			return nil, fmt.Errorf("%w: %s on %s leads to both %s and %s",
				ErrDuplicateTransition, t.Event, t.From, prev.To, t.To)
		}
		edges[k] = t
	}
	return &Machine[S, E]{state: initial, edges: edges}, nil
}

// MustNew is New for static tables. It panics on a malformed table.
func MustNew[S ~string, E ~string](initial S, transitions []Transition[S, E]) *Machine[S, E] {
	m, err := New(initial, transitions)
	if err != nil {
		panic(err)
	}
	return m
}

// State returns the current state.
func (m *Machine[S, E]) State() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Can reports whether event has an edge from the current state.
func (m *Machine[S, E]) Can(event E) bool {
	_, ok := m.lookup(event)
	return ok
}

func (m *Machine[S, E]) lookup(event E) (Transition[S, E], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.edges[edgeKey[S, E]{from: m.state, event: event}]
	return t, ok
}

// Fire applies event and returns the resulting state. On any error the state
// is left where it was and that state is returned.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.fire.Lock()
	defer m.fire.Unlock()

	t, ok := m.lookup(event)
	if !ok {
		from := m.State()
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}
	if t.Guard != nil {
		if err := t.Guard(ctx, t.From, event); err != nil {
			return t.From, err
		}
	}
	if t.Action != nil {
		if err := t.Action(ctx, t.From, t.To, event); err != nil {
			return t.From, err
		}
	}

	m.mu.Lock()
	m.state = t.To
	m.mu.Unlock()
	return t.To, nil
}
