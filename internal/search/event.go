package search

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventGeneration  EventKind = "generation"
	EventImproved    EventKind = "improved"
	EventChampion    EventKind = "champion"
	EventReset       EventKind = "reset"
	EventCheckpoint  EventKind = "checkpoint"
	EventStepFailed  EventKind = "step_failed"
	EventStopped     EventKind = "stopped"
	EventPersistFail EventKind = "persist_failed"
)

// Event is the structured progress record emitted once per generation and on
// lifecycle transitions.
type Event struct {
	Kind            EventKind
	RunID           string
	Strategy        string
	Generation      int
	Fitness         float64
	BestFitness     float64
	ChampionFitness float64
	Stagnation      int
	Strength        float64
	Trend           float64
	Phase           Phase
	Resets          int
	Label           string
	Message         string
	At              time.Time
}

// Observer receives progress events. Implementations must not block the
// search loop for long.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// Observers fans an event out to every observer in order.
type Observers []Observer

func (o Observers) Observe(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}

// Recorder is an Observer that keeps every event; used by tests and the
// status surface.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds filters recorded events by kind.
func (r *Recorder) Kinds(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
