package Reconcile

import "time"

// Event kinds emitted by the engine and the linking code.
const (
	EventDeltaApplied  = "delta_applied"
	EventEntryLinked   = "entry_linked"
	EventEntryPending  = "entry_pending"
	EventEntryRejected = "entry_rejected"
	EventConflict      = "conflict"
)

// Event is one reconciliation side effect. Observers receive every event
// fire-and-forget: a failing observer never rolls back the data mutation
// that produced the event.
type Event struct {
	Kind       string    `json:"kind"`
	RecordID   uint      `json:"record_id,omitempty"`
	TruckNo    string    `json:"truck_no,omitempty"`
	DoNo       string    `json:"do_no,omitempty"`
	Field      string    `json:"field,omitempty"`
	Delta      float64   `json:"delta,omitempty"`
	OldBalance float64   `json:"old_balance,omitempty"`
	NewBalance float64   `json:"new_balance,omitempty"`
	Source     string    `json:"source,omitempty"`
	Details    string    `json:"details,omitempty"`
	At         time.Time `json:"at"`
}

// Observer receives reconciliation events.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// MultiObserver fans one event out to several observers.
type MultiObserver []Observer

func (m MultiObserver) Notify(e Event) {
	for _, o := range m {
		o.Notify(e)
	}
}
