// Package lifecycle models lifecycle-bound owners such as screens and routes.
//
// An Owner moves through created, started and resumed states and is finally
// destroyed. Destruction is either permanent (Destroy) or transient
// (Reconfigure): a transient destroy is immediately followed by a recreated
// Owner under the same name that keeps the previous Owner's Store. Observers
// registered with OnDestroy receive that distinction as a boolean read at
// the moment the destroy event is dispatched.
//
// Owner is NOT thread-safe. All methods must be called from the UI thread.
package lifecycle

import "fmt"

// State represents the current lifecycle state of an Owner.
type State string

const (
	// StateInitialized is the state of an Owner that has not been created yet.
	StateInitialized State = "initialized"
	// StateCreated indicates the owner exists but is not visible.
	StateCreated State = "created"
	// StateStarted indicates the owner is visible.
	StateStarted State = "started"
	// StateResumed indicates the owner is visible and receiving input.
	StateResumed State = "resumed"
	// StateDestroyed indicates the owner is gone. No further events are dispatched.
	StateDestroyed State = "destroyed"
)

// Event is a lifecycle transition dispatched to observers.
type Event int

const (
	EventCreate Event = iota
	EventStart
	EventResume
	EventPause
	EventStop
	EventDestroy
)

func (e Event) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventStart:
		return "start"
	case EventResume:
		return "resume"
	case EventPause:
		return "pause"
	case EventStop:
		return "stop"
	case EventDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// target returns the state an owner is in after e.
func (e Event) target() State {
	switch e {
	case EventCreate, EventStop:
		return StateCreated
	case EventStart, EventPause:
		return StateStarted
	case EventResume:
		return StateResumed
	case EventDestroy:
		return StateDestroyed
	default:
		return StateInitialized
	}
}

// Observer is called for each event dispatched by an Owner.
// A returned error does not stop dispatch; errors are reported and joined.
type Observer func(o *Owner, e Event) error

// DestroyHandler is called once when an Owner is destroyed.
// transient is true when the owner is being torn down only to be recreated.
type DestroyHandler func(transient bool) error

// Disposable represents a value that requires cleanup when its owner or
// cache releases it.
type Disposable interface {
	Dispose() error
}
