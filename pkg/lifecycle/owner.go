package lifecycle

import (
	stderrors "errors"
	"fmt"

	"github.com/go-drift/driftx/pkg/errors"
)

// Owner is a lifecycle-bound entity that observers can attach to.
type Owner struct {
	name      string
	state     State
	observers []Observer
	store     *Store

	changingConfigurations bool
}

// New creates an Owner in StateInitialized with an empty Store.
func New(name string) *Owner {
	return &Owner{
		name:  name,
		state: StateInitialized,
		store: NewStore(),
	}
}

// Name returns the owner's name. Recreated owners keep the same name.
func (o *Owner) Name() string {
	return o.name
}

func (o *Owner) String() string {
	return fmt.Sprintf("Owner(%s, %s)", o.name, o.state)
}

// State returns the current lifecycle state.
func (o *Owner) State() State {
	return o.state
}

// IsDestroyed reports whether the owner has been destroyed.
func (o *Owner) IsDestroyed() bool {
	return o.state == StateDestroyed
}

// Store returns the owner's view-model store. The store survives Reconfigure.
func (o *Owner) Store() *Store {
	return o.store
}

// IsChangingConfigurations reports whether the owner is being destroyed as
// part of Reconfigure. It is only true while the destroy event is dispatched.
func (o *Owner) IsChangingConfigurations() bool {
	return o.changingConfigurations
}

// AddObserver registers an observer for subsequent events.
// Returns a function that can be called to remove the observer.
func (o *Owner) AddObserver(observer Observer) func() {
	if observer == nil || o.state == StateDestroyed {
		return func() {}
	}
	index := len(o.observers)
	o.observers = append(o.observers, observer)
	return func() {
		if index < len(o.observers) {
			o.observers[index] = nil
		}
	}
}

// OnDestroy registers a handler for the destroy event. The transient flag
// passed to the handler is read when the event fires, not at registration.
// Registering on an already destroyed owner does nothing.
func (o *Owner) OnDestroy(handler DestroyHandler) func() {
	if handler == nil {
		return func() {}
	}
	return o.AddObserver(func(owner *Owner, e Event) error {
		if e != EventDestroy {
			return nil
		}
		return handler(owner.IsChangingConfigurations())
	})
}

// Create moves the owner to StateCreated.
func (o *Owner) Create() error {
	return o.moveTo(StateCreated)
}

// Start moves the owner to StateStarted, creating it first if needed.
func (o *Owner) Start() error {
	return o.moveTo(StateStarted)
}

// Resume moves the owner to StateResumed, walking through earlier states.
func (o *Owner) Resume() error {
	return o.moveTo(StateResumed)
}

// Pause moves a resumed owner back to StateStarted.
func (o *Owner) Pause() error {
	return o.moveTo(StateStarted)
}

// Stop moves the owner back to StateCreated.
func (o *Owner) Stop() error {
	return o.moveTo(StateCreated)
}

// Destroy permanently destroys the owner. Observers see a non-transient
// destroy and the Store is cleared afterwards. Calling Destroy on a
// destroyed owner is a no-op.
func (o *Owner) Destroy() error {
	if o.state == StateDestroyed {
		return nil
	}
	err := o.destroy(false)
	if clearErr := o.store.Clear(); clearErr != nil {
		err = stderrors.Join(err, clearErr)
	}
	return err
}

// Reconfigure destroys the owner transiently and returns its replacement.
// The replacement has the same name, shares the Store and is brought back
// to the state the owner was in before destruction.
func (o *Owner) Reconfigure() (*Owner, error) {
	if o.state == StateDestroyed {
		panic(&errors.ContractError{
			Op:     "lifecycle.Reconfigure",
			Reason: fmt.Sprintf("owner %q already destroyed", o.name),
		})
	}
	previous := o.state
	err := o.destroy(true)

	next := &Owner{
		name:  o.name,
		state: StateInitialized,
		store: o.store,
	}
	if previous != StateInitialized {
		if moveErr := next.moveTo(previous); moveErr != nil {
			err = stderrors.Join(err, moveErr)
		}
	}
	return next, err
}

func (o *Owner) destroy(transient bool) error {
	var errs []error
	if o.state == StateResumed || o.state == StateStarted {
		errs = append(errs, o.moveTo(StateCreated))
	}
	o.changingConfigurations = transient
	errs = append(errs, o.dispatch(EventDestroy))
	o.changingConfigurations = false
	o.observers = nil
	return stderrors.Join(errs...)
}

// moveTo dispatches the events between the current state and target.
func (o *Owner) moveTo(target State) error {
	if o.state == StateDestroyed {
		panic(&errors.ContractError{
			Op:     "lifecycle.moveTo",
			Reason: fmt.Sprintf("owner %q is destroyed", o.name),
		})
	}
	var errs []error
	for o.state != target {
		var e Event
		switch {
		case rank(o.state) < rank(target):
			e = up(o.state)
		default:
			e = down(o.state)
		}
		errs = append(errs, o.dispatch(e))
	}
	return stderrors.Join(errs...)
}

// dispatch updates the state and notifies observers. Downward events are
// delivered in reverse registration order.
func (o *Owner) dispatch(e Event) error {
	o.state = e.target()

	observers := make([]Observer, len(o.observers))
	copy(observers, o.observers)

	var errs []error
	notify := func(obs Observer) {
		if obs == nil {
			return
		}
		if err := obs(o, e); err != nil {
			errs = append(errs, err)
			// Cleanup errors were reported where the dispose ran.
			var cleanup *errors.CleanupError
			if stderrors.As(err, &cleanup) {
				return
			}
			errors.Report(&errors.DriftError{
				Op:   "lifecycle." + e.String(),
				Kind: errors.KindLifecycle,
				Err:  fmt.Errorf("owner %s: %w", o.name, err),
			})
		}
	}
	if isDown(e) {
		for i := len(observers) - 1; i >= 0; i-- {
			notify(observers[i])
		}
	} else {
		for _, obs := range observers {
			notify(obs)
		}
	}
	return stderrors.Join(errs...)
}

func rank(s State) int {
	switch s {
	case StateCreated:
		return 1
	case StateStarted:
		return 2
	case StateResumed:
		return 3
	default:
		return 0
	}
}

func up(s State) Event {
	switch s {
	case StateInitialized:
		return EventCreate
	case StateCreated:
		return EventStart
	default:
		return EventResume
	}
}

func down(s State) Event {
	if s == StateResumed {
		return EventPause
	}
	return EventStop
}

func isDown(e Event) bool {
	return e == EventPause || e == EventStop || e == EventDestroy
}
