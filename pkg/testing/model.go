package testing

import "fmt"

// Model is a disposable view model that records how it was torn down.
type Model struct {
	ID         int
	Disposed   int
	DisposeErr error
}

// Dispose counts the call and returns DisposeErr.
func (m *Model) Dispose() error {
	m.Disposed++
	return m.DisposeErr
}

func (m *Model) String() string {
	return fmt.Sprintf("Model#%d", m.ID)
}

// Factory creates numbered Models and remembers them.
type Factory struct {
	// DisposeErr is copied into every Model created after it is set.
	DisposeErr error
	created    []*Model
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{}
}

// New creates the next Model. It has the shape of a shared-cache factory.
func (f *Factory) New() *Model {
	m := &Model{ID: len(f.created) + 1, DisposeErr: f.DisposeErr}
	f.created = append(f.created, m)
	return m
}

// Calls returns how many Models were created.
func (f *Factory) Calls() int {
	return len(f.created)
}

// Created returns the Models in creation order.
func (f *Factory) Created() []*Model {
	out := make([]*Model, len(f.created))
	copy(out, f.created)
	return out
}

// Disposed returns the total number of Dispose calls across all Models.
func (f *Factory) Disposed() int {
	n := 0
	for _, m := range f.created {
		n += m.Disposed
	}
	return n
}
