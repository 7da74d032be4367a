package scenario

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/go-drift/driftx/pkg/errors"
	"github.com/go-drift/driftx/pkg/lifecycle"
	"github.com/go-drift/driftx/pkg/mainthread"
	"github.com/go-drift/driftx/pkg/shared"
)

// Model is the instance the runner stores in the cache.
type Model struct {
	ID  int
	Key shared.Key

	disposed  bool
	onDispose func()
}

// Dispose marks the model disposed. A second call is an error.
func (m *Model) Dispose() error {
	if m.disposed {
		return fmt.Errorf("%s disposed twice", m)
	}
	m.disposed = true
	if m.onDispose != nil {
		m.onDispose()
	}
	return nil
}

// Disposed reports whether Dispose has run.
func (m *Model) Disposed() bool {
	return m.disposed
}

func (m *Model) String() string {
	return fmt.Sprintf("%s#%d", m.Key.Type, m.ID)
}

// Options configures a run.
type Options struct {
	// Logger receives cache debug output. Nil means no logging.
	Logger *zap.Logger
	// Tracer overrides the cache tracer.
	Tracer trace.Tracer
}

// Result is the outcome of one step.
type Result struct {
	Index int
	Step  Step
	Key   shared.Key
	// Instance is the resolved instance for resolve steps.
	Instance string
	Refs     int
	Cached   bool
	Created  int
	Disposed int
	Entries  int
	Err      error
	Failures []string
}

// HasKey reports whether the step addressed a cache key.
func (r *Result) HasKey() bool {
	return r.Step.Type != ""
}

// Report collects the results of a run.
type Report struct {
	Scenario string
	Results  []Result
	// Snapshot is the cache content after the last step.
	Snapshot []shared.EntryInfo
	// Teardown is the error returned when closing the cache after the run.
	Teardown error
}

// Failed reports whether any expectation failed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if len(res.Failures) > 0 {
			return true
		}
	}
	return false
}

// Failures returns every failed expectation prefixed with its step.
func (r *Report) Failures() []string {
	var out []string
	for _, res := range r.Results {
		for _, f := range res.Failures {
			out = append(out, fmt.Sprintf("step %d (%s): %s", res.Index, res.Step.Op, f))
		}
	}
	return out
}

// Run executes s on a dedicated UI loop and returns the per-step report.
func Run(ctx context.Context, s *Scenario, opts Options) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := mainthread.NewLoop(0)
	stopped := make(chan error, 1)
	go func() { stopped <- loop.Run(ctx) }()

	// The loop is the UI thread for the duration of the run.
	restore := loop.Install()
	defer restore()

	done := make(chan *Report, 1)
	posted := mainthread.Dispatch(func() {
		r := newRunner(loop, opts)
		done <- r.run(s)
	})
	if !posted {
		return nil, mainthread.ErrStopped
	}

	select {
	case rep := <-done:
		loop.Stop()
		<-stopped
		return rep, nil
	case err := <-stopped:
		if err == nil {
			err = mainthread.ErrStopped
		}
		return nil, err
	}
}

type runner struct {
	cache    *shared.Cache
	owners   map[string]*lifecycle.Owner
	nextID   int
	created  int
	disposed int
}

func newRunner(loop *mainthread.Loop, opts Options) *runner {
	cacheOpts := []shared.Option{shared.WithLoop(loop)}
	if opts.Logger != nil {
		cacheOpts = append(cacheOpts, shared.WithLogger(opts.Logger))
	}
	if opts.Tracer != nil {
		cacheOpts = append(cacheOpts, shared.WithTracer(opts.Tracer))
	}
	return &runner{
		cache:  shared.New(cacheOpts...),
		owners: make(map[string]*lifecycle.Owner),
	}
}

func (r *runner) run(s *Scenario) *Report {
	rep := &Report{Scenario: s.Name}
	for _, name := range s.Owners {
		if err := r.open(name); err != nil {
			res := Result{Step: Step{Op: OpOpen, Owner: name}, Err: err}
			check(&res)
			rep.Results = append(rep.Results, res)
		}
	}

	for i, st := range s.Steps {
		res := Result{Index: i + 1, Step: st}
		if st.Type != "" {
			res.Key = shared.NewKey(st.Type, st.Name)
		}
		res.Err = r.step(st, res.Key, &res.Instance)
		r.observe(&res)
		check(&res)
		rep.Results = append(rep.Results, res)
	}

	rep.Snapshot = r.cache.Snapshot()
	rep.Teardown = r.cache.Close()
	return rep
}

// step runs one operation. Contract violations raised by the cache or an
// owner are returned as errors so the remaining steps still run.
func (r *runner) step(st Step, key shared.Key, instance *string) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if e, ok := v.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("panic: %v", v)
		}
	}()

	switch st.Op {
	case OpOpen:
		return r.open(st.Owner)
	case OpResolve:
		v := r.cache.Resolve(r.owners[st.Owner], key, func() any {
			return r.newModel(key)
		})
		*instance = fmt.Sprint(v)
		return nil
	case OpRelease:
		return r.cache.Release(r.owners[st.Owner], key, st.Transient)
	case OpDestroy:
		return r.owners[st.Owner].Destroy()
	case OpReconfigure:
		next, err := r.owners[st.Owner].Reconfigure()
		r.owners[st.Owner] = next
		return err
	case OpTrim:
		return r.cache.Trim()
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

// open creates a resumed owner under name, replacing a destroyed one.
func (r *runner) open(name string) error {
	if o, ok := r.owners[name]; ok && !o.IsDestroyed() {
		return &errors.ContractError{Op: "scenario.open", Reason: fmt.Sprintf("owner %q is already open", name)}
	}
	o := lifecycle.New(name)
	if err := o.Resume(); err != nil {
		return err
	}
	r.owners[name] = o
	return nil
}

func (r *runner) newModel(key shared.Key) *Model {
	r.nextID++
	r.created++
	return &Model{
		ID:        r.nextID,
		Key:       key,
		onDispose: func() { r.disposed++ },
	}
}

func (r *runner) observe(res *Result) {
	res.Created = r.created
	res.Disposed = r.disposed
	res.Entries = r.cache.Len()
	if res.HasKey() {
		res.Refs = r.cache.RefCount(res.Key)
		res.Cached = r.cache.Contains(res.Key)
	}
}

func check(res *Result) {
	exp := res.Step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	switch {
	case exp.Error == "" && res.Err != nil:
		res.fail("unexpected error: %v", res.Err)
	case exp.Error != "" && res.Err == nil:
		res.fail("expected error containing %q", exp.Error)
	case exp.Error != "" && !strings.Contains(res.Err.Error(), exp.Error):
		res.fail("error = %q, want it to contain %q", res.Err, exp.Error)
	}

	if exp.Refs != nil && res.Refs != *exp.Refs {
		res.fail("refs = %d, want %d", res.Refs, *exp.Refs)
	}
	if exp.Cached != nil && res.Cached != *exp.Cached {
		res.fail("cached = %t, want %t", res.Cached, *exp.Cached)
	}
	if exp.Created != nil && res.Created != *exp.Created {
		res.fail("created = %d, want %d", res.Created, *exp.Created)
	}
	if exp.Disposed != nil && res.Disposed != *exp.Disposed {
		res.fail("disposed = %d, want %d", res.Disposed, *exp.Disposed)
	}
	if exp.Entries != nil && res.Entries != *exp.Entries {
		res.fail("entries = %d, want %d", res.Entries, *exp.Entries)
	}
	if exp.Instance != nil && res.Instance != *exp.Instance {
		res.fail("instance = %q, want %q", res.Instance, *exp.Instance)
	}
}

func (r *Result) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}
