package scenario

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/go-drift/driftx/pkg/errors"
	"github.com/go-drift/driftx/pkg/mainthread"
	drifttest "github.com/go-drift/driftx/pkg/testing"
)

func run(t *testing.T, s *Scenario, opts Options) *Report {
	t.Helper()
	rep, err := Run(context.Background(), s, opts)
	require.NoError(t, err)
	return rep
}

func TestLoad_Testdata(t *testing.T) {
	for _, path := range []string{"testdata/shared_screen.yaml", "testdata/rotation_trim.yaml"} {
		t.Run(path, func(t *testing.T) {
			s, err := Load(path)
			require.NoError(t, err)

			rep := run(t, s, Options{})
			assert.False(t, rep.Failed(), "failures: %v", rep.Failures())
			assert.NoError(t, rep.Teardown)
		})
	}
}

func TestLoad_DefaultsNameToFile(t *testing.T) {
	s, err := Load("testdata/rotation_trim.yaml")
	require.NoError(t, err)
	assert.Equal(t, "rotation_trim.yaml", s.Name)

	_, err = Load("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"unknown field", "owners: [a]\nsteps: [{op: trim, bogus: 1}]", "bogus"},
		{"no steps", "owners: [a]", "no steps"},
		{"duplicate owner", "owners: [a, a]\nsteps: [{op: trim}]", "duplicate owner"},
		{"unknown op", "owners: [a]\nsteps: [{op: explode}]", "unknown op"},
		{"missing owner", "owners: [a]\nsteps: [{op: destroy}]", "owner is required"},
		{"undeclared owner", "owners: [a]\nsteps: [{op: destroy, owner: b}]", "undeclared owner"},
		{"missing type", "owners: [a]\nsteps: [{op: resolve, owner: a}]", "type is required"},
		{"key expectation without type", "owners: [a]\nsteps: [{op: trim, expect: {refs: 1}}]", "need a type"},
		{"transient on destroy", "owners: [a]\nsteps: [{op: destroy, owner: a, transient: true}]", "transient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_NameDistinguishesNullFromEmpty(t *testing.T) {
	s, err := Parse([]byte(`
owners: [a]
steps:
  - {op: resolve, owner: a, type: VM}
  - {op: resolve, owner: a, type: VM, name: ""}
`))
	require.NoError(t, err)
	assert.Nil(t, s.Steps[0].Name)
	require.NotNil(t, s.Steps[1].Name)

	rep := run(t, s, Options{})
	assert.Equal(t, "VM:null", rep.Results[0].Key.String())
	assert.NotEqual(t, rep.Results[0].Instance, rep.Results[1].Instance)
	assert.Len(t, rep.Snapshot, 2)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s, err := Parse([]byte(`
owners: [a]
steps:
  - {op: resolve, owner: a, type: VM, expect: {refs: 2, cached: false, created: 3}}
  - {op: destroy, owner: a, type: VM, expect: {error: "boom"}}
`))
	require.NoError(t, err)

	rep := run(t, s, Options{})
	require.True(t, rep.Failed())
	assert.Equal(t, []string{
		"step 1 (resolve): refs = 1, want 2",
		"step 1 (resolve): cached = true, want false",
		"step 1 (resolve): created = 1, want 3",
		`step 2 (destroy): expected error containing "boom"`,
	}, rep.Failures())
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	recorder := drifttest.RecordReports(t)
	s, err := Parse([]byte(`
owners: [a]
steps:
  - {op: release, owner: a, type: VM}
  - {op: resolve, owner: a, type: VM, expect: {refs: 1}}
`))
	require.NoError(t, err)

	rep := run(t, s, Options{})
	require.True(t, rep.Failed())
	var contract *errors.ContractError
	require.ErrorAs(t, rep.Results[0].Err, &contract)
	assert.Empty(t, rep.Results[1].Failures, "later steps still run")
	assert.Empty(t, recorder.Errors())
}

func TestRun_ManualRelease(t *testing.T) {
	s, err := Parse([]byte(`
owners: [a, b]
steps:
  - {op: resolve, owner: a, type: VM}
  - {op: resolve, owner: b, type: VM}
  - {op: release, owner: a, type: VM, expect: {refs: 1, disposed: 0}}
  - {op: release, owner: b, type: VM, transient: true, expect: {refs: 0, cached: true}}
  - {op: destroy, owner: a, expect: {disposed: 0, entries: 1}}
  - {op: trim, expect: {disposed: 1, entries: 0}}
`))
	require.NoError(t, err)

	rep := run(t, s, Options{})
	assert.False(t, rep.Failed(), "failures: %v", rep.Failures())
}

func TestRun_ReopenOwner(t *testing.T) {
	s, err := Parse([]byte(`
owners: [a]
steps:
  - {op: open, owner: a, expect: {error: "already open"}}
  - {op: destroy, owner: a}
  - {op: open, owner: a}
  - {op: resolve, owner: a, type: VM, expect: {refs: 1, instance: "VM#1"}}
`))
	require.NoError(t, err)

	rep := run(t, s, Options{})
	assert.False(t, rep.Failed(), "failures: %v", rep.Failures())
}

func TestRun_TeardownDisposesRemaining(t *testing.T) {
	s, err := Parse([]byte(`
owners: [a]
steps:
  - {op: resolve, owner: a, type: VM, name: x}
  - {op: resolve, owner: a, type: VM, name: y}
`))
	require.NoError(t, err)

	rep := run(t, s, Options{})
	require.Len(t, rep.Snapshot, 2)
	assert.Equal(t, "VM:x", rep.Snapshot[0].Key.String())
	assert.Equal(t, 1, rep.Snapshot[0].Refs)
	assert.NoError(t, rep.Teardown)
}

func TestRun_InstallsAndRestoresDispatcher(t *testing.T) {
	calls := 0
	restore := mainthread.SetDispatcher(func(cb func()) bool {
		calls++
		cb()
		return true
	})
	t.Cleanup(restore)

	s, err := Parse([]byte("owners: [a]\nsteps: [{op: resolve, owner: a, type: VM}]"))
	require.NoError(t, err)
	rep := run(t, s, Options{})
	assert.False(t, rep.Failed(), "failures: %v", rep.Failures())
	assert.Zero(t, calls, "the run is dispatched to its own loop")

	require.True(t, mainthread.Dispatch(func() {}))
	assert.Equal(t, 1, calls, "previous dispatcher is restored after the run")
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{}, Options{})
	assert.Error(t, err)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Scenario{Owners: []string{"a"}, Steps: []Step{{Op: OpTrim}}}

	// Either the loop observes the cancellation first or the posted run
	// completes; both are valid outcomes.
	rep, err := Run(ctx, s, Options{})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	} else {
		assert.NotNil(t, rep)
	}
}

func TestRun_LoggerAndTracer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s, err := Parse([]byte(`
owners: [a]
steps:
  - {op: resolve, owner: a, type: VM}
  - {op: destroy, owner: a}
`))
	require.NoError(t, err)

	run(t, s, Options{Logger: zap.New(core), Tracer: tp.Tracer("test")})

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"added", "released", "evicted"}, msgs)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"shared.Resolve", "shared.Release"}, names)
}

func TestPrint(t *testing.T) {
	s, err := Load("testdata/shared_screen.yaml")
	require.NoError(t, err)
	rep := run(t, s, Options{})

	var buf bytes.Buffer
	Print(&buf, rep)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "scenario: two screens share one view model\n"))
	assert.Contains(t, out, "-> VM#1 refs=1 cached=true")
	assert.Contains(t, out, "error: shared.Resolve: contract violation")
	assert.Contains(t, out, "snapshot:\n  (empty)")
	assert.NotContains(t, out, "FAIL")
}
