package controller

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/npratt/runlet/internal/config"
	"github.com/npratt/runlet/internal/events"
	"github.com/npratt/runlet/internal/runner"
	"github.com/npratt/runlet/internal/sink"
	"github.com/npratt/runlet/internal/testutil"
)

var toolRequest = runner.Request{
	Name:       "tool",
	Args:       []string{"--flag"},
	Dir:        "/work",
	SearchPath: []string{"/opt/bin"},
}

// testConfig returns a config with the given retry budget.
func testConfig(count, seconds int) *config.Config {
	cfg := config.Default()
	cfg.Retry.Count = count
	cfg.Retry.Seconds = seconds
	return cfg
}

// sleepRecorder counts countdown sleeps instead of sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixture struct {
	proc   *testutil.MockProcessRunner
	rec    *sink.Recorder
	sleeps *sleepRecorder
	ctrl   *Controller
}

// newFixture wires a controller to a mock process that resolves "tool" to
// /opt/bin/tool.
func newFixture(t *testing.T, cfg *config.Config, router *events.Router, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		proc:   testutil.NewMockProcessRunner(),
		rec:    sink.NewRecorder(),
		sleeps: &sleepRecorder{},
	}
	attempt := runner.NewAttempt(f.rec,
		runner.WithSpawner(f.proc.Spawner()),
		runner.WithResolver(testutil.MemResolver(t, "/opt/bin/tool")),
		runner.WithPollInterval(5*time.Millisecond),
		runner.WithPassThru(cfg.Output.PassThru),
	)
	opts = append([]Option{WithSleeper(f.sleeps.sleep)}, opts...)
	f.ctrl = New(cfg, attempt, f.rec, router, nil, opts...)
	return f
}

// exitSequence makes attempt n exit with codes[n-1], repeating the last code.
func exitSequence(stdout string, codes ...int) testutil.StartCallback {
	return func(attempt int, _ runner.Command) (string, string, int, error) {
		i := attempt - 1
		if i >= len(codes) {
			i = len(codes) - 1
		}
		return stdout, "", codes[i], nil
	}
}

func TestExecute_SucceedsFirstTry(t *testing.T) {
	f := newFixture(t, testConfig(3, 1), nil)
	f.proc.SetOutput("one\ntwo\n")
	f.proc.SetStderr("careful\n")

	res, err := f.ctrl.Execute(context.Background(), toolRequest)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if res.ExitCode != 0 || res.Attempts != 1 {
		t.Errorf("result = (exit %d, attempts %d), want (0, 1)", res.ExitCode, res.Attempts)
	}
	if res.State != StateSucceeded {
		t.Errorf("State = %s, want %s", res.State, StateSucceeded)
	}
	if got := f.rec.Texts(sink.KindOutput); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("output = %v", got)
	}
	if got := f.rec.Texts(sink.KindWarning); !reflect.DeepEqual(got, []string{"careful"}) {
		t.Errorf("warnings = %v", got)
	}
	if n := len(f.rec.Failures()); n != 0 {
		t.Errorf("got %d failure notices, want 0", n)
	}
	if n := len(f.rec.Countdowns()); n != 0 {
		t.Errorf("got %d countdowns, want 0", n)
	}
	if n := len(f.rec.ExitCodes()); n != 0 {
		t.Errorf("exit code forwarded outside pass-through: %v", f.rec.ExitCodes())
	}
	if res.Path != "/opt/bin/tool" {
		t.Errorf("Path = %q, want /opt/bin/tool", res.Path)
	}
}

func TestExecute_SucceedsAfterRetries(t *testing.T) {
	f := newFixture(t, testConfig(3, 1), nil)
	f.proc.OnStart(exitSequence("", 1, 1, 0))

	res, err := f.ctrl.Execute(context.Background(), toolRequest)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if res.ExitCode != 0 || res.Attempts != 3 {
		t.Errorf("result = (exit %d, attempts %d), want (0, 3)", res.ExitCode, res.Attempts)
	}
	if n := len(f.rec.Failures()); n != 2 {
		t.Errorf("got %d failure notices, want 2", n)
	}

	wantCountdowns := []sink.CountdownNotice{
		{Remaining: 1, Retry: 1, MaxRetries: 3},
		{Remaining: 1, Retry: 2, MaxRetries: 3},
	}
	if got := f.rec.Countdowns(); !reflect.DeepEqual(got, wantCountdowns) {
		t.Errorf("countdowns = %+v, want %+v", got, wantCountdowns)
	}
	if f.sleeps.count() != 2 {
		t.Errorf("slept %d times, want 2", f.sleeps.count())
	}
	if f.proc.StartCount() != 3 {
		t.Errorf("StartCount = %d, want 3", f.proc.StartCount())
	}
}

func TestExecute_Exhausted(t *testing.T) {
	f := newFixture(t, testConfig(2, 3), nil)
	f.proc.SetExitCode(1)

	res, err := f.ctrl.Execute(context.Background(), toolRequest)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if res.ExitCode != 1 || res.Attempts != 3 {
		t.Errorf("result = (exit %d, attempts %d), want (1, 3)", res.ExitCode, res.Attempts)
	}
	if res.State != StateExhausted {
		t.Errorf("State = %s, want %s", res.State, StateExhausted)
	}

	failures := f.rec.Failures()
	if len(failures) != 3 {
		t.Fatalf("got %d failure notices, want 3", len(failures))
	}
	for i, n := range failures {
		want := sink.FailureNotice{Path: "/opt/bin/tool", Attempt: i + 1, ExitCode: 1}
		if n != want {
			t.Errorf("failure %d = %+v, want %+v", i, n, want)
		}
	}

	// Two sequences of three seconds each, counting down.
	var remaining []int
	for _, c := range f.rec.Countdowns() {
		remaining = append(remaining, c.Remaining)
	}
	if want := []int{3, 2, 1, 3, 2, 1}; !reflect.DeepEqual(remaining, want) {
		t.Errorf("countdown remaining = %v, want %v", remaining, want)
	}
	if f.sleeps.count() != 6 {
		t.Errorf("slept %d times, want 6", f.sleeps.count())
	}
	if f.proc.StartCount() != 3 {
		t.Errorf("StartCount = %d, want 3 (no fourth attempt)", f.proc.StartCount())
	}
}

func TestExecute_PassThru(t *testing.T) {
	cfg := testConfig(0, 0)
	cfg.Output.PassThru = true
	f := newFixture(t, cfg, nil)
	f.proc.SetOutput("status line\n")
	f.proc.SetExitCode(5)

	res, err := f.ctrl.Execute(context.Background(), toolRequest)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if res.ExitCode != 5 || res.Attempts != 1 {
		t.Errorf("result = (exit %d, attempts %d), want (5, 1)", res.ExitCode, res.Attempts)
	}
	if !res.PassThru {
		t.Error("Result.PassThru should be true")
	}
	if got := f.rec.Texts(sink.KindOutput); len(got) != 0 {
		t.Errorf("stdout reached output in pass-through: %v", got)
	}
	if got := f.rec.Texts(sink.KindWarning); !reflect.DeepEqual(got, []string{"status line"}) {
		t.Errorf("warnings = %v", got)
	}
	if got := f.rec.ExitCodes(); !reflect.DeepEqual(got, []int{5}) {
		t.Errorf("forwarded exit codes = %v, want [5]", got)
	}

	kinds := f.rec.Kinds()
	if kinds[len(kinds)-1] != sink.KindExitCode {
		t.Errorf("exit code should be the last sink call, got %v", kinds)
	}
}

func TestExecute_ResolutionFailure(t *testing.T) {
	f := newFixture(t, testConfig(1, 0), nil)
	req := toolRequest
	req.Name = "missing"

	res, err := f.ctrl.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if f.proc.StartCount() != 0 {
		t.Errorf("StartCount = %d, want 0", f.proc.StartCount())
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (resolution failure counts)", res.Attempts)
	}
	if res.ExitCode != runner.ExitCodeNotFound {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, runner.ExitCodeNotFound)
	}
	if res.Path != "missing" {
		t.Errorf("Path = %q, want requested name", res.Path)
	}

	failures := f.rec.Failures()
	if len(failures) != 2 {
		t.Fatalf("got %d failure notices, want 2", len(failures))
	}
	if failures[0].Path != "missing" || !errors.Is(failures[0].Err, runner.ErrResolve) {
		t.Errorf("failure = %+v, want resolve error for missing", failures[0])
	}
	for _, rec := range res.Records {
		if rec.ExitCode != nil {
			t.Errorf("record %d has exit code %d without a spawn", rec.Index, *rec.ExitCode)
		}
	}
}

func TestExecute_ZeroRetries(t *testing.T) {
	f := newFixture(t, testConfig(0, 5), nil)
	f.proc.SetExitCode(2)

	res, _ := f.ctrl.Execute(context.Background(), toolRequest)

	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if n := len(f.rec.Countdowns()); n != 0 {
		t.Errorf("got %d countdowns, want 0", n)
	}
	if n := len(f.rec.Failures()); n != 1 {
		t.Errorf("got %d failures, want 1", n)
	}
}

func TestExecute_ZeroSecondsRetriesImmediately(t *testing.T) {
	f := newFixture(t, testConfig(2, 0), nil)
	f.proc.SetExitCode(1)

	res, _ := f.ctrl.Execute(context.Background(), toolRequest)

	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if n := len(f.rec.Countdowns()); n != 0 {
		t.Errorf("got %d countdowns, want 0", n)
	}
	if f.sleeps.count() != 0 {
		t.Errorf("slept %d times, want 0", f.sleeps.count())
	}
}

func TestExecute_AttemptBound(t *testing.T) {
	for _, retries := range []int{0, 1, 4} {
		f := newFixture(t, testConfig(retries, 0), nil)
		f.proc.SetExitCode(1)

		res, _ := f.ctrl.Execute(context.Background(), toolRequest)

		if res.Attempts != retries+1 {
			t.Errorf("retries=%d: Attempts = %d, want %d", retries, res.Attempts, retries+1)
		}
		if len(res.Records) != res.Attempts {
			t.Errorf("retries=%d: %d records for %d attempts", retries, len(res.Records), res.Attempts)
		}
		for i, rec := range res.Records {
			if rec.Terminal != (i == len(res.Records)-1) {
				t.Errorf("retries=%d: record %d Terminal = %v", retries, i, rec.Terminal)
			}
		}
	}
}

func TestExecute_NegativeRetryClamped(t *testing.T) {
	f := newFixture(t, testConfig(-3, -2), nil)
	f.proc.SetExitCode(1)

	if f.ctrl.MaxRetries() != 0 {
		t.Errorf("MaxRetries = %d, want 0", f.ctrl.MaxRetries())
	}

	res, _ := f.ctrl.Execute(context.Background(), toolRequest)
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestExecute_FailureFollowsOutput(t *testing.T) {
	f := newFixture(t, testConfig(1, 1), nil)
	f.proc.OnStart(func(attempt int, _ runner.Command) (string, string, int, error) {
		if attempt == 1 {
			return "a\nb\n", "", 3, nil
		}
		return "c\n", "", 0, nil
	})

	if _, err := f.ctrl.Execute(context.Background(), toolRequest); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	want := []sink.Kind{
		sink.KindOutput, sink.KindOutput,
		sink.KindFailure,
		sink.KindCountdown,
		sink.KindOutput,
	}
	if got := f.rec.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("sink calls = %v, want %v", got, want)
	}
}

func TestExecute_StartErrorIsFatal(t *testing.T) {
	f := newFixture(t, testConfig(3, 1), nil)
	f.proc.SetStartError(errors.New("permission denied"))

	res, err := f.ctrl.Execute(context.Background(), toolRequest)
	if !errors.Is(err, runner.ErrStart) {
		t.Fatalf("error = %v, want ErrStart", err)
	}

	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (not retried)", res.Attempts)
	}
	if res.State != StateFailed {
		t.Errorf("State = %s, want %s", res.State, StateFailed)
	}
	if n := len(f.rec.Failures()); n != 0 {
		t.Errorf("got %d failure notices for a fatal start error", n)
	}
	if n := len(f.rec.Countdowns()); n != 0 {
		t.Errorf("got %d countdowns, want 0", n)
	}
}

func TestExecute_ArgumentsPassedEachAttempt(t *testing.T) {
	f := newFixture(t, testConfig(1, 0), nil)
	f.proc.SetExitCode(1)

	if _, err := f.ctrl.Execute(context.Background(), toolRequest); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	cmds := f.proc.Commands()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	for i, cmd := range cmds {
		if cmd.Path != "/opt/bin/tool" || cmd.Dir != "/work" {
			t.Errorf("command %d = %+v", i, cmd)
		}
		if !reflect.DeepEqual(cmd.Args, []string{"--flag"}) {
			t.Errorf("command %d args = %v", i, cmd.Args)
		}
	}
}

func TestExecute_NilArgs(t *testing.T) {
	f := newFixture(t, testConfig(0, 0), nil)
	req := toolRequest
	req.Args = nil

	res, err := f.ctrl.Execute(context.Background(), req)
	if err != nil || res.ExitCode != 0 {
		t.Fatalf("Execute = (%+v, %v)", res, err)
	}
	if cmd := f.proc.Commands()[0]; len(cmd.Args) != 0 {
		t.Errorf("Args = %v, want none", cmd.Args)
	}
}

func TestExecute_DryRun(t *testing.T) {
	f := newFixture(t, testConfig(2, 4), nil, WithDryRun(true))

	res, err := f.ctrl.Execute(context.Background(), toolRequest)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if f.proc.StartCount() != 0 {
		t.Errorf("StartCount = %d, want 0 in dry run", f.proc.StartCount())
	}
	if res.ExitCode != 0 || res.Attempts != 0 {
		t.Errorf("result = (exit %d, attempts %d), want (0, 0)", res.ExitCode, res.Attempts)
	}
	if res.State != StateDryRun {
		t.Errorf("State = %s, want %s", res.State, StateDryRun)
	}

	notices := f.rec.Texts(sink.KindNotice)
	if len(notices) == 0 || !strings.Contains(notices[0], "would execute /opt/bin/tool --flag (attempt 1)") {
		t.Errorf("notices = %v", notices)
	}
}

func TestExecute_DryRunUnresolved(t *testing.T) {
	f := newFixture(t, testConfig(0, 0), nil, WithDryRun(true))
	req := toolRequest
	req.Name = "missing"

	res, err := f.ctrl.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if res.ExitCode != runner.ExitCodeNotFound {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, runner.ExitCodeNotFound)
	}
	if n := len(f.rec.Failures()); n != 1 {
		t.Errorf("got %d failures, want 1", n)
	}
}

func TestExecute_Events(t *testing.T) {
	router := events.NewRouter(events.DefaultBufferSize)
	sub := router.SubscribeBuffered(64)

	f := newFixture(t, testConfig(1, 0), router, WithRunID("run-123"))
	f.proc.OnStart(exitSequence("", 1, 0))

	if _, err := f.ctrl.Execute(context.Background(), toolRequest); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	router.Close()

	var types []events.EventType
	for ev := range sub {
		types = append(types, ev.Type())
		if id := events.GetRunID(ev); id != "run-123" {
			t.Errorf("%s run id = %q, want run-123", ev.Type(), id)
		}
		if end, ok := ev.(*events.RunEndEvent); ok {
			if end.State != string(StateSucceeded) || end.Attempts != 2 {
				t.Errorf("run.end = %+v", end)
			}
		}
	}

	want := []events.EventType{
		events.EventRunStart,
		events.EventAttemptStart, events.EventAttemptEnd,
		events.EventAttemptStart, events.EventAttemptEnd,
		events.EventRunEnd,
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("events = %v, want %v", types, want)
	}
}

func TestNew_GeneratesRunID(t *testing.T) {
	a := New(nil, nil, nil, nil, nil)
	b := New(nil, nil, nil, nil, nil)

	if a.RunID() == "" || a.RunID() == b.RunID() {
		t.Errorf("run ids %q and %q should be distinct and non-empty", a.RunID(), b.RunID())
	}
	if a.State() != StateIdle {
		t.Errorf("initial state = %s, want %s", a.State(), StateIdle)
	}
}

func TestControllerStateThreadSafe(t *testing.T) {
	c := New(nil, nil, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.setState(StateAttempting)
			_ = c.State()
			c.setState(StateRetrying)
		}()
	}
	wg.Wait()

	if s := c.State(); s != StateAttempting && s != StateRetrying {
		t.Errorf("unexpected state: %s", s)
	}
}

func TestStateTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateIdle, false},
		{StateAttempting, false},
		{StateRetrying, false},
		{StateSucceeded, true},
		{StateExhausted, true},
		{StateFailed, true},
		{StateDryRun, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
