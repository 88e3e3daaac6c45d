package timer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/timeutil"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeBackend is an in-memory server holding at most one open entry.
type fakeBackend struct {
	mu       sync.Mutex
	clock    *fakeClock
	open     *api.TimeEntry
	closed   []api.TimeEntry
	failNext error
	onActive func()
	onStart  func()
}

func newFakeBackend(clock *fakeClock) *fakeBackend {
	return &fakeBackend{clock: clock}
}

func (b *fakeBackend) takeFailure() error {
	err := b.failNext
	b.failNext = nil
	return err
}

func (b *fakeBackend) StartTimer(_ context.Context, req api.StartTimerRequest) (*api.TimeEntry, error) {
	b.mu.Lock()
	if err := b.takeFailure(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if b.open != nil {
		b.mu.Unlock()
		return nil, &api.Error{Status: http.StatusConflict, Message: "active timer already exists"}
	}
	e := &api.TimeEntry{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		StartAt:   b.clock.Now(),
		Project:   &api.ProjectRef{ID: req.ProjectID, Name: "Project " + req.ProjectID},
	}
	if req.TaskID != nil {
		e.Task = &api.TaskRef{ID: *req.TaskID, Title: "Task " + *req.TaskID}
	}
	b.open = e
	cp := *e
	hook := b.onStart
	b.onStart = nil
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (b *fakeBackend) StopTimer(context.Context) (*api.TimeEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return nil, err
	}
	if b.open == nil {
		return nil, &api.Error{Status: http.StatusNotFound, Message: "no active timer"}
	}
	end := b.clock.Now()
	e := *b.open
	e.EndAt = &end
	e.DurationSeconds = timeutil.Duration(e.StartAt, end)
	b.closed = append(b.closed, e)
	b.open = nil
	return &e, nil
}

func (b *fakeBackend) ActiveTimer(context.Context) (*api.TimeEntry, error) {
	b.mu.Lock()
	if err := b.takeFailure(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	var snapshot *api.TimeEntry
	if b.open != nil {
		cp := *b.open
		snapshot = &cp
	}
	hook := b.onActive
	b.onActive = nil
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
	return snapshot, nil
}

func (b *fakeBackend) closedDurations() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []int64
	for _, e := range b.closed {
		out = append(out, e.DurationSeconds)
	}
	return out
}

func newTestMachine(t *testing.T, opts ...Option) (*Machine, *fakeBackend, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	backend := newFakeBackend(clock)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(backend, opts...), backend, clock
}

func strPtr(s string) *string { return &s }

// ============================================================
// Transitions
// ============================================================

func TestPauseResumeRoundTrip(t *testing.T) {
	m, backend, clock := newTestMachine(t)
	ctx := context.Background()

	if err := m.Start(ctx, "p", strPtr("t"), nil); err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Second)
	if got := m.Elapsed(clock.Now()); got != 30 {
		t.Fatalf("expected 30s elapsed, got %d", got)
	}

	if err := m.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if m.State() != Paused {
		t.Fatalf("expected paused, got %v", m.State())
	}

	clock.Advance(100 * time.Second)
	if got := m.Elapsed(clock.Now()); got != 30 {
		t.Fatalf("paused time must not count, got %d", got)
	}
	v := m.View(clock.Now())
	if v.ProjectName != "Project p" || v.TaskTitle != "Task t" || v.PausedAt.IsZero() {
		t.Fatalf("unexpected paused view: %+v", v)
	}

	if err := m.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	clock.Advance(20 * time.Second)
	if got := m.Elapsed(clock.Now()); got != 50 {
		t.Fatalf("expected 50s elapsed after resume, got %d", got)
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if m.State() != Idle || m.Elapsed(clock.Now()) != 0 {
		t.Fatalf("expected idle, got %v", m.State())
	}
	durations := backend.closedDurations()
	if len(durations) != 2 || durations[0] != 30 || durations[1] != 20 {
		t.Fatalf("server should record only open time, got %v", durations)
	}
}

func TestStartSamePairFromPausedCarries(t *testing.T) {
	m, _, clock := newTestMachine(t)
	ctx := context.Background()

	m.Start(ctx, "p", nil, nil)
	clock.Advance(40 * time.Second)
	m.Pause(ctx)

	if err := m.Start(ctx, "p", nil, nil); err != nil {
		t.Fatal(err)
	}
	clock.Advance(5 * time.Second)
	if got := m.Elapsed(clock.Now()); got != 45 {
		t.Fatalf("expected carried 45s, got %d", got)
	}
}

func TestStartOtherPairDiscardsPaused(t *testing.T) {
	m, _, clock := newTestMachine(t)
	ctx := context.Background()

	m.Start(ctx, "p", nil, nil)
	clock.Advance(40 * time.Second)
	m.Pause(ctx)

	if err := m.Start(ctx, "q", nil, nil); err != nil {
		t.Fatal(err)
	}
	clock.Advance(5 * time.Second)
	if got := m.Elapsed(clock.Now()); got != 5 {
		t.Fatalf("expected fresh 5s, got %d", got)
	}
	m.Pause(ctx)
	m.Stop(ctx)
	if err := m.Resume(ctx); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}
}

func TestStopWhilePausedSkipsServer(t *testing.T) {
	m, backend, clock := newTestMachine(t)
	ctx := context.Background()

	m.Start(ctx, "p", nil, nil)
	clock.Advance(time.Minute)
	m.Pause(ctx)

	backend.failNext = errors.New("server must not be called")
	if err := m.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if m.State() != Idle {
		t.Fatalf("expected idle, got %v", m.State())
	}
	if err := m.Stop(ctx); !errors.Is(err, ErrIdle) {
		t.Fatalf("expected ErrIdle, got %v", err)
	}
}

func TestPreconditions(t *testing.T) {
	m, _, _ := newTestMachine(t)
	ctx := context.Background()

	if err := m.Pause(ctx); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	m.Start(ctx, "p", nil, nil)
	if err := m.Start(ctx, "q", nil, nil); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if m.Err() == "" {
		t.Fatal("expected a user-visible error")
	}
}

// ============================================================
// Failures
// ============================================================

func TestNetworkFailureLeavesState(t *testing.T) {
	m, backend, clock := newTestMachine(t)
	ctx := context.Background()

	backend.failNext = errors.New("dial tcp: connection refused")
	if err := m.Start(ctx, "p", nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != Idle {
		t.Fatalf("expected idle after failed start, got %v", m.State())
	}
	if m.Err() != "could not reach the server, try again" {
		t.Fatalf("unexpected error message %q", m.Err())
	}

	m.Start(ctx, "p", nil, nil)
	if m.Err() != "" {
		t.Fatal("successful transition should clear the error")
	}
	clock.Advance(10 * time.Second)

	backend.failNext = errors.New("timeout")
	if err := m.Pause(ctx); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != Active || m.Elapsed(clock.Now()) != 10 {
		t.Fatalf("failed pause must keep the timer running, got %v", m.State())
	}
}

func TestConflictMessage(t *testing.T) {
	m, backend, _ := newTestMachine(t)
	ctx := context.Background()

	// Another device started a timer this machine does not know about.
	backend.StartTimer(ctx, api.StartTimerRequest{ProjectID: "x"})

	err := m.Start(ctx, "p", nil, nil)
	if !api.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if m.Err() != "a timer is already running" {
		t.Fatalf("unexpected message %q", m.Err())
	}
	if m.State() != Idle {
		t.Fatalf("expected idle, got %v", m.State())
	}
}

// ============================================================
// Resync
// ============================================================

func TestResyncAdoptsServerEntry(t *testing.T) {
	m, backend, clock := newTestMachine(t)
	ctx := context.Background()

	backend.StartTimer(ctx, api.StartTimerRequest{ProjectID: "x"})
	clock.Advance(15 * time.Second)

	if err := m.Resync(ctx, TriggerFocus); err != nil {
		t.Fatal(err)
	}
	if m.State() != Active || m.Elapsed(clock.Now()) != 15 {
		t.Fatalf("expected adopted active timer, got %v / %d", m.State(), m.Elapsed(clock.Now()))
	}
}

func TestResyncDiscardsStaleCarry(t *testing.T) {
	m, backend, clock := newTestMachine(t)
	ctx := context.Background()

	m.Start(ctx, "p", nil, nil)
	clock.Advance(time.Minute)
	m.Pause(ctx)

	// Another tab starts a different pair.
	backend.StartTimer(ctx, api.StartTimerRequest{ProjectID: "q"})
	clock.Advance(10 * time.Second)

	if err := m.Resync(ctx, TriggerSync); err != nil {
		t.Fatal(err)
	}
	v := m.View(clock.Now())
	if v.State != Active || v.ProjectID != "q" {
		t.Fatalf("expected q active, got %+v", v)
	}
	if v.Elapsed != 10 {
		t.Fatalf("carry from p must be discarded, got %d", v.Elapsed)
	}
}

func TestResyncKeepsPausedState(t *testing.T) {
	m, _, clock := newTestMachine(t)
	ctx := context.Background()

	m.Start(ctx, "p", nil, nil)
	clock.Advance(time.Minute)
	m.Pause(ctx)

	m.Resync(ctx, TriggerPoll)
	if m.State() != Paused || m.Elapsed(clock.Now()) != 60 {
		t.Fatalf("paused state should survive resync, got %v", m.State())
	}
}

func TestResyncWithoutServerEntryDropsCarry(t *testing.T) {
	m, backend, clock := newTestMachine(t)
	ctx := context.Background()

	m.Start(ctx, "p", nil, nil)
	clock.Advance(time.Minute)
	m.Pause(ctx)
	m.Resume(ctx)

	// Stopped from another device.
	backend.StopTimer(ctx)
	m.Resync(ctx, TriggerPoll)
	if m.State() != Idle {
		t.Fatalf("expected idle, got %v", m.State())
	}

	// A later start of the same pair begins from zero.
	m.Start(ctx, "p", nil, nil)
	clock.Advance(time.Second)
	if got := m.Elapsed(clock.Now()); got != 1 {
		t.Fatalf("expected no leftover carry, got %d", got)
	}
}

func TestStaleResyncDropped(t *testing.T) {
	m, backend, _ := newTestMachine(t)
	ctx := context.Background()
	m.Start(ctx, "p", nil, nil)

	// The user pauses while the resync request is in flight; the resync
	// answer still shows the open entry and must not win.
	backend.onActive = func() {
		if err := m.Pause(ctx); err != nil {
			t.Errorf("pause: %v", err)
		}
	}
	if err := m.Resync(ctx, TriggerPoll); err != nil {
		t.Fatal(err)
	}
	if m.State() != Paused {
		t.Fatalf("user action must win over stale resync, got %v", m.State())
	}
}

func TestResumeKeepsCarryWhenPollLandsMidStart(t *testing.T) {
	m, backend, clock := newTestMachine(t)
	ctx := context.Background()

	m.Start(ctx, "p", nil, nil)
	clock.Advance(30 * time.Second)
	if err := m.Pause(ctx); err != nil {
		t.Fatal(err)
	}

	// The server has committed the new entry but the response has not
	// arrived yet when a poll sees it.
	backend.onStart = func() {
		if err := m.Resync(ctx, TriggerPoll); err != nil {
			t.Errorf("resync: %v", err)
		}
	}
	if err := m.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	clock.Advance(20 * time.Second)
	if got := m.Elapsed(clock.Now()); got != 50 {
		t.Fatalf("expected 50s elapsed after resume, got %d", got)
	}
}

func TestResyncFailureKeepsState(t *testing.T) {
	m, backend, _ := newTestMachine(t)
	ctx := context.Background()
	m.Start(ctx, "p", nil, nil)

	backend.failNext = errors.New("offline")
	if err := m.Resync(ctx, TriggerPoll); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != Active || m.Err() != "" {
		t.Fatalf("poll failures are silent, got %v %q", m.State(), m.Err())
	}
}

// ============================================================
// Persistence
// ============================================================

func TestPausedStateSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	clock := newFakeClock()
	backend := newFakeBackend(clock)
	ctx := context.Background()

	m1 := New(backend, WithClock(clock.Now), WithStateFile(NewStateFile(path)))
	m1.Start(ctx, "p", strPtr("t"), nil)
	clock.Advance(42 * time.Second)
	m1.Pause(ctx)

	m2 := New(backend, WithClock(clock.Now), WithStateFile(NewStateFile(path)))
	if err := m2.Load(ctx); err != nil {
		t.Fatal(err)
	}
	v := m2.View(clock.Now())
	if v.State != Paused || v.Elapsed != 42 || v.TaskTitle != "Task t" {
		t.Fatalf("expected restored paused timer, got %+v", v)
	}

	if err := m2.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	clock.Advance(8 * time.Second)
	if got := m2.Elapsed(clock.Now()); got != 50 {
		t.Fatalf("expected 50s after resume, got %d", got)
	}
}

func TestLoadOfflineKeepsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	f := NewStateFile(path)
	f.Save(&PausedTimer{ProjectID: "p", ProjectName: "P", ElapsedSeconds: 7}, &Carry{ProjectID: "p", Seconds: 7})

	m, backend, clock := newTestMachine(t, WithStateFile(f))
	backend.failNext = errors.New("offline")
	if err := m.Load(context.Background()); err == nil {
		t.Fatal("expected resync error")
	}
	if m.State() != Paused || m.Elapsed(clock.Now()) != 7 {
		t.Fatalf("expected paused from file, got %v", m.State())
	}
}

func TestCorruptStateFileDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	m, _, _ := newTestMachine(t, WithStateFile(NewStateFile(path)))
	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.State() != Idle {
		t.Fatalf("expected idle, got %v", m.State())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("corrupt file should be removed, got %v", err)
	}
}

func TestStopRemovesStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	m, _, clock := newTestMachine(t, WithStateFile(NewStateFile(path)))
	ctx := context.Background()

	m.Start(ctx, "p", nil, nil)
	clock.Advance(time.Second)
	m.Pause(ctx)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("paused state should be written: %v", err)
	}
	m.Stop(ctx)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("state file should be removed after stop, got %v", err)
	}
}

// ============================================================
// Inactivity
// ============================================================

func TestInactivityPromptThenAutoPause(t *testing.T) {
	m, _, clock := newTestMachine(t, WithInactivity(10*time.Minute, time.Minute))
	ctx := context.Background()
	m.Start(ctx, "p", nil, nil)

	clock.Advance(9 * time.Minute)
	if a, _ := m.CheckIdle(ctx, clock.Now()); a != NoAction {
		t.Fatalf("expected no action before timeout, got %v", a)
	}
	clock.Advance(time.Minute)
	if a, _ := m.CheckIdle(ctx, clock.Now()); a != ShowPrompt {
		t.Fatalf("expected prompt, got %v", a)
	}
	if !m.View(clock.Now()).Prompting {
		t.Fatal("view should report the prompt")
	}

	clock.Advance(time.Minute)
	a, err := m.CheckIdle(ctx, clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if a != AutoPause || m.State() != Paused {
		t.Fatalf("expected auto pause, got %v / %v", a, m.State())
	}
	if got := m.Elapsed(clock.Now()); got != 11*60 {
		t.Fatalf("expected 660s frozen, got %d", got)
	}
}

func TestActivityDismissesPrompt(t *testing.T) {
	m, _, clock := newTestMachine(t, WithInactivity(10*time.Minute, time.Minute))
	ctx := context.Background()
	m.Start(ctx, "p", nil, nil)

	clock.Advance(10 * time.Minute)
	m.CheckIdle(ctx, clock.Now())
	clock.Advance(30 * time.Second)
	m.Activity(clock.Now())
	if m.View(clock.Now()).Prompting {
		t.Fatal("activity should dismiss the prompt")
	}

	// The inactivity clock restarted at the interaction.
	clock.Advance(9 * time.Minute)
	if a, _ := m.CheckIdle(ctx, clock.Now()); a != NoAction {
		t.Fatalf("expected no action, got %v", a)
	}
	if m.State() != Active {
		t.Fatalf("expected still active, got %v", m.State())
	}
}

func TestPauseFromPrompt(t *testing.T) {
	m, _, clock := newTestMachine(t, WithInactivity(time.Minute, 0))
	ctx := context.Background()
	m.Start(ctx, "p", nil, nil)

	clock.Advance(time.Minute)
	m.CheckIdle(ctx, clock.Now())
	// Without a grace period the prompt waits for an answer.
	clock.Advance(time.Hour)
	if a, _ := m.CheckIdle(ctx, clock.Now()); a != NoAction {
		t.Fatalf("expected prompt to wait, got %v", a)
	}
	if err := m.PauseFromPrompt(ctx); err != nil {
		t.Fatal(err)
	}
	if m.State() != Paused || m.View(clock.Now()).Prompting {
		t.Fatalf("expected paused without prompt, got %+v", m.View(clock.Now()))
	}
}

func TestIdleCheckWhileNotActive(t *testing.T) {
	m, _, clock := newTestMachine(t, WithInactivity(time.Minute, time.Minute))
	clock.Advance(time.Hour)
	if a, _ := m.CheckIdle(context.Background(), clock.Now()); a != NoAction {
		t.Fatalf("expected no action while idle, got %v", a)
	}
}

// ============================================================
// Cross-machine sync
// ============================================================

func TestRunResyncsOnSignal(t *testing.T) {
	clock := newFakeClock()
	backend := newFakeBackend(clock)
	bus := NewBus()
	a := New(backend, WithClock(clock.Now), WithBus(bus), WithPollInterval(time.Hour))
	b := New(backend, WithClock(clock.Now), WithBus(bus), WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	// Run subscribes asynchronously; retry the signal until b has seen it.
	deadline := time.Now().Add(5 * time.Second)
	if err := a.Start(context.Background(), "p", nil, nil); err != nil {
		t.Fatal(err)
	}
	for b.State() != Active {
		if time.Now().After(deadline) {
			t.Fatal("b never observed the start")
		}
		bus.Publish(Signal{Origin: a.ID(), Transition: "start"})
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResyncPublishesOnlyWhenStateChanges(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()
	m, backend, _ := newTestMachine(t, WithBus(bus))
	ctx := context.Background()

	// Another client opens an entry; the next poll picks it up.
	if _, err := backend.StartTimer(ctx, api.StartTimerRequest{ProjectID: "p"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Resync(ctx, TriggerPoll); err != nil {
		t.Fatal(err)
	}
	select {
	case sig := <-sub.Signals:
		if sig.Origin != m.ID() || sig.Transition != TransitionResync {
			t.Fatalf("unexpected signal %+v", sig)
		}
	default:
		t.Fatal("expected a resync signal")
	}

	if err := m.Resync(ctx, TriggerPoll); err != nil {
		t.Fatal(err)
	}
	select {
	case sig := <-sub.Signals:
		t.Fatalf("unchanged resync must stay quiet, got %+v", sig)
	default:
	}
}
