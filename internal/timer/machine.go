package timer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/timeutil"
)

const DefaultPollInterval = time.Minute

// TransitionResync marks signals for state changes picked up from the server.
const TransitionResync = "resync"

var (
	ErrAlreadyActive = errors.New("a timer is already running")
	ErrNotActive     = errors.New("no timer is running")
	ErrNotPaused     = errors.New("no timer is paused")
	ErrIdle          = errors.New("no timer to stop")
)

// Backend is the server side of the timer.
type Backend interface {
	StartTimer(ctx context.Context, req api.StartTimerRequest) (*api.TimeEntry, error)
	StopTimer(ctx context.Context) (*api.TimeEntry, error)
	// ActiveTimer returns nil when no entry is open.
	ActiveTimer(ctx context.Context) (*api.TimeEntry, error)
}

type Option func(*Machine)

func WithStateFile(f *StateFile) Option {
	return func(m *Machine) { m.file = f }
}

// WithBus connects the machine to other machines of the same user.
func WithBus(b *Bus) Option {
	return func(m *Machine) { m.bus = b }
}

func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithInactivity sets how long to wait for activity before prompting and how
// long the prompt waits before pausing.
func WithInactivity(timeout, grace time.Duration) Option {
	return func(m *Machine) {
		m.idleTimeout = timeout
		m.promptGrace = grace
	}
}

// WithID sets the origin used on published signals.
func WithID(id string) Option {
	return func(m *Machine) {
		if id != "" {
			m.id = id
		}
	}
}

// Machine is the client timer. Its methods are safe for concurrent use; the
// lock is never held across backend calls.
type Machine struct {
	backend      Backend
	file         *StateFile
	bus          *Bus
	id           string
	clock        func() time.Time
	log          logrus.FieldLogger
	pollInterval time.Duration
	idleTimeout  time.Duration
	promptGrace  time.Duration

	mu      sync.Mutex
	active  *api.TimeEntry
	paused  *PausedTimer
	carry   *Carry
	gen     uint64
	err     string
	watcher *Watcher
}

func New(backend Backend, opts ...Option) *Machine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	m := &Machine{
		backend:      backend,
		id:           uuid.NewString(),
		clock:        time.Now,
		log:          discard,
		pollInterval: DefaultPollInterval,
		idleTimeout:  DefaultInactivityTimeout,
		promptGrace:  DefaultPromptGrace,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.watcher = NewWatcher(m.idleTimeout, m.promptGrace, m.clock())
	return m
}

// ID is the origin of signals published by this machine.
func (m *Machine) ID() string { return m.id }

// Load restores persisted records and then resyncs with the server. Local
// records are kept when the server cannot be reached.
func (m *Machine) Load(ctx context.Context) error {
	m.mu.Lock()
	m.adoptFileLocked()
	m.gen++
	m.mu.Unlock()
	return m.Resync(ctx, TriggerLoad)
}

// Resync reconciles local state with the server's open entry. The result is
// dropped when another transition committed while the request was in flight.
func (m *Machine) Resync(ctx context.Context, trigger Trigger) error {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	entry, err := m.backend.ActiveTimer(ctx)
	if err != nil {
		m.log.WithError(err).WithField("trigger", trigger).Debug("resync failed")
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.log.WithField("trigger", trigger).Debug("stale resync dropped")
		return nil
	}
	before := m.fingerprintLocked()
	m.adoptFileLocked()
	m.reconcileLocked(entry)
	m.gen++
	m.persistLocked()
	changed := m.fingerprintLocked() != before
	m.mu.Unlock()

	if changed {
		m.log.WithField("trigger", trigger).Debug("resync changed timer state")
		m.publish(TransitionResync)
	}
	return nil
}

// fingerprintLocked identifies what the timer shows, ignoring elapsed time.
func (m *Machine) fingerprintLocked() string {
	switch {
	case m.active != nil:
		return "active:" + m.active.ID
	case m.paused != nil:
		task := ""
		if m.paused.TaskID != nil {
			task = *m.paused.TaskID
		}
		return "paused:" + m.paused.ProjectID + "/" + task
	}
	return "idle"
}

func (m *Machine) reconcileLocked(entry *api.TimeEntry) {
	wasActive := m.active != nil
	m.active = entry
	switch {
	case entry != nil:
		m.paused = nil
		if m.carry != nil && !m.carry.Pair().Equal(pairOf(entry)) {
			m.carry = nil
		}
		if !wasActive {
			m.watcher.Reset(m.clock())
		}
	case m.paused == nil:
		m.carry = nil
	}
}

// adoptFileLocked picks up records written by other machines sharing the
// state file.
func (m *Machine) adoptFileLocked() {
	if m.file == nil {
		return
	}
	paused, carry, err := m.file.Load()
	switch {
	case errors.Is(err, ErrCorruptState):
		m.log.WithError(err).Warn("discarding timer state file")
	case err != nil:
		m.log.WithError(err).Warn("read timer state")
		return
	}
	m.paused, m.carry = paused, carry
}

func (m *Machine) persistLocked() {
	if m.file == nil {
		return
	}
	if err := m.file.Save(m.paused, m.carry); err != nil {
		m.log.WithError(err).Warn("save timer state")
	}
}

// Start begins tracking projectID/taskID. Starting the pair that is paused
// continues its elapsed time; any other pair discards the paused record.
func (m *Machine) Start(ctx context.Context, projectID string, taskID *string, note *string) error {
	return m.start(ctx, Pair{ProjectID: projectID, TaskID: taskID}, note, "start")
}

// Resume restarts the paused pair.
func (m *Machine) Resume(ctx context.Context) error {
	m.mu.Lock()
	if m.paused == nil {
		m.err = ErrNotPaused.Error()
		m.mu.Unlock()
		return ErrNotPaused
	}
	pair := m.paused.Pair()
	m.mu.Unlock()
	return m.start(ctx, pair, nil, "resume")
}

func (m *Machine) start(ctx context.Context, pair Pair, note *string, transition string) error {
	m.mu.Lock()
	if m.active != nil {
		m.err = ErrAlreadyActive.Error()
		m.mu.Unlock()
		return ErrAlreadyActive
	}
	// A resync landing before StartTimer returns may clear m.paused.
	paused := m.paused
	m.mu.Unlock()

	entry, err := m.backend.StartTimer(ctx, api.StartTimerRequest{
		ProjectID: pair.ProjectID,
		TaskID:    pair.TaskID,
		Note:      note,
	})

	m.mu.Lock()
	if err != nil {
		m.err = Describe(err)
		m.mu.Unlock()
		m.log.WithError(err).WithField("transition", transition).Info("timer transition failed")
		return err
	}
	if paused != nil && paused.Pair().Equal(pair) {
		m.carry = &Carry{ProjectID: pair.ProjectID, TaskID: pair.TaskID, Seconds: paused.ElapsedSeconds}
	} else {
		m.carry = nil
	}
	m.paused = nil
	m.active = entry
	m.commitLocked()
	m.mu.Unlock()

	m.publish(transition)
	return nil
}

// Pause stops the server entry and freezes the displayed elapsed time.
func (m *Machine) Pause(ctx context.Context) error {
	m.mu.Lock()
	if m.active == nil {
		m.err = ErrNotActive.Error()
		m.mu.Unlock()
		return ErrNotActive
	}
	carry := m.carry
	m.mu.Unlock()

	stopped, err := m.backend.StopTimer(ctx)

	m.mu.Lock()
	if err != nil {
		m.err = Describe(err)
		m.mu.Unlock()
		m.log.WithError(err).WithField("transition", "pause").Info("timer transition failed")
		return err
	}
	pair := pairOf(stopped)
	elapsed := stopped.DurationSeconds
	if carry != nil && carry.Pair().Equal(pair) {
		elapsed += carry.Seconds
	}
	p := &PausedTimer{
		ProjectID:      pair.ProjectID,
		TaskID:         pair.TaskID,
		ElapsedSeconds: elapsed,
		PausedAt:       m.clock(),
	}
	if stopped.Project != nil {
		p.ProjectName = stopped.Project.Name
	}
	if stopped.Task != nil {
		p.TaskTitle = stopped.Task.Title
	}
	m.paused = p
	m.carry = &Carry{ProjectID: pair.ProjectID, TaskID: pair.TaskID, Seconds: elapsed}
	m.active = nil
	m.commitLocked()
	m.mu.Unlock()

	m.publish("pause")
	return nil
}

// Stop ends the timer and discards all carried time. The server is only
// called while active.
func (m *Machine) Stop(ctx context.Context) error {
	m.mu.Lock()
	wasActive := m.active != nil
	if !wasActive && m.paused == nil {
		m.err = ErrIdle.Error()
		m.mu.Unlock()
		return ErrIdle
	}
	m.mu.Unlock()

	if wasActive {
		if _, err := m.backend.StopTimer(ctx); err != nil {
			m.mu.Lock()
			m.err = Describe(err)
			m.mu.Unlock()
			m.log.WithError(err).WithField("transition", "stop").Info("timer transition failed")
			return err
		}
	}

	m.mu.Lock()
	m.active = nil
	m.paused = nil
	m.carry = nil
	m.commitLocked()
	m.mu.Unlock()

	m.publish("stop")
	return nil
}

func (m *Machine) commitLocked() {
	m.gen++
	m.err = ""
	m.watcher.Reset(m.clock())
	m.persistLocked()
}

func (m *Machine) publish(transition string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(Signal{Origin: m.id, Transition: transition, At: m.clock()})
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Machine) stateLocked() State {
	switch {
	case m.active != nil:
		return Active
	case m.paused != nil:
		return Paused
	}
	return Idle
}

// Elapsed is the displayed time in seconds at now.
func (m *Machine) Elapsed(now time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked(now)
}

func (m *Machine) elapsedLocked(now time.Time) int64 {
	switch {
	case m.active != nil:
		var carried int64
		if m.carry != nil && m.carry.Pair().Equal(pairOf(m.active)) {
			carried = m.carry.Seconds
		}
		return carried + timeutil.Duration(m.active.StartAt, now)
	case m.paused != nil:
		return m.paused.ElapsedSeconds
	}
	return 0
}

func (m *Machine) View(now time.Time) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		State:     m.stateLocked(),
		Elapsed:   m.elapsedLocked(now),
		Prompting: m.watcher.Prompting(),
		Err:       m.err,
	}
	switch {
	case m.active != nil:
		v.EntryID = m.active.ID
		v.ProjectID = m.active.ProjectID
		v.TaskID = m.active.TaskID
		v.StartAt = m.active.StartAt
		if m.active.Project != nil {
			v.ProjectName = m.active.Project.Name
		}
		if m.active.Task != nil {
			v.TaskTitle = m.active.Task.Title
		}
	case m.paused != nil:
		v.ProjectID = m.paused.ProjectID
		v.ProjectName = m.paused.ProjectName
		v.TaskID = m.paused.TaskID
		v.TaskTitle = m.paused.TaskTitle
		v.PausedAt = m.paused.PausedAt
	}
	return v
}

// Err returns the last user-visible error, empty after a successful
// transition.
func (m *Machine) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Machine) ClearErr() {
	m.mu.Lock()
	m.err = ""
	m.mu.Unlock()
}

// Activity records user interaction and dismisses a showing prompt.
func (m *Machine) Activity(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watcher.Touch(now)
}

// Continue answers the inactivity prompt with "still working".
func (m *Machine) Continue(now time.Time) {
	m.Activity(now)
}

// CheckIdle runs the inactivity watcher. When the prompt went unanswered for
// the grace period the timer is paused.
func (m *Machine) CheckIdle(ctx context.Context, now time.Time) (Action, error) {
	m.mu.Lock()
	if m.active == nil {
		m.watcher.Reset(now)
		m.mu.Unlock()
		return NoAction, nil
	}
	action := m.watcher.Check(now)
	m.mu.Unlock()

	if action == AutoPause {
		m.log.Info("pausing timer after inactivity")
		return action, m.Pause(ctx)
	}
	return action, nil
}

// PauseFromPrompt answers the inactivity prompt with "pause".
func (m *Machine) PauseFromPrompt(ctx context.Context) error {
	m.mu.Lock()
	m.watcher.Reset(m.clock())
	m.mu.Unlock()
	return m.Pause(ctx)
}

// Run resyncs on the poll interval and on signals from other machines until
// ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	var signals <-chan Signal
	if m.bus != nil {
		sub := m.bus.Subscribe()
		defer sub.Close()
		signals = sub.Signals
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Resync(ctx, TriggerPoll)
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if sig.Origin == m.id {
				continue
			}
			m.Resync(ctx, TriggerSync)
		}
	}
}

// Describe turns a transition error into the message shown to the user.
func Describe(err error) string {
	var apiErr *api.Error
	switch {
	case api.IsConflict(err):
		return ErrAlreadyActive.Error()
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	}
	return "could not reach the server, try again"
}
