package timer

import "time"

const (
	DefaultInactivityTimeout = 10 * time.Minute
	DefaultPromptGrace       = time.Minute
)

// Action is what the inactivity watcher asks for.
type Action int

const (
	NoAction Action = iota
	ShowPrompt
	AutoPause
)

// Watcher tracks user activity while a timer runs. It is not safe for
// concurrent use; Machine guards it.
type Watcher struct {
	timeout   time.Duration
	grace     time.Duration
	last      time.Time
	promptAt  time.Time
	prompting bool
}

// NewWatcher returns a watcher that prompts after timeout without activity
// and pauses when the prompt stays unanswered for grace. A zero grace never
// pauses on its own.
func NewWatcher(timeout, grace time.Duration, now time.Time) *Watcher {
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	return &Watcher{timeout: timeout, grace: grace, last: now}
}

// Touch records activity. It reports whether a prompt was dismissed.
func (w *Watcher) Touch(now time.Time) bool {
	w.last = now
	if w.prompting {
		w.prompting = false
		return true
	}
	return false
}

// Reset restarts the inactivity clock and clears any prompt.
func (w *Watcher) Reset(now time.Time) {
	w.last = now
	w.prompting = false
}

func (w *Watcher) Prompting() bool { return w.prompting }

func (w *Watcher) Check(now time.Time) Action {
	if w.prompting {
		if w.grace > 0 && now.Sub(w.promptAt) >= w.grace {
			w.prompting = false
			return AutoPause
		}
		return NoAction
	}
	if now.Sub(w.last) >= w.timeout {
		w.prompting = true
		w.promptAt = now
		return ShowPrompt
	}
	return NoAction
}
