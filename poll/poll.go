// Package poll implements the blocking waits used by the host control thread.
//
// The host supplies a Progress callback that keeps its UI alive and doubles as
// the cancellation signal. Every wait calls it once per iteration; a false
// return abandons the wait. Timeouts are measured on the wall clock here, never
// by the host.
package poll

import (
	"time"

	"github.com/pkg/errors"
)

// Progress is called on every iteration of a wait. Returning false cancels it.
type Progress func() bool

type Outcome int

const (
	Done Outcome = iota
	Cancelled
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed out"
	}
	return "unknown"
}

// ErrCancelled is returned by operations whose wait was abandoned by the host.
var ErrCancelled = errors.New("cancelled by host")

// Interval is the pause between iterations of a wait.
var Interval = time.Millisecond

// Until blocks until done returns true, progress returns false, or timeout
// elapses. A timeout of zero or less waits without a bound. A nil progress is
// treated as always continuing.
func Until(progress Progress, timeout time.Duration, done func() bool) Outcome {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if done() {
			return Done
		}
		if progress != nil && !progress() {
			return Cancelled
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			// one last look, the callback may have landed during progress()
			if done() {
				return Done
			}
			return TimedOut
		}
		time.Sleep(Interval)
	}
}

// Within is Until with a hard bound: a timeout of zero or less times out
// after a single look instead of waiting forever.
func Within(progress Progress, timeout time.Duration, done func() bool) Outcome {
	if timeout > 0 {
		return Until(progress, timeout, done)
	}
	if done() {
		return Done
	}
	if progress != nil && !progress() {
		return Cancelled
	}
	return TimedOut
}

// Always is a Progress that never cancels.
func Always() bool { return true }
