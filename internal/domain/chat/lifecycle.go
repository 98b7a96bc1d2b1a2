package chat

import "fmt"

// Lifecycle is the explicit state machine for conversation rollover.
// Transitions:
//
//	active ──(message count reaches cap)──> rollover_pending
//	rollover_pending ──(next inbound message)──> closed
//
// Closed is terminal. Keeping the cap-crossing transition explicit makes it
// testable without a store.
type Lifecycle struct {
	status Status
	count  int
	cap    int
}

// NewLifecycle restores a lifecycle from persisted conversation state.
// A non-positive cap falls back to TurnCap.
func NewLifecycle(status Status, messageCount, cap int) *Lifecycle {
	if cap <= 0 {
		cap = TurnCap
	}
	return &Lifecycle{status: status, count: messageCount, cap: cap}
}

// Status returns the current state.
func (l *Lifecycle) Status() Status { return l.status }

// MessageCount returns the number of inbound messages recorded.
func (l *Lifecycle) MessageCount() int { return l.count }

// NeedsRollover reports whether the next inbound message must go to a new
// conversation instead of this one.
func (l *Lifecycle) NeedsRollover() bool {
	return l.status == StatusRolloverPending || l.status == StatusClosed || l.count >= l.cap
}

// RecordMessage registers one inbound user message and returns the resulting
// status. Reaching the cap moves active -> rollover_pending. Recording a
// message on a closed or rollover-pending conversation is a caller bug.
func (l *Lifecycle) RecordMessage() (Status, error) {
	if l.status != StatusActive {
		return l.status, fmt.Errorf("record message in state %q: conversation no longer accepts turns", l.status)
	}
	l.count++
	if l.count >= l.cap {
		l.status = StatusRolloverPending
	}
	return l.status, nil
}

// Close moves the lifecycle to closed. Valid from active and
// rollover_pending; closing an already-closed conversation is a no-op.
func (l *Lifecycle) Close() Status {
	l.status = StatusClosed
	return l.status
}
