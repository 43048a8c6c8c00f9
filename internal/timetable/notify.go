package timetable

import "time"

// Reason labels a side effect the engine applied on behalf of the caller.
type Reason string

const (
	ReasonStartExtended Reason = "OWNER_START_DATE_EXTENDED"
	ReasonEndExtended   Reason = "OWNER_END_DATE_EXTENDED"
)

// Notification records a boundary change applied while serving a mutation.
// The caller decides what to do with it (logging, persistence, cache work).
type Notification struct {
	Subject  Handle    `json:"subject"`
	Reason   Reason    `json:"reason"`
	Target   Handle    `json:"target"`
	Boundary time.Time `json:"boundary"`
}

// Ref identifies something whose derived views must be invalidated: an owner
// when EntryID is empty, otherwise one entry of that owner's schedule.
type Ref struct {
	Owner   Handle
	EntryID string
}

// IsEntry reports whether the ref points at a single entry.
func (r Ref) IsEntry() bool { return r.EntryID != "" }

// Notifier receives modification signals once a mutation has committed.
type Notifier interface {
	NotifyModified(ref Ref)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ref Ref)

// NotifyModified calls f(ref).
func (f NotifierFunc) NotifyModified(ref Ref) { f(ref) }

type nopNotifier struct{}

func (nopNotifier) NotifyModified(Ref) {}
