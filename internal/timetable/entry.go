package timetable

import "time"

// EntryKind distinguishes entries owning their own timing from entries that
// delegate it to a node.
type EntryKind int

const (
	Independent EntryKind = iota + 1
	Linked
)

func (k EntryKind) String() string {
	switch k {
	case Independent:
		return "independent"
	case Linked:
		return "linked"
	}
	return "unknown"
}

// EntryState is the lifecycle state of an entry with respect to schedules.
type EntryState int

const (
	StateDetached EntryState = iota
	StateScheduled
	StateRemoved
)

func (s EntryState) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateRemoved:
		return "removed"
	}
	return "detached"
}

// Entry is a scheduled unit. Independent entries (breaks) carry their own
// start and duration; linked entries read and write them on a node.
type Entry struct {
	reg    *Registry
	kind   EntryKind
	id     string
	holder Handle
	state  EntryState

	// Removed independent entries remember where they were.
	recoverable bool
	lastHolder  Handle
	lastStart   time.Time

	title       string
	description string
	start       time.Time
	duration    time.Duration

	target Handle
}

// ID returns the entry id, unique within the holding schedule.
func (e *Entry) ID() string { return e.id }

// Kind returns whether the entry is independent or linked.
func (e *Entry) Kind() EntryKind { return e.kind }

// State returns the lifecycle state.
func (e *Entry) State() EntryState { return e.state }

// Recoverable reports whether a removed entry can still be restored.
func (e *Entry) Recoverable() bool { return e.state == StateRemoved && e.recoverable }

// Target returns the node a linked entry delegates to.
func (e *Entry) Target() Handle { return e.target }

// TargetNode returns the node behind a linked entry, nil for independent ones.
func (e *Entry) TargetNode() *Node {
	if e.kind != Linked {
		return nil
	}
	return e.reg.nodes[e.target]
}

// Holder returns the handle of the owner whose schedule holds the entry.
func (e *Entry) Holder() Handle { return e.holder }

// Schedule returns the schedule currently holding the entry, or nil.
func (e *Entry) Schedule() *Schedule {
	if e.holder == "" {
		return nil
	}
	return e.reg.schedules[e.holder]
}

// IsScheduled reports whether a schedule holds the entry.
func (e *Entry) IsScheduled() bool { return e.holder != "" }

// Title returns the entry title.
func (e *Entry) Title() string {
	if n := e.TargetNode(); n != nil {
		return n.Title
	}
	return e.title
}

// Description returns the entry description.
func (e *Entry) Description() string {
	if n := e.TargetNode(); n != nil {
		return n.Description
	}
	return e.description
}

// SetTitle renames the entry (or its node).
func (e *Entry) SetTitle(title string) {
	if n := e.TargetNode(); n != nil {
		n.Title = title
		return
	}
	e.title = title
}

// SetDescription changes the entry (or node) description.
func (e *Entry) SetDescription(desc string) {
	if n := e.TargetNode(); n != nil {
		n.Description = desc
		return
	}
	e.description = desc
}

// Start returns the entry start, zero when unplaced.
func (e *Entry) Start() time.Time {
	if n := e.TargetNode(); n != nil {
		return n.start
	}
	return e.start
}

// Duration returns the entry duration.
func (e *Entry) Duration() time.Duration {
	if n := e.TargetNode(); n != nil {
		return n.duration
	}
	return e.duration
}

// End returns Start + Duration.
func (e *Entry) End() time.Time { return e.Interval().End() }

// Interval returns the entry span.
func (e *Entry) Interval() Interval {
	return Interval{Start: e.Start(), Duration: e.Duration()}
}

// Collides reports whether other's span overlaps this entry's span.
func (e *Entry) Collides(other *Entry) bool {
	return e.Interval().Overlaps(other.Interval())
}

// InDay reports whether the entry runs on the calendar day of day, using
// day's location.
func (e *Entry) InDay(day time.Time) bool {
	if !e.Interval().IsPlaced() {
		return false
	}
	loc := day.Location()
	d := dayOf(day, loc)
	first := dayOf(e.Start(), loc)
	last := first
	if e.Duration() > 0 {
		last = dayOf(e.End().Add(-time.Nanosecond), loc)
	}
	return !d.Before(first) && !d.After(last)
}

// OnDate reports whether the instant t falls within [start, end).
func (e *Entry) OnDate(t time.Time) bool {
	if !e.Interval().IsPlaced() {
		return false
	}
	return !t.Before(e.Start()) && t.Before(e.End())
}

// SetStart moves an entry. Scheduled entries go through their schedule so
// that containment and reflow apply.
func (e *Entry) SetStart(start time.Time, policy CheckPolicy) ([]Notification, error) {
	if s := e.Schedule(); s != nil {
		return s.SetEntryStart(e, start, policy)
	}
	return e.reg.atomically(func(ch *changes) error {
		return e.reg.moveEntry(e, start, nil, ch)
	})
}

// SetDuration resizes an entry. Scheduled entries go through their schedule.
func (e *Entry) SetDuration(d time.Duration, policy CheckPolicy) ([]Notification, error) {
	if s := e.Schedule(); s != nil {
		return s.SetEntryDuration(e, d, policy)
	}
	return e.reg.atomically(func(ch *changes) error {
		return e.reg.resizeEntry(e, d, nil, ch)
	})
}

// Attach places the entry into s with the given id (minted when empty),
// detaching it from any schedule first. No containment check is made; this
// is meant for loading stored timetables. An id already used in s is a
// conflict.
func (e *Entry) Attach(s *Schedule, id string) ([]Notification, error) {
	return e.reg.atomically(func(ch *changes) error {
		if s != nil {
			if err := s.checkUnique(e, id); err != nil {
				return err
			}
		}
		if cur := e.Schedule(); cur != nil {
			cur.unlink(e)
		}
		if s == nil {
			e.reg.touchEntry(e)
			e.holder, e.id, e.state = "", "", StateDetached
			return nil
		}
		s.link(e, id)
		return s.reflow(PolicyNone, ch)
	})
}

// Detach removes the entry from its schedule with the same effects as
// RemoveEntry. It is a no-op for unscheduled entries.
func (e *Entry) Detach() ([]Notification, error) {
	s := e.Schedule()
	if s == nil {
		return nil, nil
	}
	return s.RemoveEntry(e)
}
