package timetable

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
)

// Schedule is the ordered set of entries placed inside one owner's dates.
// Its boundary is always read from the owner node.
type Schedule struct {
	reg           *Registry
	owner         Handle
	kind          ContainerKind
	entries       []*Entry
	counter       int
	allowParallel bool
}

// Owner returns the handle of the node whose timetable this is.
func (s *Schedule) Owner() Handle { return s.owner }

// Kind returns the container kind.
func (s *Schedule) Kind() ContainerKind { return s.kind }

// AllowParallel reports whether overlapping entries are kept as they are.
func (s *Schedule) AllowParallel() bool { return s.allowParallel }

// SetAllowParallel toggles overlap resolution for later reflows.
func (s *Schedule) SetAllowParallel(allow bool) { s.allowParallel = allow }

// Counter returns the last minted entry id number.
func (s *Schedule) Counter() int { return s.counter }

// RestoreCounter raises the id counter to n when loading a stored timetable.
// The counter never goes down, so ids of removed entries are not reused.
func (s *Schedule) RestoreCounter(n int) {
	if n <= s.counter {
		return
	}
	s.reg.touchSchedule(s)
	s.counter = n
}

func (s *Schedule) ownerNode() *Node { return s.reg.nodes[s.owner] }

func (s *Schedule) policy() containerPolicy { return containerPolicies[s.kind] }

// Location returns the owner's timezone.
func (s *Schedule) Location() *time.Location { return s.reg.Timezone(s.owner) }

// Start returns the boundary start.
func (s *Schedule) Start() time.Time { return s.ownerNode().start }

// End returns the boundary end.
func (s *Schedule) End() time.Time { return s.ownerNode().End() }

// Boundary returns the owner's span.
func (s *Schedule) Boundary() Interval { return s.ownerNode().Interval() }

// Entries returns the entries in schedule order.
func (s *Schedule) Entries() []*Entry {
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Schedule) Len() int { return len(s.entries) }

// Has reports whether e is held by this schedule.
func (s *Schedule) Has(e *Entry) bool {
	return e != nil && e.reg == s.reg && e.holder == s.owner && s.indexOf(e) >= 0
}

// Entry finds an entry by id.
func (s *Schedule) Entry(id string) (*Entry, bool) {
	for _, e := range s.entries {
		if e.id == id {
			return e, true
		}
	}
	return nil, false
}

func (s *Schedule) indexOf(e *Entry) int {
	for i, cur := range s.entries {
		if cur == e {
			return i
		}
	}
	return -1
}

// AddEntry places e in the schedule. An entry without a start goes to the
// first free slot; an entry with a start is checked against the boundary
// according to policy. On error the timetable is left untouched.
func (s *Schedule) AddEntry(e *Entry, policy CheckPolicy) ([]Notification, error) {
	return s.reg.atomically(func(ch *changes) error {
		return s.addEntry(e, policy, ch)
	})
}

// AddEntryAt moves e to start and places it in the schedule in one step.
// Members are moved and re-validated.
func (s *Schedule) AddEntryAt(e *Entry, start time.Time, policy CheckPolicy) ([]Notification, error) {
	return s.reg.atomically(func(ch *changes) error {
		if e == nil || e.reg != s.reg {
			return appErrors.Clone(appErrors.ErrValidation, "entry does not belong to this timetable")
		}
		if cur := e.Schedule(); cur != nil && cur != s {
			cur.unlink(e)
		}
		if err := s.reg.moveEntry(e, start, s, ch); err != nil {
			return err
		}
		if s.Has(e) {
			return s.revalidate(e, policy, ch)
		}
		return s.addEntry(e, policy, ch)
	})
}

func (s *Schedule) addEntry(e *Entry, policy CheckPolicy, ch *changes) error {
	if e == nil || e.reg != s.reg {
		return appErrors.Clone(appErrors.ErrValidation, "entry does not belong to this timetable")
	}
	if s.Has(e) {
		return nil
	}
	pol := s.policy()
	if err := pol.accepts(s, e); err != nil {
		return err
	}
	if err := s.checkUnique(e, ""); err != nil {
		return err
	}
	if !s.Boundary().IsPlaced() {
		return parentTimingError(s, e)
	}
	if cur := e.Schedule(); cur != nil {
		cur.unlink(e)
	}
	if pol.defaultDuration != nil && e.Duration() == 0 {
		if d := pol.defaultDuration(s, e); d > 0 {
			if err := s.reg.resizeEntry(e, d, s, ch); err != nil {
				return err
			}
		}
	}

	var err error
	if pol.fixed {
		err = s.placeFixed(e, policy, ch)
	} else {
		err = s.place(e, policy, ch)
	}
	if err != nil {
		return err
	}
	// Whatever the policy, nothing may end after the boundary.
	if e.End().After(s.End()) {
		return timingError(s, e, sideEnd, s.End())
	}

	s.link(e, "")
	return s.reflow(policy, ch)
}

func (s *Schedule) place(e *Entry, policy CheckPolicy, ch *changes) error {
	if e.Interval().IsPlaced() {
		return s.contain(e, policy, ch)
	}
	slot, ok := s.FindFirstFreeSlot(e.Duration())
	if !ok && policy == PolicyAdapt {
		if err := s.reg.growEnd(s.ownerNode(), s.End().Add(e.Duration()), ch); err != nil {
			return err
		}
		slot, ok = s.FindFirstFreeSlot(e.Duration())
	}
	if !ok {
		return parentTimingError(s, e)
	}
	return s.reg.moveEntry(e, slot, s, ch)
}

func (s *Schedule) placeFixed(e *Entry, policy CheckPolicy, ch *changes) error {
	if err := s.reg.moveEntry(e, s.Start(), s, ch); err != nil {
		return err
	}
	return s.contain(e, policy, ch)
}

// contain checks e against the boundary and, under PolicyAdapt, grows the
// owner to include it. Fixed containers only check the end: starts are
// stamped by reflow.
func (s *Schedule) contain(e *Entry, policy CheckPolicy, ch *changes) error {
	owner := s.ownerNode()
	if !s.policy().fixed && e.Start().Before(s.Start()) {
		switch policy {
		case PolicyRaise:
			return timingError(s, e, sideStart, s.Start())
		case PolicyAdapt:
			if err := s.reg.growStart(owner, e.Start(), ch); err != nil {
				return err
			}
		}
	}
	if e.End().After(s.End()) {
		switch policy {
		case PolicyRaise:
			return timingError(s, e, sideEnd, s.End())
		case PolicyAdapt:
			if err := s.reg.growEnd(owner, e.End(), ch); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkUnique rejects an entry whose id, or whose node, is already taken by
// another entry of the schedule.
func (s *Schedule) checkUnique(e *Entry, id string) error {
	for _, cur := range s.entries {
		if cur == e {
			continue
		}
		if id != "" && cur.id == id {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("entry id %q is already used in this timetable", id))
		}
		if e.kind == Linked && cur.kind == Linked && cur.target == e.target {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%q is already scheduled in this timetable", e.Title()))
		}
	}
	return nil
}

func (s *Schedule) link(e *Entry, id string) {
	r := s.reg
	r.touchSchedule(s)
	r.touchEntry(e)
	if id == "" {
		s.counter++
		id = strconv.Itoa(s.counter)
	} else if n, err := strconv.Atoi(id); err == nil && n > s.counter {
		s.counter = n
	}
	s.entries = append(s.entries, e)
	e.holder, e.id, e.state = s.owner, id, StateScheduled
	e.recoverable, e.lastHolder, e.lastStart = false, "", time.Time{}
	if _, trashed := r.trash[e]; trashed {
		r.touchTrash()
		delete(r.trash, e)
	}
	if n := e.TargetNode(); n != nil && n.Kind == KindContribution {
		r.touchNode(n)
		n.Status = StatusScheduled
	}
	r.markEntry(e)
	r.markModified(Ref{Owner: s.owner})
}

func (s *Schedule) unlink(e *Entry) {
	r := s.reg
	idx := s.indexOf(e)
	if idx < 0 {
		return
	}
	r.markEntry(e)
	r.markModified(Ref{Owner: s.owner})
	r.touchSchedule(s)
	r.touchEntry(e)
	s.entries = append(s.entries[:idx:idx], s.entries[idx+1:]...)
	e.holder, e.id, e.state = "", "", StateDetached
	if n := e.TargetNode(); n != nil && n.Kind == KindContribution && n.Status == StatusScheduled && !n.isHeld() {
		r.touchNode(n)
		n.Status = StatusNotScheduled
	}
}

// RemoveEntry takes e out of the schedule and clears its start. Independent
// entries go to the trash and can be restored; linked entries just forget
// the schedule. Removing a non-member is a no-op.
func (s *Schedule) RemoveEntry(e *Entry) ([]Notification, error) {
	if !s.Has(e) {
		return nil, nil
	}
	return s.reg.atomically(func(ch *changes) error {
		s.removeEntry(e)
		return nil
	})
}

func (s *Schedule) removeEntry(e *Entry) {
	r := s.reg
	s.unlink(e)
	if e.kind == Independent {
		e.lastHolder, e.lastStart = s.owner, e.start
		e.start = time.Time{}
		e.state, e.recoverable = StateRemoved, true
		r.touchTrash()
		r.trash[e] = struct{}{}
		return
	}
	n := r.nodes[e.target]
	if n.isHeld() {
		return
	}
	r.touchNode(n)
	n.start = time.Time{}
}

// Clear removes every entry, one at a time.
func (s *Schedule) Clear() ([]Notification, error) {
	return s.reg.atomically(func(ch *changes) error {
		for _, e := range s.Entries() {
			s.removeEntry(e)
		}
		return nil
	})
}

// SetEntryStart moves a member entry and re-validates the schedule.
func (s *Schedule) SetEntryStart(e *Entry, start time.Time, policy CheckPolicy) ([]Notification, error) {
	if !s.Has(e) {
		return nil, notFoundError("entry is not part of this timetable")
	}
	return s.reg.atomically(func(ch *changes) error {
		if err := s.reg.moveEntry(e, start, s, ch); err != nil {
			return err
		}
		return s.revalidate(e, policy, ch)
	})
}

// MoveEntry moves a member entry to start. It is SetEntryStart under the name
// callers use for drag and drop.
func (s *Schedule) MoveEntry(e *Entry, start time.Time, policy CheckPolicy) ([]Notification, error) {
	return s.SetEntryStart(e, start, policy)
}

// SetEntryDuration resizes a member entry and re-validates the schedule.
func (s *Schedule) SetEntryDuration(e *Entry, d time.Duration, policy CheckPolicy) ([]Notification, error) {
	if !s.Has(e) {
		return nil, notFoundError("entry is not part of this timetable")
	}
	return s.reg.atomically(func(ch *changes) error {
		if err := s.reg.resizeEntry(e, d, s, ch); err != nil {
			return err
		}
		return s.revalidate(e, policy, ch)
	})
}

func (s *Schedule) revalidate(e *Entry, policy CheckPolicy, ch *changes) error {
	if err := s.contain(e, policy, ch); err != nil {
		return err
	}
	if e.End().After(s.End()) {
		return timingError(s, e, sideEnd, s.End())
	}
	return s.reflow(policy, ch)
}

// Reflow re-sorts the entries and, when parallel entries are not allowed,
// pushes colliding entries after their predecessors. Poster slots only
// re-stamp starts and keep their order.
func (s *Schedule) Reflow() ([]Notification, error) {
	return s.reg.atomically(func(ch *changes) error {
		return s.reflow(PolicyAdapt, ch)
	})
}

func (s *Schedule) reflow(policy CheckPolicy, ch *changes) error {
	r := s.reg
	r.touchSchedule(s)
	defer r.markModified(Ref{Owner: s.owner})

	if s.policy().fixed {
		start := s.Start()
		for _, e := range s.Entries() {
			if !e.Start().Equal(start) {
				if err := r.moveEntry(e, start, s, ch); err != nil {
					return err
				}
			}
		}
		return nil
	}

	s.sortEntries()
	if s.allowParallel || len(s.entries) < 2 {
		return nil
	}
	// Pushing an entry can only move it later, so a few passes settle any
	// order changes caused by cascades into other schedules.
	for pass := 0; pass <= len(s.entries); pass++ {
		moved := false
		var cursor time.Time
		for i, e := range s.Entries() {
			if i > 0 && e.Start().Before(cursor) {
				if err := r.moveEntry(e, cursor, s, ch); err != nil {
					return err
				}
				moved = true
			}
			if i == 0 || e.End().After(cursor) {
				cursor = e.End()
			}
		}
		s.sortEntries()
		if !moved {
			break
		}
	}
	last := s.entries[len(s.entries)-1]
	for _, e := range s.entries {
		if e.End().After(last.End()) {
			last = e
		}
	}
	if last.End().After(s.End()) {
		if policy == PolicyRaise {
			return timingError(s, last, sideEnd, s.End())
		}
		return r.growEnd(s.ownerNode(), last.End(), ch)
	}
	return nil
}

func (s *Schedule) sortEntries() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Interval().Compare(s.entries[j].Interval()) < 0
	})
}

// MoveEntryUp swaps e with the previous entry of the same day, the first
// entry wrapping to the last.
func (s *Schedule) MoveEntryUp(e *Entry) ([]Notification, error) {
	return s.moveAdjacent(e, -1)
}

// MoveEntryDown swaps e with the next entry of the same day, the last entry
// wrapping to the first.
func (s *Schedule) MoveEntryDown(e *Entry) ([]Notification, error) {
	return s.moveAdjacent(e, 1)
}

func (s *Schedule) moveAdjacent(e *Entry, dir int) ([]Notification, error) {
	if !s.Has(e) {
		return nil, notFoundError("entry is not part of this timetable")
	}
	if s.policy().fixed {
		return nil, nil
	}
	day := s.FindEntriesOnDay(e.Start().In(s.Location()))
	if len(day) < 2 {
		return nil, nil
	}
	idx := 0
	for i, cur := range day {
		if cur == e {
			idx = i
			break
		}
	}
	j := (idx + dir + len(day)) % len(day)
	other := day[j]
	return s.reg.atomically(func(ch *changes) error {
		a, b := e.Start(), other.Start()
		if err := s.reg.moveEntry(e, b, s, ch); err != nil {
			return err
		}
		if err := s.reg.moveEntry(other, a, s, ch); err != nil {
			return err
		}
		for _, cur := range []*Entry{e, other} {
			if err := s.contain(cur, PolicyAdapt, ch); err != nil {
				return err
			}
		}
		return s.reflow(PolicyAdapt, ch)
	})
}

// FindFirstFreeSlot returns the earliest gap of at least d inside the
// boundary. A non-positive d accepts any non-empty gap.
func (s *Schedule) FindFirstFreeSlot(d time.Duration) (time.Time, bool) {
	cursor := s.Start()
	if cursor.IsZero() {
		return time.Time{}, false
	}
	fits := func(gap time.Duration) bool {
		return gap > 0 && (d <= 0 || gap >= d)
	}
	for _, e := range s.entries {
		if fits(e.Start().Sub(cursor)) {
			return cursor, true
		}
		if cursor.Before(e.End()) {
			cursor = e.End()
		}
	}
	if fits(s.End().Sub(cursor)) {
		return cursor, true
	}
	return time.Time{}, false
}

// HasGap reports whether the entries fail to follow each other back to back
// from the boundary start. Time left after the last entry is not a gap.
func (s *Schedule) HasGap() bool {
	cursor := s.Start()
	for _, e := range s.entries {
		if !e.Start().Equal(cursor) {
			return true
		}
		cursor = e.End()
	}
	return false
}

// Compact chains every entry to its predecessor starting at the boundary
// start, removing gaps and overlaps. The owner grows if the chain overflows.
func (s *Schedule) Compact() ([]Notification, error) {
	if s.policy().fixed {
		return nil, nil
	}
	return s.reg.atomically(func(ch *changes) error {
		cursor := s.Start()
		for _, e := range s.Entries() {
			if !e.Start().Equal(cursor) {
				if err := s.reg.moveEntry(e, cursor, s, ch); err != nil {
					return err
				}
			}
			cursor = e.End()
		}
		if cursor.After(s.End()) {
			if err := s.reg.growEnd(s.ownerNode(), cursor, ch); err != nil {
				return err
			}
		}
		return s.reflow(PolicyAdapt, ch)
	})
}

// SpacingMode selects what RescheduleWithSpacing rewrites.
type SpacingMode string

const (
	// SpacingDuration stretches each entry up to gap before the next one.
	SpacingDuration SpacingMode = "duration"
	// SpacingStartTime chains entries from the boundary's time of day with gap
	// between them.
	SpacingStartTime SpacingMode = "startingTime"
)

// RescheduleWithSpacing respaces the entries of one day. Entries of closed
// blocks are refused; with fit set, blocks are first shrunk to their
// contents.
func (s *Schedule) RescheduleWithSpacing(mode SpacingMode, gap time.Duration, day time.Time, fit bool) ([]Notification, error) {
	if mode != SpacingDuration && mode != SpacingStartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown spacing mode %q", mode))
	}
	return s.reg.atomically(func(ch *changes) error {
		entries := s.FindEntriesOnDay(day)
		if len(entries) == 0 {
			return nil
		}
		switch mode {
		case SpacingDuration:
			for i, e := range entries {
				if err := s.prepareRespace(e, fit, ch); err != nil {
					return err
				}
				d := e.Duration()
				if i+1 < len(entries) {
					d = entries[i+1].Start().Sub(e.Start()) - gap
				}
				if d < 0 {
					return entryTimingError(e, fmt.Sprintf("with the time between entries you have chosen, the entry %q would have a duration below zero", e.Title()))
				}
				if err := s.reg.resizeEntry(e, d, s, ch); err != nil {
					return err
				}
				if err := s.contain(e, PolicyAdapt, ch); err != nil {
					return err
				}
			}
		case SpacingStartTime:
			loc := s.Location()
			ref := s.Start().In(loc)
			y, m, d := day.Date()
			start := time.Date(y, m, d, ref.Hour(), ref.Minute(), ref.Second(), 0, loc)
			for _, e := range entries {
				if err := s.prepareRespace(e, fit, ch); err != nil {
					return err
				}
				if err := s.reg.moveEntry(e, start, s, ch); err != nil {
					return err
				}
				if err := s.contain(e, PolicyAdapt, ch); err != nil {
					return err
				}
				start = e.End().Add(gap)
			}
		}
		return s.reflow(PolicyAdapt, ch)
	})
}

func (s *Schedule) prepareRespace(e *Entry, fit bool, ch *changes) error {
	n := e.TargetNode()
	if n == nil || n.Kind != KindBlock {
		return nil
	}
	if s.reg.isClosed(n) {
		return entryTimingError(e, fmt.Sprintf("the block %q is closed and cannot be modified", n.Title))
	}
	if fit {
		return s.reg.fitNode(n, ch)
	}
	return nil
}

// Fit shrinks (or grows) the owner to exactly span its entries.
func (s *Schedule) Fit() ([]Notification, error) {
	return s.reg.atomically(func(ch *changes) error {
		return s.reg.fitNode(s.ownerNode(), ch)
	})
}

// FindEntriesOnDay returns the entries running on day's calendar date.
func (s *Schedule) FindEntriesOnDay(day time.Time) []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.InDay(day) {
			out = append(out, e)
		}
	}
	return out
}

// FindEntriesOnDate returns the entries running at instant t.
func (s *Schedule) FindEntriesOnDate(t time.Time) []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.OnDate(t) {
			out = append(out, e)
		}
	}
	return out
}

// Collision is a pair of overlapping entries, First sorting before Second.
type Collision struct {
	First  *Entry
	Second *Entry
}

// Collisions lists every overlapping pair.
func (s *Schedule) Collisions() []Collision {
	var out []Collision
	for i := 0; i < len(s.entries); i++ {
		for j := i + 1; j < len(s.entries); j++ {
			a, b := s.entries[i], s.entries[j]
			if a.Collides(b) || b.Collides(a) {
				out = append(out, Collision{First: a, Second: b})
			}
		}
	}
	return out
}

// Days returns the distinct calendar days (in the schedule timezone) on which
// entries start.
func (s *Schedule) Days() []time.Time {
	loc := s.Location()
	seen := map[time.Time]struct{}{}
	var out []time.Time
	for _, e := range s.entries {
		if !e.Interval().IsPlaced() {
			continue
		}
		d := dayOf(e.Start(), loc)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (s *Schedule) earliestStart() (time.Time, bool) {
	var first time.Time
	for _, e := range s.entries {
		if st := e.Start(); !st.IsZero() && (first.IsZero() || st.Before(first)) {
			first = st
		}
	}
	return first, !first.IsZero()
}

func (s *Schedule) latestEnd() (time.Time, bool) {
	var last time.Time
	for _, e := range s.entries {
		if e.Interval().IsPlaced() {
			last = maxTime(last, e.End())
		}
	}
	return last, !last.IsZero()
}
