package timetable

import "time"

// Interval is a time span anchored at Start. A zero Start means the span has
// not been placed yet.
type Interval struct {
	Start    time.Time
	Duration time.Duration
}

// NewInterval builds an interval from a start and a duration. Negative
// durations are clamped to zero so that End never precedes Start.
func NewInterval(start time.Time, duration time.Duration) Interval {
	if duration < 0 {
		duration = 0
	}
	return Interval{Start: start, Duration: duration}
}

// IntervalBetween builds an interval from its two endpoints.
func IntervalBetween(start, end time.Time) Interval {
	return NewInterval(start, end.Sub(start))
}

// End returns Start + Duration, or the zero time when the interval is unplaced.
func (i Interval) End() time.Time {
	if i.Start.IsZero() {
		return time.Time{}
	}
	return i.Start.Add(i.Duration)
}

// IsPlaced reports whether the interval has a start.
func (i Interval) IsPlaced() bool {
	return !i.Start.IsZero()
}

// Compare orders intervals by start, then by duration.
func (i Interval) Compare(other Interval) int {
	switch {
	case i.Start.Before(other.Start):
		return -1
	case i.Start.After(other.Start):
		return 1
	case i.Duration < other.Duration:
		return -1
	case i.Duration > other.Duration:
		return 1
	}
	return 0
}

// Overlaps reports whether other starts in [i.Start, i.End) or ends in
// (i.Start, i.End]. Back-to-back intervals do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	if !i.IsPlaced() || !other.IsPlaced() {
		return false
	}
	start, end := i.Start, i.End()
	os, oe := other.Start, other.End()
	if !os.Before(start) && os.Before(end) {
		return true
	}
	return oe.After(start) && !oe.After(end)
}

// Contains reports whether other lies within [i.Start, i.End].
func (i Interval) Contains(other Interval) bool {
	if !i.IsPlaced() || !other.IsPlaced() {
		return false
	}
	return !other.Start.Before(i.Start) && !other.End().After(i.End())
}

// In returns the interval with its start expressed in loc.
func (i Interval) In(loc *time.Location) Interval {
	if loc == nil || !i.IsPlaced() {
		return i
	}
	return Interval{Start: i.Start.In(loc), Duration: i.Duration}
}

// dayOf truncates t to midnight of its calendar day in loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
