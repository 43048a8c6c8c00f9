package timetable

import (
	"fmt"
	"time"

	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
)

// TimingDetail describes which boundary an entry violated. It is wrapped in an
// *appErrors.Error carrying the matching engine code.
type TimingDetail struct {
	EntryID  string        `json:"entry_id,omitempty"`
	Title    string        `json:"title,omitempty"`
	Owner    Handle        `json:"owner,omitempty"`
	Side     string        `json:"side,omitempty"`
	Boundary time.Time     `json:"boundary,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Message  string        `json:"message"`
}

// Error implements the error interface for timing details.
func (d *TimingDetail) Error() string {
	if d == nil {
		return "<nil>"
	}
	return d.Message
}

const (
	sideStart = "start"
	sideEnd   = "end"
)

func timingError(s *Schedule, e *Entry, side string, boundary time.Time) error {
	var msg string
	if side == sideStart {
		msg = fmt.Sprintf("entry %q starts at %s, before its parent's start date %s",
			e.Title(), e.Start().Format(time.RFC3339), boundary.Format(time.RFC3339))
	} else {
		msg = fmt.Sprintf("entry %q ends at %s, after its parent's end date %s",
			e.Title(), e.End().Format(time.RFC3339), boundary.Format(time.RFC3339))
	}
	detail := &TimingDetail{EntryID: e.ID(), Title: e.Title(), Owner: s.owner, Side: side, Boundary: boundary, Message: msg}
	return appErrors.WrapAs(appErrors.ErrTiming, detail, "cannot schedule this entry")
}

func childTimingError(owner Handle, side string, requested, child time.Time) error {
	msg := fmt.Sprintf("cannot move the %s date to %s: a scheduled entry lies at %s",
		side, requested.Format(time.RFC3339), child.Format(time.RFC3339))
	detail := &TimingDetail{Owner: owner, Side: side, Boundary: requested, Message: msg}
	return appErrors.WrapAs(appErrors.ErrTiming, detail, "entries would fall outside the new dates")
}

func parentTimingError(s *Schedule, e *Entry) error {
	detail := &TimingDetail{
		EntryID:  e.ID(),
		Title:    e.Title(),
		Owner:    s.owner,
		Duration: e.Duration(),
		Message:  fmt.Sprintf("there is not enough time found to add this entry in the schedule (duration: %s)", e.Duration()),
	}
	return appErrors.WrapAs(appErrors.ErrParentTiming, detail, "")
}

func entryTimingError(e *Entry, msg string) error {
	detail := &TimingDetail{EntryID: e.ID(), Title: e.Title(), Duration: e.Duration(), Message: msg}
	return appErrors.WrapAs(appErrors.ErrEntryTiming, detail, "")
}

func wrongTypeError(format string, args ...any) error {
	return appErrors.Clone(appErrors.ErrWrongEntryType, fmt.Sprintf(format, args...))
}

func notFoundError(format string, args ...any) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf(format, args...))
}
