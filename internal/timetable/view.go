package timetable

import (
	"time"
)

// DayKeyLayout formats the calendar-day keys of a day view.
const DayKeyLayout = "20060102"

// EntrySummary is the default serialized form of an entry in day views.
type EntrySummary struct {
	ID          string    `json:"id"`
	Kind        string    `json:"entryType"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Target      Handle    `json:"target,omitempty"`
	Holder      Handle    `json:"holder"`
	Start       time.Time `json:"startDate"`
	End         time.Time `json:"endDate"`
	Duration    int64     `json:"duration"`
}

// Summarize builds the summary of e in tz.
func Summarize(e *Entry, tz *time.Location) EntrySummary {
	if tz == nil {
		tz = time.UTC
	}
	kind := "Break"
	if n := e.TargetNode(); n != nil {
		switch n.Kind {
		case KindBlock:
			kind = "Session"
		case KindContribution:
			kind = "Contribution"
		}
	}
	sum := EntrySummary{
		ID:          e.ID(),
		Kind:        kind,
		Title:       e.Title(),
		Description: e.Description(),
		Target:      e.Target(),
		Holder:      e.Holder(),
		Duration:    int64(e.Duration() / time.Minute),
	}
	if e.Interval().IsPlaced() {
		sum.Start = e.Start().In(tz)
		sum.End = e.End().In(tz)
	}
	return sum
}

// SummarizeAny is the default DayView serializer.
func SummarizeAny(e *Entry, tz *time.Location) any { return Summarize(e, tz) }

// GroupByDay groups entries by their start date in tz, keyed YYYYMMDD then by
// entry id. Unplaced entries are skipped.
func GroupByDay(entries []*Entry, tz *time.Location, serialize func(*Entry, *time.Location) any) map[string]map[string]any {
	if tz == nil {
		tz = time.UTC
	}
	if serialize == nil {
		serialize = SummarizeAny
	}
	out := map[string]map[string]any{}
	for _, e := range entries {
		if !e.Interval().IsPlaced() {
			continue
		}
		key := e.Start().In(tz).Format(DayKeyLayout)
		day, ok := out[key]
		if !ok {
			day = map[string]any{}
			out[key] = day
		}
		day[e.ID()] = serialize(e, tz)
	}
	return out
}

// DayView groups the schedule's entries by day in tz, the schedule's own
// timezone when nil.
func (s *Schedule) DayView(tz *time.Location, serialize func(*Entry, *time.Location) any) map[string]map[string]any {
	if tz == nil {
		tz = s.Location()
	}
	return GroupByDay(s.entries, tz, serialize)
}
