package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

// CalendarEvent is one VEVENT of an iCalendar export.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Calendar defines iCalendar export content.
type Calendar struct {
	Name   string
	Events []CalendarEvent
}

// ICalExporter renders calendars into RFC 5545 bytes.
type ICalExporter struct {
	productID string
	now       func() time.Time
}

// NewICalExporter builds an iCalendar exporter.
func NewICalExporter(productID string) *ICalExporter {
	if productID == "" {
		productID = "-//event-timetable//EN"
	}
	return &ICalExporter{productID: productID, now: time.Now}
}

// Render produces an iCalendar document. Events without a start are skipped.
func (e *ICalExporter) Render(data Calendar) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(e.productID)
	if data.Name != "" {
		cal.SetXWRCalName(data.Name)
	}
	stamp := e.now().UTC()
	for _, ev := range data.Events {
		if ev.UID == "" {
			return nil, fmt.Errorf("calendar event %q has no uid", ev.Summary)
		}
		if ev.Start.IsZero() {
			continue
		}
		vevent := cal.AddEvent(ev.UID)
		vevent.SetDtStampTime(stamp)
		vevent.SetStartAt(ev.Start.UTC())
		vevent.SetEndAt(ev.End.UTC())
		vevent.SetSummary(ev.Summary)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
	}
	return []byte(cal.Serialize()), nil
}
