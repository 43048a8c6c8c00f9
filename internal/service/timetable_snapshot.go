package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/event-timetable/internal/models"
	"github.com/noah-isme/event-timetable/internal/timetable"
	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
)

// snapshotFromRegistry flattens a registry into persistence rows.
func snapshotFromRegistry(eventID string, reg *timetable.Registry, notes []timetable.Notification) *models.TimetableSnapshotData {
	data := &models.TimetableSnapshotData{Snapshot: models.TimetableSnapshot{EventID: eventID}}
	for i, n := range reg.Nodes() {
		row := models.TimetableNode{
			EventID:                eventID,
			Handle:                 string(n.Handle),
			Kind:                   n.Kind.String(),
			Title:                  n.Title,
			Description:            n.Description,
			DurationSeconds:        int64(n.Duration() / time.Second),
			DefaultDurationSeconds: int64(n.DefaultDuration / time.Second),
			Closed:                 n.Closed,
			Poster:                 n.Poster,
			Position:               i,
		}
		if n.Kind != timetable.KindConference && n.Conference != "" {
			row.ConferenceHandle = stringPtr(string(n.Conference))
		}
		if n.Session != "" {
			row.SessionHandle = stringPtr(string(n.Session))
		}
		if n.Location != nil {
			row.Timezone = stringPtr(n.Location.String())
		}
		if start := n.Start(); !start.IsZero() {
			start = start.UTC()
			row.StartAt = &start
		}
		if n.Status != "" {
			row.Status = stringPtr(string(n.Status))
		}
		s, ok := reg.Schedule(n.Handle)
		if ok {
			row.EntryCounter = s.Counter()
		}
		data.Nodes = append(data.Nodes, row)
		if !ok {
			continue
		}
		for pos, e := range s.Entries() {
			entry := models.TimetableEntry{
				EventID:         eventID,
				Holder:          string(n.Handle),
				EntryID:         e.ID(),
				Kind:            e.Kind().String(),
				Title:           e.Title(),
				Description:     e.Description(),
				DurationSeconds: int64(e.Duration() / time.Second),
				Position:        pos,
			}
			if e.Kind() == timetable.Linked {
				entry.Target = stringPtr(string(e.Target()))
			}
			if start := e.Start(); !start.IsZero() {
				start = start.UTC()
				entry.StartAt = &start
			}
			data.Entries = append(data.Entries, entry)
		}
	}
	for _, note := range notes {
		data.Notifications = append(data.Notifications, models.TimetableNotification{
			EventID:  eventID,
			Subject:  string(note.Subject),
			Reason:   string(note.Reason),
			Target:   string(note.Target),
			Boundary: note.Boundary.UTC(),
		})
	}
	return data
}

// registryFromSnapshot rebuilds a registry from persistence rows. Nodes must
// come parents first, which is the order snapshotFromRegistry writes them in.
func registryFromSnapshot(data *models.TimetableSnapshotData, opts ...timetable.Option) (*timetable.Registry, error) {
	reg := timetable.NewRegistry(opts...)
	for _, row := range data.Nodes {
		kind, ok := timetable.ParseNodeKind(row.Kind)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("node %s has unknown kind %q", row.Handle, row.Kind))
		}
		spec := timetable.NodeSpec{
			Handle:          timetable.Handle(row.Handle),
			Kind:            kind,
			Title:           row.Title,
			Description:     row.Description,
			Conference:      timetable.Handle(deref(row.ConferenceHandle)),
			Session:         timetable.Handle(deref(row.SessionHandle)),
			Duration:        time.Duration(row.DurationSeconds) * time.Second,
			Closed:          row.Closed,
			Poster:          row.Poster,
			DefaultDuration: time.Duration(row.DefaultDurationSeconds) * time.Second,
			Withdrawn:       deref(row.Status) == string(timetable.StatusWithdrawn),
		}
		if row.StartAt != nil {
			spec.Start = *row.StartAt
		}
		if row.Timezone != nil {
			loc, err := time.LoadLocation(*row.Timezone)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("node %s has an unknown timezone", row.Handle))
			}
			spec.Location = loc
		}
		if _, err := reg.AddNode(spec); err != nil {
			return nil, err
		}
	}

	for _, row := range data.Entries {
		s, ok := reg.Schedule(timetable.Handle(row.Holder))
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("entry %s/%s is held by an unknown container", row.Holder, row.EntryID))
		}
		var entry *timetable.Entry
		switch row.Kind {
		case models.TimetableEntryIndependent:
			var start time.Time
			if row.StartAt != nil {
				start = *row.StartAt
			}
			entry = reg.NewBreak(row.Title, start, time.Duration(row.DurationSeconds)*time.Second)
			entry.SetDescription(row.Description)
		case models.TimetableEntryLinked:
			var err error
			entry, err = reg.NewLinkedEntry(timetable.Handle(deref(row.Target)))
			if err != nil {
				return nil, err
			}
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %s/%s has unknown kind %q", row.Holder, row.EntryID, row.Kind))
		}
		if entry.IsScheduled() {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("entry %s/%s schedules %s a second time", row.Holder, row.EntryID, deref(row.Target)))
		}
		if _, err := entry.Attach(s, row.EntryID); err != nil {
			return nil, err
		}
	}
	for _, row := range data.Nodes {
		if s, ok := reg.Schedule(timetable.Handle(row.Handle)); ok {
			s.RestoreCounter(row.EntryCounter)
		}
	}
	return reg, nil
}

func stringPtr(v string) *string { return &v }

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
