package models

import "time"

// Timetable node kinds as stored.
const (
	TimetableNodeConference   = "conference"
	TimetableNodeSession      = "session"
	TimetableNodeBlock        = "block"
	TimetableNodeContribution = "contribution"
)

// Timetable entry kinds as stored.
const (
	TimetableEntryIndependent = "independent"
	TimetableEntryLinked      = "linked"
)

// TimetableSnapshot is the header row of a saved event timetable.
type TimetableSnapshot struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TimetableNode stores one conference, session, block or contribution.
type TimetableNode struct {
	EventID                string     `db:"event_id" json:"event_id"`
	Handle                 string     `db:"handle" json:"handle"`
	Kind                   string     `db:"kind" json:"kind"`
	Title                  string     `db:"title" json:"title"`
	Description            string     `db:"description" json:"description"`
	ConferenceHandle       *string    `db:"conference_handle" json:"conference_handle,omitempty"`
	SessionHandle          *string    `db:"session_handle" json:"session_handle,omitempty"`
	Timezone               *string    `db:"timezone" json:"timezone,omitempty"`
	StartAt                *time.Time `db:"start_at" json:"start_at,omitempty"`
	DurationSeconds        int64      `db:"duration_seconds" json:"duration_seconds"`
	DefaultDurationSeconds int64      `db:"default_duration_seconds" json:"default_duration_seconds"`
	Closed                 bool       `db:"closed" json:"closed"`
	Poster                 bool       `db:"poster" json:"poster"`
	Status                 *string    `db:"status" json:"status,omitempty"`
	Position               int        `db:"position" json:"position"`
	EntryCounter           int        `db:"entry_counter" json:"entry_counter"`
}

// TimetableEntry stores one entry held by a container's schedule.
type TimetableEntry struct {
	EventID         string     `db:"event_id" json:"event_id"`
	Holder          string     `db:"holder" json:"holder"`
	EntryID         string     `db:"entry_id" json:"entry_id"`
	Kind            string     `db:"kind" json:"kind"`
	Target          *string    `db:"target" json:"target,omitempty"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	StartAt         *time.Time `db:"start_at" json:"start_at,omitempty"`
	DurationSeconds int64      `db:"duration_seconds" json:"duration_seconds"`
	Position        int        `db:"position" json:"position"`
}

// TimetableNotification records a boundary change the engine made on its own.
type TimetableNotification struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Subject   string    `db:"subject" json:"subject"`
	Reason    string    `db:"reason" json:"reason"`
	Target    string    `db:"target" json:"target"`
	Boundary  time.Time `db:"boundary" json:"boundary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TimetableSnapshotData groups everything saved for one event.
type TimetableSnapshotData struct {
	Snapshot      TimetableSnapshot
	Nodes         []TimetableNode
	Entries       []TimetableEntry
	Notifications []TimetableNotification
}
