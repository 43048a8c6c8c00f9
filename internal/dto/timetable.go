package dto

import "time"

// Move directions accepted by MoveEntryRequest.
const (
	MoveUp   = "up"
	MoveDown = "down"
)

// AddBreakRequest places a new break in a container's timetable. A nil start
// lets the timetable pick the first free slot.
type AddBreakRequest struct {
	EventID         string     `json:"eventId" validate:"required"`
	Container       string     `json:"container" validate:"required"`
	Title           string     `json:"title" validate:"required,max=255"`
	Description     string     `json:"description" validate:"omitempty,max=2000"`
	Start           *time.Time `json:"start"`
	DurationMinutes int        `json:"durationMinutes" validate:"min=0,max=10080"`
	Policy          *int       `json:"policy" validate:"omitempty,min=0,max=2"`
}

// ScheduleNodeRequest schedules an existing session block or contribution.
type ScheduleNodeRequest struct {
	EventID   string     `json:"eventId" validate:"required"`
	Container string     `json:"container" validate:"required"`
	Node      string     `json:"node" validate:"required"`
	Start     *time.Time `json:"start"`
	Policy    *int       `json:"policy" validate:"omitempty,min=0,max=2"`
}

// EntryRefRequest addresses one entry of a container's timetable.
type EntryRefRequest struct {
	EventID   string `json:"eventId" validate:"required"`
	Container string `json:"container" validate:"required"`
	EntryID   string `json:"entryId" validate:"required"`
}

// MoveEntryRequest moves an entry one step (Direction) or to a new start.
type MoveEntryRequest struct {
	EventID   string     `json:"eventId" validate:"required"`
	Container string     `json:"container" validate:"required"`
	EntryID   string     `json:"entryId" validate:"required"`
	Direction string     `json:"direction" validate:"omitempty,oneof=up down"`
	Start     *time.Time `json:"start" validate:"required_without=Direction"`
	Policy    *int       `json:"policy" validate:"omitempty,min=0,max=2"`
}

// ResizeEntryRequest changes the duration of an entry.
type ResizeEntryRequest struct {
	EventID         string `json:"eventId" validate:"required"`
	Container       string `json:"container" validate:"required"`
	EntryID         string `json:"entryId" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"min=0,max=10080"`
	Policy          *int   `json:"policy" validate:"omitempty,min=0,max=2"`
}

// ContainerRequest addresses a container's timetable as a whole.
type ContainerRequest struct {
	EventID   string `json:"eventId" validate:"required"`
	Container string `json:"container" validate:"required"`
}

// RescheduleRequest re-spaces the entries of one day.
type RescheduleRequest struct {
	EventID     string `json:"eventId" validate:"required"`
	Container   string `json:"container" validate:"required"`
	Mode        string `json:"mode" validate:"required,oneof=duration startingTime"`
	GapMinutes  int    `json:"gapMinutes" validate:"min=-1440,max=1440"`
	Day         string `json:"day" validate:"required,datetime=2006-01-02"`
	FitChildren bool   `json:"fitChildren"`
}

// SetDatesRequest changes either the start or the end of a container.
type SetDatesRequest struct {
	EventID   string     `json:"eventId" validate:"required"`
	Container string     `json:"container" validate:"required"`
	Start     *time.Time `json:"start" validate:"required_without=End,excluded_with=End"`
	End       *time.Time `json:"end" validate:"required_without=Start,excluded_with=Start"`
	Policy    *int       `json:"policy" validate:"omitempty,min=0,max=2"`
}

// DayViewRequest asks for a container's entries grouped by day.
type DayViewRequest struct {
	EventID   string `json:"eventId" validate:"required"`
	Container string `json:"container" validate:"required"`
	Timezone  string `json:"timezone" validate:"omitempty,timezone"`
}

// ExportRequest renders a container's timetable to a file.
type ExportRequest struct {
	EventID   string `json:"eventId" validate:"required"`
	Container string `json:"container" validate:"required"`
	Format    string `json:"format" validate:"required,oneof=csv ics"`
	Timezone  string `json:"timezone" validate:"omitempty,timezone"`
}

// NotificationResponse describes a boundary the timetable moved on its own.
type NotificationResponse struct {
	Subject  string    `json:"subject"`
	Reason   string    `json:"reason"`
	Target   string    `json:"target"`
	Boundary time.Time `json:"boundary"`
}

// ModifiedRef names an owner, or one entry of it, whose views went stale.
type ModifiedRef struct {
	Owner   string `json:"owner"`
	EntryID string `json:"entryId,omitempty"`
}

// MutationResponse is returned by every timetable mutation.
type MutationResponse struct {
	EventID       string                 `json:"eventId"`
	Version       int                    `json:"version"`
	EntryID       string                 `json:"entryId,omitempty"`
	Notifications []NotificationResponse `json:"notifications"`
	Modified      []ModifiedRef          `json:"modified"`
}

// ExportResponse points at a rendered export file.
type ExportResponse struct {
	RelativePath string `json:"relativePath"`
	Format       string `json:"format"`
	Entries      int    `json:"entries"`
}
