// Package layout reads event timetables described in YAML and builds the
// matching registry.
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/event-timetable/internal/timetable"
	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
)

// Accepted layouts for dates without an explicit layout. Dates without an
// offset are read in the event timezone.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

// Duration is a time.Duration written as "45m" or "1h30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Document is a whole event layout.
type Document struct {
	Event         string         `yaml:"event" validate:"required"`
	Policy        *int           `yaml:"policy,omitempty" validate:"omitempty,min=0,max=2"`
	Conference    Conference     `yaml:"conference" validate:"required"`
	Sessions      []Session      `yaml:"sessions,omitempty" validate:"dive"`
	Contributions []Contribution `yaml:"contributions,omitempty" validate:"dive"`
}

// Conference describes the event itself and its own timetable.
type Conference struct {
	Handle   string  `yaml:"handle" validate:"required"`
	Title    string  `yaml:"title" validate:"required"`
	Timezone string  `yaml:"timezone,omitempty" validate:"omitempty,timezone"`
	Start    string  `yaml:"start" validate:"required"`
	End      string  `yaml:"end" validate:"required"`
	Entries  []Entry `yaml:"entries,omitempty" validate:"dive"`
}

// Session groups blocks.
type Session struct {
	Handle          string   `yaml:"handle" validate:"required"`
	Title           string   `yaml:"title" validate:"required"`
	Closed          bool     `yaml:"closed,omitempty"`
	DefaultDuration Duration `yaml:"default_duration,omitempty"`
	Blocks          []Block  `yaml:"blocks,omitempty" validate:"dive"`
}

// Block is a session block, scheduled in its session and in the event.
type Block struct {
	Handle          string   `yaml:"handle" validate:"required"`
	Title           string   `yaml:"title,omitempty"`
	Start           string   `yaml:"start" validate:"required"`
	End             string   `yaml:"end,omitempty" validate:"required_without=Duration"`
	Duration        Duration `yaml:"duration,omitempty"`
	Closed          bool     `yaml:"closed,omitempty"`
	Poster          bool     `yaml:"poster,omitempty"`
	DefaultDuration Duration `yaml:"default_duration,omitempty"`
	Entries         []Entry  `yaml:"entries,omitempty" validate:"dive"`
}

// Contribution is a talk that may be scheduled in a block, or in the event
// timetable when it belongs to no session.
type Contribution struct {
	Handle      string   `yaml:"handle" validate:"required"`
	Title       string   `yaml:"title" validate:"required"`
	Description string   `yaml:"description,omitempty"`
	Session     string   `yaml:"session,omitempty"`
	Duration    Duration `yaml:"duration,omitempty"`
	Withdrawn   bool     `yaml:"withdrawn,omitempty"`
}

// Entry places a contribution or a break in the enclosing timetable. Entries
// without a start go to the first free slot.
type Entry struct {
	Contribution string   `yaml:"contribution,omitempty" validate:"required_without=Break"`
	Break        string   `yaml:"break,omitempty" validate:"required_without=Contribution,excluded_with=Contribution"`
	Description  string   `yaml:"description,omitempty"`
	Start        string   `yaml:"start,omitempty"`
	Duration     Duration `yaml:"duration,omitempty"`
}

// Load reads and validates a layout file.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}
	return Parse(bytes.NewReader(raw))
}

// Parse decodes and validates a layout. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "layout is empty")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid layout")
	}
	if err := validator.New().Struct(doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid layout")
	}
	return &doc, nil
}

// Marshal encodes the document back to YAML.
func (d *Document) Marshal() ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) policy() timetable.CheckPolicy {
	if d.Policy == nil {
		return timetable.PolicyRaise
	}
	return timetable.CheckPolicy(*d.Policy)
}

func (d *Document) location() (*time.Location, error) {
	if d.Conference.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(d.Conference.Timezone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid layout timezone")
	}
	return loc, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot read date %q", raw))
}
