package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-timetable/internal/timetable"
	"github.com/noah-isme/event-timetable/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatICS = "ics"
)

var exportHeaders = []string{"id", "type", "title", "description", "start", "end", "duration_minutes", "holder"}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type icalRenderer interface {
	Render(data export.Calendar) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Format       string
	Entries      int
}

// ExportService renders schedules and persists the files.
type ExportService struct {
	storage fileStorage
	csv     csvRenderer
	ical    icalRenderer
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(storage fileStorage, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, ical icalRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if ical == nil {
		ical = export.NewICalExporter("")
	}
	return &ExportService{storage: storage, csv: csv, ical: ical, logger: logger, cfg: cfg, now: time.Now}
}

// Generate renders the schedule in the requested format and stores it.
func (s *ExportService) Generate(eventID string, sched *timetable.Schedule, title, format string, tz *time.Location) (*ExportResult, error) {
	if sched == nil {
		return nil, fmt.Errorf("schedule nil")
	}
	if tz == nil {
		tz = sched.Location()
	}
	entries := sched.Entries()

	var (
		payload []byte
		err     error
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(buildDataset(entries, tz))
	case ExportFormatICS:
		payload, err = s.ical.Render(buildCalendar(eventID, title, entries))
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(eventID, sched.Owner(), format), payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("timetable exported",
		zap.String("event_id", eventID),
		zap.String("container", string(sched.Owner())),
		zap.String("format", format),
		zap.String("path", relPath),
	)
	return &ExportResult{RelativePath: relPath, Format: format, Entries: len(entries)}, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(eventID string, owner timetable.Handle, format string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("timetable_%s_%s_%s.%s", sanitizeFilename(eventID), sanitizeFilename(string(owner)), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func buildDataset(entries []*timetable.Entry, tz *time.Location) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		sum := timetable.Summarize(e, tz)
		row := map[string]string{
			"id":               sum.ID,
			"type":             sum.Kind,
			"title":            sum.Title,
			"description":      sum.Description,
			"duration_minutes": strconv.FormatInt(sum.Duration, 10),
			"holder":           string(sum.Holder),
		}
		if !sum.Start.IsZero() {
			row["start"] = sum.Start.Format(time.RFC3339)
			row["end"] = sum.End.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func buildCalendar(eventID, title string, entries []*timetable.Entry) export.Calendar {
	cal := export.Calendar{Name: title}
	for _, e := range entries {
		ev := export.CalendarEvent{
			UID:         fmt.Sprintf("%s-%s@%s", e.Holder(), e.ID(), eventID),
			Summary:     e.Title(),
			Description: e.Description(),
			Location:    title,
		}
		if e.Interval().IsPlaced() {
			ev.Start, ev.End = e.Start(), e.End()
		}
		cal.Events = append(cal.Events, ev)
	}
	return cal
}
