package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/event-timetable/internal/dto"
	"github.com/noah-isme/event-timetable/internal/models"
	"github.com/noah-isme/event-timetable/internal/timetable"
	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
	"github.com/noah-isme/event-timetable/pkg/jobs"
	"github.com/noah-isme/event-timetable/pkg/logger"
)

// TimetableStore persists timetable versions.
type TimetableStore interface {
	SaveSnapshot(ctx context.Context, data *models.TimetableSnapshotData) (int, error)
	LoadSnapshot(ctx context.Context, eventID string) (*models.TimetableSnapshotData, error)
	ListNotifications(ctx context.Context, eventID string, limit int) ([]models.TimetableNotification, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// BuildFunc builds a registry using the options the service needs wired in.
type BuildFunc func(opts ...timetable.Option) (*timetable.Registry, error)

// TimetableConfig tunes the engine behind the service.
type TimetableConfig struct {
	DefaultPolicy   timetable.CheckPolicy
	MaxCascadeDepth int
	Parallel        map[timetable.ContainerKind]bool
	CacheTTL        time.Duration
}

type eventTimetable struct {
	mu       sync.Mutex
	reg      *timetable.Registry
	version  int
	modified []timetable.Ref
}

func (ev *eventTimetable) drain() []timetable.Ref {
	refs := ev.modified
	ev.modified = nil
	return refs
}

// TimetableService runs timetable operations for events, persisting each
// committed change and invalidating cached views of what it touched.
type TimetableService struct {
	store     TimetableStore
	cache     *CacheService
	queue     jobQueue
	exporter  *ExportService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig

	mu     sync.Mutex
	events map[string]*eventTimetable
}

// NewTimetableService constructs the service. store, cache, queue and
// exporter are optional.
func NewTimetableService(store TimetableStore, cache *CacheService, queue jobQueue, exporter *ExportService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg TimetableConfig) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPolicy < timetable.PolicyNone || cfg.DefaultPolicy > timetable.PolicyAdapt {
		cfg.DefaultPolicy = timetable.PolicyAdapt
	}
	return &TimetableService{
		store:     store,
		cache:     cache,
		queue:     queue,
		exporter:  exporter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		events:    map[string]*eventTimetable{},
	}
}

// SetQueue wires the invalidation queue once it has been built around
// HandleInvalidation.
func (s *TimetableService) SetQueue(queue jobQueue) {
	s.queue = queue
}

func (s *TimetableService) options(ev *eventTimetable) []timetable.Option {
	opts := []timetable.Option{
		timetable.WithNotifier(timetable.NotifierFunc(func(ref timetable.Ref) {
			ev.modified = append(ev.modified, ref)
		})),
		timetable.WithMaxCascadeDepth(s.cfg.MaxCascadeDepth),
	}
	for kind, allow := range s.cfg.Parallel {
		opts = append(opts, timetable.WithParallel(kind, allow))
	}
	return opts
}

// Import registers a timetable built outside the service (a layout file for
// instance) and persists it as a new version.
func (s *TimetableService) Import(ctx context.Context, eventID string, build BuildFunc) (*dto.MutationResponse, error) {
	if eventID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event id is required")
	}
	ev := &eventTimetable{}
	reg, err := build(s.options(ev)...)
	if err != nil {
		return nil, err
	}
	ev.reg = reg
	ev.drain()

	s.mu.Lock()
	s.events[eventID] = ev
	s.mu.Unlock()

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if err := s.persist(ctx, eventID, ev, nil); err != nil {
		return nil, err
	}
	refs := make([]timetable.Ref, 0)
	for _, n := range reg.Nodes() {
		if n.IsContainer() {
			refs = append(refs, timetable.Ref{Owner: n.Handle})
		}
	}
	s.invalidate(ctx, eventID, refs)
	s.logger.Info("timetable imported", zap.String("event_id", eventID), zap.Int("nodes", len(reg.Nodes())), zap.Int("version", ev.version))
	return &dto.MutationResponse{EventID: eventID, Version: ev.version, Notifications: []dto.NotificationResponse{}, Modified: toModifiedRefs(refs)}, nil
}

func (s *TimetableService) event(ctx context.Context, eventID string) (*eventTimetable, error) {
	s.mu.Lock()
	ev, ok := s.events[eventID]
	s.mu.Unlock()
	if ok {
		return ev, nil
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("timetable of event %s not loaded", eventID))
	}

	start := time.Now()
	data, err := s.store.LoadSnapshot(ctx, eventID)
	s.metrics.ObserveDBQuery("load_snapshot", time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	ev = &eventTimetable{version: data.Snapshot.Version}
	reg, err := registryFromSnapshot(data, s.options(ev)...)
	if err != nil {
		return nil, err
	}
	ev.reg = reg
	ev.drain()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.events[eventID]; ok {
		return existing, nil
	}
	s.events[eventID] = ev
	return ev, nil
}

func (s *TimetableService) forget(eventID string) {
	s.mu.Lock()
	delete(s.events, eventID)
	s.mu.Unlock()
}

func (s *TimetableService) policy(raw *int) timetable.CheckPolicy {
	if raw == nil {
		return s.cfg.DefaultPolicy
	}
	return timetable.CheckPolicy(*raw)
}

func (s *TimetableService) validate(req any) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	return nil
}

type operation func(reg *timetable.Registry) (string, []timetable.Notification, error)

// mutate runs op on the event's registry, then persists the result and
// schedules cache invalidation for everything the engine reported modified.
func (s *TimetableService) mutate(ctx context.Context, eventID, name string, op operation) (*dto.MutationResponse, error) {
	ev, err := s.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()

	log := logger.ForEvent(s.logger, eventID).With(zap.String("operation", name))
	start := time.Now()
	entryID, notes, err := op(ev.reg)
	s.metrics.ObserveOperation(name, err, time.Since(start))
	refs := ev.drain()
	if err != nil {
		log.Info("timetable operation refused", zap.Error(err))
		return nil, err
	}

	if err := s.persist(ctx, eventID, ev, notes); err != nil {
		log.Error("timetable snapshot not saved", zap.Error(err))
		return nil, err
	}
	for _, note := range notes {
		s.metrics.RecordNotification(string(note.Reason))
		log.Info("timetable boundary changed",
			zap.String("owner", string(note.Target)),
			zap.String("reason", string(note.Reason)),
			zap.Time("boundary", note.Boundary),
		)
	}
	s.invalidate(ctx, eventID, refs)
	log.Debug("timetable operation applied", zap.Int("version", ev.version), zap.Int("modified", len(refs)))

	return &dto.MutationResponse{
		EventID:       eventID,
		Version:       ev.version,
		EntryID:       entryID,
		Notifications: toNotificationResponses(notes),
		Modified:      toModifiedRefs(refs),
	}, nil
}

func (s *TimetableService) persist(ctx context.Context, eventID string, ev *eventTimetable, notes []timetable.Notification) error {
	if s.store == nil {
		ev.version++
		return nil
	}
	start := time.Now()
	version, err := s.store.SaveSnapshot(ctx, snapshotFromRegistry(eventID, ev.reg, notes))
	s.metrics.ObserveDBQuery("save_snapshot", time.Since(start))
	if err != nil {
		// The in-memory registry is ahead of storage; reload on next use.
		s.forget(eventID)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable")
	}
	ev.version = version
	return nil
}

func (s *TimetableService) invalidate(ctx context.Context, eventID string, refs []timetable.Ref) {
	seen := map[timetable.Handle]bool{}
	for _, ref := range refs {
		if seen[ref.Owner] {
			continue
		}
		seen[ref.Owner] = true
		job := jobs.Job{ID: uuid.NewString(), Type: jobs.TypeInvalidateOwner, EventID: eventID, Owner: string(ref.Owner)}
		if ref.IsEntry() {
			job.Type, job.EntryID = jobs.TypeInvalidateEntry, ref.EntryID
		}
		if s.queue != nil {
			err := s.queue.Enqueue(job)
			if err == nil {
				continue
			}
			s.logger.Warn("invalidation not queued, running inline", zap.String("event_id", eventID), zap.Error(err))
		}
		err := s.HandleInvalidation(ctx, job)
		s.metrics.RecordInvalidation(err)
	}
}

// HandleInvalidation bumps the view version of the job's owner and drops
// the views cached under older versions.
func (s *TimetableService) HandleInvalidation(ctx context.Context, job jobs.Job) error {
	if !s.cache.Enabled() {
		return nil
	}
	if _, err := s.cache.Bump(ctx, versionKey(job.EventID, job.Owner)); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, viewKeyPattern(job.EventID, job.Owner))
}

func versionKey(eventID, owner string) string {
	return fmt.Sprintf("timetable:version:%s:%s", eventID, owner)
}

func viewKey(eventID, owner string, version int64, tz string) string {
	return fmt.Sprintf("timetable:%s:%s:v%d:%s", eventID, owner, version, tz)
}

func viewKeyPattern(eventID, owner string) string {
	return fmt.Sprintf("timetable:%s:%s:v*", eventID, owner)
}

func scheduleOf(reg *timetable.Registry, container string) (*timetable.Schedule, error) {
	sched, ok := reg.Schedule(timetable.Handle(container))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("container %s has no timetable", container))
	}
	return sched, nil
}

func entryOf(sched *timetable.Schedule, id string) (*timetable.Entry, error) {
	e, ok := sched.Entry(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("entry %s not found in %s", id, sched.Owner()))
	}
	return e, nil
}

func minutes(m int) time.Duration { return time.Duration(m) * time.Minute }

// AddBreak creates a break and places it in the container's timetable.
func (s *TimetableService) AddBreak(ctx context.Context, req dto.AddBreakRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	policy := s.policy(req.Policy)
	return s.mutate(ctx, req.EventID, "add_break", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		sched, err := scheduleOf(reg, req.Container)
		if err != nil {
			return "", nil, err
		}
		var start time.Time
		if req.Start != nil {
			start = *req.Start
		}
		entry := reg.NewBreak(req.Title, start, minutes(req.DurationMinutes))
		entry.SetDescription(req.Description)
		notes, err := sched.AddEntry(entry, policy)
		return entry.ID(), notes, err
	})
}

// ScheduleNode places a session block or contribution in a container's
// timetable, at Start when given.
func (s *TimetableService) ScheduleNode(ctx context.Context, req dto.ScheduleNodeRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	policy := s.policy(req.Policy)
	return s.mutate(ctx, req.EventID, "schedule_node", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		sched, err := scheduleOf(reg, req.Container)
		if err != nil {
			return "", nil, err
		}
		entry, ok := reg.LinkIn(timetable.Handle(req.Node), sched.Owner())
		if !ok {
			if entry, err = reg.NewLinkedEntry(timetable.Handle(req.Node)); err != nil {
				return "", nil, err
			}
		}
		var notes []timetable.Notification
		if req.Start != nil {
			notes, err = sched.AddEntryAt(entry, *req.Start, policy)
		} else {
			notes, err = sched.AddEntry(entry, policy)
		}
		return entry.ID(), notes, err
	})
}

// RemoveEntry takes an entry out of the container's timetable.
func (s *TimetableService) RemoveEntry(ctx context.Context, req dto.EntryRefRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, req.EventID, "remove_entry", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		sched, err := scheduleOf(reg, req.Container)
		if err != nil {
			return "", nil, err
		}
		entry, err := entryOf(sched, req.EntryID)
		if err != nil {
			return "", nil, err
		}
		notes, err := sched.RemoveEntry(entry)
		return req.EntryID, notes, err
	})
}

// MoveEntry moves an entry one step up or down, or to a new start.
func (s *TimetableService) MoveEntry(ctx context.Context, req dto.MoveEntryRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	policy := s.policy(req.Policy)
	return s.mutate(ctx, req.EventID, "move_entry", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		sched, err := scheduleOf(reg, req.Container)
		if err != nil {
			return "", nil, err
		}
		entry, err := entryOf(sched, req.EntryID)
		if err != nil {
			return "", nil, err
		}
		var notes []timetable.Notification
		switch req.Direction {
		case dto.MoveUp:
			notes, err = sched.MoveEntryUp(entry)
		case dto.MoveDown:
			notes, err = sched.MoveEntryDown(entry)
		default:
			notes, err = sched.MoveEntry(entry, *req.Start, policy)
		}
		return entry.ID(), notes, err
	})
}

// ResizeEntry changes an entry's duration.
func (s *TimetableService) ResizeEntry(ctx context.Context, req dto.ResizeEntryRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	policy := s.policy(req.Policy)
	return s.mutate(ctx, req.EventID, "resize_entry", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		sched, err := scheduleOf(reg, req.Container)
		if err != nil {
			return "", nil, err
		}
		entry, err := entryOf(sched, req.EntryID)
		if err != nil {
			return "", nil, err
		}
		notes, err := sched.SetEntryDuration(entry, minutes(req.DurationMinutes), policy)
		return entry.ID(), notes, err
	})
}

// Compact removes the gaps between the container's entries.
func (s *TimetableService) Compact(ctx context.Context, req dto.ContainerRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, req.EventID, "compact", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		sched, err := scheduleOf(reg, req.Container)
		if err != nil {
			return "", nil, err
		}
		notes, err := sched.Compact()
		return "", notes, err
	})
}

// Fit shrinks or grows the container to exactly span its entries.
func (s *TimetableService) Fit(ctx context.Context, req dto.ContainerRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, req.EventID, "fit", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		sched, err := scheduleOf(reg, req.Container)
		if err != nil {
			return "", nil, err
		}
		notes, err := sched.Fit()
		return "", notes, err
	})
}

// Reschedule re-spaces the entries of one day of the container.
func (s *TimetableService) Reschedule(ctx context.Context, req dto.RescheduleRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, req.EventID, "reschedule", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		sched, err := scheduleOf(reg, req.Container)
		if err != nil {
			return "", nil, err
		}
		day, err := time.ParseInLocation("2006-01-02", req.Day, sched.Location())
		if err != nil {
			return "", nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day")
		}
		notes, err := sched.RescheduleWithSpacing(timetable.SpacingMode(req.Mode), minutes(req.GapMinutes), day, req.FitChildren)
		return "", notes, err
	})
}

// SetDates moves the start or the end of a container.
func (s *TimetableService) SetDates(ctx context.Context, req dto.SetDatesRequest) (*dto.MutationResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	policy := s.policy(req.Policy)
	return s.mutate(ctx, req.EventID, "set_dates", func(reg *timetable.Registry) (string, []timetable.Notification, error) {
		owner := timetable.Handle(req.Container)
		if req.Start != nil {
			notes, err := reg.SetStartDate(owner, *req.Start, policy)
			return "", notes, err
		}
		notes, err := reg.SetEndDate(owner, *req.End, policy)
		return "", notes, err
	})
}

func (s *TimetableService) location(raw string, sched *timetable.Schedule) (*time.Location, error) {
	if raw == "" {
		return sched.Location(), nil
	}
	loc, err := time.LoadLocation(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timezone")
	}
	return loc, nil
}

// DayView returns the container's entries grouped by day, reading through
// the cache when it is enabled.
func (s *TimetableService) DayView(ctx context.Context, req dto.DayViewRequest) (map[string]map[string]timetable.EntrySummary, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	ev, err := s.event(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()

	sched, err := scheduleOf(ev.reg, req.Container)
	if err != nil {
		return nil, err
	}
	loc, err := s.location(req.Timezone, sched)
	if err != nil {
		return nil, err
	}

	var key string
	if s.cache.Enabled() {
		if version, err := s.cache.Version(ctx, versionKey(req.EventID, req.Container)); err == nil {
			key = viewKey(req.EventID, req.Container, version, loc.String())
			var cached map[string]map[string]timetable.EntrySummary
			if hit, _ := s.cache.Get(ctx, key, &cached); hit {
				return cached, nil
			}
		}
	}

	view := map[string]map[string]timetable.EntrySummary{}
	for day, entries := range sched.DayView(loc, timetable.SummarizeAny) {
		out := make(map[string]timetable.EntrySummary, len(entries))
		for id, v := range entries {
			out[id] = v.(timetable.EntrySummary)
		}
		view[day] = out
	}
	if key != "" {
		_ = s.cache.Set(ctx, key, view, s.cfg.CacheTTL)
	}
	return view, nil
}

// Export renders the container's timetable to a stored file.
func (s *TimetableService) Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export storage is not configured")
	}
	ev, err := s.event(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()

	sched, err := scheduleOf(ev.reg, req.Container)
	if err != nil {
		return nil, err
	}
	loc, err := s.location(req.Timezone, sched)
	if err != nil {
		return nil, err
	}
	title := req.Container
	if n, ok := ev.reg.Node(sched.Owner()); ok && n.Title != "" {
		title = n.Title
	}
	if removed, err := s.exporter.Cleanup(0); err != nil {
		s.logger.Warn("stale exports not removed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Debug("stale exports removed", zap.Int("count", len(removed)))
	}
	result, err := s.exporter.Generate(req.EventID, sched, title, req.Format, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export timetable")
	}
	return &dto.ExportResponse{RelativePath: result.RelativePath, Format: result.Format, Entries: result.Entries}, nil
}

// Notifications lists the latest boundary notifications stored for an event.
func (s *TimetableService) Notifications(ctx context.Context, eventID string, limit int) ([]models.TimetableNotification, error) {
	if s.store == nil {
		return []models.TimetableNotification{}, nil
	}
	notes, err := s.store.ListNotifications(ctx, eventID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable notifications")
	}
	return notes, nil
}

// Collisions lists overlapping entry pairs of a container.
func (s *TimetableService) Collisions(ctx context.Context, req dto.ContainerRequest) ([][2]timetable.EntrySummary, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	ev, err := s.event(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()

	sched, err := scheduleOf(ev.reg, req.Container)
	if err != nil {
		return nil, err
	}
	loc := sched.Location()
	out := make([][2]timetable.EntrySummary, 0)
	for _, c := range sched.Collisions() {
		out = append(out, [2]timetable.EntrySummary{timetable.Summarize(c.First, loc), timetable.Summarize(c.Second, loc)})
	}
	return out, nil
}

func toNotificationResponses(notes []timetable.Notification) []dto.NotificationResponse {
	out := make([]dto.NotificationResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, dto.NotificationResponse{
			Subject:  string(n.Subject),
			Reason:   string(n.Reason),
			Target:   string(n.Target),
			Boundary: n.Boundary,
		})
	}
	return out
}

func toModifiedRefs(refs []timetable.Ref) []dto.ModifiedRef {
	out := make([]dto.ModifiedRef, 0, len(refs))
	seen := map[timetable.Ref]bool{}
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, dto.ModifiedRef{Owner: string(ref.Owner), EntryID: ref.EntryID})
	}
	return out
}
