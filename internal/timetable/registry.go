package timetable

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
)

const defaultMaxCascadeDepth = 8

// Registry is the arena holding every node and schedule of one event.
// Schedules and entries refer to nodes by Handle; a Registry is not safe for
// concurrent use.
type Registry struct {
	nodes     map[Handle]*Node
	order     []Handle
	schedules map[Handle]*Schedule
	trash     map[*Entry]struct{}
	notifier  Notifier
	maxDepth  int
	parallel  map[ContainerKind]bool
	tx        *txn
}

// Option customises a Registry.
type Option func(*Registry)

// WithNotifier sets the modification hook called after each committed mutation.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithMaxCascadeDepth bounds how many levels a boundary change may climb.
func WithMaxCascadeDepth(depth int) Option {
	return func(r *Registry) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithParallel sets whether schedules of the given kind keep overlapping
// entries instead of shifting them apart.
func WithParallel(kind ContainerKind, allow bool) Option {
	return func(r *Registry) {
		r.parallel[kind] = allow
	}
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		nodes:     map[Handle]*Node{},
		schedules: map[Handle]*Schedule{},
		trash:     map[*Entry]struct{}{},
		notifier:  nopNotifier{},
		maxDepth:  defaultMaxCascadeDepth,
		parallel: map[ContainerKind]bool{
			ContainerConference: true,
			ContainerSession:    true,
			ContainerSlot:       false,
			ContainerPosterSlot: true,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddNode registers a node. Containers get an empty schedule.
func (r *Registry) AddNode(spec NodeSpec) (*Node, error) {
	h := spec.Handle
	if h == "" {
		h = Handle(uuid.NewString())
	}
	if _, exists := r.nodes[h]; exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("node %q already registered", h))
	}
	duration := spec.Duration
	if !spec.End.IsZero() {
		if spec.Start.IsZero() || spec.End.Before(spec.Start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("node %q: end must follow a start date", h))
		}
		duration = spec.End.Sub(spec.Start)
	}
	if duration < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("node %q: negative duration", h))
	}

	n := &Node{
		Handle:          h,
		Kind:            spec.Kind,
		Title:           spec.Title,
		Description:     spec.Description,
		Location:        spec.Location,
		Closed:          spec.Closed,
		Poster:          spec.Poster,
		DefaultDuration: spec.DefaultDuration,
		start:           spec.Start,
		duration:        duration,
	}

	switch spec.Kind {
	case KindConference:
		if spec.Start.IsZero() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("conference %q needs a start date", h))
		}
		n.Conference = h
	case KindSession:
		conf, err := r.nodeOfKind(spec.Conference, KindConference)
		if err != nil {
			return nil, err
		}
		n.Conference = conf.Handle
		if n.start.IsZero() {
			n.start, n.duration = conf.start, conf.duration
		}
	case KindBlock:
		session, err := r.nodeOfKind(spec.Session, KindSession)
		if err != nil {
			return nil, err
		}
		n.Session = session.Handle
		n.Conference = session.Conference
		if n.duration == 0 {
			n.duration = session.DefaultDuration
		}
	case KindContribution:
		conf, err := r.nodeOfKind(spec.Conference, KindConference)
		if err != nil {
			return nil, err
		}
		n.Conference = conf.Handle
		if spec.Session != "" {
			session, err := r.nodeOfKind(spec.Session, KindSession)
			if err != nil {
				return nil, err
			}
			if session.Conference != conf.Handle {
				return nil, wrongTypeError("session %q belongs to another event", session.Title)
			}
			n.Session = session.Handle
		}
		n.Status = StatusNotScheduled
		if spec.Withdrawn {
			n.Status = StatusWithdrawn
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("node %q: unknown kind %d", h, spec.Kind))
	}

	r.nodes[h] = n
	r.order = append(r.order, h)
	if kind := containerKindFor(n); kind != 0 {
		r.schedules[h] = &Schedule{reg: r, owner: h, kind: kind, allowParallel: r.parallel[kind]}
	}
	return n, nil
}

func (r *Registry) nodeOfKind(h Handle, kind NodeKind) (*Node, error) {
	n, ok := r.nodes[h]
	if !ok {
		return nil, notFoundError("%s %q not found", kind, h)
	}
	if n.Kind != kind {
		return nil, wrongTypeError("%q is a %s, expected a %s", h, n.Kind, kind)
	}
	return n, nil
}

// Node looks a node up by handle.
func (r *Registry) Node(h Handle) (*Node, bool) {
	n, ok := r.nodes[h]
	return n, ok
}

// Nodes returns every node in registration order.
func (r *Registry) Nodes() []*Node {
	out := make([]*Node, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, r.nodes[h])
	}
	return out
}

// Schedule returns the schedule owned by h.
func (r *Registry) Schedule(h Handle) (*Schedule, bool) {
	s, ok := r.schedules[h]
	return s, ok
}

// Timezone returns the location of h, inherited from its conference when
// unset.
func (r *Registry) Timezone(h Handle) *time.Location {
	n, ok := r.nodes[h]
	if !ok {
		return time.UTC
	}
	if n.Location != nil {
		return n.Location
	}
	if conf, ok := r.nodes[n.Conference]; ok && conf.Location != nil {
		return conf.Location
	}
	return time.UTC
}

// StartDate returns the start of h in tz (the node's own timezone when nil).
func (r *Registry) StartDate(h Handle, tz *time.Location) (time.Time, error) {
	n, ok := r.nodes[h]
	if !ok {
		return time.Time{}, notFoundError("node %q not found", h)
	}
	if tz == nil {
		tz = r.Timezone(h)
	}
	if n.start.IsZero() {
		return time.Time{}, nil
	}
	return n.start.In(tz), nil
}

// EndDate returns the end of h in tz (the node's own timezone when nil).
func (r *Registry) EndDate(h Handle, tz *time.Location) (time.Time, error) {
	n, ok := r.nodes[h]
	if !ok {
		return time.Time{}, notFoundError("node %q not found", h)
	}
	if tz == nil {
		tz = r.Timezone(h)
	}
	if n.start.IsZero() {
		return time.Time{}, nil
	}
	return n.End().In(tz), nil
}

// NewBreak creates an independent entry. A zero start lets the schedule pick
// the first free slot.
func (r *Registry) NewBreak(title string, start time.Time, duration time.Duration) *Entry {
	if duration < 0 {
		duration = 0
	}
	return &Entry{reg: r, kind: Independent, title: title, start: start, duration: duration}
}

// NewLinkedEntry creates an entry delegating its timing to target. A
// contribution has a single entry: once created it is returned again, so
// scheduling it elsewhere moves it.
func (r *Registry) NewLinkedEntry(target Handle) (*Entry, error) {
	n, ok := r.nodes[target]
	if !ok {
		return nil, notFoundError("node %q not found", target)
	}
	if n.Kind == KindConference {
		return nil, wrongTypeError("an event cannot be scheduled inside a timetable")
	}
	if n.Kind == KindContribution && len(n.links) > 0 {
		return n.links[0], nil
	}
	e := &Entry{reg: r, kind: Linked, target: target}
	n.links = append(n.links, e)
	return e, nil
}

// LinkIn returns the entry of target held by the schedule of container.
func (r *Registry) LinkIn(target, container Handle) (*Entry, bool) {
	n, ok := r.nodes[target]
	if !ok {
		return nil, false
	}
	for _, e := range n.links {
		if e.holder == container {
			return e, true
		}
	}
	return nil, false
}

// SetStartDate moves the start of a container, keeping its end. Entries that
// would fall outside are rejected (PolicyRaise), kept by clamping the new
// date (PolicyAdapt) or ignored (PolicyNone).
func (r *Registry) SetStartDate(h Handle, start time.Time, policy CheckPolicy) ([]Notification, error) {
	n, s, err := r.container(h)
	if err != nil {
		return nil, err
	}
	return r.atomically(func(ch *changes) error {
		if first, ok := s.earliestStart(); ok && start.After(first) {
			switch policy {
			case PolicyRaise:
				return childTimingError(h, sideStart, start, first)
			case PolicyAdapt:
				start = first
			}
		}
		end := n.End()
		if n.start.IsZero() {
			end = start.Add(n.duration)
		}
		if start.After(end) {
			return appErrors.Clone(appErrors.ErrValidation, "start date must not be after the end date")
		}
		return r.changeBoundary(n, start, end, ch)
	})
}

// SetEndDate moves the end of a container, keeping its start.
func (r *Registry) SetEndDate(h Handle, end time.Time, policy CheckPolicy) ([]Notification, error) {
	n, s, err := r.container(h)
	if err != nil {
		return nil, err
	}
	if n.start.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s %q has no start date", n.Kind, n.Title))
	}
	return r.atomically(func(ch *changes) error {
		if last, ok := s.latestEnd(); ok && end.Before(last) {
			switch policy {
			case PolicyRaise:
				return childTimingError(h, sideEnd, end, last)
			case PolicyAdapt:
				end = last
			}
		}
		if end.Before(n.start) {
			return appErrors.Clone(appErrors.ErrValidation, "end date must not be before the start date")
		}
		return r.changeBoundary(n, n.start, end, ch)
	})
}

// SetDuration resizes a contribution or block. Under PolicyRaise the new end
// must fit every schedule holding the node; otherwise holders grow.
func (r *Registry) SetDuration(h Handle, d time.Duration, policy CheckPolicy) ([]Notification, error) {
	n, ok := r.nodes[h]
	if !ok {
		return nil, notFoundError("node %q not found", h)
	}
	if n.Kind != KindContribution && n.Kind != KindBlock {
		return nil, wrongTypeError("only contributions and blocks have a settable duration")
	}
	return r.atomically(func(ch *changes) error {
		if policy == PolicyRaise && !n.start.IsZero() {
			for _, e := range n.links {
				s := e.Schedule()
				if s == nil {
					continue
				}
				if end := n.start.Add(d); end.After(s.End()) {
					return timingError(s, e, sideEnd, s.End())
				}
			}
		}
		return r.resizeNode(n, d, nil, ch)
	})
}

func (r *Registry) container(h Handle) (*Node, *Schedule, error) {
	n, ok := r.nodes[h]
	if !ok {
		return nil, nil, notFoundError("node %q not found", h)
	}
	s, ok := r.schedules[h]
	if !ok {
		return nil, nil, wrongTypeError("%s %q has no timetable", n.Kind, n.Title)
	}
	return n, s, nil
}

// Trash returns the removed entries that can still be restored.
func (r *Registry) Trash() []*Entry {
	out := make([]*Entry, 0, len(r.trash))
	for e := range r.trash {
		out = append(out, e)
	}
	return out
}

// Restore puts a removed independent entry back where it was.
func (r *Registry) Restore(e *Entry) ([]Notification, error) {
	if e == nil || !e.Recoverable() {
		return nil, appErrors.ErrNotRecoverable
	}
	s, ok := r.schedules[e.lastHolder]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotRecoverable, "the timetable holding this entry no longer exists")
	}
	return r.atomically(func(ch *changes) error {
		r.touchEntry(e)
		e.start = e.lastStart
		return s.addEntry(e, PolicyAdapt, ch)
	})
}

// EmptyTrash makes every removed entry permanently unrecoverable and returns
// how many were dropped.
func (r *Registry) EmptyTrash() int {
	count := len(r.trash)
	for e := range r.trash {
		e.recoverable = false
		e.lastHolder = ""
	}
	r.trash = map[*Entry]struct{}{}
	return count
}

// moveEntry sets the start of e. Moving a block shifts its entries along.
// Schedules other than skip holding the underlying node are re-validated.
func (r *Registry) moveEntry(e *Entry, start time.Time, skip *Schedule, ch *changes) error {
	if e.kind == Independent {
		r.touchEntry(e)
		e.start = start
		r.markEntry(e)
		return nil
	}
	n := r.nodes[e.target]
	old := n.start
	r.touchNode(n)
	n.start = start
	r.markNode(n)
	if n.Kind == KindBlock && !old.IsZero() && !start.IsZero() {
		if delta := start.Sub(old); delta != 0 {
			r.shiftChildren(r.schedules[n.Handle], delta)
		}
	}
	return r.propagate(n, skip, ch)
}

// resizeEntry sets the duration of e. A block cannot shrink past its entries.
func (r *Registry) resizeEntry(e *Entry, d time.Duration, skip *Schedule, ch *changes) error {
	if d < 0 {
		return entryTimingError(e, fmt.Sprintf("entry %q cannot have a negative duration", e.Title()))
	}
	if e.kind == Independent {
		r.touchEntry(e)
		e.duration = d
		r.markEntry(e)
		return nil
	}
	return r.resizeNode(r.nodes[e.target], d, skip, ch)
}

func (r *Registry) resizeNode(n *Node, d time.Duration, skip *Schedule, ch *changes) error {
	if d < 0 {
		return appErrors.Clone(appErrors.ErrEntryTiming, fmt.Sprintf("%s %q cannot have a negative duration", n.Kind, n.Title))
	}
	if n.Kind == KindBlock && !n.start.IsZero() {
		if last, ok := r.schedules[n.Handle].latestEnd(); ok && n.start.Add(d).Before(last) {
			return childTimingError(n.Handle, sideEnd, n.start.Add(d), last)
		}
	}
	r.touchNode(n)
	n.duration = d
	r.markNode(n)
	return r.propagate(n, skip, ch)
}

// shiftChildren moves every entry of s by delta without revalidation; the
// entries travel with their container.
func (r *Registry) shiftChildren(s *Schedule, delta time.Duration) {
	for _, child := range s.entries {
		if child.kind == Independent {
			r.touchEntry(child)
			child.start = child.start.Add(delta)
		} else {
			cn := r.nodes[child.target]
			r.touchNode(cn)
			cn.start = cn.start.Add(delta)
		}
		r.markEntry(child)
	}
	r.markModified(Ref{Owner: s.owner})
}

// changeBoundary sets the span of a container and cascades upwards.
func (r *Registry) changeBoundary(n *Node, start, end time.Time, ch *changes) error {
	r.touchNode(n)
	n.start = start
	n.duration = end.Sub(start)
	r.markModified(Ref{Owner: n.Handle})
	return r.propagate(n, nil, ch)
}

func (r *Registry) growStart(n *Node, start time.Time, ch *changes) error {
	ch.notify(Notification{Subject: n.Handle, Reason: ReasonStartExtended, Target: n.Handle, Boundary: start.In(r.Timezone(n.Handle))})
	return r.changeBoundary(n, start, n.End(), ch)
}

func (r *Registry) growEnd(n *Node, end time.Time, ch *changes) error {
	ch.notify(Notification{Subject: n.Handle, Reason: ReasonEndExtended, Target: n.Handle, Boundary: end.In(r.Timezone(n.Handle))})
	return r.changeBoundary(n, n.start, end, ch)
}

// propagate re-validates n wherever it is scheduled, growing the holders as
// needed. Sessions are additionally kept inside their conference. The walk is
// bounded by maxDepth; a node already being propagated further up the walk is
// left to that call.
func (r *Registry) propagate(n *Node, skip *Schedule, ch *changes) error {
	if ch.path[n.Handle] {
		return nil
	}
	if ch.depth >= r.maxDepth {
		return appErrors.Clone(appErrors.ErrCascadeLimit, fmt.Sprintf("boundary change of %s %q cascades too deep", n.Kind, n.Title))
	}
	ch.path[n.Handle] = true
	ch.depth++
	defer func() {
		ch.depth--
		delete(ch.path, n.Handle)
	}()

	for _, e := range n.links {
		s := e.Schedule()
		if s == nil || s == skip {
			continue
		}
		if err := s.contain(e, PolicyAdapt, ch); err != nil {
			return err
		}
		if err := s.reflow(PolicyAdapt, ch); err != nil {
			return err
		}
	}

	if n.Kind == KindSession && !n.start.IsZero() {
		conf := r.nodes[n.Conference]
		if n.start.Before(conf.start) {
			if err := r.growStart(conf, n.start, ch); err != nil {
				return err
			}
		}
		if n.End().After(conf.End()) {
			if err := r.growEnd(conf, n.End(), ch); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) fitNode(n *Node, ch *changes) error {
	s := r.schedules[n.Handle]
	first, ok := s.earliestStart()
	if !ok {
		return nil
	}
	last, _ := s.latestEnd()
	if first.Equal(n.start) && last.Equal(n.End()) {
		return nil
	}
	return r.changeBoundary(n, first, last, ch)
}

func (r *Registry) isClosed(n *Node) bool {
	if n.Closed {
		return true
	}
	if session, ok := r.nodes[n.Session]; ok {
		return session.Closed
	}
	return false
}

func (r *Registry) markEntry(e *Entry) {
	if e.holder == "" {
		return
	}
	r.markModified(Ref{Owner: e.holder, EntryID: e.id})
}

func (r *Registry) markNode(n *Node) {
	for _, e := range n.links {
		r.markEntry(e)
	}
	if n.IsContainer() {
		r.markModified(Ref{Owner: n.Handle})
	}
}
