package layout

import (
	"fmt"
	"time"

	"github.com/noah-isme/event-timetable/internal/timetable"
	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
)

type builder struct {
	doc    *Document
	reg    *timetable.Registry
	loc    *time.Location
	policy timetable.CheckPolicy
	notes  []timetable.Notification
}

// Build registers every node of the layout and places the entries. The
// method value d.Build can be handed to anything expecting a registry
// constructor taking options.
func (d *Document) Build(opts ...timetable.Option) (*timetable.Registry, error) {
	reg, _, err := d.BuildWithNotifications(opts...)
	return reg, err
}

// BuildWithNotifications is Build that also returns the boundary changes the
// layout's own entries caused.
func (d *Document) BuildWithNotifications(opts ...timetable.Option) (*timetable.Registry, []timetable.Notification, error) {
	loc, err := d.location()
	if err != nil {
		return nil, nil, err
	}
	b := &builder{doc: d, reg: timetable.NewRegistry(opts...), loc: loc, policy: d.policy()}
	if err := b.build(); err != nil {
		return nil, nil, err
	}
	return b.reg, b.notes, nil
}

func (b *builder) build() error {
	conf := b.doc.Conference
	start, err := parseDate(conf.Start, b.loc)
	if err != nil {
		return err
	}
	end, err := parseDate(conf.End, b.loc)
	if err != nil {
		return err
	}
	var tz *time.Location
	if conf.Timezone != "" {
		tz = b.loc
	}
	if _, err := b.reg.AddNode(timetable.NodeSpec{
		Handle:   timetable.Handle(conf.Handle),
		Kind:     timetable.KindConference,
		Title:    conf.Title,
		Start:    start,
		End:      end,
		Location: tz,
	}); err != nil {
		return err
	}

	for _, session := range b.doc.Sessions {
		if _, err := b.reg.AddNode(timetable.NodeSpec{
			Handle:          timetable.Handle(session.Handle),
			Kind:            timetable.KindSession,
			Title:           session.Title,
			Conference:      timetable.Handle(conf.Handle),
			Closed:          session.Closed,
			DefaultDuration: time.Duration(session.DefaultDuration),
		}); err != nil {
			return err
		}
	}

	for _, c := range b.doc.Contributions {
		if _, err := b.reg.AddNode(timetable.NodeSpec{
			Handle:      timetable.Handle(c.Handle),
			Kind:        timetable.KindContribution,
			Title:       c.Title,
			Description: c.Description,
			Conference:  timetable.Handle(conf.Handle),
			Session:     timetable.Handle(c.Session),
			Duration:    time.Duration(c.Duration),
			Withdrawn:   c.Withdrawn,
		}); err != nil {
			return err
		}
	}

	for _, session := range b.doc.Sessions {
		for _, block := range session.Blocks {
			if err := b.addBlock(session, block); err != nil {
				return fmt.Errorf("block %s: %w", block.Handle, err)
			}
		}
	}

	sched, _ := b.reg.Schedule(timetable.Handle(conf.Handle))
	return b.place(sched, conf.Entries)
}

func (b *builder) addBlock(session Session, block Block) error {
	start, err := parseDate(block.Start, b.loc)
	if err != nil {
		return err
	}
	end, err := parseDate(block.End, b.loc)
	if err != nil {
		return err
	}
	title := block.Title
	if title == "" {
		title = session.Title
	}
	if _, err := b.reg.AddNode(timetable.NodeSpec{
		Handle:          timetable.Handle(block.Handle),
		Kind:            timetable.KindBlock,
		Title:           title,
		Session:         timetable.Handle(session.Handle),
		Start:           start,
		End:             end,
		Duration:        time.Duration(block.Duration),
		Closed:          block.Closed,
		Poster:          block.Poster,
		DefaultDuration: time.Duration(block.DefaultDuration),
	}); err != nil {
		return err
	}

	for _, holder := range []string{session.Handle, b.doc.Conference.Handle} {
		sched, _ := b.reg.Schedule(timetable.Handle(holder))
		link, err := b.reg.NewLinkedEntry(timetable.Handle(block.Handle))
		if err != nil {
			return err
		}
		if err := b.add(sched, link, time.Time{}); err != nil {
			return err
		}
	}

	sched, _ := b.reg.Schedule(timetable.Handle(block.Handle))
	return b.place(sched, block.Entries)
}

func (b *builder) place(sched *timetable.Schedule, entries []Entry) error {
	for i, item := range entries {
		start, err := parseDate(item.Start, b.loc)
		if err != nil {
			return err
		}
		var entry *timetable.Entry
		if item.Contribution != "" {
			entry, err = b.reg.NewLinkedEntry(timetable.Handle(item.Contribution))
			if err != nil {
				return fmt.Errorf("entry %d of %s: %w", i+1, sched.Owner(), err)
			}
			if entry.IsScheduled() {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %d of %s: contribution %s is already placed in %s", i+1, sched.Owner(), item.Contribution, entry.Holder()))
			}
			if item.Duration > 0 {
				if _, err := entry.SetDuration(time.Duration(item.Duration), timetable.PolicyNone); err != nil {
					return err
				}
			}
		} else {
			entry = b.reg.NewBreak(item.Break, time.Time{}, time.Duration(item.Duration))
			entry.SetDescription(item.Description)
		}
		if err := b.add(sched, entry, start); err != nil {
			return fmt.Errorf("entry %d of %s: %w", i+1, sched.Owner(), err)
		}
	}
	return nil
}

func (b *builder) add(sched *timetable.Schedule, entry *timetable.Entry, start time.Time) error {
	var (
		notes []timetable.Notification
		err   error
	)
	if start.IsZero() {
		notes, err = sched.AddEntry(entry, b.policy)
	} else {
		notes, err = sched.AddEntryAt(entry, start, b.policy)
	}
	if err != nil {
		return err
	}
	b.notes = append(b.notes, notes...)
	return nil
}
