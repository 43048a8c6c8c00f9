package timetable

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
)

func TestScheduleAddEntryPlacesInFirstFreeSlot(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")

	coffee := f.reg.NewBreak("Coffee", time.Time{}, time.Hour)
	_, err := s.AddEntry(coffee, PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), coffee.Start())
	assert.Equal(t, "1", coffee.ID())

	lunch := f.reg.NewBreak("Lunch", time.Time{}, 2*time.Hour)
	_, err = s.AddEntry(lunch, PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), lunch.Start())
	assert.Equal(t, "2", lunch.ID())
	assert.Equal(t, []*Entry{coffee, lunch}, s.Entries())
}

func TestScheduleAddEntryBeforeBoundaryStart(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	early := f.reg.NewBreak("Registration", at(8, 0), 30*time.Minute)

	_, err := s.AddEntry(early, PolicyRaise)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrTiming))
	var detail *TimingDetail
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, sideStart, detail.Side)
	assert.Equal(t, at(9, 0), detail.Boundary)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, StateDetached, early.State())

	notes, err := s.AddEntry(early, PolicyAdapt)
	require.NoError(t, err)
	assert.Equal(t, at(8, 0), f.conf.Start())
	assert.Equal(t, at(18, 0), f.conf.End())
	require.Len(t, notes, 1)
	assert.Equal(t, ReasonStartExtended, notes[0].Reason)
	assert.Equal(t, Handle("conf"), notes[0].Target)
	assert.Equal(t, at(8, 0), notes[0].Boundary)
}

func TestScheduleAddEntryPolicyNoneSkipsStartCheckOnly(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")

	early := f.reg.NewBreak("Early", at(8, 0), 30*time.Minute)
	_, err := s.AddEntry(early, PolicyNone)
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), f.conf.Start())
	assert.True(t, s.Has(early))

	late := f.reg.NewBreak("Late", at(17, 30), time.Hour)
	_, err = s.AddEntry(late, PolicyNone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrTiming))
	assert.False(t, s.Has(late))
}

func TestSchedulePosterSlotPinsEntriesToSlotStart(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "posters", NodeSpec{})
	block, err := f.reg.AddNode(NodeSpec{Handle: "poster-block", Kind: KindBlock, Session: "posters", Poster: true, Start: at(14, 0), End: at(16, 0)})
	require.NoError(t, err)
	s := f.schedule(t, block.Handle)
	require.Equal(t, ContainerPosterSlot, s.Kind())

	first := f.link(t, f.contribution(t, "p1", "posters", at(10, 0), time.Hour).Handle)
	second := f.link(t, f.contribution(t, "p2", "posters", at(15, 0), 30*time.Minute).Handle)

	_, err = s.AddEntry(first, PolicyRaise)
	require.NoError(t, err)
	_, err = s.AddEntry(second, PolicyRaise)
	require.NoError(t, err)

	assert.Equal(t, at(14, 0), first.Start())
	assert.Equal(t, at(14, 0), second.Start())
	assert.Equal(t, StatusScheduled, first.TargetNode().Status)
	assert.Equal(t, []*Entry{first, second}, s.Entries(), "poster entries keep their insertion order")

	notes, err := s.MoveEntryDown(first)
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Equal(t, at(14, 0), first.Start())
}

func TestSchedulePosterSlotRejectsBreaks(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "posters", NodeSpec{})
	block, err := f.reg.AddNode(NodeSpec{Handle: "poster-block", Kind: KindBlock, Session: "posters", Poster: true, Start: at(14, 0), End: at(16, 0)})
	require.NoError(t, err)

	_, err = f.schedule(t, block.Handle).AddEntry(f.reg.NewBreak("Coffee", time.Time{}, time.Hour), PolicyRaise)
	assert.True(t, errors.Is(err, appErrors.ErrWrongEntryType))
}

func TestScheduleFindFirstFreeSlot(t *testing.T) {
	f := newFixture(t, at(9, 0), at(12, 0))
	s := f.schedule(t, "conf")
	_, err := s.AddEntry(f.reg.NewBreak("Opening", at(9, 0), time.Hour), PolicyRaise)
	require.NoError(t, err)

	slot, ok := s.FindFirstFreeSlot(30 * time.Minute)
	require.True(t, ok)
	assert.Equal(t, at(10, 0), slot)

	_, ok = s.FindFirstFreeSlot(3 * time.Hour)
	assert.False(t, ok)
}

func TestScheduleAddEntryWithoutRoom(t *testing.T) {
	f := newFixture(t, at(9, 0), at(10, 0))
	s := f.schedule(t, "conf")
	_, err := s.AddEntry(f.reg.NewBreak("Opening", at(9, 0), time.Hour), PolicyRaise)
	require.NoError(t, err)

	extra := f.reg.NewBreak("Extra", time.Time{}, time.Hour)
	_, err = s.AddEntry(extra, PolicyRaise)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrParentTiming))
	assert.Equal(t, at(10, 0), f.conf.End())

	notes, err := s.AddEntry(extra, PolicyAdapt)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), extra.Start())
	assert.Equal(t, at(11, 0), f.conf.End())
	require.Len(t, notes, 1)
	assert.Equal(t, ReasonEndExtended, notes[0].Reason)
}

func TestScheduleAddEntryToUnplacedOwner(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	block := f.block(t, "floating", "talks", time.Time{}, time.Time{})

	_, err := f.schedule(t, block.Handle).AddEntry(f.reg.NewBreak("Coffee", time.Time{}, time.Hour), PolicyAdapt)
	assert.True(t, errors.Is(err, appErrors.ErrParentTiming))
}

func TestScheduleSlotReflowPushesCollidingEntries(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	block := f.block(t, "morning", "talks", at(9, 0), at(12, 0))
	s := f.schedule(t, block.Handle)

	first := f.link(t, f.contribution(t, "c1", "talks", at(9, 0), time.Hour).Handle)
	second := f.link(t, f.contribution(t, "c2", "talks", at(9, 30), time.Hour).Handle)
	_, err := s.AddEntry(first, PolicyRaise)
	require.NoError(t, err)
	_, err = s.AddEntry(second, PolicyRaise)
	require.NoError(t, err)

	assert.Equal(t, at(10, 0), second.Start())
	assert.Empty(t, s.Collisions())
}

func TestScheduleReflowOverflowRollsBack(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	block := f.block(t, "short", "talks", at(9, 0), at(10, 0))
	s := f.schedule(t, block.Handle)

	first := f.link(t, f.contribution(t, "c1", "talks", at(9, 0), time.Hour).Handle)
	second := f.link(t, f.contribution(t, "c2", "talks", at(9, 30), 30*time.Minute).Handle)
	_, err := s.AddEntry(first, PolicyRaise)
	require.NoError(t, err)
	before := len(f.notifier.refs)

	_, err = s.AddEntry(second, PolicyRaise)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrTiming))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, at(9, 30), second.Start())
	assert.Equal(t, StatusNotScheduled, second.TargetNode().Status)
	assert.False(t, second.IsScheduled())
	assert.Equal(t, before, len(f.notifier.refs), "failed mutations must not signal modifications")

	notes, err := s.AddEntry(second, PolicyAdapt)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), second.Start())
	assert.Equal(t, at(10, 30), block.End())
	require.NotEmpty(t, notes)
	assert.Equal(t, ReasonEndExtended, notes[0].Reason)
	assert.Equal(t, block.Handle, notes[0].Target)
}

func TestScheduleSlotAppliesDefaultDuration(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{DefaultDuration: 20 * time.Minute})
	block := f.block(t, "morning", "talks", at(9, 0), at(12, 0))
	talk := f.link(t, f.contribution(t, "c1", "talks", time.Time{}, 0).Handle)

	_, err := f.schedule(t, block.Handle).AddEntry(talk, PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, talk.Duration())
	assert.Equal(t, at(9, 0), talk.Start())
}

func TestScheduleAcceptanceRules(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	talks := f.session(t, "talks", NodeSpec{})
	f.session(t, "other", NodeSpec{})
	block := f.block(t, "morning", "talks", at(9, 0), at(12, 0))
	conf := f.schedule(t, "conf")

	_, err := conf.AddEntry(f.link(t, talks.Handle), PolicyRaise)
	assert.True(t, errors.Is(err, appErrors.ErrWrongEntryType), "sessions are scheduled through blocks")

	_, err = conf.AddEntry(f.link(t, f.contribution(t, "in-session", "talks", at(9, 0), time.Hour).Handle), PolicyRaise)
	assert.True(t, errors.Is(err, appErrors.ErrWrongEntryType))

	_, err = f.schedule(t, block.Handle).AddEntry(f.link(t, f.contribution(t, "foreign", "other", at(9, 0), time.Hour).Handle), PolicyRaise)
	assert.True(t, errors.Is(err, appErrors.ErrWrongEntryType))

	_, err = f.schedule(t, "talks").AddEntry(f.reg.NewBreak("Coffee", at(10, 0), time.Hour), PolicyRaise)
	assert.True(t, errors.Is(err, appErrors.ErrWrongEntryType))

	withdrawn, err := f.reg.AddNode(NodeSpec{Handle: "gone", Kind: KindContribution, Conference: "conf", Start: at(9, 0), Duration: time.Hour, Withdrawn: true})
	require.NoError(t, err)
	_, err = conf.AddEntry(f.link(t, withdrawn.Handle), PolicyRaise)
	assert.True(t, errors.Is(err, appErrors.ErrWrongEntryType))

	_, err = conf.AddEntry(f.link(t, block.Handle), PolicyRaise)
	assert.NoError(t, err)
}

func TestScheduleRemoveEntry(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	coffee := f.reg.NewBreak("Coffee", at(10, 0), time.Hour)
	_, err := s.AddEntry(coffee, PolicyRaise)
	require.NoError(t, err)

	_, err = s.RemoveEntry(coffee)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, coffee.Schedule())
	assert.True(t, coffee.Start().IsZero())
	assert.Equal(t, StateRemoved, coffee.State())
	assert.True(t, coffee.Recoverable())
	assert.Equal(t, []*Entry{coffee}, f.reg.Trash())

	notes, err := s.RemoveEntry(coffee)
	assert.NoError(t, err)
	assert.Nil(t, notes)
}

func TestScheduleRemoveLinkedEntryClearsNodeStart(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	talk := f.contribution(t, "keynote", "", at(9, 0), time.Hour)
	e := f.link(t, talk.Handle)
	s := f.schedule(t, "conf")
	_, err := s.AddEntry(e, PolicyRaise)
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, talk.Status)

	_, err = e.Detach()
	require.NoError(t, err)
	assert.True(t, talk.Start().IsZero())
	assert.Equal(t, StatusNotScheduled, talk.Status)
	assert.Empty(t, f.reg.Trash())
}

func TestScheduleReparentsEntry(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	morning := f.schedule(t, f.block(t, "morning", "talks", at(9, 0), at(12, 0)).Handle)
	afternoon := f.schedule(t, f.block(t, "afternoon", "talks", at(13, 0), at(17, 0)).Handle)

	coffee := f.reg.NewBreak("Coffee", time.Time{}, 30*time.Minute)
	_, err := morning.AddEntry(coffee, PolicyRaise)
	require.NoError(t, err)
	_, err = coffee.SetStart(at(14, 0), PolicyAdapt)
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), morning.Start(), "growing the end keeps the start")

	_, err = afternoon.AddEntry(coffee, PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, 0, morning.Len())
	assert.Equal(t, afternoon, coffee.Schedule())
	assert.Equal(t, at(14, 0), coffee.Start())
}

func TestScheduleMoveEntryUpDownAreInverses(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	first := f.reg.NewBreak("First", at(9, 0), time.Hour)
	second := f.reg.NewBreak("Second", at(10, 0), time.Hour)
	for _, e := range []*Entry{first, second} {
		_, err := s.AddEntry(e, PolicyRaise)
		require.NoError(t, err)
	}

	_, err := s.MoveEntryDown(first)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), first.Start())
	assert.Equal(t, at(9, 0), second.Start())
	assert.Equal(t, []*Entry{second, first}, s.Entries())

	_, err = s.MoveEntryUp(second)
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), first.Start())
	assert.Equal(t, at(10, 0), second.Start())
	assert.Equal(t, []*Entry{first, second}, s.Entries())
}

func TestScheduleMoveEntryUpWrapsAround(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	entries := []*Entry{
		f.reg.NewBreak("A", at(9, 0), time.Hour),
		f.reg.NewBreak("B", at(10, 0), time.Hour),
		f.reg.NewBreak("C", at(11, 0), time.Hour),
	}
	for _, e := range entries {
		_, err := s.AddEntry(e, PolicyRaise)
		require.NoError(t, err)
	}

	_, err := s.MoveEntryUp(entries[0])
	require.NoError(t, err)
	assert.Equal(t, at(11, 0), entries[0].Start())
	assert.Equal(t, at(9, 0), entries[2].Start())

	_, err = s.MoveEntryUp(f.reg.NewBreak("Stranger", at(9, 0), time.Hour))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleCompact(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	s := f.schedule(t, f.block(t, "morning", "talks", at(9, 0), at(12, 0)).Handle)
	a := f.reg.NewBreak("A", at(9, 30), 30*time.Minute)
	b := f.reg.NewBreak("B", at(11, 0), time.Hour)
	for _, e := range []*Entry{a, b} {
		_, err := s.AddEntry(e, PolicyRaise)
		require.NoError(t, err)
	}
	require.True(t, s.HasGap())

	_, err := s.Compact()
	require.NoError(t, err)
	assert.False(t, s.HasGap())
	assert.Equal(t, at(9, 0), a.Start())
	assert.Equal(t, at(9, 30), b.Start())
	assert.Empty(t, s.Collisions())
}

func TestScheduleRescheduleStartingTime(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	entries := []*Entry{
		f.reg.NewBreak("A", at(9, 0), time.Hour),
		f.reg.NewBreak("B", at(10, 0), time.Hour),
		f.reg.NewBreak("C", at(11, 0), time.Hour),
	}
	for _, e := range entries {
		_, err := s.AddEntry(e, PolicyRaise)
		require.NoError(t, err)
	}

	_, err := s.RescheduleWithSpacing(SpacingStartTime, 10*time.Minute, testDay, false)
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), entries[0].Start())
	assert.Equal(t, at(10, 10), entries[1].Start())
	assert.Equal(t, at(11, 20), entries[2].Start())
}

func TestScheduleRescheduleDuration(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	entries := []*Entry{
		f.reg.NewBreak("A", at(9, 0), 30*time.Minute),
		f.reg.NewBreak("B", at(10, 0), 30*time.Minute),
		f.reg.NewBreak("C", at(11, 0), 30*time.Minute),
	}
	for _, e := range entries {
		_, err := s.AddEntry(e, PolicyRaise)
		require.NoError(t, err)
	}

	_, err := s.RescheduleWithSpacing(SpacingDuration, 10*time.Minute, testDay, false)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Minute, entries[0].Duration())
	assert.Equal(t, 50*time.Minute, entries[1].Duration())
	assert.Equal(t, 30*time.Minute, entries[2].Duration())
}

func TestScheduleRescheduleDurationBelowZero(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	a := f.reg.NewBreak("A", at(9, 0), 30*time.Minute)
	b := f.reg.NewBreak("B", at(9, 5), 30*time.Minute)
	for _, e := range []*Entry{a, b} {
		_, err := s.AddEntry(e, PolicyRaise)
		require.NoError(t, err)
	}

	_, err := s.RescheduleWithSpacing(SpacingDuration, 10*time.Minute, testDay, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrEntryTiming))
	assert.Equal(t, 30*time.Minute, a.Duration())

	_, err = s.RescheduleWithSpacing(SpacingMode("sideways"), 0, testDay, false)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestScheduleRescheduleRefusesClosedBlocks(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "locked", NodeSpec{Closed: true})
	block := f.block(t, "morning", "locked", at(9, 0), at(10, 0))
	s := f.schedule(t, "conf")
	_, err := s.AddEntry(f.link(t, block.Handle), PolicyRaise)
	require.NoError(t, err)

	_, err = s.RescheduleWithSpacing(SpacingStartTime, 0, testDay, false)
	assert.True(t, errors.Is(err, appErrors.ErrEntryTiming))
}

func TestScheduleRescheduleFitsBlocks(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	block := f.block(t, "morning", "talks", at(9, 0), at(12, 0))
	_, err := f.schedule(t, block.Handle).AddEntry(f.reg.NewBreak("Coffee", at(10, 0), 30*time.Minute), PolicyRaise)
	require.NoError(t, err)
	s := f.schedule(t, "conf")
	_, err = s.AddEntry(f.link(t, block.Handle), PolicyRaise)
	require.NoError(t, err)

	_, err = s.RescheduleWithSpacing(SpacingDuration, 0, testDay, true)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), block.Start())
	assert.Equal(t, 30*time.Minute, block.Duration())
}

func TestScheduleSetEntryDurationRevalidates(t *testing.T) {
	f := newFixture(t, at(9, 0), at(12, 0))
	s := f.schedule(t, "conf")
	talk := f.reg.NewBreak("Talk", at(11, 0), 30*time.Minute)
	_, err := s.AddEntry(talk, PolicyRaise)
	require.NoError(t, err)

	_, err = talk.SetDuration(2*time.Hour, PolicyRaise)
	assert.True(t, errors.Is(err, appErrors.ErrTiming))
	assert.Equal(t, 30*time.Minute, talk.Duration())

	_, err = talk.SetDuration(2*time.Hour, PolicyAdapt)
	require.NoError(t, err)
	assert.Equal(t, at(13, 0), f.conf.End())

	_, err = talk.SetDuration(-time.Minute, PolicyAdapt)
	assert.True(t, errors.Is(err, appErrors.ErrEntryTiming))
}

func TestScheduleFindEntries(t *testing.T) {
	f := newFixture(t, at(9, 0), at(9, 0).Add(48*time.Hour))
	s := f.schedule(t, "conf")
	today := f.reg.NewBreak("Today", at(10, 0), time.Hour)
	overnight := f.reg.NewBreak("Overnight", at(23, 0), 2*time.Hour)
	tomorrow := f.reg.NewBreak("Tomorrow", at(34, 0), time.Hour)
	for _, e := range []*Entry{today, overnight, tomorrow} {
		_, err := s.AddEntry(e, PolicyRaise)
		require.NoError(t, err)
	}

	assert.Equal(t, []*Entry{today, overnight}, s.FindEntriesOnDay(testDay))
	assert.Equal(t, []*Entry{overnight, tomorrow}, s.FindEntriesOnDay(testDay.Add(24*time.Hour)))
	assert.Equal(t, []*Entry{overnight}, s.FindEntriesOnDate(at(24, 30)))
	assert.Empty(t, s.FindEntriesOnDate(at(11, 0)))
	assert.Equal(t, []time.Time{testDay, testDay.Add(24 * time.Hour)}, s.Days())
}

func TestScheduleClearTrashesEveryBreak(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	for _, title := range []string{"A", "B"} {
		_, err := s.AddEntry(f.reg.NewBreak(title, time.Time{}, time.Hour), PolicyRaise)
		require.NoError(t, err)
	}

	_, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Len(t, f.reg.Trash(), 2)
}

func TestScheduleAddEntryAtMovesAndPlacesAtomically(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	block := f.block(t, "morning", "talks", at(9, 0), at(12, 0))
	s := f.schedule(t, block.Handle)
	talk := f.link(t, f.contribution(t, "c1", "talks", time.Time{}, 30*time.Minute).Handle)

	_, err := s.AddEntryAt(talk, at(13, 0), PolicyRaise)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrTiming))
	assert.True(t, talk.Start().IsZero(), "a refused placement leaves the start untouched")
	assert.False(t, talk.IsScheduled())

	_, err = s.AddEntryAt(talk, at(10, 0), PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), talk.Start())

	_, err = s.AddEntryAt(talk, at(11, 0), PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, at(11, 0), talk.Start())
	assert.Equal(t, 1, s.Len())
}

// assertOwnership checks that every entry sits in one schedule, that no
// contribution is held twice and that ids are unique and already minted.
func assertOwnership(t *testing.T, reg *Registry) {
	t.Helper()
	holders := map[*Entry]Handle{}
	contributions := map[Handle]Handle{}
	for owner, s := range reg.schedules {
		ids := map[string]bool{}
		for _, e := range s.entries {
			assert.Equal(t, owner, e.Holder())
			assert.False(t, ids[e.ID()], "id %s repeated in %s", e.ID(), owner)
			ids[e.ID()] = true
			if n, err := strconv.Atoi(e.ID()); err == nil {
				assert.LessOrEqual(t, n, s.Counter())
			}
			prev, dup := holders[e]
			assert.False(t, dup, "entry held by %s and %s", prev, owner)
			holders[e] = owner
			if n := e.TargetNode(); n != nil && n.Kind == KindContribution {
				prev, dup := contributions[n.Handle]
				assert.False(t, dup, "contribution %s held by %s and %s", n.Handle, prev, owner)
				contributions[n.Handle] = owner
			}
		}
	}
}

func TestScheduleMovesContributionBetweenBlocks(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	morning := f.schedule(t, f.block(t, "morning", "talks", at(9, 0), at(12, 0)).Handle)
	afternoonNode := f.block(t, "afternoon", "talks", at(14, 0), at(17, 0))
	afternoon := f.schedule(t, afternoonNode.Handle)
	keynote := f.contribution(t, "c1", "talks", at(9, 0), time.Hour)

	first := f.link(t, keynote.Handle)
	_, err := morning.AddEntry(first, PolicyRaise)
	require.NoError(t, err)
	assertOwnership(t, f.reg)

	again := f.link(t, keynote.Handle)
	assert.Same(t, first, again)

	// Still starting at 09:00, it does not fit the afternoon and stays put.
	_, err = afternoon.AddEntry(again, PolicyRaise)
	require.Error(t, err)
	assert.True(t, morning.Has(first))
	assert.Equal(t, StatusScheduled, keynote.Status)
	assertOwnership(t, f.reg)

	_, err = afternoon.AddEntryAt(again, at(14, 0), PolicyRaise)
	require.NoError(t, err)
	assertOwnership(t, f.reg)

	assert.Equal(t, 0, morning.Len())
	assert.Equal(t, 1, afternoon.Len())
	assert.Equal(t, afternoonNode.Handle, first.Holder())
	assert.Equal(t, at(14, 0), afternoonNode.Start())
	assert.Equal(t, at(17, 0), afternoonNode.End())
	assert.Equal(t, at(14, 0), keynote.Start())
	assert.Equal(t, StatusScheduled, keynote.Status)
	assert.Len(t, keynote.Links(), 1)
}

func TestScheduleRejectsSecondEntryForSameNode(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	f.session(t, "talks", NodeSpec{})
	block := f.block(t, "morning", "talks", at(9, 0), at(12, 0))
	conf := f.schedule(t, "conf")

	_, err := conf.AddEntry(f.link(t, block.Handle), PolicyRaise)
	require.NoError(t, err)
	_, err = conf.AddEntry(f.link(t, block.Handle), PolicyRaise)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, 1, conf.Len())
	assertOwnership(t, f.reg)
}

func TestEntryAttachRejectsTakenID(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	first := f.reg.NewBreak("Coffee", at(9, 0), time.Hour)
	_, err := s.AddEntry(first, PolicyRaise)
	require.NoError(t, err)
	require.Equal(t, "1", first.ID())

	second := f.reg.NewBreak("Lunch", at(12, 0), time.Hour)
	_, err = second.Attach(s, "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.False(t, second.IsScheduled())
	assert.Equal(t, 1, s.Len())

	_, err = second.Attach(s, "7")
	require.NoError(t, err)
	assert.Equal(t, 7, s.Counter())
	third := f.reg.NewBreak("Tea", at(15, 0), time.Hour)
	_, err = s.AddEntry(third, PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, "8", third.ID())
	assertOwnership(t, f.reg)
}

func TestScheduleCounterNeverReusesRemovedIDs(t *testing.T) {
	f := newFixture(t, at(9, 0), at(18, 0))
	s := f.schedule(t, "conf")
	var ids []string
	for _, title := range []string{"Coffee", "Lunch"} {
		e := f.reg.NewBreak(title, time.Time{}, time.Hour)
		_, err := s.AddEntry(e, PolicyRaise)
		require.NoError(t, err)
		ids = append(ids, e.ID())
		assertOwnership(t, f.reg)
	}
	lunch, ok := s.Entry(ids[1])
	require.True(t, ok)
	_, err := s.RemoveEntry(lunch)
	require.NoError(t, err)
	assertOwnership(t, f.reg)

	tea := f.reg.NewBreak("Tea", time.Time{}, time.Hour)
	_, err = s.AddEntry(tea, PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)
	assert.Equal(t, "3", tea.ID())

	// A reloaded schedule only sees surviving ids; the stored counter wins.
	reloaded := newFixture(t, at(9, 0), at(18, 0))
	rs := reloaded.schedule(t, "conf")
	_, err = reloaded.reg.NewBreak("Coffee", at(9, 0), time.Hour).Attach(rs, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Counter())
	rs.RestoreCounter(s.Counter())
	rs.RestoreCounter(2)
	assert.Equal(t, 3, rs.Counter())
	next := reloaded.reg.NewBreak("Dinner", time.Time{}, time.Hour)
	_, err = rs.AddEntry(next, PolicyRaise)
	require.NoError(t, err)
	assert.Equal(t, "4", next.ID())
	assertOwnership(t, reloaded.reg)
}
