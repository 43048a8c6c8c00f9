package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type recordingNotifier struct {
	refs []Ref
}

func (n *recordingNotifier) NotifyModified(ref Ref) {
	n.refs = append(n.refs, ref)
}

type fixture struct {
	reg      *Registry
	conf     *Node
	notifier *recordingNotifier
}

func newFixture(t *testing.T, start, end time.Time, opts ...Option) *fixture {
	t.Helper()
	notifier := &recordingNotifier{}
	reg := NewRegistry(append([]Option{WithNotifier(notifier)}, opts...)...)
	conf, err := reg.AddNode(NodeSpec{Handle: "conf", Kind: KindConference, Title: "Workshop", Start: start, End: end})
	require.NoError(t, err)
	return &fixture{reg: reg, conf: conf, notifier: notifier}
}

func (f *fixture) schedule(t *testing.T, h Handle) *Schedule {
	t.Helper()
	s, ok := f.reg.Schedule(h)
	require.True(t, ok, "schedule %s", h)
	return s
}

func (f *fixture) session(t *testing.T, h Handle, spec NodeSpec) *Node {
	t.Helper()
	spec.Handle, spec.Kind, spec.Conference = h, KindSession, f.conf.Handle
	if spec.Title == "" {
		spec.Title = string(h)
	}
	n, err := f.reg.AddNode(spec)
	require.NoError(t, err)
	return n
}

func (f *fixture) block(t *testing.T, h, session Handle, start, end time.Time) *Node {
	t.Helper()
	n, err := f.reg.AddNode(NodeSpec{Handle: h, Kind: KindBlock, Title: string(h), Session: session, Start: start, End: end})
	require.NoError(t, err)
	return n
}

func (f *fixture) contribution(t *testing.T, h, session Handle, start time.Time, d time.Duration) *Node {
	t.Helper()
	n, err := f.reg.AddNode(NodeSpec{Handle: h, Kind: KindContribution, Title: string(h), Conference: f.conf.Handle, Session: session, Start: start, Duration: d})
	require.NoError(t, err)
	return n
}

func (f *fixture) link(t *testing.T, h Handle) *Entry {
	t.Helper()
	e, err := f.reg.NewLinkedEntry(h)
	require.NoError(t, err)
	return e
}
