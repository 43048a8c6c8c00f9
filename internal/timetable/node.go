package timetable

import "time"

// Handle is the opaque registry key of a node.
type Handle string

// NodeKind tells what a node stands for in the event hierarchy.
type NodeKind int

const (
	KindConference NodeKind = iota + 1
	KindSession
	KindBlock
	KindContribution
)

func (k NodeKind) String() string {
	switch k {
	case KindConference:
		return "conference"
	case KindSession:
		return "session"
	case KindBlock:
		return "block"
	case KindContribution:
		return "contribution"
	}
	return "unknown"
}

// ParseNodeKind maps a kind name back to its NodeKind.
func ParseNodeKind(raw string) (NodeKind, bool) {
	for _, k := range []NodeKind{KindConference, KindSession, KindBlock, KindContribution} {
		if k.String() == raw {
			return k, true
		}
	}
	return 0, false
}

// Status is the scheduling status kept on contributions.
type Status string

const (
	StatusNotScheduled Status = "not_scheduled"
	StatusScheduled    Status = "scheduled"
	StatusWithdrawn    Status = "withdrawn"
)

// Node is a domain object carrying temporal data: a conference, session,
// session block or contribution. Nodes refer to each other by Handle only.
type Node struct {
	Handle          Handle
	Kind            NodeKind
	Title           string
	Description     string
	Conference      Handle
	Session         Handle
	Location        *time.Location
	Closed          bool
	Poster          bool
	DefaultDuration time.Duration
	Status          Status

	start    time.Time
	duration time.Duration
	links    []*Entry
}

// Start returns the node start, zero when unplaced.
func (n *Node) Start() time.Time { return n.start }

// Duration returns the node duration.
func (n *Node) Duration() time.Duration { return n.duration }

// End returns Start + Duration.
func (n *Node) End() time.Time { return n.Interval().End() }

// Interval returns the node's span.
func (n *Node) Interval() Interval { return Interval{Start: n.start, Duration: n.duration} }

// IsContainer reports whether the node owns a schedule.
func (n *Node) IsContainer() bool { return n.Kind != KindContribution }

// Links returns the entries that delegate to this node.
func (n *Node) Links() []*Entry {
	out := make([]*Entry, len(n.links))
	copy(out, n.links)
	return out
}

func (n *Node) isHeld() bool {
	for _, e := range n.links {
		if e.holder != "" {
			return true
		}
	}
	return false
}

// NodeSpec describes a node to register. Either End or Duration may be set.
type NodeSpec struct {
	Handle          Handle
	Kind            NodeKind
	Title           string
	Description     string
	Conference      Handle
	Session         Handle
	Start           time.Time
	End             time.Time
	Duration        time.Duration
	Location        *time.Location
	Closed          bool
	Poster          bool
	DefaultDuration time.Duration
	Withdrawn       bool
}
