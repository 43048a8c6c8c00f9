package timetable

import (
	"fmt"
	"time"
)

// CheckPolicy controls how boundary violations are handled when placing an
// entry.
type CheckPolicy int

const (
	// PolicyNone skips validation of the start boundary.
	PolicyNone CheckPolicy = iota
	// PolicyRaise rejects entries that do not fit.
	PolicyRaise
	// PolicyAdapt grows the owner's dates to make room.
	PolicyAdapt
)

// ParseCheckPolicy validates a numeric policy.
func ParseCheckPolicy(v int) (CheckPolicy, error) {
	p := CheckPolicy(v)
	if p < PolicyNone || p > PolicyAdapt {
		return 0, fmt.Errorf("check policy must be 0, 1 or 2, got %d", v)
	}
	return p, nil
}

// ContainerKind selects the acceptance and placement rules of a schedule.
type ContainerKind int

const (
	ContainerConference ContainerKind = iota + 1
	ContainerSession
	ContainerSlot
	ContainerPosterSlot
)

func (k ContainerKind) String() string {
	switch k {
	case ContainerConference:
		return "conference"
	case ContainerSession:
		return "session"
	case ContainerSlot:
		return "slot"
	case ContainerPosterSlot:
		return "poster_slot"
	}
	return "unknown"
}

// containerPolicy is the closed set of behaviours that differ per container.
// fixed containers pin every entry to the owner start and keep no time axis.
type containerPolicy struct {
	accepts         func(s *Schedule, e *Entry) error
	defaultDuration func(s *Schedule, e *Entry) time.Duration
	fixed           bool
}

var containerPolicies = map[ContainerKind]containerPolicy{
	ContainerConference: {accepts: acceptConference},
	ContainerSession:    {accepts: acceptSession},
	ContainerSlot:       {accepts: acceptSlot, defaultDuration: blockDefaultDuration},
	ContainerPosterSlot: {accepts: acceptPosterSlot, defaultDuration: blockDefaultDuration, fixed: true},
}

func containerKindFor(n *Node) ContainerKind {
	switch n.Kind {
	case KindConference:
		return ContainerConference
	case KindSession:
		return ContainerSession
	case KindBlock:
		if n.Poster {
			return ContainerPosterSlot
		}
		return ContainerSlot
	}
	return 0
}

func acceptConference(s *Schedule, e *Entry) error {
	if e.kind == Independent {
		return nil
	}
	n := e.TargetNode()
	switch n.Kind {
	case KindSession:
		return wrongTypeError("session %q cannot be scheduled directly, schedule one of its blocks instead", n.Title)
	case KindBlock:
		if n.Conference != s.owner {
			return wrongTypeError("block %q does not belong to this event", n.Title)
		}
		return nil
	case KindContribution:
		if err := checkContribution(n); err != nil {
			return err
		}
		if n.Conference != s.owner {
			return wrongTypeError("contribution %q does not belong to this event", n.Title)
		}
		if n.Session != "" {
			return wrongTypeError("contribution %q belongs to a session and must be scheduled inside one of its blocks", n.Title)
		}
		return nil
	}
	return wrongTypeError("%s %q cannot be scheduled in an event timetable", n.Kind, n.Title)
}

func acceptSession(s *Schedule, e *Entry) error {
	n := e.TargetNode()
	if n == nil || n.Kind != KindBlock {
		return wrongTypeError("a session timetable only holds blocks of that session")
	}
	if n.Session != s.owner {
		return wrongTypeError("block %q does not belong to this session", n.Title)
	}
	return nil
}

func acceptSlot(s *Schedule, e *Entry) error {
	if e.kind == Independent {
		return nil
	}
	return acceptBlockContribution(s, e)
}

func acceptPosterSlot(s *Schedule, e *Entry) error {
	if e.kind == Independent {
		return wrongTypeError("a poster block only holds contributions")
	}
	return acceptBlockContribution(s, e)
}

func acceptBlockContribution(s *Schedule, e *Entry) error {
	n := e.TargetNode()
	if n.Kind != KindContribution {
		return wrongTypeError("%s %q cannot be scheduled inside a block", n.Kind, n.Title)
	}
	if err := checkContribution(n); err != nil {
		return err
	}
	block := s.ownerNode()
	if n.Session == "" || n.Session != block.Session {
		return wrongTypeError("contribution %q does not belong to the session of block %q", n.Title, block.Title)
	}
	return nil
}

func checkContribution(n *Node) error {
	if n.Status == StatusWithdrawn {
		return wrongTypeError("contribution %q is withdrawn and cannot be scheduled", n.Title)
	}
	return nil
}

// blockDefaultDuration resolves the default contribution duration of a block,
// falling back to its session.
func blockDefaultDuration(s *Schedule, _ *Entry) time.Duration {
	block := s.ownerNode()
	if block.DefaultDuration > 0 {
		return block.DefaultDuration
	}
	if session, ok := s.reg.nodes[block.Session]; ok {
		return session.DefaultDuration
	}
	return 0
}
