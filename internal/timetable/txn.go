package timetable

// txn journals the state of every object a mutation touches so that a failed
// mutation can be undone as a whole. Modification signals are held until
// commit.
type txn struct {
	nodes     map[*Node]Node
	entries   map[*Entry]Entry
	schedules map[*Schedule]scheduleState
	trash     map[*Entry]struct{}
	trashSet  bool
	modified  []Ref
	seen      map[Ref]struct{}
}

type scheduleState struct {
	entries []*Entry
	counter int
}

func newTxn() *txn {
	return &txn{
		nodes:     map[*Node]Node{},
		entries:   map[*Entry]Entry{},
		schedules: map[*Schedule]scheduleState{},
		seen:      map[Ref]struct{}{},
	}
}

func (t *txn) rollback(r *Registry) {
	for n, saved := range t.nodes {
		*n = saved
	}
	for e, saved := range t.entries {
		*e = saved
	}
	for s, saved := range t.schedules {
		s.entries = saved.entries
		s.counter = saved.counter
	}
	if t.trashSet {
		r.trash = t.trash
	}
}

// changes is threaded through one mutation: it collects notifications for
// the direct caller and guards the upward cascade.
type changes struct {
	notes []Notification
	depth int
	path  map[Handle]bool
}

func newChanges() *changes {
	return &changes{path: map[Handle]bool{}}
}

func (c *changes) notify(n Notification) {
	c.notes = append(c.notes, n)
}

// atomically runs fn inside a transaction. On error every journaled object is
// restored and no modification signal is emitted.
func (r *Registry) atomically(fn func(ch *changes) error) ([]Notification, error) {
	if r.tx != nil {
		// Nested call: join the running transaction.
		ch := newChanges()
		if err := fn(ch); err != nil {
			return nil, err
		}
		return ch.notes, nil
	}
	r.tx = newTxn()
	ch := newChanges()
	err := fn(ch)
	tx := r.tx
	r.tx = nil
	if err != nil {
		tx.rollback(r)
		return nil, err
	}
	for _, ref := range tx.modified {
		r.notifier.NotifyModified(ref)
	}
	return ch.notes, nil
}

func (r *Registry) touchNode(n *Node) {
	if r.tx == nil {
		return
	}
	if _, ok := r.tx.nodes[n]; !ok {
		r.tx.nodes[n] = *n
	}
}

func (r *Registry) touchEntry(e *Entry) {
	if r.tx == nil {
		return
	}
	if _, ok := r.tx.entries[e]; !ok {
		r.tx.entries[e] = *e
	}
}

func (r *Registry) touchSchedule(s *Schedule) {
	if r.tx == nil {
		return
	}
	if _, ok := r.tx.schedules[s]; !ok {
		saved := make([]*Entry, len(s.entries))
		copy(saved, s.entries)
		r.tx.schedules[s] = scheduleState{entries: saved, counter: s.counter}
	}
}

func (r *Registry) touchTrash() {
	if r.tx == nil || r.tx.trashSet {
		return
	}
	saved := make(map[*Entry]struct{}, len(r.trash))
	for e := range r.trash {
		saved[e] = struct{}{}
	}
	r.tx.trash = saved
	r.tx.trashSet = true
}

func (r *Registry) markModified(ref Ref) {
	if r.tx == nil {
		r.notifier.NotifyModified(ref)
		return
	}
	if _, ok := r.tx.seen[ref]; ok {
		return
	}
	r.tx.seen[ref] = struct{}{}
	r.tx.modified = append(r.tx.modified, ref)
}
