package core

import (
	"sort"
	"sync"
)

// Board is the ordered participant collection held by one live session.
// It merges change notifications into the collection and keeps the derived
// counts current. All methods are safe for concurrent use.
type Board struct {
	mu       sync.RWMutex
	list     []Participant
	index    map[string]int // id -> position in list
	counts   Counts
	observer func(Counts)
}

// NewBoard returns an empty board. observer, if non-nil, receives the counts
// after every Load and Apply.
func NewBoard(observer func(Counts)) *Board {
	return &Board{
		index:    make(map[string]int),
		observer: observer,
	}
}

// Load replaces the collection. The baseline order is created_at ascending;
// entries with equal timestamps keep their input order. Later entries with a
// duplicate id are dropped.
func (b *Board) Load(initial []Participant) {
	list := make([]Participant, 0, len(initial))
	seen := make(map[string]bool, len(initial))
	for _, p := range initial {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		list = append(list, p)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	b.mu.Lock()
	b.list = list
	b.reindex()
	c := b.recount()
	b.mu.Unlock()

	b.publish(c)
}

// ApplyInsert appends p unless an entry with the same id is already present.
// Inserts are never re-sorted into created_at order.
func (b *Board) ApplyInsert(p Participant) {
	b.mu.Lock()
	if _, ok := b.index[p.ID]; !ok {
		b.index[p.ID] = len(b.list)
		b.list = append(b.list, p)
	}
	c := b.recount()
	b.mu.Unlock()

	b.publish(c)
}

// ApplyUpdate replaces the entry with p's id in place. Unknown ids are ignored.
func (b *Board) ApplyUpdate(p Participant) {
	b.mu.Lock()
	if i, ok := b.index[p.ID]; ok {
		b.list[i] = p
	}
	c := b.recount()
	b.mu.Unlock()

	b.publish(c)
}

// ApplyDelete removes the entry with the given id. Unknown ids are ignored.
func (b *Board) ApplyDelete(id string) {
	b.mu.Lock()
	if i, ok := b.index[id]; ok {
		b.list = append(b.list[:i], b.list[i+1:]...)
		b.reindex()
	}
	c := b.recount()
	b.mu.Unlock()

	b.publish(c)
}

// Apply dispatches a change notification. Inserts and updates without a
// record are ignored.
func (b *Board) Apply(ch Change) {
	switch ch.Kind {
	case ChangeInsert:
		if ch.Record != nil {
			b.ApplyInsert(*ch.Record)
		}
	case ChangeUpdate:
		if ch.Record != nil {
			b.ApplyUpdate(*ch.Record)
		}
	case ChangeDelete:
		b.ApplyDelete(ch.ID)
	}
}

// Get returns the entry with the given id.
func (b *Board) Get(id string) (Participant, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	i, ok := b.index[id]
	if !ok {
		return Participant{}, false
	}
	return b.list[i], true
}

// Snapshot returns a copy of the collection in display order.
func (b *Board) Snapshot() []Participant {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Participant, len(b.list))
	copy(out, b.list)
	return out
}

// Counts returns the current totals.
func (b *Board) Counts() Counts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counts
}

// View returns the entries matching q in display order.
func (b *Board) View(q Query) []Participant {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Filter(b.list, q)
}

// Len returns the number of entries.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.list)
}

// reindex rebuilds the id index. Caller holds b.mu.
func (b *Board) reindex() {
	b.index = make(map[string]int, len(b.list))
	for i, p := range b.list {
		b.index[p.ID] = i
	}
}

// recount refreshes b.counts and returns it. Caller holds b.mu.
func (b *Board) recount() Counts {
	b.counts = CountOf(b.list)
	return b.counts
}

func (b *Board) publish(c Counts) {
	if b.observer != nil {
		b.observer(c)
	}
}
