package queue

import (
	"container/list"
	"sync"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
)

// Manager holds the deduplicated candidate set and hands each candidate to
// exactly one caller per pass. Dequeueing and result recording are guarded by
// separate locks and neither is held during network I/O.
type Manager struct {
	// Backing set in insertion order
	setMutex sync.RWMutex
	order    []*candidate.Candidate
	index    map[string]*candidate.Candidate

	// Consumable unscanned sequence
	nextMutex sync.Mutex
	unscanned *list.List

	// Result collections
	resultMutex sync.Mutex
	alive       []*candidate.Candidate
	dead        []*candidate.Candidate
}

// NewManager creates an empty work queue
func NewManager() *Manager {
	return &Manager{
		index:     make(map[string]*candidate.Candidate),
		unscanned: list.New(),
	}
}

// Initialize replaces the backing set with cands, or keeps the current set
// when cands is nil or empty, then clears results and rebuilds the unscanned
// sequence. Duplicate keys in cands keep their first occurrence. Use Clear to
// empty the set.
func (m *Manager) Initialize(cands []*candidate.Candidate) {
	if len(cands) > 0 {
		order := make([]*candidate.Candidate, 0, len(cands))
		index := make(map[string]*candidate.Candidate, len(cands))
		for _, c := range cands {
			if c == nil {
				continue
			}
			if _, exists := index[c.Key()]; exists {
				continue
			}
			index[c.Key()] = c
			order = append(order, c)
		}

		m.setMutex.Lock()
		m.order = order
		m.index = index
		m.setMutex.Unlock()
	}

	m.resultMutex.Lock()
	m.alive = nil
	m.dead = nil
	m.resultMutex.Unlock()

	m.Reset()
}

// Reset rebuilds the unscanned sequence from the backing set without touching
// recorded results.
func (m *Manager) Reset() {
	m.setMutex.RLock()
	snapshot := make([]*candidate.Candidate, len(m.order))
	copy(snapshot, m.order)
	m.setMutex.RUnlock()

	fresh := list.New()
	for _, c := range snapshot {
		fresh.PushBack(c)
	}

	m.nextMutex.Lock()
	m.unscanned = fresh
	m.nextMutex.Unlock()
}

// Add parses s and inserts it into the backing set. It returns false if the
// candidate was already present.
func (m *Manager) Add(s string) bool {
	return m.AddCandidate(candidate.Parse(s))
}

// AddCandidate inserts c into the backing set. It returns false if a candidate
// with the same key was already present.
func (m *Manager) AddCandidate(c *candidate.Candidate) bool {
	if c == nil {
		return false
	}

	m.setMutex.Lock()
	defer m.setMutex.Unlock()

	if _, exists := m.index[c.Key()]; exists {
		return false
	}
	m.index[c.Key()] = c
	m.order = append(m.order, c)
	return true
}

// Contains reports whether a candidate with key is in the backing set
func (m *Manager) Contains(key string) bool {
	m.setMutex.RLock()
	defer m.setMutex.RUnlock()
	_, ok := m.index[key]
	return ok
}

// RecommendNext removes and returns the head of the unscanned sequence. The
// boolean is false once the sequence is exhausted.
func (m *Manager) RecommendNext() (*candidate.Candidate, bool) {
	m.nextMutex.Lock()
	defer m.nextMutex.Unlock()

	front := m.unscanned.Front()
	if front == nil {
		return nil, false
	}
	m.unscanned.Remove(front)
	return front.Value.(*candidate.Candidate), true
}

// RecordAlive appends c to the alive collection
func (m *Manager) RecordAlive(c *candidate.Candidate) {
	m.resultMutex.Lock()
	m.alive = append(m.alive, c)
	m.resultMutex.Unlock()
}

// RecordDead appends c to the dead collection
func (m *Manager) RecordDead(c *candidate.Candidate) {
	m.resultMutex.Lock()
	m.dead = append(m.dead, c)
	m.resultMutex.Unlock()
}

// Count returns the size of the backing set
func (m *Manager) Count() int {
	m.setMutex.RLock()
	defer m.setMutex.RUnlock()
	return len(m.order)
}

// Remaining returns how many candidates have not been dispensed yet
func (m *Manager) Remaining() int {
	m.nextMutex.Lock()
	defer m.nextMutex.Unlock()
	return m.unscanned.Len()
}

// Candidates returns the backing set in insertion order
func (m *Manager) Candidates() []*candidate.Candidate {
	m.setMutex.RLock()
	defer m.setMutex.RUnlock()
	out := make([]*candidate.Candidate, len(m.order))
	copy(out, m.order)
	return out
}

// Alive returns a snapshot of the alive collection
func (m *Manager) Alive() []*candidate.Candidate {
	m.resultMutex.Lock()
	defer m.resultMutex.Unlock()
	out := make([]*candidate.Candidate, len(m.alive))
	copy(out, m.alive)
	return out
}

// Dead returns a snapshot of the dead collection
func (m *Manager) Dead() []*candidate.Candidate {
	m.resultMutex.Lock()
	defer m.resultMutex.Unlock()
	out := make([]*candidate.Candidate, len(m.dead))
	copy(out, m.dead)
	return out
}

// Clear drops every candidate and result
func (m *Manager) Clear() {
	m.setMutex.Lock()
	m.order = nil
	m.index = make(map[string]*candidate.Candidate)
	m.setMutex.Unlock()

	m.nextMutex.Lock()
	m.unscanned = list.New()
	m.nextMutex.Unlock()

	m.resultMutex.Lock()
	m.alive = nil
	m.dead = nil
	m.resultMutex.Unlock()
}
