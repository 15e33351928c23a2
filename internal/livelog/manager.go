package livelog

import (
	"sort"
	"sync"
	"time"
)

// Entry is the live trail of one file currently moving through the pipeline.
type Entry struct {
	SourcePath string    `json:"source_path"`
	State      string    `json:"state"`
	Lines      []string  `json:"lines"`
	StartTime  time.Time `json:"start_time"`
	LastUpdate time.Time `json:"last_update"`
}

// Manager tracks in-flight jobs so they can be inspected while they run.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*Entry // key: source path
}

func NewManager() *Manager {
	return &Manager{entries: make(map[string]*Entry)}
}

// Start opens an entry for path, replacing any previous one.
func (m *Manager) Start(path, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.entries[path] = &Entry{
		SourcePath: path,
		State:      state,
		StartTime:  now,
		LastUpdate: now,
	}
}

// Append moves path to state and records line. Unknown paths are ignored.
func (m *Manager) Append(path, state, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[path]; ok {
		e.State = state
		if line != "" {
			e.Lines = append(e.Lines, line)
		}
		e.LastUpdate = time.Now()
	}
}

// Get returns a copy of the entry for path.
func (m *Manager) Get(path string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[path]
	if !ok {
		return Entry{}, false
	}
	return e.copy(), true
}

// End drops the entry once the job reaches a terminal state.
func (m *Manager) End(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, path)
}

// Active returns copies of all open entries, oldest first.
func (m *Manager) Active() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (e *Entry) copy() Entry {
	c := *e
	c.Lines = append([]string(nil), e.Lines...)
	return c
}
