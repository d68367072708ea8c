package permissions

import (
	"sync"

	"warden/internal/utils"
)

// LockHistoryLimit caps the restore points kept per channel.
const LockHistoryLimit = 5

// Change is the last save or load, kept for a single level of undo.
type Change interface {
	change()
}

// SaveChange records a save. Prior holds the channel's overwrites at save
// time, which are also the value that was stored.
type SaveChange struct {
	Name    string
	Channel Channel
	Prior   []Overwrite
}

// LoadChange records a load. Prior holds the channel's overwrites before the
// preset was applied.
type LoadChange struct {
	Name    string
	Channel Channel
	Prior   []Overwrite
}

func (SaveChange) change() {}
func (LoadChange) change() {}

// State holds the named presets, per-channel lock history and the last change.
// The mutex only keeps the maps consistent; operations spanning several calls
// are last-write-wins.
type State struct {
	mu       sync.Mutex
	presets  map[string][]Overwrite
	history  map[string]*utils.Deque[[]Overwrite]
	previous Change
}

func NewState() *State {
	return &State{
		presets: make(map[string][]Overwrite),
		history: make(map[string]*utils.Deque[[]Overwrite]),
	}
}

func (s *State) Preset(name string) ([]Overwrite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overwrites, ok := s.presets[name]
	return cloneOverwrites(overwrites), ok
}

func (s *State) SetPreset(name string, overwrites []Overwrite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if overwrites == nil {
		overwrites = []Overwrite{}
	}
	s.presets[name] = cloneOverwrites(overwrites)
}

func (s *State) PresetNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}
	return names
}

// PushHistory appends a restore point for channelID, dropping the oldest past the limit.
func (s *State) PushHistory(channelID string, overwrites []Overwrite) {
	s.mu.Lock()
	deque, ok := s.history[channelID]
	if !ok {
		deque = utils.NewDeque[[]Overwrite](LockHistoryLimit)
		s.history[channelID] = deque
	}
	s.mu.Unlock()
	deque.Push(cloneOverwrites(overwrites))
}

// LastHistory returns the newest restore point for channelID. The history
// itself is only ever appended to.
func (s *State) LastHistory(channelID string) ([]Overwrite, bool) {
	s.mu.Lock()
	deque, ok := s.history[channelID]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	last, ok := deque.Last()
	if !ok {
		return nil, false
	}
	return cloneOverwrites(last), true
}

func (s *State) History(channelID string) [][]Overwrite {
	s.mu.Lock()
	deque, ok := s.history[channelID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return deque.Items()
}

// Record replaces the last change.
func (s *State) Record(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = change
}

func (s *State) Previous() Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previous
}

// TakeChange returns the last change and clears the slot.
func (s *State) TakeChange() Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	change := s.previous
	s.previous = nil
	return change
}

// restoreChange puts change back unless something newer was recorded meanwhile.
func (s *State) restoreChange(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.previous == nil {
		s.previous = change
	}
}
