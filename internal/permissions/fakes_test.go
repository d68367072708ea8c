package permissions

import (
	"context"
	"errors"
	"sync"
)

type fakeService struct {
	mu         sync.Mutex
	channels   map[string][]Overwrite
	calls      []string
	failSet    error
	rateLimits map[string]int
	names      map[string]string
}

func newFakeService() *fakeService {
	return &fakeService{
		channels:   make(map[string][]Overwrite),
		rateLimits: make(map[string]int),
		names:      make(map[string]string),
	}
}

func (f *fakeService) Overwrites(_ context.Context, channelID string) ([]Overwrite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get:"+channelID)
	return cloneOverwrites(f.channels[channelID]), nil
}

func (f *fakeService) SetOverwrites(_ context.Context, channelID string, overwrites []Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "set:"+channelID)
	if f.failSet != nil {
		return f.failSet
	}
	f.channels[channelID] = cloneOverwrites(overwrites)
	return nil
}

func (f *fakeService) AddOverwrite(_ context.Context, channelID string, overwrite Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add:"+channelID)
	current := f.channels[channelID]
	for i := range current {
		if current[i].RoleID == overwrite.RoleID {
			current[i] = overwrite
			return nil
		}
	}
	f.channels[channelID] = append(current, overwrite)
	return nil
}

func (f *fakeService) RemoveOverwrite(_ context.Context, channelID string, overwrite Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "remove:"+channelID)
	current := f.channels[channelID]
	kept := current[:0]
	for _, ow := range current {
		if ow.RoleID != overwrite.RoleID {
			kept = append(kept, ow)
		}
	}
	f.channels[channelID] = kept
	return nil
}

func (f *fakeService) SetRateLimit(_ context.Context, channelID string, seconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimits[channelID] = seconds
	return nil
}

func (f *fakeService) ReplaceAll(_ context.Context, channelID, name string, overwrites []Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[channelID] = name
	f.channels[channelID] = cloneOverwrites(overwrites)
	return nil
}

type fakeDirectory struct{}

func (fakeDirectory) EveryoneRole(_ context.Context, guildID string) (string, error) {
	if guildID == "" {
		return "", errors.New("no guild")
	}
	return guildID, nil
}

type fakeCounter struct{ next int }

func (f *fakeCounter) NextArchiveNumber(context.Context, string) (int, error) {
	f.next++
	return f.next, nil
}

type report struct {
	kind string
	text string
}

type recorder struct {
	reports []report
}

func (r *recorder) Success(text string) { r.reports = append(r.reports, report{"success", text}) }
func (r *recorder) Error(text string)   { r.reports = append(r.reports, report{"error", text}) }
func (r *recorder) Normal(text string)  { r.reports = append(r.reports, report{"normal", text}) }

func (r *recorder) last() report {
	if len(r.reports) == 0 {
		return report{}
	}
	return r.reports[len(r.reports)-1]
}
