package permissions

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatePresetIsCopied(t *testing.T) {
	state := NewState()
	overwrites := []Overwrite{{RoleID: "1", Allow: 1}}
	state.SetPreset("x", overwrites)
	overwrites[0].Allow = 99

	stored, ok := state.Preset("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), stored[0].Allow)

	stored[0].Allow = 42
	again, _ := state.Preset("x")
	assert.Equal(t, int64(1), again[0].Allow)
}

func TestStateLastHistoryLeavesEntries(t *testing.T) {
	state := NewState()
	state.PushHistory("c", []Overwrite{{RoleID: "old"}})
	state.PushHistory("c", []Overwrite{{RoleID: "new"}})

	got, ok := state.LastHistory("c")
	require.True(t, ok)
	assert.Equal(t, "new", got[0].RoleID)

	got[0].RoleID = "mutated"
	got, ok = state.LastHistory("c")
	require.True(t, ok)
	assert.Equal(t, "new", got[0].RoleID)
	assert.Len(t, state.History("c"), 2)

	_, ok = state.LastHistory("unknown")
	assert.False(t, ok)
}

func TestStateTakeChangeClearsSlot(t *testing.T) {
	state := NewState()
	state.Record(SaveChange{Name: "x"})
	state.Record(LoadChange{Name: "y"})

	change := state.TakeChange()
	assert.Equal(t, LoadChange{Name: "y"}, change)
	assert.Nil(t, state.TakeChange())

	state.restoreChange(change)
	state.Record(SaveChange{Name: "z"})
	state.restoreChange(change)
	assert.Equal(t, SaveChange{Name: "z"}, state.Previous())
}

func TestStateConcurrentAccess(t *testing.T) {
	state := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("preset-%d", i%4)
			state.SetPreset(name, []Overwrite{{RoleID: name}})
			state.PushHistory("c", []Overwrite{{RoleID: name}})
			state.Record(SaveChange{Name: name})
			_, _ = state.Preset(name)
		}(i)
	}
	wg.Wait()

	assert.Len(t, state.PresetNames(), 4)
	assert.Len(t, state.History("c"), LockHistoryLimit)
	assert.NotNil(t, state.Previous())
}
