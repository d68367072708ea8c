package plugin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	name   string
	events *[]string
}

func (p *fakePlugin) Name() string        { return p.name }
func (p *fakePlugin) Description() string { return "fake " + p.name }

func (p *fakePlugin) OnLoad() error {
	*p.events = append(*p.events, "load:"+p.name)
	return nil
}

func (p *fakePlugin) OnUnload() error {
	*p.events = append(*p.events, "unload:"+p.name)
	return nil
}

func (p *fakePlugin) Register(registry Registry) error {
	return registry.AddCommand(&discordgo.ApplicationCommand{Name: p.name}, nil)
}

func (p *fakePlugin) Unregister(registry Registry) error {
	return registry.RemoveCommand(p.name)
}

type fakeRegistry struct {
	commands map[string]bool
}

func (r *fakeRegistry) AddCommand(cmd *discordgo.ApplicationCommand, _ Handler) error {
	if r.commands[cmd.Name] {
		return errors.New("duplicate command")
	}
	r.commands[cmd.Name] = true
	return nil
}

func (r *fakeRegistry) RemoveCommand(name string) error {
	delete(r.commands, name)
	return nil
}

type harness struct {
	manager  *Manager
	registry *fakeRegistry
	events   []string
	opened   int
	dir      string
}

// newHarness maps "<name>.so" files to fake plugins called <name>; files
// starting with "dup" all claim the same plugin name.
func newHarness(t *testing.T, files ...string) *harness {
	t.Helper()
	h := &harness{registry: &fakeRegistry{commands: make(map[string]bool)}, dir: t.TempDir()}
	for _, file := range files {
		require.NoError(t, os.WriteFile(filepath.Join(h.dir, file), []byte("elf"), 0o644))
	}
	opener := func(path string) (Plugin, error) {
		h.opened++
		name := filepath.Base(path)
		name = name[:len(name)-len(Extension)]
		if name == "broken" {
			return nil, ErrInvalidFile
		}
		if len(name) >= 3 && name[:3] == "dup" {
			name = "dup"
		}
		return &fakePlugin{name: name, events: &h.events}, nil
	}
	h.manager = NewManager(h.dir, opener, h.registry, nil)
	return h
}

func TestPreloadListsPluginFiles(t *testing.T) {
	h := newHarness(t, "b.so", "a.so", "notes.txt")
	files, err := h.manager.Preload()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.so", "b.so"}, files)

	fresh := NewManager(filepath.Join(t.TempDir(), "missing"), nil, nil, nil)
	files, err = fresh.Preload()
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.DirExists(t, fresh.Dir())
}

func TestLoadAllSkipsFailures(t *testing.T) {
	h := newHarness(t, "a.so", "broken.so", "c.so")
	files, err := h.manager.Preload()
	require.NoError(t, err)

	count, err := h.manager.LoadAll(files)
	assert.Equal(t, 2, count)
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.True(t, h.registry.commands["a"])
	assert.True(t, h.registry.commands["c"])

	list := h.manager.List()
	require.Len(t, list, 2)
	assert.Equal(t, Info{Index: 1, Name: "c", File: "c.so", Description: "fake c"}, list[1])
}

func TestDuplicatePluginNameRefused(t *testing.T) {
	h := newHarness(t, "dup1.so", "dup2.so")
	_, err := h.manager.Load("dup1")
	require.NoError(t, err)

	_, err = h.manager.Load("dup2.so")
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
	assert.Len(t, h.manager.List(), 1)
	assert.Equal(t, []string{"load:dup"}, h.events)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Load("missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
	_, err = h.manager.Load("../escape.so")
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.Zero(t, h.opened)
}

func TestUnloadAndReload(t *testing.T) {
	h := newHarness(t, "a.so", "b.so")
	_, err := h.manager.LoadAll([]string{"a.so", "b.so"})
	require.NoError(t, err)

	require.NoError(t, h.manager.Unload("a"))
	assert.False(t, h.registry.commands["a"])
	assert.ErrorIs(t, h.manager.Unload("a"), ErrNotFound)

	p, err := h.manager.Reload("b")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name())
	assert.True(t, h.registry.commands["b"])

	_, err = h.manager.Reload("a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"load:a", "load:b", "unload:a", "unload:b", "load:b"}, h.events)
}

func TestUnloadAllAndReloadAll(t *testing.T) {
	h := newHarness(t, "a.so", "b.so")
	_, err := h.manager.LoadAll([]string{"a.so", "b.so"})
	require.NoError(t, err)

	assert.Equal(t, 2, h.manager.UnloadAll())
	assert.Empty(t, h.manager.List())
	assert.Empty(t, h.registry.commands)

	count, err := h.manager.ReloadAll()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	_, ok := h.manager.Get("b")
	assert.True(t, ok)
	_, ok = h.manager.Get("zzz")
	assert.False(t, ok)
}

func TestDownloadAndDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/build/extra.so" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("plugin-bytes"))
	}))
	defer server.Close()

	h := newHarness(t)
	name, err := h.manager.Download(context.Background(), "extra", server.URL+"/build/extra.so#frag")
	require.NoError(t, err)
	assert.Equal(t, "extra.so", name)

	data, err := os.ReadFile(filepath.Join(h.dir, "extra.so"))
	require.NoError(t, err)
	assert.Equal(t, "plugin-bytes", string(data))

	_, err = h.manager.Download(context.Background(), "other", server.URL+"/nope")
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(h.dir, "other.so"))

	_, err = h.manager.Download(context.Background(), "bad", "ftp://example.com/x.so")
	assert.Error(t, err)

	name, err = h.manager.Delete("extra.so")
	require.NoError(t, err)
	assert.Equal(t, "extra.so", name)
	_, err = h.manager.Delete("extra")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
