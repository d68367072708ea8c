package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"warden/internal/utils"
)

const (
	Extension       = ".so"
	maxDownloadSize = 64 << 20
)

var ErrFileNotFound = errors.New("plugin file not found")

type Info struct {
	Index       int
	Name        string
	File        string
	Description string
}

type loaded struct {
	plugin Plugin
	file   string
}

// Manager owns the loaded plugins. Plugins are kept in load order.
type Manager struct {
	mu       sync.Mutex
	dir      string
	open     Opener
	registry Registry
	client   *http.Client
	plugins  []loaded
	logger   *zap.Logger
}

func NewManager(dir string, open Opener, registry Registry, logger *zap.Logger) *Manager {
	if dir == "" {
		dir = "plugins"
	}
	if open == nil {
		open = OpenShared
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dir:      dir,
		open:     open,
		registry: registry,
		client:   &http.Client{Timeout: time.Minute},
		logger:   logger,
	}
}

func (m *Manager) Dir() string {
	return m.dir
}

// Preload creates the plugin directory if needed and returns the plugin files in it.
func (m *Manager) Preload() ([]string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plugin dir: %w", err)
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read plugin dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), Extension) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// LoadAll loads every file, skipping the ones that fail.
func (m *Manager) LoadAll(files []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	count := 0
	for _, file := range files {
		p, err := m.load(file)
		if err != nil {
			m.logger.Warn("plugin load failed", zap.String("file", file), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		m.logger.Info("plugin loaded", zap.String("plugin", p.Name()), zap.String("file", file))
		count++
	}
	return count, errors.Join(errs...)
}

func (m *Manager) Load(file string) (Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(file)
}

func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.unload(name)
	return err
}

func (m *Manager) UnloadAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for len(m.plugins) > 0 {
		name := m.plugins[len(m.plugins)-1].plugin.Name()
		if _, err := m.unload(name); err != nil {
			m.logger.Warn("plugin unload failed", zap.String("plugin", name), zap.Error(err))
		}
		count++
	}
	return count
}

// Reload unloads name and loads it again from the same file.
func (m *Manager) Reload(name string) (Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := m.unload(name)
	if file == "" {
		return nil, err
	}
	if err != nil {
		m.logger.Warn("plugin unload failed", zap.String("plugin", name), zap.Error(err))
	}
	return m.load(file)
}

func (m *Manager) ReloadAll() (int, error) {
	m.UnloadAll()
	files, err := m.Preload()
	if err != nil {
		return 0, err
	}
	return m.LoadAll(files)
}

func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]Info, 0, len(m.plugins))
	for i, entry := range m.plugins {
		infos = append(infos, info(i, entry))
	}
	return infos
}

func (m *Manager) Get(name string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(name)
	if idx < 0 {
		return Info{}, false
	}
	return info(idx, m.plugins[idx]), true
}

// Download fetches rawURL into the plugin directory as fileName and returns
// the stored file name.
func (m *Manager) Download(ctx context.Context, fileName, rawURL string) (string, error) {
	name, err := pluginFileName(fileName)
	if err != nil {
		return "", err
	}
	normalized, _, err := utils.NormalizeURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create plugin dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalized, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download plugin: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download plugin: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadSize)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write plugin: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(m.dir, name)); err != nil {
		return "", fmt.Errorf("store plugin: %w", err)
	}
	m.logger.Info("plugin downloaded", zap.String("file", name), zap.String("url", normalized))
	return name, nil
}

// Delete removes a plugin file. Loaded plugins stay loaded.
func (m *Manager) Delete(fileName string) (string, error) {
	name, err := pluginFileName(fileName)
	if err != nil {
		return "", err
	}
	if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return name, ErrFileNotFound
		}
		return name, err
	}
	return name, nil
}

func (m *Manager) load(file string) (Plugin, error) {
	name, err := pluginFileName(file)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(m.dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, err
	}

	p, err := m.open(path)
	if err != nil {
		return nil, err
	}
	if m.index(p.Name()) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLoaded, p.Name())
	}
	if err := p.OnLoad(); err != nil {
		return nil, fmt.Errorf("%s on load: %w", p.Name(), err)
	}
	if m.registry != nil {
		if err := p.Register(m.registry); err != nil {
			_ = p.OnUnload()
			return nil, fmt.Errorf("%s register: %w", p.Name(), err)
		}
	}
	m.plugins = append(m.plugins, loaded{plugin: p, file: name})
	return p, nil
}

// unload returns the file the plugin was loaded from.
func (m *Manager) unload(name string) (string, error) {
	idx := m.index(name)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	entry := m.plugins[idx]
	m.plugins = append(m.plugins[:idx], m.plugins[idx+1:]...)

	var errs []error
	if m.registry != nil {
		if err := entry.plugin.Unregister(m.registry); err != nil {
			errs = append(errs, fmt.Errorf("%s unregister: %w", name, err))
		}
	}
	if err := entry.plugin.OnUnload(); err != nil {
		errs = append(errs, fmt.Errorf("%s on unload: %w", name, err))
	}
	return entry.file, errors.Join(errs...)
}

func (m *Manager) index(name string) int {
	for i, entry := range m.plugins {
		if entry.plugin.Name() == name {
			return i
		}
	}
	return -1
}

func info(idx int, entry loaded) Info {
	out := Info{Index: idx, Name: entry.plugin.Name(), File: entry.file}
	if d, ok := entry.plugin.(Describer); ok {
		out.Description = d.Description()
	}
	return out
}

// pluginFileName appends the plugin extension and rejects anything that
// would escape the plugin directory.
func pluginFileName(file string) (string, error) {
	file = strings.TrimSpace(file)
	name := strings.TrimSuffix(file, Extension) + Extension
	if name == Extension || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFile, file)
	}
	return name, nil
}
