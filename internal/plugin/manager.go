package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// ManifestFile is the manifest name inside each plugin directory.
const ManifestFile = "plugin.json"

var (
	// ErrPluginNotFound is returned when no installed plugin has the name.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrUnsupportedAction is returned when a plugin does not declare an action.
	ErrUnsupportedAction = errors.New("action not supported by plugin")
)

// Manager is the catalog of plugins installed under one directory. Bindings
// name a plugin and one of its actions; Lookup resolves that pair.
type Manager struct {
	dir string

	mu     sync.RWMutex
	byName map[string]*Plugin
	names  []string
}

// NewManager returns an empty catalog for dir. Call Discover to fill it.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, byName: map[string]*Plugin{}}
}

// Discover rescans the directory and replaces the catalog. Plugins whose
// manifest cannot be used are logged and left out. A missing directory
// yields an empty catalog. On a read error the previous catalog is kept.
func (m *Manager) Discover() error {
	found, err := scan(m.dir)
	if err != nil {
		return err
	}
	names := slices.Sorted(maps.Keys(found))

	m.mu.Lock()
	m.byName = found
	m.names = names
	m.mu.Unlock()
	return nil
}

func scan(dir string) (map[string]*Plugin, error) {
	found := map[string]*Plugin{}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return found, nil
	}
	if err != nil {
		if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
			return found, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := load(filepath.Join(dir, entry.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Printf("plugin: skipping %s: %v", entry.Name(), err)
			continue
		}
		if prev, dup := found[p.Manifest.Name]; dup {
			log.Printf("plugin: skipping %s: name %q already used by %s", entry.Name(), p.Manifest.Name, prev.Path)
			continue
		}
		found[p.Manifest.Name] = p
	}
	return found, nil
}

// load reads the plugin in path. It returns an fs.ErrNotExist error when the
// directory has no manifest.
func load(path string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(path, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, errors.New("manifest needs a name and an executable")
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       path,
		Executable: filepath.Join(path, manifest.Executable),
	}, nil
}

// Get returns the plugin called name, or ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byName[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// Lookup returns the plugin called name if it declares action. The error
// wraps ErrPluginNotFound or ErrUnsupportedAction.
func (m *Manager) Lookup(name, action string) (*Plugin, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if !p.Supports(action) {
		return nil, fmt.Errorf("%s/%s: %w", name, action, ErrUnsupportedAction)
	}
	return p, nil
}

// List returns the installed plugins ordered by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Plugin, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.byName[name])
	}
	return out
}

// Len returns the number of installed plugins.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.names)
}

// PluginDir returns the directory the catalog is read from.
func (m *Manager) PluginDir() string {
	return m.dir
}
