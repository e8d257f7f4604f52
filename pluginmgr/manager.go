// File: pluginmgr/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Manager resolves, caches and tears down plugin instances.

package pluginmgr

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/internal/log"
)

// Constructor builds a trusted in-process plugin.
type Constructor func() api.Plugin

// Options configures a Manager.
type Options struct {
	Dir      string                   // directory holding intention shared objects
	Libs     map[api.Intention]string // file name per intention, relative to Dir unless absolute
	Opener   Opener                   // SharedObjectOpener when nil
	Builtins map[api.Intention]Constructor
	// Configure runs once on every new instance, built-in or loaded, before
	// it is cached. Hosts attach their collaborators here.
	Configure func(api.Intention, api.Plugin)
	Logger    *zerolog.Logger
	Metrics   *control.Metrics
}

// OptionsFromConfig maps plugin_dir and plugin_libs onto Options.
// Config validation guarantees every key names an intention.
func OptionsFromConfig(cfg *control.Config) Options {
	libs := make(map[api.Intention]string, len(cfg.PluginLibs))
	for name, file := range cfg.PluginLibs {
		if in, ok := api.ParseIntention(name); ok {
			libs[in] = file
		}
	}
	return Options{Dir: cfg.PluginDir, Libs: libs}
}

type entry struct {
	plugin   api.Plugin
	abi      *api.PluginABI // nil for built-ins
	path     string
	builtin  bool
	inflight sync.WaitGroup // calls between Acquire and release
}

// Manager is safe for concurrent use. Loading is serialized under one
// mutex; calls into loaded plugins are not.
type Manager struct {
	mu       sync.Mutex
	cache    map[api.Intention]*entry
	libs     map[string]Library // opened shared objects by path
	dir      string
	paths    map[api.Intention]string
	builtins  map[api.Intention]Constructor
	opener    Opener
	configure func(api.Intention, api.Plugin)

	log     zerolog.Logger
	metrics *control.Metrics
}

// New creates a manager. It does not open anything until the first load.
func New(opts Options) *Manager {
	m := &Manager{
		cache:    make(map[api.Intention]*entry),
		libs:     make(map[string]Library),
		dir:      opts.Dir,
		paths:    make(map[api.Intention]string, len(opts.Libs)),
		builtins: make(map[api.Intention]Constructor, len(opts.Builtins)),
		opener:    opts.Opener,
		configure: opts.Configure,
		log:       log.WithComponent("pluginmgr"),
		metrics:   opts.Metrics,
	}
	if m.opener == nil {
		m.opener = SharedObjectOpener{}
	}
	if opts.Logger != nil {
		m.log = *opts.Logger
	}
	for in, file := range opts.Libs {
		m.paths[in] = file
	}
	for in, ctor := range opts.Builtins {
		m.builtins[in] = ctor
	}
	return m
}

// RegisterBuiltin marks intention as trusted and served by ctor. It does not
// replace an instance that is already loaded.
func (m *Manager) RegisterBuiltin(intention api.Intention, ctor Constructor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builtins[intention] = ctor
}

// LibraryPath returns the shared-object path configured for intention.
func (m *Manager) LibraryPath(intention api.Intention) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathLocked(intention)
}

func (m *Manager) pathLocked(intention api.Intention) (string, error) {
	file, ok := m.paths[intention]
	if !ok || file == "" {
		return "", fmt.Errorf("%w: %s", ErrNoMapping, intention)
	}
	if filepath.IsAbs(file) {
		return file, nil
	}
	return filepath.Join(m.dir, file), nil
}

// LoadPlugin returns the cached instance for intention, creating it on
// first use. The error says why resolution failed; callers on the wire
// collapse it to a single failure code.
func (m *Manager) LoadPlugin(intention api.Intention) (api.Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.entryLocked(intention)
	if err != nil {
		return nil, err
	}
	return e.plugin, nil
}

// Acquire is LoadPlugin for a call into the instance. UnloadPlugin waits
// for release before destroying it, so release must be called exactly once
// when the call returns.
func (m *Manager) Acquire(intention api.Intention) (api.Plugin, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.entryLocked(intention)
	if err != nil {
		return nil, nil, err
	}
	e.inflight.Add(1)
	return e.plugin, e.inflight.Done, nil
}

func (m *Manager) entryLocked(intention api.Intention) (*entry, error) {
	if e, ok := m.cache[intention]; ok {
		return e, nil
	}
	e, err := m.resolveLocked(intention)
	if err != nil {
		m.metrics.ObservePluginLoad(intention.String(), "error")
		m.log.Warn().Err(err).Str(log.FieldIntention, intention.String()).Msg("plugin load failed")
		return nil, err
	}
	if m.configure != nil {
		m.configure(intention, e.plugin)
	}
	m.cache[intention] = e
	m.metrics.ObservePluginLoad(intention.String(), "ok")
	m.log.Info().
		Str(log.FieldIntention, intention.String()).
		Str(log.FieldPath, e.path).
		Bool("builtin", e.builtin).
		Msg("plugin loaded")
	return e, nil
}

func (m *Manager) resolveLocked(intention api.Intention) (*entry, error) {
	if ctor, ok := m.builtins[intention]; ok {
		p, err := construct(ctor)
		if err != nil {
			return nil, err
		}
		return &entry{plugin: p, builtin: true}, nil
	}

	path, err := m.pathLocked(intention)
	if err != nil {
		return nil, err
	}
	lib, ok := m.libs[path]
	if !ok {
		lib, err = m.opener.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrLibraryOpen, path, err)
		}
		m.libs[path] = lib
	}

	sym, err := lib.Lookup(api.PluginABISymbol)
	if err != nil {
		return nil, fmt.Errorf("%w in %s: %v", ErrSymbolMissing, path, err)
	}
	abi, ok := sym.(*api.PluginABI)
	if !ok || abi == nil {
		return nil, fmt.Errorf("%w in %s: symbol has type %T", ErrSymbolMissing, path, sym)
	}
	if abi.Version != api.PluginABIVersion {
		return nil, fmt.Errorf("%w: %s has %d, want %d", ErrABIVersion, path, abi.Version, api.PluginABIVersion)
	}
	if abi.Intention != intention {
		return nil, fmt.Errorf("%w: %s serves %s, want %s", ErrIntentionMismatch, path, abi.Intention, intention)
	}
	p, err := construct(abi.Create)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &entry{plugin: p, abi: abi, path: path}, nil
}

func construct(ctor func() api.Plugin) (p api.Plugin, err error) {
	if ctor == nil {
		return nil, ErrNilPlugin
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: constructor panicked: %v", ErrNilPlugin, r)
		}
	}()
	p = ctor()
	if p == nil {
		return nil, ErrNilPlugin
	}
	return p, nil
}

// UnloadPlugin drops the cached instance. A dynamically loaded instance is
// released through the Destroy of the vtable that created it, once every
// call acquired before the unload has released it. Calling it from inside
// such a call deadlocks. The shared object itself stays mapped and a later
// load creates a fresh instance.
func (m *Manager) UnloadPlugin(intention api.Intention) error {
	m.mu.Lock()
	e, ok := m.cache[intention]
	delete(m.cache, intention)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, intention)
	}
	e.inflight.Wait()
	if err := destroy(e); err != nil {
		return err
	}
	m.log.Info().Str(log.FieldIntention, intention.String()).Msg("plugin unloaded")
	return nil
}

func destroy(e *entry) (err error) {
	if e.abi == nil || e.abi.Destroy == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pluginmgr: destroy %s panicked: %v", e.path, r)
		}
	}()
	e.abi.Destroy(e.plugin)
	return nil
}

// Loaded lists the intentions with a cached instance, in ascending order.
func (m *Manager) Loaded() []api.Intention {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]api.Intention, 0, len(m.cache))
	for in := range m.cache {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close unloads every cached instance.
func (m *Manager) Close() error {
	var errs []error
	for _, in := range m.Loaded() {
		if err := m.UnloadPlugin(in); err != nil && !errors.Is(err, ErrNotLoaded) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
