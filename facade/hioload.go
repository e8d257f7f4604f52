// File: facade/hioload.go
// Unified facade layer for hioload-ipc.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Service aggregates the scheduler, plugin manager, delegator, socket
// transport, configuration store and metrics behind a single lifecycle.

package facade

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/internal/log"
	"github.com/momentics/hioload-ipc/ipc"
	"github.com/momentics/hioload-ipc/pluginmgr"
	"github.com/momentics/hioload-ipc/plugins/basic"
	"github.com/momentics/hioload-ipc/scheduler"
	"github.com/momentics/hioload-ipc/transport/socket"
)

// ErrNotStarted is returned by accessors that need a running service.
var ErrNotStarted = errors.New("facade: service not started")

// Option customizes a Service.
type Option func(*Service)

// WithConfigFile enables hot reload from path.
func WithConfigFile(path string) Option {
	return func(s *Service) { s.configPath = path }
}

// WithOpener replaces the shared-object opener.
func WithOpener(o pluginmgr.Opener) Option {
	return func(s *Service) { s.opener = o }
}

// WithBuiltin links an intention into the binary instead of loading it.
func WithBuiltin(in api.Intention, ctor pluginmgr.Constructor) Option {
	return func(s *Service) { s.builtins[in] = ctor }
}

// WithRuntimeMetrics registers the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(s *Service) { s.runtimeMetrics = true }
}

// Service is the whole intention service.
type Service struct {
	store          *control.Store
	metrics        *control.Metrics
	probes         *control.DebugProbes
	plugins        *pluginmgr.Manager
	delegator      *ipc.Delegator
	configPath     string
	opener         pluginmgr.Opener
	builtins       map[api.Intention]pluginmgr.Constructor
	runtimeMetrics bool
	events         *dragEvents
	log            zerolog.Logger

	mu      sync.Mutex
	started bool
	sched   *scheduler.Scheduler
	server  *socket.Server
	watcher *control.Watcher
}

var (
	_ api.GracefulShutdown = (*Service)(nil)
	_ api.Debug            = (*control.DebugProbes)(nil)
)

// New wires every component from cfg. Nothing runs until Start.
func New(cfg *control.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("facade: %w", err)
	}
	log.Configure(log.Config{Level: cfg.LogLevel})

	s := &Service{
		store:    control.NewStore(cfg),
		probes:   control.NewDebugProbes(),
		builtins: map[api.Intention]pluginmgr.Constructor{api.IntentionBasic: basic.New},
		events:   &dragEvents{log: log.WithComponent("events")},
		log:      log.WithComponent("facade"),
	}
	for _, o := range opts {
		o(s)
	}
	s.metrics = control.NewMetrics(s.runtimeMetrics)

	pmOpts := pluginmgr.OptionsFromConfig(cfg)
	pmOpts.Opener = s.opener
	pmOpts.Builtins = s.builtins
	pmOpts.Metrics = s.metrics
	pmOpts.Configure = s.configurePlugin
	s.plugins = pluginmgr.New(pmOpts)

	s.delegator = ipc.NewDelegator(ipc.DelegatorOptions{
		Descriptor: cfg.Descriptor,
		Plugins:    s.plugins,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		Metrics:    s.metrics,
	})
	s.store.OnReload(s.applyReload)

	s.probes.RegisterProbe("pluginmgr.loaded", func() any {
		loaded := s.plugins.Loaded()
		names := make([]string, len(loaded))
		for i, in := range loaded {
			names[i] = in.String()
		}
		return names
	})
	return s, nil
}

// Start creates the scheduler, the socket server when configured, and the
// config watcher when a file was given. A second Start is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	cfg := s.store.Snapshot()

	schedOpts := scheduler.OptionsFromConfig(cfg)
	schedOpts.Metrics = s.metrics
	sched, err := scheduler.New(schedOpts)
	if err != nil {
		return fmt.Errorf("facade: scheduler: %w", err)
	}

	var server *socket.Server
	if cfg.SocketPath != "" {
		server, err = socket.Listen(cfg.SocketPath, s.delegator, sched, socket.Options{
			BufferCapacity: cfg.BufferCapacity,
			OnDisconnect:   s.dropCaller,
		})
		if err != nil {
			_ = sched.Close()
			return fmt.Errorf("facade: socket: %w", err)
		}
	}

	var watcher *control.Watcher
	if s.configPath != "" {
		watcher, err = control.NewWatcher(s.configPath, s.store, log.WithComponent("control"))
		if err != nil {
			if server != nil {
				_ = server.Close()
			}
			_ = sched.Close()
			return fmt.Errorf("facade: config watcher: %w", err)
		}
	}

	s.sched, s.server, s.watcher = sched, server, watcher
	s.events.server.Store(server)
	s.probes.RegisterProbe("scheduler.stats", func() any { return sched.Stats() })
	if server != nil {
		s.probes.RegisterProbe("socket.sessions", func() any { return server.Sessions() })
	}
	s.started = true
	s.log.Info().Str("socket", cfg.SocketPath).Msg("service started")
	return nil
}

// Stop shuts the service down: first the edges that feed it work, then the
// scheduler and plugins.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	s.events.server.Store(nil)

	var edges errgroup.Group
	if s.server != nil {
		edges.Go(s.server.Close)
	}
	if s.watcher != nil {
		edges.Go(s.watcher.Close)
	}
	edgeErr := edges.Wait()

	var core errgroup.Group
	core.Go(s.sched.Close)
	core.Go(s.plugins.Close)
	coreErr := core.Wait()

	s.sched, s.server, s.watcher = nil, nil, nil
	s.log.Info().Msg("service stopped")
	return errors.Join(edgeErr, coreErr)
}

// Shutdown implements api.GracefulShutdown.
func (s *Service) Shutdown() error {
	return s.Stop()
}

// Client returns an in-process client proxy that calls the delegator as caller.
func (s *Service) Client(caller api.Caller) *ipc.Client {
	cfg := s.store.Snapshot()
	remote := ipc.NewBinder(s.delegator, caller, cfg.BufferCapacity)
	return ipc.NewClient(remote, ipc.ClientOptions{
		Descriptor:     cfg.Descriptor,
		BufferCapacity: cfg.BufferCapacity,
	})
}

// Dial connects a client proxy to the service socket.
func (s *Service) Dial(ctx context.Context) (*ipc.Client, *socket.Remote, error) {
	cfg := s.store.Snapshot()
	if cfg.SocketPath == "" {
		return nil, nil, fmt.Errorf("facade: no socket_path configured")
	}
	remote, err := socket.Dial(ctx, cfg.SocketPath, cfg.BufferCapacity)
	if err != nil {
		return nil, nil, err
	}
	client := ipc.NewClient(remote, ipc.ClientOptions{
		Descriptor:     cfg.Descriptor,
		BufferCapacity: cfg.BufferCapacity,
	})
	return client, remote, nil
}

// Scheduler returns the running scheduler.
func (s *Service) Scheduler() (*scheduler.Scheduler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.sched, nil
}

// Plugins returns the plugin manager.
func (s *Service) Plugins() *pluginmgr.Manager { return s.plugins }

// Delegator returns the server stub.
func (s *Service) Delegator() *ipc.Delegator { return s.delegator }

// Metrics returns the service collectors.
func (s *Service) Metrics() *control.Metrics { return s.metrics }

// Probes returns the debug probe registry.
func (s *Service) Probes() *control.DebugProbes { return s.probes }

// Config returns the configuration store.
func (s *Service) Config() *control.Store { return s.store }

func (s *Service) applyReload(old, cur *control.Config) {
	if cur.LogLevel != old.LogLevel {
		if err := log.SetLevel(cur.LogLevel); err != nil {
			s.log.Warn().Err(err).Str("level", cur.LogLevel).Msg("log level not applied")
		}
	}
	if cur.RateLimit != old.RateLimit || cur.RateBurst != old.RateBurst {
		s.delegator.SetRateLimit(cur.RateLimit, cur.RateBurst)
	}
	s.log.Info().Msg("configuration applied")
}

// callerScoped is implemented by plugins that keep per-caller state.
type callerScoped interface {
	DropCaller(pid int32) int
}

// dropCaller runs when a socket session closes. Listeners are per process,
// so they stay while the process keeps another session open.
func (s *Service) dropCaller(c api.Caller) {
	if srv := s.events.server.Load(); srv != nil && srv.Connected(c.PID) {
		return
	}
	for _, in := range s.plugins.Loaded() {
		p, release, err := s.plugins.Acquire(in)
		if err != nil {
			continue
		}
		if cs, ok := p.(callerScoped); ok {
			if n := cs.DropCaller(c.PID); n > 0 {
				s.log.Debug().Int32(log.FieldPID, c.PID).Int("watchers", n).Str(log.FieldIntention, in.String()).Msg("dropped listeners of departed caller")
			}
		}
		release()
	}
}
