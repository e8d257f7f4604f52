package control

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_DefaultsAndOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
descriptor: test.IIntention
buffer_capacity: 512
blocking_keepalive: 250ms
plugin_libs:
  drag: libdrag_test.so
rate_limit: 5
`))
	require.NoError(t, err)
	assert.Equal(t, "test.IIntention", cfg.Descriptor)
	assert.Equal(t, 512, cfg.BufferCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.BlockingKeepAlive)
	assert.Equal(t, map[string]string{"drag": "libdrag_test.so"}, cfg.PluginLibs)
	assert.Equal(t, 5.0, cfg.RateLimit)
	assert.Equal(t, 128, cfg.MaxEvents, "untouched fields keep defaults")
	assert.Equal(t, -1, cfg.DriverCPU)
}

func TestParseConfig_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig_Rejects(t *testing.T) {
	_, err := ParseConfig([]byte("no_such_key: 1\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("buffer_capacity: 4\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("plugin_libs:\n  teleport: libx.so\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("descriptor: \"\"\n"))
	assert.Error(t, err)
}

func TestStore_UpdateNotifies(t *testing.T) {
	s := NewStore(nil)
	var calls atomic.Int32
	s.OnReload(func(old, cur *Config) {
		assert.Equal(t, "info", old.LogLevel)
		assert.Equal(t, "debug", cur.LogLevel)
		calls.Add(1)
	})

	next := s.Snapshot()
	next.LogLevel = "debug"
	require.NoError(t, s.Update(next))
	assert.EqualValues(t, 1, calls.Load())

	bad := s.Snapshot()
	bad.Descriptor = ""
	assert.Error(t, s.Update(bad))
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "debug", s.Snapshot().LogLevel)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore(nil)
	snap := s.Snapshot()
	snap.PluginLibs["drag"] = "mutated.so"
	assert.Equal(t, "libintention_drag.so", s.Snapshot().PluginLibs["drag"])
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o600))

	store := NewStore(nil)
	w, err := NewWatcher(path, store, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))
	assert.Eventually(t, func() bool {
		return store.Snapshot().LogLevel == "warn"
	}, 2*time.Second, 10*time.Millisecond)

	// invalid content leaves the previous snapshot in place
	tmp := filepath.Join(dir, "service.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("bogus: [\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "warn", store.Snapshot().LogLevel)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(false)
	m.ObserveRequest("drag", "start", "ok")
	m.ObserveRequest("drag", "start", "ok")
	m.ObservePluginLoad("drag", "ok")
	m.SetHandlers(3)
	m.ObserveTask("async", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("drag", "start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pluginLoads.WithLabelValues("drag", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.handlers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("async", "ok")))

	var nilMetrics *Metrics
	nilMetrics.ObserveRequest("a", "b", "c")
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("b", func() any { return 2 })
	dp.RegisterProbe("a", func() any { return "one" })
	assert.Equal(t, []string{"a", "b"}, dp.Names())
	assert.Equal(t, map[string]any{"a": "one", "b": 2}, dp.DumpState())
}
