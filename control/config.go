// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Service configuration: defaults, YAML loading and validation.

package control

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
)

// DefaultDescriptor is the interface token both sides write at the front of a request.
const DefaultDescriptor = "hioload.msdp.IIntention"

// Config holds the parameters of one service instance.
type Config struct {
	Descriptor        string            `yaml:"descriptor"`         // interface token
	BufferCapacity    int               `yaml:"buffer_capacity"`    // max bytes per message buffer
	PluginDir         string            `yaml:"plugin_dir"`         // directory of intention shared objects
	PluginLibs        map[string]string `yaml:"plugin_libs"`        // intention name -> file in PluginDir
	Workers           int               `yaml:"workers"`            // lightweight task workers, 0 = NumCPU
	BlockingWorkers   int               `yaml:"blocking_workers"`   // max blocking-pool goroutines
	BlockingKeepAlive time.Duration     `yaml:"blocking_keepalive"` // idle time before a blocking worker retires
	MaxEvents         int               `yaml:"max_events"`         // events fetched per epoll wait
	DriverCPU         int               `yaml:"driver_cpu"`         // CPU to pin the driver thread to, -1 = none
	SocketPath        string            `yaml:"socket_path"`        // unix socket to serve on, empty = disabled
	RateLimit         float64           `yaml:"rate_limit"`         // requests per second, 0 = unlimited
	RateBurst         int               `yaml:"rate_burst"`
	LogLevel          string            `yaml:"log_level"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Descriptor:     DefaultDescriptor,
		BufferCapacity: buffer.DefaultCapacity,
		PluginDir:      "/system/lib64",
		PluginLibs: map[string]string{
			api.IntentionDrag.String():         "libintention_drag.so",
			api.IntentionCoordination.String(): "libintention_coordination.so",
		},
		Workers:           0,
		BlockingWorkers:   64,
		BlockingKeepAlive: 10 * time.Second,
		MaxEvents:         128,
		DriverCPU:         -1,
		RateBurst:         32,
		LogLevel:          "info",
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Descriptor == "" {
		errs = append(errs, errors.New("descriptor must not be empty"))
	}
	if c.BufferCapacity <= protocol.PacketHeaderSize {
		errs = append(errs, fmt.Errorf("buffer_capacity %d must exceed the packet header", c.BufferCapacity))
	}
	for name := range c.PluginLibs {
		if _, ok := api.ParseIntention(name); !ok {
			errs = append(errs, fmt.Errorf("plugin_libs: unknown intention %q", name))
		}
	}
	if c.Workers < 0 || c.BlockingWorkers < 0 || c.MaxEvents < 0 {
		errs = append(errs, errors.New("worker and event counts must not be negative"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.PluginLibs = make(map[string]string, len(c.PluginLibs))
	for k, v := range c.PluginLibs {
		out.PluginLibs[k] = v
	}
	return &out
}

// ParseConfig decodes YAML on top of the defaults. Unknown keys are errors.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}
