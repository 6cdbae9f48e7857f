package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/node"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshpair.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
node:
  name: "kitchen_2_0011223344556677"
  allow: ["button", "4"]
  queue_size: 5
  tick_interval: 250ms
  resources:
    - index: 1
      path: "onoff"
    - index: 7
      path: "scene"
transport:
  listen: "127.0.0.1:6000"
  port: 6000
discovery:
  enabled: false
storage:
  path: "/tmp/dir.bin"
logging:
  level: debug
  format: json
  events: "/tmp/meshpair.mlog"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kitchen_2_0011223344556677", cfg.Node.Name)
	assert.Equal(t, []string{"button", "4"}, cfg.Node.Allow)
	assert.Equal(t, 5, cfg.Node.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Node.TickInterval)
	assert.Equal(t, "127.0.0.1:6000", cfg.Transport.Listen)
	assert.Equal(t, 6000, cfg.Transport.Port)
	assert.False(t, cfg.Discovery.Enabled)
	assert.Equal(t, "/tmp/dir.bin", cfg.Storage.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/meshpair.mlog", cfg.Logging.Events)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Node.MaxDevices)
	assert.Equal(t, 20, cfg.Node.MaxSubscribers)
	assert.Equal(t, 64, cfg.Node.MaxPayloadSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/meshpair.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "node: [yaml: content")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadValidationFailure(t *testing.T) {
	path := writeConfig(t, `
node:
  name: "not-a-device-name"
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Node.Name = "kitchen_2_0011223344556677"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Node.Name = "" }},
		{"malformed name", func(c *Config) { c.Node.Name = "kitchen" }},
		{"name too long", func(c *Config) { c.Node.Name = "a_very_long_group_2_0011223344556677" }},
		{"unknown allow type", func(c *Config) { c.Node.Allow = []string{"toaster"} }},
		{"zero devices", func(c *Config) { c.Node.MaxDevices = 0 }},
		{"zero queue", func(c *Config) { c.Node.QueueSize = 0 }},
		{"zero tick", func(c *Config) { c.Node.TickInterval = 0 }},
		{"reserved resource", func(c *Config) { c.Node.Resources = []ResourceConfig{{Index: 0, Path: "x"}} }},
		{"port out of range", func(c *Config) { c.Transport.Port = 70000 }},
		{"empty listen", func(c *Config) { c.Transport.Listen = "" }},
		{"zero browse interval", func(c *Config) { c.Discovery.Interval = 0 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"MESHPAIR_NODE_NAME":           "hall_3_aabbccddeeff0011",
		"MESHPAIR_NODE_ALLOW":          "light,plug",
		"MESHPAIR_TRANSPORT_PORT":      "7000",
		"MESHPAIR_STORAGE_PATH":        "/var/lib/meshpair/dir.bin",
		"MESHPAIR_DISCOVERY_ENABLED":   "false",
		"MESHPAIR_LOG_LEVEL":           "warn",
		"MESHPAIR_DISCOVERY_INTERFACE": "eth0",
	}))
	require.NoError(t, err)

	assert.Equal(t, "hall_3_aabbccddeeff0011", cfg.Node.Name)
	assert.Equal(t, []string{"light", "plug"}, cfg.Node.Allow)
	assert.Equal(t, 7000, cfg.Transport.Port)
	assert.Equal(t, "/var/lib/meshpair/dir.bin", cfg.Storage.Path)
	assert.False(t, cfg.Discovery.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "eth0", cfg.Discovery.Interface)
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{"MESHPAIR_TRANSPORT_PORT": "abc"}))
	assert.ErrorIs(t, err, ErrInvalid)

	cfg = Default()
	err = cfg.ApplyEnv(envMap(map[string]string{"MESHPAIR_DISCOVERY_ENABLED": "maybe"}))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestApplyEnvNoOverrides(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(noEnv))
	assert.Equal(t, Default(), cfg)
}

func TestNodeConfig(t *testing.T) {
	cfg := Default()
	cfg.Node.Name = "kitchen_2_0011223344556677"
	cfg.Node.Allow = []string{"button"}
	cfg.Node.MaxDevices = 4
	cfg.Node.Resources = []ResourceConfig{{Index: 9, Path: "scene"}}

	nc, err := cfg.NodeConfig()
	require.NoError(t, err)

	assert.Equal(t, cfg.Node.Name, nc.Name)
	assert.True(t, nc.AllowList.Allows(ident.TypeButton))
	assert.False(t, nc.AllowList.Allows(ident.TypeLight))
	assert.Equal(t, 4, nc.Directory.MaxDevices)
	assert.Equal(t, cfg.Node.QueueSize, nc.Bridge.QueueSize)
	assert.Equal(t, []node.Resource{{Index: 9, Path: "scene"}}, nc.Resources)

	// The built configuration is accepted by the node.
	n, err := node.New(nc, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Node.Name, n.Name().String())
}

func TestNodeConfigDefaultResources(t *testing.T) {
	cfg := Default()
	cfg.Node.Name = "kitchen_2_0011223344556677"

	nc, err := cfg.NodeConfig()
	require.NoError(t, err)
	assert.Equal(t, node.DefaultResources(), nc.Resources)
}

func TestDiscoveryConfigs(t *testing.T) {
	cfg := Default()
	cfg.Discovery.Interface = "wlan0"
	cfg.Discovery.Interval = time.Minute
	cfg.Transport.Port = 6001

	bc := cfg.BrowserConfig()
	assert.Equal(t, "wlan0", bc.Interface)
	assert.Equal(t, time.Minute, bc.Interval)

	ac := cfg.AdvertiserConfig()
	assert.Equal(t, "wlan0", ac.Interface)
	assert.Equal(t, 6001, ac.Port)
}
