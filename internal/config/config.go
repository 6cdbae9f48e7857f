// Package config loads the meshpair-node configuration.
//
// Values are resolved in three layers: built-in defaults, then the YAML
// file, then MESHPAIR_* environment variables.
//
//	node:
//	  name: "kitchen_2_0011223344556677"
//	  allow: ["button", "sensor"]
//	transport:
//	  listen: "[::]:5683"
//	discovery:
//	  enabled: true
//	  interval: 30s
//	storage:
//	  path: "./data/directory.bin"
//	logging:
//	  level: "info"
//	  format: "text"
//	  output: "stderr"
//	  events: "./data/meshpair.mlog"
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meshpair/meshpair-go/pkg/directory"
	"github.com/meshpair/meshpair-go/pkg/discovery"
	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/node"
	"github.com/meshpair/meshpair-go/pkg/pairing"
	"github.com/meshpair/meshpair-go/pkg/rules"
	"github.com/meshpair/meshpair-go/pkg/subscription"
	"github.com/meshpair/meshpair-go/pkg/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MESHPAIR_"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete node configuration.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Transport TransportConfig `yaml:"transport"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NodeConfig holds the node identity and table capacities.
type NodeConfig struct {
	// Name is the node's device name (<group>_<type>_<hwaddr>).
	Name string `yaml:"name"`

	// Allow lists the device types this node pairs with: "all", "none",
	// or type names/tags.
	Allow []string `yaml:"allow"`

	// Resources overrides the resource table.
	Resources []ResourceConfig `yaml:"resources,omitempty"`

	MaxDevices       int           `yaml:"max_devices"`
	MaxResources     int           `yaml:"max_resources"`
	MaxSubscribers   int           `yaml:"max_subscribers"`
	MaxURIsPerDevice int           `yaml:"max_uris_per_device"`
	MaxPayloadSize   int           `yaml:"max_payload_size"`
	QueueSize        int           `yaml:"queue_size"`
	TickInterval     time.Duration `yaml:"tick_interval"`
}

// ResourceConfig is one resource table entry.
type ResourceConfig struct {
	Index uint8  `yaml:"index"`
	Path  string `yaml:"path"`
}

// TransportConfig holds UDP settings.
type TransportConfig struct {
	Listen         string        `yaml:"listen"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DiscoveryConfig holds mDNS settings.
type DiscoveryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Advertise bool          `yaml:"advertise"`
	Interface string        `yaml:"interface"`
	Interval  time.Duration `yaml:"interval"`
	Window    time.Duration `yaml:"window"`
	TTL       time.Duration `yaml:"ttl"`
}

// StorageConfig holds the directory persistence settings.
type StorageConfig struct {
	// Path of the directory file. Empty keeps the directory in memory.
	Path string `yaml:"path"`
}

// LoggingConfig holds operational and protocol logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`

	// Events is the protocol event log file. Empty disables it.
	Events string `yaml:"events"`

	// EventsToLog mirrors protocol events into the operational log at debug.
	EventsToLog bool `yaml:"events_to_log"`
}

// Default returns a configuration with every default applied. The node name
// is left empty and must be configured.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Allow:            []string{"none"},
			MaxDevices:       directory.DefaultMaxDevices,
			MaxResources:     directory.DefaultMaxResources,
			MaxSubscribers:   subscription.DefaultMaxDevices,
			MaxURIsPerDevice: subscription.DefaultMaxURIsPerDevice,
			MaxPayloadSize:   subscription.DefaultMaxPayloadSize,
			QueueSize:        pairing.DefaultQueueSize,
			TickInterval:     pairing.DefaultTickInterval,
		},
		Transport: TransportConfig{
			Listen:         fmt.Sprintf("[::]:%d", transport.DefaultPort),
			Port:           transport.DefaultPort,
			RequestTimeout: transport.DefaultRequestTimeout,
		},
		Discovery: DiscoveryConfig{
			Enabled:   true,
			Advertise: true,
			Interval:  discovery.DefaultBrowseInterval,
			Window:    discovery.DefaultBrowseWindow,
			TTL:       discovery.DefaultTTL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that layer further
// overrides (command line flags) before validating.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies MESHPAIR_* overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, key, v)
			}
			*dst = n
		}
		return nil
	}
	flag := func(key string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, key, v)
			}
			*dst = b
		}
		return nil
	}

	str("NODE_NAME", &c.Node.Name)
	if v, ok := lookup(EnvPrefix + "NODE_ALLOW"); ok && v != "" {
		c.Node.Allow = strings.Split(v, ",")
	}
	str("TRANSPORT_LISTEN", &c.Transport.Listen)
	str("DISCOVERY_INTERFACE", &c.Discovery.Interface)
	str("STORAGE_PATH", &c.Storage.Path)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_OUTPUT", &c.Logging.Output)
	str("LOG_EVENTS", &c.Logging.Events)

	if err := num("TRANSPORT_PORT", &c.Transport.Port); err != nil {
		return err
	}
	if err := flag("DISCOVERY_ENABLED", &c.Discovery.Enabled); err != nil {
		return err
	}
	return flag("DISCOVERY_ADVERTISE", &c.Discovery.Advertise)
}

// Validate checks the configuration for values the node cannot run with.
func (c *Config) Validate() error {
	if c.Node.Name == "" {
		return fmt.Errorf("%w: node.name is required", ErrInvalid)
	}
	if _, err := ident.ParseName(c.Node.Name); err != nil {
		return fmt.Errorf("%w: node.name: %v", ErrInvalid, err)
	}
	if _, err := ident.NewName(c.Node.Name); err != nil {
		return fmt.Errorf("%w: node.name: %v", ErrInvalid, err)
	}
	if _, err := rules.ParseAllowList(c.Node.Allow); err != nil {
		return fmt.Errorf("%w: node.allow: %v", ErrInvalid, err)
	}

	positive := map[string]int{
		"node.max_devices":         c.Node.MaxDevices,
		"node.max_resources":       c.Node.MaxResources,
		"node.max_subscribers":     c.Node.MaxSubscribers,
		"node.max_uris_per_device": c.Node.MaxURIsPerDevice,
		"node.max_payload_size":    c.Node.MaxPayloadSize,
		"node.queue_size":          c.Node.QueueSize,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, key, v)
		}
	}
	if c.Node.TickInterval <= 0 {
		return fmt.Errorf("%w: node.tick_interval must be positive", ErrInvalid)
	}
	for _, r := range c.Node.Resources {
		if r.Index == 0 || r.Path == "" {
			return fmt.Errorf("%w: node.resources: index %d path %q", ErrInvalid, r.Index, r.Path)
		}
	}

	if c.Transport.Port < 1 || c.Transport.Port > 65535 {
		return fmt.Errorf("%w: transport.port %d out of range", ErrInvalid, c.Transport.Port)
	}
	if c.Transport.Listen == "" {
		return fmt.Errorf("%w: transport.listen is required", ErrInvalid)
	}

	if c.Discovery.Enabled && c.Discovery.Interval <= 0 {
		return fmt.Errorf("%w: discovery.interval must be positive", ErrInvalid)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// NodeConfig builds the node configuration. The store, logger and event
// emitter are wired by the caller.
func (c *Config) NodeConfig() (node.Config, error) {
	allow, err := rules.ParseAllowList(c.Node.Allow)
	if err != nil {
		return node.Config{}, err
	}

	nc := node.DefaultConfig()
	nc.Name = c.Node.Name
	nc.AllowList = allow
	nc.Directory = directory.Config{
		MaxDevices:   c.Node.MaxDevices,
		MaxResources: c.Node.MaxResources,
	}
	nc.Subscription = subscription.Config{
		MaxDevices:       c.Node.MaxSubscribers,
		MaxURIsPerDevice: c.Node.MaxURIsPerDevice,
		MaxPayloadSize:   c.Node.MaxPayloadSize,
	}
	nc.Bridge = pairing.Config{
		QueueSize:    c.Node.QueueSize,
		TickInterval: c.Node.TickInterval,
	}
	if len(c.Node.Resources) > 0 {
		nc.Resources = make([]node.Resource, 0, len(c.Node.Resources))
		for _, r := range c.Node.Resources {
			nc.Resources = append(nc.Resources, node.Resource{Index: ident.ResourceIndex(r.Index), Path: r.Path})
		}
	}
	return nc, nil
}

// BrowserConfig builds the discovery browser configuration.
func (c *Config) BrowserConfig() discovery.BrowserConfig {
	bc := discovery.DefaultBrowserConfig()
	bc.Interface = c.Discovery.Interface
	bc.Interval = c.Discovery.Interval
	if c.Discovery.Window > 0 {
		bc.Window = c.Discovery.Window
	}
	return bc
}

// AdvertiserConfig builds the discovery advertiser configuration.
func (c *Config) AdvertiserConfig() discovery.AdvertiserConfig {
	ac := discovery.DefaultAdvertiserConfig()
	ac.Interface = c.Discovery.Interface
	ac.Port = c.Transport.Port
	if c.Discovery.TTL > 0 {
		ac.TTL = c.Discovery.TTL
	}
	return ac
}
