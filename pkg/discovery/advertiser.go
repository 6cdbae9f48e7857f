package discovery

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

// AdvertiserConfig configures the Advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface. Empty means all.
	Interface string

	// Port is the advertised UDP port (default 5683).
	Port int

	// TTL is the DNS record TTL (default 120s).
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Port: DefaultPort,
		TTL:  DefaultTTL,
	}
}

// Advertiser registers this node's name as a _meshpair._udp instance.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
	name   string
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	return &Advertiser{config: config}
}

// Advertise starts advertising name, replacing any earlier advertisement.
func (a *Advertiser) Advertise(name ident.Name) error {
	txt, err := EncodeTXT(name)
	if err != nil {
		return fmt.Errorf("advertise %q: %w", name, err)
	}

	var ifaces []net.Interface
	if a.config.Interface != "" {
		iface, err := net.InterfaceByName(a.config.Interface)
		if err != nil {
			return fmt.Errorf("interface %q: %w", a.config.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(
		name.String(),
		ServiceType,
		Domain,
		a.config.Port,
		TXTRecordsToStrings(txt),
		ifaces,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	a.server = server
	a.name = name.String()
	return nil
}

// Advertised returns the advertised instance name, or "" if none.
func (a *Advertiser) Advertised() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.name = ""
	}
}
