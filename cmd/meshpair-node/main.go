// Command meshpair-node runs a mesh node: it discovers peers over mDNS,
// pairs with the eligible ones, serves Observe subscriptions on its
// resources and pushes notifications to its observers.
//
// Usage:
//
//	meshpair-node [flags]
//
// Flags:
//
//	-config string        Configuration file path
//	-name string          Device name <group>_<type>_<hwaddr> (overrides config)
//	-allow string         Comma separated device types to pair with (overrides config)
//	-listen string        UDP listen address (overrides config)
//	-store string         Directory persistence file (overrides config)
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Protocol event log file (.mlog)
//	-no-discovery         Disable mDNS browsing and advertising
//	-interactive          Start the interactive console
//
// Examples:
//
//	# Run a light that pairs with buttons of the kitchen group
//	meshpair-node -name kitchen_2_0011223344556677 -allow button
//
//	# Run from a config file with the console attached
//	meshpair-node -config /etc/meshpair/node.yaml -interactive
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/meshpair/meshpair-go/cmd/meshpair-node/interactive"
	"github.com/meshpair/meshpair-go/internal/config"
	"github.com/meshpair/meshpair-go/internal/logging"
	"github.com/meshpair/meshpair-go/pkg/discovery"
	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/node"
	"github.com/meshpair/meshpair-go/pkg/persistence"
	"github.com/meshpair/meshpair-go/pkg/transport"
)

// Flags holds the command line overrides.
type Flags struct {
	ConfigFile  string
	Name        string
	Allow       string
	Listen      string
	Store       string
	LogLevel    string
	ProtocolLog string
	NoDiscovery bool
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.Name, "name", "", "Device name <group>_<type>_<hwaddr> (overrides config)")
	flag.StringVar(&flags.Allow, "allow", "", "Comma separated device types to pair with (overrides config)")
	flag.StringVar(&flags.Listen, "listen", "", "UDP listen address (overrides config)")
	flag.StringVar(&flags.Store, "store", "", "Directory persistence file (overrides config)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Protocol event log file (.mlog)")
	flag.BoolVar(&flags.NoDiscovery, "no-discovery", false, "Disable mDNS browsing and advertising")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive console")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the flags over the file and environment configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Read(flags.ConfigFile)
	if err != nil {
		return nil, err
	}

	if flags.Name != "" {
		cfg.Node.Name = flags.Name
	}
	if flags.Allow != "" {
		cfg.Node.Allow = strings.Split(flags.Allow, ",")
	}
	if flags.Listen != "" {
		cfg.Transport.Listen = flags.Listen
	}
	if flags.Store != "" {
		cfg.Storage.Path = flags.Store
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	if flags.ProtocolLog != "" {
		cfg.Logging.Events = flags.ProtocolLog
	}
	if flags.NoDiscovery {
		cfg.Discovery.Enabled = false
		cfg.Discovery.Advertise = false
	}
	return cfg, cfg.Validate()
}

func run(cfg *config.Config) error {
	app := &application{out: logging.Output(cfg.Logging)}
	logger := logging.New(cfg.Logging, app)

	events, closeEvents, err := logging.Events(cfg.Logging, logger, cfg.Node.Name)
	if err != nil {
		return fmt.Errorf("protocol log: %w", err)
	}
	defer closeEvents()
	if events != nil {
		logger.Info("protocol logging enabled", "file", cfg.Logging.Events, "session", events.SessionID())
	}

	nc, err := cfg.NodeConfig()
	if err != nil {
		return err
	}
	nc.Logger = logger.With("component", "node")
	nc.Events = events
	if cfg.Storage.Path != "" {
		nc.Store = persistence.NewFileStore(cfg.Storage.Path, nc.Directory.MaxDevices)
	}

	udp := transport.NewUDP(transport.UDPConfig{
		ListenAddr:     cfg.Transport.Listen,
		Port:           cfg.Transport.Port,
		LocalName:      cfg.Node.Name,
		RequestTimeout: cfg.Transport.RequestTimeout,
		Logger:         logger.With("component", "transport"),
		Events:         events,
	})

	app.logger = logger
	n, err := node.New(nc, udp, app)
	if err != nil {
		return err
	}
	udp.SetHandler(n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := udp.Start(ctx); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer udp.Stop()

	if err := n.Start(ctx); err != nil {
		return err
	}
	defer n.Stop()

	logger.Info("node running", "name", cfg.Node.Name, "listen", udp.LocalAddr(), "allow", nc.AllowList.String())

	if cfg.Discovery.Enabled {
		bc := cfg.BrowserConfig()
		bc.Logger = logger.With("component", "discovery")
		browser := discovery.NewBrowser(bc, n)
		if err := browser.Start(ctx); err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		defer browser.Stop()
	}
	if cfg.Discovery.Advertise {
		adv := discovery.NewAdvertiser(cfg.AdvertiserConfig())
		if err := adv.Advertise(n.Name()); err != nil {
			logger.Warn("advertising failed", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	if flags.Interactive {
		console, err := interactive.New(n)
		if err != nil {
			return err
		}
		app.setOutput(console.Stdout())
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	return nil
}

// application receives the node's upcalls and owns the log output so the
// console can redirect it.
type application struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

func (a *application) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Write(p)
}

func (a *application) setOutput(w io.Writer) {
	a.mu.Lock()
	a.out = w
	a.mu.Unlock()
}

func (a *application) OnPaired(slot int, name string, addr ident.Address) {
	if a.logger != nil {
		a.logger.Info("paired", "slot", slot, "name", name, "address", addr)
	}
}

func (a *application) OnResourceStateChanged(token ident.Token, payload []byte) {
	if a.logger != nil {
		a.logger.Info("resource state changed", "token", token, "payload", fmt.Sprintf("%x", payload))
	}
}

var _ node.Application = (*application)(nil)
