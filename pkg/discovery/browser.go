package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures the Browser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface. Empty means all.
	Interface string

	// Interval between the starts of two browse rounds.
	Interval time.Duration

	// Window is how long each round collects answers.
	Window time.Duration

	// Logger for operational logging. Nil disables.
	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Interval: DefaultBrowseInterval,
		Window:   DefaultBrowseWindow,
	}
}

// browseFunc streams resolved entries to out until ctx is done.
type browseFunc func(ctx context.Context, out chan<- ServiceEntry) error

// Browser periodically browses for mesh nodes and offers them to a Sink.
type Browser struct {
	config  BrowserConfig
	sink    Sink
	browse  browseFunc
	backoff *Backoff

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBrowser creates a browser offering candidates to sink.
func NewBrowser(config BrowserConfig, sink Sink) *Browser {
	if config.Interval <= 0 {
		config.Interval = DefaultBrowseInterval
	}
	if config.Window <= 0 || config.Window > config.Interval {
		config.Window = min(DefaultBrowseWindow, config.Interval)
	}
	b := &Browser{
		config:  config,
		sink:    sink,
		backoff: NewBackoff(config.Interval),
	}
	b.browse = b.zeroconfBrowse
	return b
}

// Start runs browse rounds in the background until Stop or ctx is done.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return fmt.Errorf("browser already running")
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		b.run(ctx)
	}(b.done)
	return nil
}

// Stop ends browsing and waits for the current round to finish.
func (b *Browser) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (b *Browser) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		wait := b.config.Interval
		if _, err := b.Round(ctx); err != nil {
			wait = b.backoff.Next()
			b.warn("browse failed", "error", err, "retry", wait, "failures", b.backoff.Failures())
		} else {
			b.backoff.Reset()
			wait -= time.Since(start)
		}
		timer.Reset(max(wait, 0))
	}
}

// Round performs one browse round and returns the number of candidates
// offered to the sink. A browse failure is returned after the candidates
// found so far have been offered.
func (b *Browser) Round(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Window)
	defer cancel()

	entries := make(chan ServiceEntry)
	errc := make(chan error, 1)
	go func() {
		errc <- b.browse(ctx, entries)
	}()

	seen := make(map[string]bool)
	offered := 0
	for {
		select {
		case entry := <-entries:
			if seen[entry.Instance] {
				continue
			}
			c, err := entry.ToCandidate()
			if err != nil {
				b.debug("skipping service entry", "error", err)
				continue
			}
			seen[entry.Instance] = true
			if err := b.sink.Candidate(c.Name, c.Address); err != nil {
				b.debug("candidate not accepted", "name", c.Name, "error", err)
				continue
			}
			offered++

		case err := <-errc:
			if err != nil && ctx.Err() == nil {
				return offered, err
			}
			return offered, nil
		}
	}
}

func (b *Browser) zeroconfBrowse(ctx context.Context, out chan<- ServiceEntry) error {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err != nil {
			return fmt.Errorf("interface %q: %w", b.config.Interface, err)
		}
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
	}

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	errc := make(chan error, 1)
	go func() {
		errc <- zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			select {
			case out <- fromZeroconf(e):
			case <-ctx.Done():
			}
		case _, ok := <-removed:
			// Departures do not unpair; the directory keeps the last address.
			if !ok {
				removed = nil
			}
		case <-ctx.Done():
			return nil
		case err := <-errc:
			// Browse may return as soon as the query loop is running.
			if err != nil {
				return err
			}
			errc = nil
		}
	}
}

func fromZeroconf(e *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]net.IP, 0, len(e.AddrIPv6)+len(e.AddrIPv4))
	addrs = append(addrs, e.AddrIPv6...)
	addrs = append(addrs, e.AddrIPv4...)
	return ServiceEntry{
		Instance: e.Instance,
		Host:     e.HostName,
		Port:     e.Port,
		Text:     e.Text,
		Addrs:    addrs,
	}
}

func (b *Browser) debug(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, args...)
	}
}

func (b *Browser) warn(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Warn(msg, args...)
	}
}
