package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/meshpair/meshpair-go/pkg/directory"
	"github.com/meshpair/meshpair-go/pkg/fault"
	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/log"
	"github.com/meshpair/meshpair-go/pkg/rules"
)

// Bridge errors.
var (
	ErrQueueFull   = fmt.Errorf("%w: pairing queue full", fault.ErrCapacityExceeded)
	ErrInvalidItem = fmt.Errorf("%w: invalid pairing item", fault.ErrInvalidArgument)
)

// Defaults.
const (
	DefaultQueueSize    = 9
	DefaultTickInterval = 100 * time.Millisecond
)

// Kind is the type of a queued item.
type Kind uint8

const (
	// KindCandidate is a device offered for pairing.
	KindCandidate Kind = 1
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCandidate:
		return "CANDIDATE"
	default:
		return "UNKNOWN"
	}
}

// Item is a queued pairing event.
type Item struct {
	Kind       Kind
	DeviceName string
	Address    ident.Address
}

// Candidate returns a candidate item for name at addr.
func Candidate(name string, addr ident.Address) Item {
	return Item{Kind: KindCandidate, DeviceName: name, Address: addr}
}

func (it Item) validate() error {
	if it.Kind != KindCandidate {
		return fmt.Errorf("%w: kind %d", ErrInvalidItem, it.Kind)
	}
	if it.Address.IsZero() {
		return fmt.Errorf("%w: zero address", ErrInvalidItem)
	}
	if _, err := ident.NewName(it.DeviceName); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return nil
}

// PairedHandler is notified once per newly paired device.
type PairedHandler interface {
	OnPaired(slot int, name string, addr ident.Address)
}

// PairedHandlerFunc adapts a function to PairedHandler.
type PairedHandlerFunc func(slot int, name string, addr ident.Address)

// OnPaired calls f.
func (f PairedHandlerFunc) OnPaired(slot int, name string, addr ident.Address) {
	f(slot, name, addr)
}

// Config configures a Bridge.
type Config struct {
	// QueueSize is the queue capacity.
	QueueSize int

	// TickInterval is the worker period used by Run.
	TickInterval time.Duration
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:    DefaultQueueSize,
		TickInterval: DefaultTickInterval,
	}
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	Enqueued  uint64
	Dropped   uint64
	Rejected  uint64
	Paired    uint64
	Refreshed uint64
	Failed    uint64
}

// Bridge moves pairing candidates from callback context into the directory.
type Bridge struct {
	config  Config
	queue   chan Item
	dir     *directory.Directory
	eval    *rules.Evaluator
	handler PairedHandler

	logger *slog.Logger
	events *log.Emitter

	enqueued  atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64
	paired    atomic.Uint64
	refreshed atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithEvents sets the protocol event emitter.
func WithEvents(e *log.Emitter) Option {
	return func(b *Bridge) {
		b.events = e
	}
}

// NewBridge creates a bridge feeding dir. handler may be nil.
func NewBridge(config Config, dir *directory.Directory, eval *rules.Evaluator, handler PairedHandler, opts ...Option) *Bridge {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	b := &Bridge{
		config:  config,
		queue:   make(chan Item, config.QueueSize),
		dir:     dir,
		eval:    eval,
		handler: handler,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue offers item to the worker. It never blocks; a full queue drops
// the item and returns ErrQueueFull. Safe for concurrent producers.
func (b *Bridge) Enqueue(item Item) error {
	if err := item.validate(); err != nil {
		return err
	}
	select {
	case b.queue <- item:
		b.enqueued.Add(1)
		b.events.Queue(item.DeviceName, item.Address.String(), log.QueueEvent{
			Outcome: log.QueueEnqueued,
			Depth:   len(b.queue),
		})
		return nil
	default:
		b.dropped.Add(1)
		b.debug("pairing queue full, candidate dropped", "name", item.DeviceName)
		b.events.Queue(item.DeviceName, item.Address.String(), log.QueueEvent{
			Outcome: log.QueueDropped,
			Depth:   len(b.queue),
		})
		return ErrQueueFull
	}
}

// Len returns the number of queued items.
func (b *Bridge) Len() int {
	return len(b.queue)
}

// Tick processes at most one queued item and reports whether one was
// processed.
func (b *Bridge) Tick() bool {
	var item Item
	select {
	case item = <-b.queue:
	default:
		return false
	}
	b.process(item)
	return true
}

// Run ticks every TickInterval until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(b.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick()
		}
	}
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Enqueued:  b.enqueued.Load(),
		Dropped:   b.dropped.Load(),
		Rejected:  b.rejected.Load(),
		Paired:    b.paired.Load(),
		Refreshed: b.refreshed.Load(),
		Failed:    b.failed.Load(),
	}
}

func (b *Bridge) process(item Item) {
	remote := item.Address.String()

	if !b.eval.Eligible(item.DeviceName) {
		b.rejected.Add(1)
		b.debug("candidate rejected", "name", item.DeviceName)
		b.events.Queue(item.DeviceName, remote, log.QueueEvent{Outcome: log.QueueRejected, Depth: len(b.queue)})
		return
	}

	slot, err := b.dir.Add(item.DeviceName, item.Address)
	switch {
	case err == nil:
		b.paired.Add(1)
		b.info("device paired", "slot", slot, "name", item.DeviceName, "address", remote)
		b.events.Queue(item.DeviceName, remote, log.QueueEvent{Outcome: log.QueuePaired, Depth: len(b.queue), Slot: &slot})
		if b.handler != nil {
			b.handler.OnPaired(slot, item.DeviceName, item.Address)
		}

	case errors.Is(err, directory.ErrAlreadyExists):
		res, err := b.dir.UpdateAddress(slot, item.Address)
		if err != nil {
			b.fail(item, fmt.Errorf("refresh address: %w", err))
			return
		}
		if res == directory.Updated {
			b.refreshed.Add(1)
			b.debug("paired device address refreshed", "slot", slot, "name", item.DeviceName, "address", remote)
			b.events.Queue(item.DeviceName, remote, log.QueueEvent{Outcome: log.QueueRefreshed, Depth: len(b.queue), Slot: &slot})
		}

	default:
		b.fail(item, err)
	}
}

func (b *Bridge) fail(item Item, err error) {
	b.failed.Add(1)
	b.warn("pairing failed", "name", item.DeviceName, "error", err)
	b.events.Queue(item.DeviceName, item.Address.String(), log.QueueEvent{Outcome: log.QueueFailed, Depth: len(b.queue)})
	b.events.Error(log.LayerBridge, err, "pair "+item.DeviceName)
}

func (b *Bridge) info(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

func (b *Bridge) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *Bridge) warn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}
