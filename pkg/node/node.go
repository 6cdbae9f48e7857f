package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meshpair/meshpair-go/pkg/directory"
	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/log"
	"github.com/meshpair/meshpair-go/pkg/pairing"
	"github.com/meshpair/meshpair-go/pkg/rules"
	"github.com/meshpair/meshpair-go/pkg/subscription"
	"github.com/meshpair/meshpair-go/pkg/transport"
)

// Application receives the node's upcalls. Both methods are called from
// internal goroutines and must not block.
type Application interface {
	// OnPaired is called once per newly paired device.
	OnPaired(slot int, name string, addr ident.Address)

	// OnResourceStateChanged is called once per inbound notification for
	// an observation this node holds.
	OnResourceStateChanged(token ident.Token, payload []byte)
}

// Node is a mesh node.
type Node struct {
	config    Config
	name      ident.Name
	resources resourceTable

	tr  transport.Transport
	app Application

	dir    *directory.Directory
	reg    *subscription.Registry
	obs    *subscription.Observations
	bridge *pairing.Bridge

	logger *slog.Logger
	events *log.Emitter

	mu     sync.Mutex
	state  map[ident.ResourceIndex][]byte
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a node. tr may be nil for a node that only pairs; app may be
// nil to ignore upcalls.
func New(config Config, tr transport.Transport, app Application) (*Node, error) {
	name, err := ident.NewName(config.Name)
	if err != nil {
		return nil, fmt.Errorf("node name: %w", err)
	}
	eval, err := rules.NewEvaluator(name, config.AllowList)
	if err != nil {
		return nil, err
	}
	if config.Resources == nil {
		config.Resources = DefaultResources()
	}
	resources, err := newResourceTable(config.Resources)
	if err != nil {
		return nil, err
	}

	n := &Node{
		config:    config,
		name:      name,
		resources: resources,
		tr:        tr,
		app:       app,
		logger:    config.Logger,
		events:    config.Events,
		state:     make(map[ident.ResourceIndex][]byte),
	}

	dirOpts := []directory.Option{directory.WithLogger(config.Logger)}
	if config.Store != nil {
		dirOpts = append(dirOpts, directory.WithStore(config.Store))
	}
	n.dir = directory.New(config.Directory, dirOpts...)

	var sender transport.Sender
	if tr != nil {
		sender = tr
	}
	n.reg = subscription.NewRegistry(config.Subscription, sender, subscription.WithLogger(config.Logger))
	n.obs = subscription.NewObservations(config.Subscription.MaxDevices*config.Subscription.MaxURIsPerDevice, n, config.Logger)

	n.bridge = pairing.NewBridge(config.Bridge, n.dir, eval, pairing.PairedHandlerFunc(n.onPaired),
		pairing.WithLogger(config.Logger),
		pairing.WithEvents(config.Events),
	)
	return n, nil
}

// Start restores the directory and runs the pairing worker until Stop or
// ctx is done. A corrupt store is logged and the node starts unpaired.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		return ErrAlreadyRunning
	}

	if err := n.dir.Load(); err != nil {
		n.warn("directory not restored", "error", err)
		n.events.Error(log.LayerTable, err, "restore directory")
	} else if n.config.Store != nil {
		n.events.Table("", log.TableEvent{Table: log.TableDirectory, Action: log.ActionRestore, Slot: -1,
			Detail: fmt.Sprintf("%d devices", n.dir.Count())})
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		n.bridge.Run(ctx)
	}(n.done)

	n.info("node started", "name", n.name.String())
	return nil
}

// Stop stops the pairing worker.
func (n *Node) Stop() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	n.info("node stopped")
}

// Name returns the node's device name.
func (n *Node) Name() ident.Name { return n.name }

// Directory returns the pairing directory.
func (n *Node) Directory() *directory.Directory { return n.dir }

// Registry returns the subscription registry.
func (n *Node) Registry() *subscription.Registry { return n.reg }

// Observations returns the table of observations this node holds.
func (n *Node) Observations() *subscription.Observations { return n.obs }

// Bridge returns the pairing bridge.
func (n *Node) Bridge() *pairing.Bridge { return n.bridge }

// Resources returns the resource table.
func (n *Node) Resources() []Resource {
	return append([]Resource(nil), n.config.Resources...)
}

// Candidate offers a discovered device for pairing. It never blocks.
func (n *Node) Candidate(name string, addr ident.Address) error {
	return n.bridge.Enqueue(pairing.Candidate(name, addr))
}

// Notify records payload as the state of resource and pushes it to every
// observer. It returns the number of observers notified.
func (n *Node) Notify(resource ident.ResourceIndex, payload []byte) (int, error) {
	if _, ok := n.resources.path(resource); !ok {
		return 0, ErrUnknownResource
	}
	count, err := n.reg.Notify(resource, payload)
	if err != nil {
		return 0, err
	}

	n.mu.Lock()
	n.state[resource] = append([]byte(nil), payload...)
	n.mu.Unlock()
	return count, nil
}

// State returns the last payload notified for resource.
func (n *Node) State(resource ident.ResourceIndex) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, ok := n.state[resource]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), p...), true
}

// Unpair removes a device from the directory, drops its subscriptions and
// cancels the observations this node holds on it.
func (n *Node) Unpair(name string) error {
	entry, err := n.dir.Get(name)
	if err != nil {
		return err
	}
	if _, err := n.dir.Delete(name); err != nil {
		return err
	}
	n.events.Table(name, log.TableEvent{Table: log.TableDirectory, Action: log.ActionDelete, Slot: entry.Slot})

	if err := n.reg.UnsubscribeAll(name); err == nil {
		n.events.Table(name, log.TableEvent{Table: log.TableRegistry, Action: log.ActionDelete, Slot: -1})
	}

	for _, o := range n.obs.All() {
		if o.DeviceName != name {
			continue
		}
		if n.tr != nil && !entry.Address.IsZero() {
			if err := n.tr.SendCancel(entry.Address, o.Token); err != nil {
				n.debug("cancel on unpair failed", "name", name, "token", o.Token, "error", err)
			}
		}
		_ = n.obs.Forget(o.Token)
		n.events.Table(name, log.TableEvent{Table: log.TableObservations, Action: log.ActionDelete, Slot: -1, Token: o.Token.String()})
	}
	return nil
}

// FactoryReset clears the directory (including its store), the
// subscription registry, the observation table and the recorded state.
func (n *Node) FactoryReset() {
	n.dir.DeleteAll()
	n.reg.DeleteAll()
	n.obs.Clear()

	n.mu.Lock()
	n.state = make(map[ident.ResourceIndex][]byte)
	n.mu.Unlock()

	for _, t := range []log.Table{log.TableDirectory, log.TableRegistry, log.TableObservations} {
		n.events.Table("", log.TableEvent{Table: t, Action: log.ActionClear, Slot: -1})
	}
	n.info("factory reset")
}

// onPaired is the bridge's PairedHandler.
func (n *Node) onPaired(slot int, name string, addr ident.Address) {
	n.events.Table(name, log.TableEvent{Table: log.TableDirectory, Action: log.ActionAdd, Slot: slot})
	if n.app != nil {
		n.app.OnPaired(slot, name, addr)
	}
}

// OnResourceStateChanged implements subscription.StateHandler.
func (n *Node) OnResourceStateChanged(token ident.Token, payload []byte) {
	if n.app != nil {
		n.app.OnResourceStateChanged(token, payload)
	}
}

func (n *Node) info(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Info(msg, args...)
	}
}

func (n *Node) debug(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Debug(msg, args...)
	}
}

func (n *Node) warn(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Warn(msg, args...)
	}
}

var (
	_ transport.Handler         = (*Node)(nil)
	_ subscription.StateHandler = (*Node)(nil)
)
