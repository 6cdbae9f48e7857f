package node

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/meshpair/meshpair-go/pkg/directory"
	"github.com/meshpair/meshpair-go/pkg/fault"
	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/log"
	"github.com/meshpair/meshpair-go/pkg/pairing"
	"github.com/meshpair/meshpair-go/pkg/rules"
	"github.com/meshpair/meshpair-go/pkg/subscription"
)

// Node errors.
var (
	ErrUnknownResource = fmt.Errorf("%w: unknown resource", fault.ErrNotFound)
	ErrAddressUnknown  = fmt.Errorf("%w: device address not known yet", fault.ErrNotFound)
	ErrInvalidResource = fmt.Errorf("%w: invalid resource table entry", fault.ErrInvalidArgument)
	ErrRemoteStatus    = errors.New("remote returned error status")
	ErrAlreadyRunning  = errors.New("node already running")
)

// Resource binds a resource index to the path used in envelopes.
type Resource struct {
	Index ident.ResourceIndex
	Path  string
}

// DefaultResources is the resource table used when none is configured.
func DefaultResources() []Resource {
	return []Resource{
		{Index: 1, Path: "onoff"},
		{Index: 2, Path: "state"},
		{Index: 3, Path: "level"},
		{Index: 4, Path: "color"},
		{Index: 5, Path: "temperature"},
	}
}

// Config configures a Node.
type Config struct {
	// Name is this node's device name (<group>_<type>_<hwaddr>).
	Name string

	// AllowList selects the device types the bridge may pair.
	// The zero value rejects every candidate.
	AllowList rules.AllowList

	// Resources is the resource table (default DefaultResources).
	Resources []Resource

	Directory    directory.Config
	Subscription subscription.Config
	Bridge       pairing.Config

	// Store persists directory names. Nil keeps the directory in memory only.
	Store directory.Store

	// Logger for operational logging. Nil disables.
	Logger *slog.Logger

	// Events receives protocol events. Nil disables.
	Events *log.Emitter
}

// DefaultConfig returns a configuration with default capacities. Name and
// AllowList still need to be set.
func DefaultConfig() Config {
	return Config{
		Resources:    DefaultResources(),
		Directory:    directory.DefaultConfig(),
		Subscription: subscription.DefaultConfig(),
		Bridge:       pairing.DefaultConfig(),
	}
}

// resourceTable maps resource indices to paths and back.
type resourceTable struct {
	paths   map[ident.ResourceIndex]string
	indices map[string]ident.ResourceIndex
}

func newResourceTable(resources []Resource) (resourceTable, error) {
	t := resourceTable{
		paths:   make(map[ident.ResourceIndex]string, len(resources)),
		indices: make(map[string]ident.ResourceIndex, len(resources)),
	}
	for _, r := range resources {
		if r.Index == ident.NoResource || r.Path == "" {
			return t, fmt.Errorf("%w: %d=%q", ErrInvalidResource, r.Index, r.Path)
		}
		if _, dup := t.paths[r.Index]; dup {
			return t, fmt.Errorf("%w: duplicate index %d", ErrInvalidResource, r.Index)
		}
		if _, dup := t.indices[r.Path]; dup {
			return t, fmt.Errorf("%w: duplicate path %q", ErrInvalidResource, r.Path)
		}
		t.paths[r.Index] = r.Path
		t.indices[r.Path] = r.Index
	}
	return t, nil
}

func (t resourceTable) path(index ident.ResourceIndex) (string, bool) {
	p, ok := t.paths[index]
	return p, ok
}

func (t resourceTable) index(path string) (ident.ResourceIndex, bool) {
	i, ok := t.indices[path]
	return i, ok
}
