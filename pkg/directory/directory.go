package directory

import (
	"log/slog"
	"sync"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

// Directory is the pairing directory.
type Directory struct {
	mu sync.RWMutex

	config Config
	slots  []*Device

	store  Store
	logger *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithStore sets the persistence collaborator.
func WithStore(s Store) Option {
	return func(d *Directory) {
		d.store = s
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		d.logger = l
	}
}

// New creates an empty directory.
func New(config Config, opts ...Option) *Directory {
	if config.MaxDevices <= 0 {
		config.MaxDevices = DefaultMaxDevices
	}
	if config.MaxResources <= 0 {
		config.MaxResources = DefaultMaxResources
	}

	d := &Directory{
		config: config,
		slots:  make([]*Device, config.MaxDevices),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Capacity returns the number of device slots.
func (d *Directory) Capacity() int {
	return d.config.MaxDevices
}

// Add pairs a device and returns its slot index.
//
// If a device with the same name is already paired, Add returns that
// device's slot index together with ErrAlreadyExists and leaves the table
// unchanged.
func (d *Directory) Add(name string, addr ident.Address) (int, error) {
	n, err := ident.NewName(name)
	if err != nil {
		return -1, err
	}
	if addr.IsZero() {
		return -1, ident.ErrInvalidAddress
	}

	d.mu.Lock()
	if i := d.indexOfLocked(n.String()); i >= 0 {
		d.mu.Unlock()
		return i, ErrAlreadyExists
	}
	slot := -1
	for i, dev := range d.slots {
		if dev == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		d.mu.Unlock()
		return -1, ErrNoSpace
	}
	d.slots[slot] = &Device{
		Name:      n,
		Address:   addr,
		Resources: make([]ident.ResourceIndex, d.config.MaxResources),
	}
	d.mu.Unlock()

	d.debug("device added", "slot", slot, "name", name, "address", addr)
	d.persist(slot, name)
	return slot, nil
}

// IndexOf returns the slot index of the named device.
func (d *Directory) IndexOf(name string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if i := d.indexOfLocked(name); i >= 0 {
		return i, nil
	}
	return -1, ErrNotFound
}

// Get returns a snapshot of the named device.
func (d *Directory) Get(name string) (Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i := d.indexOfLocked(name)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	return Entry{Slot: i, Device: d.slots[i].clone()}, nil
}

// NameAt returns the name stored in slot. The boolean is false for a free
// or out-of-range slot.
func (d *Directory) NameAt(slot int) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dev := d.deviceLocked(slot)
	if dev == nil {
		return "", false
	}
	return dev.Name.String(), true
}

// AddressAt returns the address stored in slot. The boolean is false for a
// free or out-of-range slot.
func (d *Directory) AddressAt(slot int) (ident.Address, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dev := d.deviceLocked(slot)
	if dev == nil {
		return ident.Address{}, false
	}
	return dev.Address, true
}

// AddressIsSame reports whether the address stored in slot equals addr.
func (d *Directory) AddressIsSame(slot int, addr ident.Address) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dev := d.deviceLocked(slot)
	if dev == nil {
		return false, ErrInvalidSlot
	}
	return dev.Address == addr, nil
}

// UpdateAddress replaces the address stored in slot if it differs from addr.
// Used when a peer re-attaches to the mesh under a new address.
func (d *Directory) UpdateAddress(slot int, addr ident.Address) (UpdateResult, error) {
	if addr.IsZero() {
		return NoUpdateNeeded, ident.ErrInvalidAddress
	}

	d.mu.Lock()
	dev := d.deviceLocked(slot)
	if dev == nil {
		d.mu.Unlock()
		return NoUpdateNeeded, ErrInvalidSlot
	}
	if dev.Address == addr {
		d.mu.Unlock()
		return NoUpdateNeeded, nil
	}
	old := dev.Address
	dev.Address = addr
	d.mu.Unlock()

	d.debug("device address updated", "slot", slot, "old", old, "new", addr)
	return Updated, nil
}

// AddResource records that the named device exposes resource, appending to
// its first free resource slot. It returns the device slot and resource slot.
func (d *Directory) AddResource(name string, resource ident.ResourceIndex) (int, int, error) {
	if resource == ident.NoResource {
		return -1, -1, ErrNoResource
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.indexOfLocked(name)
	if slot < 0 {
		return -1, -1, ErrNotFound
	}
	dev := d.slots[slot]
	for i, r := range dev.Resources {
		if r == ident.NoResource {
			dev.Resources[i] = resource
			return slot, i, nil
		}
	}
	return slot, -1, ErrResourcesFull
}

// ResourceAt returns the resource index held in a device's resource slot,
// or ident.NoResource if that resource slot is free.
func (d *Directory) ResourceAt(slot, uriSlot int) (ident.ResourceIndex, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dev := d.deviceLocked(slot)
	if dev == nil {
		return ident.NoResource, ErrInvalidSlot
	}
	if uriSlot < 0 || uriSlot >= len(dev.Resources) {
		return ident.NoResource, ErrInvalidURISlot
	}
	return dev.Resources[uriSlot], nil
}

// Delete unpairs the named device, frees its slot and returns the slot index.
func (d *Directory) Delete(name string) (int, error) {
	d.mu.Lock()
	slot := d.indexOfLocked(name)
	if slot < 0 {
		d.mu.Unlock()
		return -1, ErrNotFound
	}
	d.slots[slot] = nil
	d.mu.Unlock()

	d.debug("device deleted", "slot", slot, "name", name)
	d.persist(slot, "")
	return slot, nil
}

// DeleteAll frees every slot. Used by factory reset.
func (d *Directory) DeleteAll() {
	d.mu.Lock()
	for i := range d.slots {
		d.slots[i] = nil
	}
	n := len(d.slots)
	d.mu.Unlock()

	d.debug("directory cleared")
	for i := 0; i < n; i++ {
		d.persist(i, "")
	}
}

// Count returns the number of paired devices.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, dev := range d.slots {
		if dev != nil {
			n++
		}
	}
	return n
}

// Devices returns a snapshot of all occupied slots in slot order.
func (d *Directory) Devices() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Entry, 0, len(d.slots))
	for i, dev := range d.slots {
		if dev != nil {
			out = append(out, Entry{Slot: i, Device: dev.clone()})
		}
	}
	return out
}

// Load restores device names from the store. Slots whose stored value is
// not a valid name are left free. Any store error leaves the directory
// empty rather than partially loaded.
func (d *Directory) Load() error {
	if d.store == nil {
		return nil
	}

	restored := make([]*Device, d.config.MaxDevices)
	seen := make(map[string]bool)
	for i := range restored {
		value, err := d.store.LoadString(i)
		if err != nil {
			d.warn("directory store unreadable, starting empty", "slot", i, "error", err)
			d.mu.Lock()
			d.slots = make([]*Device, d.config.MaxDevices)
			d.mu.Unlock()
			return err
		}
		if value == "" {
			continue
		}
		n, err := ident.NewName(value)
		if err != nil || seen[value] {
			d.warn("discarding invalid directory record", "slot", i, "value", value)
			continue
		}
		seen[value] = true
		restored[i] = &Device{
			Name:      n,
			Resources: make([]ident.ResourceIndex, d.config.MaxResources),
		}
	}

	d.mu.Lock()
	d.slots = restored
	d.mu.Unlock()

	d.debug("directory restored", "devices", d.Count())
	return nil
}

func (d *Directory) indexOfLocked(name string) int {
	if name == "" {
		return -1
	}
	for i, dev := range d.slots {
		if dev != nil && dev.Name.String() == name {
			return i
		}
	}
	return -1
}

func (d *Directory) deviceLocked(slot int) *Device {
	if slot < 0 || slot >= len(d.slots) {
		return nil
	}
	return d.slots[slot]
}

func (d *Directory) persist(slot int, value string) {
	if d.store == nil {
		return
	}
	if err := d.store.SaveString(slot, value); err != nil {
		d.warn("failed to persist directory slot", "slot", slot, "error", err)
	}
}

func (d *Directory) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Directory) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
