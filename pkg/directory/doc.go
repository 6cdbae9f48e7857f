// Package directory implements the pairing directory: the fixed-capacity
// table of remote devices this node has paired with, their current mesh
// addresses and the resources each of them exposes.
//
// # Slots
//
// The directory is an arena of MaxDevices slots addressed by integer index.
// A free slot holds nil; an occupied slot holds a *Device. Add claims the
// lowest free index (first fit), so slot assignment is deterministic.
// All operations are linear scans over the arena, guarded by one mutex held
// for the duration of a single operation.
//
// # Resources
//
// Each device has MaxResources resource slots. AddResource appends to the
// first free one; resource slots are never individually removed, only
// cleared with the whole device.
//
// # Persistence
//
// The directory holds no persistence logic of its own. When a Store is
// configured, Load restores device names at startup and every Add, Delete
// and DeleteAll writes the affected slot through to the store. Restored
// devices carry the zero address until they are rediscovered.
package directory
