package directory

// Store is the persistence collaborator. Keys are slot indices, values are
// device names; the empty string marks a free slot.
type Store interface {
	// LoadString returns the value stored for slot.
	LoadString(slot int) (string, error)

	// SaveString stores value for slot.
	SaveString(slot int, value string) error
}
