package log

import "time"

// Event is a protocol event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the node boot that produced the event.
	SessionID string `cbor:"2,keyasint"`

	// Direction of message flow; DirectionNone for local events.
	Direction Direction `cbor:"3,keyasint,omitempty"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalName is the name of the node that captured the event.
	LocalName string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer's mesh address.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceName is the peer's device name, when known.
	DeviceName string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message *MessageEvent   `cbor:"10,keyasint,omitempty"`
	Table   *TableEvent     `cbor:"11,keyasint,omitempty"`
	Queue   *QueueEvent     `cbor:"12,keyasint,omitempty"`
	Error   *ErrorEventData `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	DirectionNone Direction = 0
	DirectionIn   Direction = 1
	DirectionOut  Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "NONE"
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the node captured the event.
type Layer uint8

const (
	// LayerTransport is the datagram layer.
	LayerTransport Layer = 0
	// LayerTable is the directory, registry and observation tables.
	LayerTable Layer = 1
	// LayerBridge is the pairing bridge.
	LayerBridge Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerTable:
		return "TABLE"
	case LayerBridge:
		return "BRIDGE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryTable   Category = 1
	CategoryQueue   Category = 2
	CategoryError   Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryTable:
		return "TABLE"
	case CategoryQueue:
		return "QUEUE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures an envelope at the transport layer.
type MessageEvent struct {
	// Kind is the envelope kind name (NOTIFICATION, OBSERVE, ...).
	Kind string `cbor:"1,keyasint"`

	// Token is the hex encoded observe token.
	Token string `cbor:"2,keyasint,omitempty"`

	// Path is the resource path of requests and observes.
	Path string `cbor:"3,keyasint,omitempty"`

	// PayloadSize is the payload length in bytes.
	PayloadSize int `cbor:"4,keyasint,omitempty"`

	// Status is the response status name.
	Status string `cbor:"5,keyasint,omitempty"`
}

// Table identifies one of the node's tables.
type Table uint8

const (
	TableDirectory    Table = 0
	TableRegistry     Table = 1
	TableObservations Table = 2
)

// String returns the table name.
func (t Table) String() string {
	switch t {
	case TableDirectory:
		return "DIRECTORY"
	case TableRegistry:
		return "REGISTRY"
	case TableObservations:
		return "OBSERVATIONS"
	default:
		return "UNKNOWN"
	}
}

// Action is a table mutation.
type Action uint8

const (
	ActionAdd     Action = 0
	ActionUpdate  Action = 1
	ActionDelete  Action = 2
	ActionClear   Action = 3
	ActionRestore Action = 4
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "ADD"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	case ActionClear:
		return "CLEAR"
	case ActionRestore:
		return "RESTORE"
	default:
		return "UNKNOWN"
	}
}

// TableEvent captures a table mutation.
type TableEvent struct {
	Table  Table  `cbor:"1,keyasint"`
	Action Action `cbor:"2,keyasint"`

	// Slot is the affected slot index, or -1 for whole-table actions and
	// tables that do not expose slots.
	Slot int `cbor:"3,keyasint"`

	// Resource is the affected resource index, if any.
	Resource uint8 `cbor:"4,keyasint,omitempty"`

	// Token is the hex encoded observe token, if any.
	Token string `cbor:"5,keyasint,omitempty"`

	// Detail is a short description of the change (e.g. a subscribe result).
	Detail string `cbor:"6,keyasint,omitempty"`
}

// QueueOutcome is what happened to a pairing candidate.
type QueueOutcome uint8

const (
	QueueEnqueued  QueueOutcome = 0
	QueueDropped   QueueOutcome = 1
	QueueRejected  QueueOutcome = 2
	QueuePaired    QueueOutcome = 3
	QueueRefreshed QueueOutcome = 4
	QueueFailed    QueueOutcome = 5
)

// String returns the outcome name.
func (q QueueOutcome) String() string {
	switch q {
	case QueueEnqueued:
		return "ENQUEUED"
	case QueueDropped:
		return "DROPPED"
	case QueueRejected:
		return "REJECTED"
	case QueuePaired:
		return "PAIRED"
	case QueueRefreshed:
		return "REFRESHED"
	case QueueFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// QueueEvent captures the handling of a pairing candidate.
type QueueEvent struct {
	Outcome QueueOutcome `cbor:"1,keyasint"`

	// Depth is the number of queued items after the event.
	Depth int `cbor:"2,keyasint"`

	// Slot is the directory slot for paired and refreshed candidates.
	Slot *int `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
