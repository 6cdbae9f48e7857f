package transport

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

// MaxDatagramSize is the largest envelope the UDP transport sends or accepts.
const MaxDatagramSize = 1280

// Kind identifies the type of an envelope.
type Kind uint8

const (
	KindNotification Kind = 1
	KindRequest      Kind = 2
	KindResponse     Kind = 3
	KindObserve      Kind = 4
	KindCancel       Kind = 5
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "NOTIFICATION"
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	case KindObserve:
		return "OBSERVE"
	case KindCancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k >= KindNotification && k <= KindCancel
}

// Status is a response status code.
type Status uint8

const (
	StatusOK            Status = 0
	StatusBadRequest    Status = 1
	StatusNotFound      Status = 2
	StatusConflict      Status = 3
	StatusResourceFull  Status = 4
	StatusInternalError Status = 5
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusConflict:
		return "CONFLICT"
	case StatusResourceFull:
		return "RESOURCE_FULL"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Message is the datagram envelope.
type Message struct {
	Kind    Kind   `cbor:"1,keyasint"`
	Token   []byte `cbor:"2,keyasint"`
	Path    string `cbor:"3,keyasint,omitempty"`
	Device  string `cbor:"4,keyasint,omitempty"`
	Payload []byte `cbor:"5,keyasint,omitempty"`
	Status  Status `cbor:"6,keyasint,omitempty"`
}

// Envelope errors.
var (
	ErrInvalidKind  = errors.New("invalid message kind")
	ErrInvalidToken = errors.New("invalid message token")
	ErrTooLarge     = errors.New("message exceeds maximum datagram size")
)

// ObserveToken returns the message token.
func (m *Message) ObserveToken() ident.Token {
	var t ident.Token
	copy(t[:], m.Token)
	return t
}

// Validate checks the envelope.
func (m *Message) Validate() error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, m.Kind)
	}
	if len(m.Token) != ident.TokenLen || m.ObserveToken().IsZero() {
		return ErrInvalidToken
	}
	return nil
}

// encMode is the CBOR encoder mode for envelopes.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for envelopes.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		MaxArrayElements:  16,
		MaxMapPairs:       16,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// EncodeMessage validates and encodes an envelope.
func EncodeMessage(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	data, err := encMode.Marshal(m)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDatagramSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// DecodeMessage decodes and validates an envelope.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) > MaxDatagramSize {
		return nil, ErrTooLarge
	}
	var m Message
	if err := decMode.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &m, nil
}
