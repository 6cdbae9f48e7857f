package log

import "time"

// Emitter stamps events with the session ID, local name and time before
// passing them to a Logger. A nil *Emitter discards events.
type Emitter struct {
	logger    Logger
	sessionID string
	localName string
	now       func() time.Time
}

// NewEmitter creates an emitter. A nil logger yields an emitter that discards.
func NewEmitter(logger Logger, sessionID, localName string) *Emitter {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Emitter{
		logger:    logger,
		sessionID: sessionID,
		localName: localName,
		now:       time.Now,
	}
}

// SessionID returns the session ID stamped on events.
func (e *Emitter) SessionID() string {
	if e == nil {
		return ""
	}
	return e.sessionID
}

// Emit stamps and logs event.
func (e *Emitter) Emit(event Event) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	event.SessionID = e.sessionID
	if event.LocalName == "" {
		event.LocalName = e.localName
	}
	e.logger.Log(event)
}

// Table emits a table mutation event.
func (e *Emitter) Table(device string, t TableEvent) {
	e.Emit(Event{
		Layer:      LayerTable,
		Category:   CategoryTable,
		DeviceName: device,
		Table:      &t,
	})
}

// Queue emits a pairing-queue event.
func (e *Emitter) Queue(device, remote string, q QueueEvent) {
	e.Emit(Event{
		Layer:      LayerBridge,
		Category:   CategoryQueue,
		DeviceName: device,
		RemoteAddr: remote,
		Queue:      &q,
	})
}

// Message emits a transport message event.
func (e *Emitter) Message(dir Direction, device, remote string, m MessageEvent) {
	e.Emit(Event{
		Direction:  dir,
		Layer:      LayerTransport,
		Category:   CategoryMessage,
		DeviceName: device,
		RemoteAddr: remote,
		Message:    &m,
	})
}

// Error emits an error event.
func (e *Emitter) Error(layer Layer, err error, context string) {
	if err == nil {
		return
	}
	e.Emit(Event{
		Layer:    layer,
		Category: CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
