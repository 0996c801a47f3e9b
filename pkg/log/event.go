package log

import "time"

// MaxFrameData is the number of frame bytes kept in a FrameEvent.
const MaxFrameData = 4096

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the monitor session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the server URL or address.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// SimID is the SIM the event concerns, if any.
	SimID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message received from the server.
	DirectionIn Direction = 0
	// DirectionOut indicates a message sent to the server.
	DirectionOut Direction = 1
	// DirectionLocal indicates a local event with no wire traffic.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the Engine.IO frame layer (raw text frames).
	LayerTransport Layer = 0
	// LayerEvent is the Socket.IO event layer (decoded events).
	LayerEvent Layer = 1
	// LayerMonitor is the subscription multiplexer.
	LayerMonitor Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerEvent:
		return "EVENT"
	case LayerMonitor:
		return "MONITOR"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a frame or named event.
	CategoryMessage Category = 0
	// CategoryControl indicates a control packet (open/ping/pong/close).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw transport frame.
type FrameEvent struct {
	// Size is the full frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the frame content (truncated to MaxFrameData).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewFrameEvent copies data into a FrameEvent, truncating large frames.
func NewFrameEvent(data []byte) *FrameEvent {
	f := &FrameEvent{Size: len(data)}
	if len(data) > MaxFrameData {
		data = data[:MaxFrameData]
		f.Truncated = true
	}
	f.Data = append([]byte(nil), data...)
	return f
}

// MessageEvent captures a decoded Socket.IO event.
type MessageEvent struct {
	// Name is the event name, e.g. "subscribe:packets".
	Name string `cbor:"1,keyasint"`

	// Args is the JSON encoding of the event arguments.
	Args string `cbor:"2,keyasint,omitempty"`
}

// StateChangeEvent captures connection and subscription lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySubscription indicates a SIM attach or detach.
	StateEntitySubscription StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures a transport-level control packet.
type ControlMsgEvent struct {
	// Type of control packet.
	Type ControlMsgType `cbor:"1,keyasint"`

	// Detail carries packet specific data, e.g. the session id for OPEN.
	Detail string `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control packet.
type ControlMsgType uint8

const (
	ControlMsgOpen         ControlMsgType = 0
	ControlMsgPing         ControlMsgType = 1
	ControlMsgPong         ControlMsgType = 2
	ControlMsgClose        ControlMsgType = 3
	ControlMsgConnect      ControlMsgType = 4
	ControlMsgConnectError ControlMsgType = 5
	ControlMsgDisconnect   ControlMsgType = 6
)

// String returns the control packet type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgOpen:
		return "OPEN"
	case ControlMsgPing:
		return "PING"
	case ControlMsgPong:
		return "PONG"
	case ControlMsgClose:
		return "CLOSE"
	case ControlMsgConnect:
		return "CONNECT"
	case ControlMsgConnectError:
		return "CONNECT_ERROR"
	case ControlMsgDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
