package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/simtap/simtap-go/pkg/log"
)

// Errors returned by Client.
var (
	ErrNotConnected     = errors.New("socketio: not connected")
	ErrAlreadyConnected = errors.New("socketio: already connected")
	ErrClosed           = errors.New("socketio: client closed")
	ErrConnectRejected  = errors.New("socketio: connect rejected")
	ErrHandshake        = errors.New("socketio: handshake failed")
)

// Disconnect reasons passed to OnDisconnect handlers.
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonServerDisconnect = "io server disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
	ReasonConnectError     = "connect error"
)

// defaultPingWindow is used when the server announces no ping timing.
const defaultPingWindow = 45 * time.Second

// Client is a Socket.IO v4 client bound to a single endpoint.
// A Client may be connected again after a disconnection until it is closed.
type Client struct {
	cfg Config

	hmu                sync.RWMutex
	handlers           map[string][]func(args []json.RawMessage)
	anyHandlers        []func(event string, args []json.RawMessage)
	disconnectHandlers []func(reason string)

	mu         sync.Mutex
	conn       *conn
	connecting bool
	closed     bool
}

// conn is one established Engine.IO connection.
type conn struct {
	ws       *websocket.Conn
	id       string
	sid      string
	endpoint string
	window   time.Duration

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// New creates a client. It does not connect.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:      cfg,
		handlers: make(map[string][]func(args []json.RawMessage)),
	}
}

// On registers a handler for a named inbound event.
func (c *Client) On(event string, handler func(args []json.RawMessage)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// OnAny registers a handler receiving every inbound event.
func (c *Client) OnAny(handler func(event string, args []json.RawMessage)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.anyHandlers = append(c.anyHandlers, handler)
}

// OnDisconnect registers a handler called once per lost connection.
func (c *Client) OnDisconnect(handler func(reason string)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.disconnectHandlers = append(c.disconnectHandlers, handler)
}

// Connected reports whether a connection is established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// ConnectionID returns the id of the current connection, or "" when
// disconnected. The id is also stamped on protocol log events.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.id
}

// Connect dials the endpoint and performs the Engine.IO and Socket.IO
// handshakes. It returns once the default namespace is connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.conn != nil || c.connecting:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.connecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	endpoint, err := c.cfg.endpoint()
	if err != nil {
		return err
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	ws, _, err := c.cfg.Dialer.DialContext(hctx, endpoint, c.cfg.header())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	cn := &conn{
		ws:       ws,
		id:       uuid.NewString(),
		endpoint: endpoint,
		done:     make(chan struct{}),
	}

	stop := context.AfterFunc(hctx, func() { _ = ws.Close() })
	err = c.handshake(hctx, cn)
	if !stop() && err == nil {
		err = hctx.Err()
	}
	if err != nil {
		_ = ws.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		return ErrClosed
	}
	c.conn = cn
	c.mu.Unlock()

	c.cfg.Logger.Info("socket.io connected", "conn_id", cn.id, "sid", cn.sid, "endpoint", endpoint)
	c.logEvent(cn, log.Event{
		Direction:   log.DirectionLocal,
		Layer:       log.LayerTransport,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityConnection, NewState: "CONNECTED"},
	})

	go c.readLoop(cn)
	return nil
}

// handshake reads the open packet, connects the default namespace and
// waits for the server's answer.
func (c *Client) handshake(ctx context.Context, cn *conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = cn.ws.SetReadDeadline(deadline)
	}

	data, err := c.read(cn)
	if err != nil {
		return fmt.Errorf("%w: read open packet: %v", ErrHandshake, err)
	}
	if len(data) == 0 || data[0] != eioOpen {
		return fmt.Errorf("%w: expected open packet, got %q", ErrHandshake, data)
	}

	var open openPacket
	if err := json.Unmarshal(data[1:], &open); err != nil {
		return fmt.Errorf("%w: decode open packet: %v", ErrHandshake, err)
	}
	cn.sid = open.SID
	cn.window = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	if cn.window <= 0 {
		cn.window = defaultPingWindow
	}
	c.logControl(cn, log.DirectionIn, log.ControlMsgOpen, open.SID)

	if err := c.write(ctx, cn, []byte{eioMessage, sioConnect}); err != nil {
		return fmt.Errorf("%w: send connect: %v", ErrHandshake, err)
	}
	c.logControl(cn, log.DirectionOut, log.ControlMsgConnect, "")

	for {
		data, err := c.read(cn)
		if err != nil {
			return fmt.Errorf("%w: await connect: %v", ErrHandshake, err)
		}
		if len(data) == 0 {
			continue
		}

		switch data[0] {
		case eioPing:
			c.logControl(cn, log.DirectionIn, log.ControlMsgPing, "")
			if err := c.write(ctx, cn, []byte{eioPong}); err != nil {
				return fmt.Errorf("%w: send pong: %v", ErrHandshake, err)
			}
			c.logControl(cn, log.DirectionOut, log.ControlMsgPong, "")
		case eioClose:
			c.logControl(cn, log.DirectionIn, log.ControlMsgClose, "")
			return fmt.Errorf("%w: server closed the connection", ErrHandshake)
		case eioMessage:
			p, err := decodeSIO(data[1:])
			if err != nil || p.Namespace != "/" {
				continue
			}
			switch p.Type {
			case sioConnect:
				c.logControl(cn, log.DirectionIn, log.ControlMsgConnect, string(p.Data))
				_ = cn.ws.SetReadDeadline(time.Time{})
				return nil
			case sioConnectError:
				msg := connectErrorMessage(p.Data)
				c.logControl(cn, log.DirectionIn, log.ControlMsgConnectError, msg)
				return fmt.Errorf("%w: %s", ErrConnectRejected, msg)
			}
		}
	}
}

// Emit sends a named event with JSON-encoded arguments.
func (c *Client) Emit(ctx context.Context, event string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	cn := c.conn
	c.mu.Unlock()
	if cn == nil {
		return ErrNotConnected
	}

	frame, err := encodeEvent(event, args)
	if err != nil {
		return err
	}
	if err := c.write(ctx, cn, frame); err != nil {
		return fmt.Errorf("emit %q: %w", event, err)
	}

	encoded, _ := json.Marshal(args)
	c.logEvent(cn, log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerEvent,
		Category:  log.CategoryMessage,
		Message:   &log.MessageEvent{Name: event, Args: string(encoded)},
	})
	return nil
}

// Disconnect closes the current connection, if any. Disconnect handlers
// have run by the time it returns.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cn := c.conn
	c.mu.Unlock()
	if cn == nil {
		return nil
	}

	if err := c.write(context.Background(), cn, []byte{eioMessage, sioDisconnect}); err == nil {
		c.logControl(cn, log.DirectionOut, log.ControlMsgDisconnect, "")
	}
	_ = cn.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	c.terminate(cn, ReasonClientDisconnect)
	return nil
}

// Close disconnects and prevents further connections.
func (c *Client) Close() error {
	err := c.Disconnect()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}

func (c *Client) readLoop(cn *conn) {
	for {
		_ = cn.ws.SetReadDeadline(time.Now().Add(cn.window))
		data, err := c.read(cn)
		if err != nil {
			c.terminate(cn, readErrorReason(err))
			return
		}
		if reason, stop := c.handleFrame(cn, data); stop {
			c.terminate(cn, reason)
			return
		}
	}
}

func readErrorReason(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonPingTimeout
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ReasonTransportClose
	}
	return ReasonTransportError
}

func (c *Client) handleFrame(cn *conn, data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}

	switch data[0] {
	case eioPing:
		c.logControl(cn, log.DirectionIn, log.ControlMsgPing, "")
		if err := c.write(context.Background(), cn, []byte{eioPong}); err != nil {
			return ReasonTransportError, true
		}
		c.logControl(cn, log.DirectionOut, log.ControlMsgPong, "")
	case eioClose:
		c.logControl(cn, log.DirectionIn, log.ControlMsgClose, "")
		return ReasonTransportClose, true
	case eioMessage:
		return c.handleMessage(cn, data[1:])
	case eioPong, eioNoop, eioUpgrade, eioOpen:
	default:
		c.cfg.Logger.Debug("ignoring unknown engine.io packet", "conn_id", cn.id, "type", string(data[0]))
	}
	return "", false
}

func (c *Client) handleMessage(cn *conn, data []byte) (string, bool) {
	p, err := decodeSIO(data)
	if err != nil {
		c.cfg.Logger.Warn("dropping malformed socket.io packet", "conn_id", cn.id, "error", err)
		c.logError(cn, err, "decode packet")
		return "", false
	}
	if p.Namespace != "/" {
		return "", false
	}

	switch p.Type {
	case sioEvent:
		name, args, err := decodeEvent(p.Data)
		if err != nil {
			c.cfg.Logger.Warn("dropping malformed socket.io event", "conn_id", cn.id, "error", err)
			c.logError(cn, err, "decode event")
			return "", false
		}

		encoded, _ := json.Marshal(args)
		c.logEvent(cn, log.Event{
			Direction: log.DirectionIn,
			Layer:     log.LayerEvent,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Name: name, Args: string(encoded)},
		})

		c.dispatch(name, args)

		if p.AckID != nil {
			if err := c.write(context.Background(), cn, encodeAck(*p.AckID)); err != nil {
				return ReasonTransportError, true
			}
		}
	case sioDisconnect:
		c.logControl(cn, log.DirectionIn, log.ControlMsgDisconnect, "")
		return ReasonServerDisconnect, true
	case sioConnectError:
		msg := connectErrorMessage(p.Data)
		c.logControl(cn, log.DirectionIn, log.ControlMsgConnectError, msg)
		return ReasonConnectError + ": " + msg, true
	}
	return "", false
}

func (c *Client) dispatch(event string, args []json.RawMessage) {
	c.hmu.RLock()
	handlers := slices.Clone(c.handlers[event])
	anyHandlers := slices.Clone(c.anyHandlers)
	c.hmu.RUnlock()

	for _, h := range anyHandlers {
		h(event, args)
	}
	for _, h := range handlers {
		h(args)
	}
}

// terminate ends cn once and notifies the disconnect handlers.
func (c *Client) terminate(cn *conn, reason string) {
	cn.once.Do(func() {
		close(cn.done)

		c.mu.Lock()
		if c.conn == cn {
			c.conn = nil
		}
		c.mu.Unlock()

		_ = cn.ws.Close()

		c.cfg.Logger.Info("socket.io disconnected", "conn_id", cn.id, "reason", reason)
		c.logEvent(cn, log.Event{
			Direction:   log.DirectionLocal,
			Layer:       log.LayerTransport,
			Category:    log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityConnection, OldState: "CONNECTED", NewState: "DISCONNECTED", Reason: reason},
		})

		c.hmu.RLock()
		handlers := slices.Clone(c.disconnectHandlers)
		c.hmu.RUnlock()
		for _, h := range handlers {
			h(reason)
		}
	})
}

func (c *Client) read(cn *conn) ([]byte, error) {
	_, data, err := cn.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.logFrame(cn, log.DirectionIn, data)
	return data, nil
}

// write sends one text frame. Writes are serialized per connection.
func (c *Client) write(ctx context.Context, cn *conn, frame []byte) error {
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()

	select {
	case <-cn.done:
		return ErrNotConnected
	default:
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = cn.ws.SetWriteDeadline(deadline)

	if err := cn.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}
	c.logFrame(cn, log.DirectionOut, frame)
	return nil
}

func (c *Client) logFrame(cn *conn, dir log.Direction, data []byte) {
	c.logEvent(cn, log.Event{
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame:     log.NewFrameEvent(data),
	})
}

func (c *Client) logControl(cn *conn, dir log.Direction, typ log.ControlMsgType, detail string) {
	c.logEvent(cn, log.Event{
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryControl,
		ControlMsg: &log.ControlMsgEvent{Type: typ, Detail: detail},
	})
}

func (c *Client) logError(cn *conn, err error, op string) {
	c.logEvent(cn, log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerEvent,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerEvent, Message: err.Error(), Context: op},
	})
}

func (c *Client) logEvent(cn *conn, e log.Event) {
	e.Timestamp = time.Now()
	e.ConnectionID = cn.id
	e.RemoteAddr = cn.endpoint
	c.cfg.ProtocolLogger.Log(e)
}
