package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
)

// emission is one event sent through the fake transport.
type emission struct {
	event string
	args  []any
}

// fakeTransport is an in-memory Transport. Tests inject inbound events with
// fire and connection loss with drop; respond runs synchronously for every
// emitted event.
type fakeTransport struct {
	mu                 sync.Mutex
	connected          bool
	closed             bool
	connectErr         error
	emitErr            map[string]error
	emits              []emission
	disconnects        int
	handlers           map[string][]func([]json.RawMessage)
	anyHandlers        []func(string, []json.RawMessage)
	disconnectHandlers []func(string)

	respond func(ft *fakeTransport, event string, args []any)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		emitErr:  make(map[string]error),
		handlers: make(map[string][]func([]json.RawMessage)),
		respond:  authenticateResponder,
	}
}

// authenticateResponder answers authenticate with authenticated.
func authenticateResponder(ft *fakeTransport, event string, _ []any) {
	if event == EventAuthenticate {
		ft.fire(EventAuthenticated)
	}
}

// attachResponder authenticates and attaches every subscribed SIM with ip.
func attachResponder(ip string) func(*fakeTransport, string, []any) {
	return func(ft *fakeTransport, event string, args []any) {
		authenticateResponder(ft, event, args)
		if event == EventSubscribePackets {
			ft.fire(EventSubscribedPackets, map[string]string{"simId": args[0].(string), "ip": ip})
		}
	}
}

func (ft *fakeTransport) Connect(ctx context.Context) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if ft.connectErr != nil {
		return ft.connectErr
	}
	ft.connected = true
	return nil
}

func (ft *fakeTransport) Disconnect() error {
	ft.mu.Lock()
	ft.disconnects++
	wasConnected := ft.connected
	ft.connected = false
	ft.mu.Unlock()

	if wasConnected {
		ft.notifyDisconnect("io client disconnect")
	}
	return nil
}

func (ft *fakeTransport) Emit(ctx context.Context, event string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ft.mu.Lock()
	if !ft.connected {
		ft.mu.Unlock()
		return errors.New("fake: not connected")
	}
	if err := ft.emitErr[event]; err != nil {
		ft.mu.Unlock()
		return err
	}
	ft.emits = append(ft.emits, emission{event: event, args: args})
	respond := ft.respond
	ft.mu.Unlock()

	if respond != nil {
		respond(ft, event, args)
	}
	return nil
}

func (ft *fakeTransport) On(event string, handler func([]json.RawMessage)) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.handlers[event] = append(ft.handlers[event], handler)
}

func (ft *fakeTransport) OnAny(handler func(string, []json.RawMessage)) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.anyHandlers = append(ft.anyHandlers, handler)
}

func (ft *fakeTransport) OnDisconnect(handler func(string)) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.disconnectHandlers = append(ft.disconnectHandlers, handler)
}

func (ft *fakeTransport) Connected() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.connected
}

func (ft *fakeTransport) Close() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.closed = true
	return nil
}

// fire delivers an inbound event whose arguments are JSON encoded from args.
func (ft *fakeTransport) fire(event string, args ...any) {
	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			panic(err)
		}
		raw[i] = data
	}

	ft.mu.Lock()
	anyHandlers := slices.Clone(ft.anyHandlers)
	handlers := slices.Clone(ft.handlers[event])
	ft.mu.Unlock()

	for _, h := range anyHandlers {
		h(event, raw)
	}
	for _, h := range handlers {
		h(raw)
	}
}

// drop simulates an unsolicited connection loss.
func (ft *fakeTransport) drop(reason string) {
	ft.mu.Lock()
	ft.connected = false
	ft.mu.Unlock()
	ft.notifyDisconnect(reason)
}

func (ft *fakeTransport) notifyDisconnect(reason string) {
	ft.mu.Lock()
	handlers := slices.Clone(ft.disconnectHandlers)
	ft.mu.Unlock()
	for _, h := range handlers {
		h(reason)
	}
}

func (ft *fakeTransport) setRespond(fn func(*fakeTransport, string, []any)) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.respond = fn
}

// emitted returns the ids emitted with event, in order.
func (ft *fakeTransport) emitted(event string) []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	var ids []string
	for _, e := range ft.emits {
		if e.event != event {
			continue
		}
		if len(e.args) > 0 {
			if s, ok := e.args[0].(string); ok {
				ids = append(ids, s)
				continue
			}
		}
		ids = append(ids, "")
	}
	return ids
}

// newConnectedMonitor returns a monitor connected through a fake transport.
func newConnectedMonitor(t *testing.T, cfg Config) (*Monitor, *fakeTransport) {
	t.Helper()

	ft := newFakeTransport()
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	m := New(ft, cfg)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, ft
}
