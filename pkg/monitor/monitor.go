package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simtap/simtap-go/pkg/capture"
	"github.com/simtap/simtap-go/pkg/connection"
	"github.com/simtap/simtap-go/pkg/log"
	"github.com/simtap/simtap-go/pkg/metrics"
	"github.com/simtap/simtap-go/pkg/subscription"
)

// ReasonClientDisconnect is recorded when the caller disconnects.
const ReasonClientDisconnect = "client disconnect"

// Transport is an event based connection to the monitor service.
type Transport interface {
	// Connect opens the connection.
	Connect(ctx context.Context) error

	// Disconnect closes the connection.
	Disconnect() error

	// Emit sends a named event with JSON encoded arguments.
	Emit(ctx context.Context, event string, args ...any) error

	// On registers a handler for a named inbound event.
	On(event string, handler func(args []json.RawMessage))

	// OnAny registers a handler for every inbound event.
	OnAny(handler func(event string, args []json.RawMessage))

	// OnDisconnect registers a handler called once per lost connection.
	OnDisconnect(handler func(reason string))

	// Connected reports whether the connection is open.
	Connected() bool

	// Close releases the transport.
	Close() error
}

// Monitor multiplexes packet subscriptions over one Transport.
type Monitor struct {
	transport Transport
	cfg       Config
	logger    *slog.Logger
	plog      log.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	state      connection.State
	session    *session
	generation uint64
	closed     bool
}

// New creates a Monitor on transport and registers its event handlers.
// The Monitor owns transport from now on.
func New(transport Transport, cfg Config) *Monitor {
	cfg.applyDefaults()

	m := &Monitor{
		transport: transport,
		cfg:       cfg,
		logger:    cfg.Logger,
		plog:      cfg.ProtocolLogger,
		metrics:   cfg.Metrics,
		state:     connection.StateDisconnected,
		session:   newSession(0),
	}
	m.session.fail(ErrNotConnected)

	transport.OnAny(m.onAny)
	transport.On(EventAuthenticated, m.onAuthenticated)
	transport.On(EventSubscribedPackets, m.onSubscribed)
	transport.On(EventSubscribeError, m.onSubscribeError)
	transport.On(EventPackets, m.onPackets)
	transport.OnDisconnect(m.handleDisconnect)

	return m
}

// State returns the connection state.
func (m *Monitor) State() connection.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the monitor is authenticated and the transport
// is open.
func (m *Monitor) Connected() bool {
	return m.State() == connection.StateConnected && m.transport.Connected()
}

// Disconnected returns a channel closed when the current session ends.
// Before the first Connect the channel is already closed.
func (m *Monitor) Disconnected() <-chan struct{} {
	return m.current().done
}

// Err returns why the current session ended, or nil while it is live.
// Before the first Connect it returns ErrNotConnected.
func (m *Monitor) Err() error {
	return m.current().Err()
}

// Entities returns the SIMs of the current session, sorted by id.
func (m *Monitor) Entities() []subscription.EntityInfo {
	return m.current().registry.Snapshot()
}

// Connect opens the transport and authenticates. It fails with
// ErrAuthenticationTimeout if the service does not confirm authentication in
// time, and with ctx.Err() if ctx ends first.
func (m *Monitor) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != connection.StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.generation++
	sess := newSession(m.generation)
	m.session = sess
	m.state = connection.StateConnecting
	m.mu.Unlock()

	m.logState(sess, log.StateEntityConnection, connection.StateDisconnected.String(), connection.StateConnecting.String(), "", "")

	if err := m.transport.Connect(ctx); err != nil {
		m.abortConnect(sess, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	m.setState(sess, connection.StateAwaitingAuthentication, "")

	if err := m.transport.Emit(ctx, EventAuthenticate, m.cfg.APIKey); err != nil {
		m.abortConnect(sess, err)
		_ = m.transport.Disconnect()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: send authenticate: %w", ErrAuthenticationFailed, err)
	}

	timer := time.NewTimer(m.cfg.AuthTimeout)
	defer timer.Stop()

	select {
	case <-sess.authenticated:
	case <-sess.done:
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, sess.Err())
	case <-ctx.Done():
		m.abortConnect(sess, ctx.Err())
		_ = m.transport.Disconnect()
		return ctx.Err()
	case <-timer.C:
		m.abortConnect(sess, ErrAuthenticationTimeout)
		_ = m.transport.Disconnect()
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, ErrAuthenticationTimeout)
	}

	if !m.setState(sess, connection.StateConnected, "") {
		if err := sess.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		return ErrAuthenticationFailed
	}

	m.logger.Info("monitor connected", "conn_id", sess.id, "generation", sess.generation)
	return nil
}

// abortConnect ends sess after a failed connect attempt.
func (m *Monitor) abortConnect(sess *session, cause error) {
	if sess.fail(fmt.Errorf("%w: connect aborted: %w", ErrDisconnected, cause)) {
		m.setState(sess, connection.StateDisconnected, cause.Error())
		m.logError(sess, "", cause, "connect")
	}
}

// Disconnect closes the transport and ends the current session.
func (m *Monitor) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := m.transport.Disconnect()
	m.handleDisconnect(ReasonClientDisconnect)
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Close disconnects if needed and releases the transport. Further calls to
// Connect fail with ErrClosed.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	state := m.state
	sess := m.session
	m.mu.Unlock()

	var errs []error
	if state != connection.StateDisconnected {
		errs = append(errs, m.Disconnect(context.Background()))
	}
	errs = append(errs, m.transport.Close())

	m.mu.Lock()
	m.state = connection.StateClosed
	m.mu.Unlock()
	m.logState(sess, log.StateEntityConnection, state.String(), connection.StateClosed.String(), "", "")

	return errors.Join(errs...)
}

// Subscribe attaches simID and returns a subscription for its packets.
func (m *Monitor) Subscribe(ctx context.Context, simID string) (*Subscription, error) {
	return m.subscribe(ctx, []string{simID})
}

// SubscribeMany attaches every SIM in simIDs and returns one subscription
// for all of their packets. If any SIM fails to attach the call fails; SIMs
// that did attach stay attached until the session ends.
func (m *Monitor) SubscribeMany(ctx context.Context, simIDs []string) (*Subscription, error) {
	return m.subscribe(ctx, simIDs)
}

func (m *Monitor) subscribe(ctx context.Context, simIDs []string) (*Subscription, error) {
	if len(simIDs) == 0 {
		return nil, ErrNoSimIDs
	}

	m.mu.Lock()
	closed, state, sess := m.closed, m.state, m.session
	m.mu.Unlock()
	switch {
	case closed:
		return nil, ErrClosed
	case state != connection.StateConnected || !m.transport.Connected():
		return nil, ErrNotConnected
	}

	sub := newSubscription(m, sess, simIDs)
	m.metrics.SubscriptionOpened()

	attachments := make([]*subscription.Attachment, 0, len(simIDs))
	for _, id := range simIDs {
		reg, err := sess.registry.Register(id, sub)
		if err != nil {
			return nil, m.abortSubscribe(sub, fmt.Errorf("sim %s: %w", id, err))
		}

		if reg.First {
			m.logger.Debug("subscribing to sim", "sim_id", id, "subscription_id", sub.id)
			m.logState(sess, log.StateEntitySubscription, "DETACHED", "ATTACHING", "", id)

			if err := m.transport.Emit(ctx, EventSubscribePackets, id); err != nil {
				err = fmt.Errorf("subscribe %s: %w", id, err)
				// Wake concurrent waiters and undo this registration; the
				// next subscriber for id sends the request again.
				reg.Attachment.Fail(err)
				sess.registry.Unregister(sub, []string{id})
				m.logState(sess, log.StateEntitySubscription, "ATTACHING", "DETACHED", err.Error(), id)
				return nil, m.abortSubscribe(sub, m.subscribeErr(ctx, sess, err))
			}
		}
		attachments = append(attachments, reg.Attachment)
	}

	if err := m.awaitAttachments(ctx, sess, attachments); err != nil {
		return nil, m.abortSubscribe(sub, err)
	}

	m.logger.Debug("subscription opened", "subscription_id", sub.id, "sim_ids", simIDs)
	return sub, nil
}

// awaitAttachments waits until every attachment resolves. A session failure
// takes precedence over cancellation, which takes precedence over the
// attachment outcome.
func (m *Monitor) awaitAttachments(ctx context.Context, sess *session, attachments []*subscription.Attachment) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, att := range attachments {
		g.Go(func() error {
			select {
			case <-att.Done():
				return att.Err()
			case <-sess.done:
				return sess.Err()
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return m.subscribeErr(ctx, sess, g.Wait())
}

func (m *Monitor) subscribeErr(ctx context.Context, sess *session, err error) error {
	if sessErr := sess.Err(); sessErr != nil {
		return sessErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// abortSubscribe ends sub after a failed subscribe. Its remaining
// registrations are kept until the session ends.
func (m *Monitor) abortSubscribe(sub *Subscription, err error) error {
	sub.fail(err)
	m.metrics.SubscriptionClosed()
	m.logger.Debug("subscribe failed", "subscription_id", sub.id, "sim_ids", sub.simIDs, "error", err)
	return err
}

// unsubscribe detaches sub. Unsubscribe emissions are only sent while the
// session of sub is the live one.
func (m *Monitor) unsubscribe(sub *Subscription) {
	sub.queue.close(nil)
	m.metrics.SubscriptionClosed()

	sess := sub.session
	for _, id := range sess.registry.Unregister(sub, sub.simIDs) {
		m.logState(sess, log.StateEntitySubscription, "ATTACHED", "DETACHED", "", id)

		if !m.live(sess) {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.UnsubscribeTimeout)
		err := m.transport.Emit(ctx, EventUnsubscribePackets, id)
		cancel()
		if err != nil {
			m.logger.Warn("unsubscribe failed", "sim_id", id, "error", err)
			m.logError(sess, id, err, "unsubscribe")
			continue
		}
		m.logger.Debug("unsubscribed from sim", "sim_id", id)
	}
	m.logger.Debug("subscription closed", "subscription_id", sub.id)
}

// live reports whether sess is the current, connected session.
func (m *Monitor) live(sess *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session == sess && m.state == connection.StateConnected
}

func (m *Monitor) current() *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// setState moves sess to state. It returns false if sess is no longer
// current or already ended.
func (m *Monitor) setState(sess *session, state connection.State, reason string) bool {
	m.mu.Lock()
	if m.session != sess || (state != connection.StateDisconnected && sess.Err() != nil) {
		m.mu.Unlock()
		return false
	}
	old := m.state
	if old == connection.StateClosed {
		m.mu.Unlock()
		return false
	}
	m.state = state
	m.mu.Unlock()

	if old != state {
		m.logger.Debug("connection state changed", "conn_id", sess.id, "from", old, "to", state)
		m.logState(sess, log.StateEntityConnection, old.String(), state.String(), reason, "")
	}
	return true
}

// handleDisconnect ends the current session and fails its subscriptions.
func (m *Monitor) handleDisconnect(reason string) {
	m.mu.Lock()
	sess, state := m.session, m.state
	m.mu.Unlock()

	// A notification while connecting belongs to an older connection.
	if state == connection.StateConnecting {
		m.logger.Debug("ignoring disconnect of previous connection", "reason", reason)
		return
	}

	err := fmt.Errorf("%w: %s", ErrDisconnected, reason)
	if !sess.fail(err) {
		return
	}

	m.logger.Warn("socket disconnected", "conn_id", sess.id, "reason", reason)
	m.metrics.Disconnected()
	m.setState(sess, connection.StateDisconnected, reason)

	for _, e := range sess.registry.Entities() {
		for _, s := range e.Subscribers() {
			if sub, ok := s.(*Subscription); ok {
				sub.fail(err)
			}
		}
	}
}

// entity returns the entity for simID in sess, logging unknown SIMs.
func (m *Monitor) entity(sess *session, simID string) (*subscription.Entity, bool) {
	e, ok := sess.registry.Get(simID)
	if !ok {
		m.logger.Warn("sim not found", "sim_id", simID)
	}
	return e, ok
}

func (m *Monitor) onAny(event string, args []json.RawMessage) {
	if m.logger.Enabled(context.Background(), slog.LevelDebug) {
		m.logger.Debug("got event", "event", event, "args", formatArgs(args))
	}
	if !knownEvent(event) {
		m.logger.Warn("got unsupported event", "event", event, "args", formatArgs(args))
	}
}

func (m *Monitor) onAuthenticated([]json.RawMessage) {
	m.current().authenticate()
}

func (m *Monitor) onSubscribed(args []json.RawMessage) {
	sess := m.current()

	payload, err := decodeArg[subscribedPayload](args)
	if err != nil {
		m.logger.Warn("invalid subscribed:packets event", "error", err)
		m.logError(sess, "", err, EventSubscribedPackets)
		return
	}

	e, ok := m.entity(sess, payload.SimID)
	if !ok {
		return
	}

	addr, err := netip.ParseAddr(payload.IP)
	if err != nil {
		m.logger.Warn("invalid sim ip", "sim_id", payload.SimID, "ip", payload.IP, "error", err)
	}

	if !e.Attach(addr) {
		m.logger.Debug("sim already attached", "sim_id", payload.SimID)
		return
	}

	m.logger.Info("sim attached", "sim_id", payload.SimID, "sim_ip", payload.IP)
	m.metrics.Attachment(metrics.ResultAttached)
	m.logState(sess, log.StateEntitySubscription, "ATTACHING", "ATTACHED", payload.IP, payload.SimID)
}

func (m *Monitor) onSubscribeError(args []json.RawMessage) {
	sess := m.current()

	msg, err := decodeArg[string](args)
	if err != nil {
		m.logger.Error("invalid subscribe-error event", "error", err)
		m.logError(sess, "", err, EventSubscribeError)
		return
	}

	simID, ok := simIDFromError(msg)
	if !ok {
		m.logger.Error("subscribe error with invalid format", "message", msg)
		m.logError(sess, "", errors.New(msg), EventSubscribeError)
		return
	}

	e, ok := m.entity(sess, simID)
	if !ok {
		return
	}

	if !e.Reject(&RejectedError{SimID: simID, Message: msg}) {
		m.logger.Debug("sim attachment already resolved", "sim_id", simID)
		return
	}

	m.logger.Warn("unable to subscribe to sim", "sim_id", simID, "message", msg)
	m.metrics.Attachment(metrics.ResultRejected)
	m.logState(sess, log.StateEntitySubscription, "ATTACHING", "REJECTED", msg, simID)
}

func (m *Monitor) onPackets(args []json.RawMessage) {
	sess := m.current()
	m.metrics.PacketReceived()

	payload, err := decodeArg[packetsPayload](args)
	if err != nil {
		m.metrics.PacketDropped()
		m.logger.Warn("invalid packets event", "error", err)
		m.logError(sess, "", err, EventPackets)
		return
	}

	e, ok := m.entity(sess, payload.SimID)
	if !ok {
		m.metrics.PacketDropped()
		return
	}

	data, err := capture.DecodeHex(payload.Packet)
	if err != nil {
		m.metrics.PacketDropped()
		m.logger.Warn("invalid packet payload", "sim_id", payload.SimID, "error", err)
		m.logError(sess, payload.SimID, err, EventPackets)
		return
	}

	pkt := capture.NewPacket(data, e.ID(), e.Address())
	for _, s := range e.Subscribers() {
		if s.Deliver(pkt) {
			m.metrics.PacketDelivered()
			continue
		}
		m.metrics.PacketDropped()
		m.logger.Warn("unable to deliver packet to subscription", "sim_id", payload.SimID, "subscription_id", s.ID())
	}
}

func (m *Monitor) logState(sess *session, entity log.StateEntity, from, to, reason, simID string) {
	m.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sess.id,
		Direction:    log.DirectionLocal,
		Layer:        log.LayerMonitor,
		Category:     log.CategoryState,
		SimID:        simID,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (m *Monitor) logError(sess *session, simID string, err error, op string) {
	m.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sess.id,
		Direction:    log.DirectionLocal,
		Layer:        log.LayerMonitor,
		Category:     log.CategoryError,
		SimID:        simID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerMonitor,
			Message: err.Error(),
			Context: op,
		},
	})
}
