package subscription

import (
	"net/netip"
	"sync"

	"github.com/simtap/simtap-go/pkg/capture"
)

// Subscriber receives packets fanned out for the entities it is registered on.
type Subscriber interface {
	// ID returns a stable identifier used in diagnostics.
	ID() string

	// Deliver offers a packet to the subscriber without blocking.
	// It returns false if the subscriber cannot accept the packet.
	Deliver(pkt capture.Packet) bool
}

// Entity is the subscription state of one SIM.
type Entity struct {
	id string

	mu          sync.Mutex
	addr        netip.Addr
	attachment  *Attachment
	subscribers map[Subscriber]struct{}
}

// EntityInfo is a point-in-time view of an entity.
type EntityInfo struct {
	ID          string
	Address     netip.Addr
	Subscribers int
	Attached    bool
	Err         error
}

func newEntity(id string) *Entity {
	return &Entity{
		id:          id,
		attachment:  NewAttachment(),
		subscribers: make(map[Subscriber]struct{}),
	}
}

// ID returns the SIM identifier.
func (e *Entity) ID() string {
	return e.id
}

// add registers s and returns the resulting subscriber count together with
// the attachment the subscriber should wait on. A failed attachment is
// replaced by a fresh one and renewed is set.
func (e *Entity) add(s Subscriber) (count int, att *Attachment, renewed bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.subscribers[s]; exists {
		return len(e.subscribers), e.attachment, false, ErrDuplicateSubscription
	}
	if e.attachment.Err() != nil {
		e.attachment = NewAttachment()
		e.addr = netip.Addr{}
		renewed = true
	}
	e.subscribers[s] = struct{}{}
	return len(e.subscribers), e.attachment, renewed, nil
}

// remove unregisters s. On the 1→0 transition the attachment and address
// are reset for the next subscribe request.
func (e *Entity) remove(s Subscriber) (removed bool, count int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.subscribers[s]; !exists {
		return false, len(e.subscribers)
	}
	delete(e.subscribers, s)

	if len(e.subscribers) == 0 {
		e.attachment = NewAttachment()
		e.addr = netip.Addr{}
	}
	return true, len(e.subscribers)
}

// Attach records the address assigned by the remote side and resolves the
// current attachment. Returns false if it had already resolved, in which
// case the address is left unchanged.
func (e *Entity) Attach(addr netip.Addr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.attachment.Resolve() {
		return false
	}
	e.addr = addr
	return true
}

// Reject resolves the current attachment with err.
// Returns false if it had already resolved.
func (e *Entity) Reject(err error) bool {
	e.mu.Lock()
	att := e.attachment
	e.mu.Unlock()

	return att.Fail(err)
}

// Address returns the address assigned when the entity attached.
func (e *Entity) Address() netip.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// Attachment returns the current attachment.
func (e *Entity) Attachment() *Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attachment
}

// Subscribers returns a snapshot of the current subscribers.
func (e *Entity) Subscribers() []Subscriber {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := make([]Subscriber, 0, len(e.subscribers))
	for s := range e.subscribers {
		subs = append(subs, s)
	}
	return subs
}

// Count returns the number of current subscribers.
func (e *Entity) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}

// Info returns a snapshot of the entity state.
func (e *Entity) Info() EntityInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := EntityInfo{
		ID:          e.id,
		Address:     e.addr,
		Subscribers: len(e.subscribers),
	}
	if e.attachment.Resolved() {
		info.Err = e.attachment.Err()
		info.Attached = info.Err == nil
	}
	return info
}
