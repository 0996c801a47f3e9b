package subscription

import (
	"context"
	"sync"
)

// Attachment is the outcome of a single subscribe request for an entity.
// It resolves at most once, either successfully or with an error.
type Attachment struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewAttachment creates an unresolved attachment.
func NewAttachment() *Attachment {
	return &Attachment{done: make(chan struct{})}
}

// Resolve marks the attachment as successful.
// Returns false if the attachment was already resolved.
func (a *Attachment) Resolve() bool {
	return a.complete(nil)
}

// Fail resolves the attachment with err.
// Returns false if the attachment was already resolved.
func (a *Attachment) Fail(err error) bool {
	return a.complete(err)
}

func (a *Attachment) complete(err error) bool {
	resolved := false
	a.once.Do(func() {
		a.err = err
		resolved = true
		close(a.done)
	})
	return resolved
}

// Done returns a channel that is closed once the attachment resolves.
func (a *Attachment) Done() <-chan struct{} {
	return a.done
}

// Resolved reports whether the attachment has an outcome.
func (a *Attachment) Resolved() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Err returns the failure the attachment resolved with.
// It returns nil while unresolved and after a successful resolution.
func (a *Attachment) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Wait blocks until the attachment resolves or ctx is done.
func (a *Attachment) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
