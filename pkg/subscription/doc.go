// Package subscription implements the per-SIM subscription state shared by
// every consumer of a monitor connection.
//
// The remote monitor service only knows whether a SIM is subscribed or not.
// Locally, many independent subscribers may watch the same SIM, so each SIM
// is tracked as an Entity holding a reference-counted subscriber set.
//
// # Attach and Detach
//
// Registering the first subscriber of an entity (the 0→1 transition) is the
// caller's cue to send a subscribe request to the remote side; removing the
// last subscriber (1→0) is the cue to unsubscribe. Registry.Register and
// Registry.Unregister report these transitions so that exactly one request
// is sent per transition, regardless of how many registrations race.
//
// # Attachment
//
// The remote confirmation of a subscribe request resolves the entity's
// Attachment, a single-resolution future that every concurrent subscriber of
// the entity waits on. When the entity drops back to zero subscribers the
// Attachment is replaced with a fresh, unresolved one so that a later
// resubscribe never observes a stale outcome.
//
// # Locking
//
// The registry lock guards the entity table and each entity lock guards its
// subscriber set. Neither is held while waiting on an Attachment or while
// delivering packets.
package subscription
