// Package connection provides connection state tracking and reconnection
// with exponential backoff for monitor sessions.
//
// # States
//
// A monitor session moves through
//
//	DISCONNECTED → CONNECTING → AWAITING_AUTHENTICATION → CONNECTED → DISCONNECTED
//
// The Manager adds RECONNECTING (waiting out a backoff delay) and CLOSED.
//
// # Reconnection Strategy
//
// The transport never reconnects by itself. When a Manager is told the
// connection was lost it retries with exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Reset to 1s after a successful connect
//
// Each delay gets up to 20% random jitter so that many clients dropped by the
// same server restart do not reconnect in lockstep.
package connection
