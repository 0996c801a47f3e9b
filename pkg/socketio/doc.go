// Package socketio implements a minimal Socket.IO v4 client over WebSocket.
//
// Only what the monitor service needs is supported: Engine.IO protocol 4 on
// the websocket transport (no long-polling, no upgrades), the default
// namespace, named events with JSON arguments, and server-requested acks.
// The client never reconnects by itself; it reports every lost connection
// exactly once to the handlers registered with OnDisconnect.
//
// # Packets
//
// Every WebSocket text frame is one Engine.IO packet, a type digit followed
// by its data:
//
//	0{"sid":"..","pingInterval":25000,"pingTimeout":20000}   open
//	2 / 3                                                    ping / pong
//	1                                                        close
//	4<socket.io packet>                                      message
//
// Socket.IO packets inside a message are again a type digit followed by an
// optional namespace, ack id and JSON payload:
//
//	40{"sid":".."}                     connected
//	42["packets",{"simId":"1"}]        event
//	4213["event"]                      event requesting ack 13
//	44{"message":"not authorized"}     connect error
//	41                                 disconnect
//
// Inbound events are dispatched on the connection's read goroutine, so
// handlers observe them in arrival order and must not block for long.
package socketio
