// Package chat relays text frames between websocket clients.
//
// A Registry holds the open connections in join order. Broadcast copies the
// set under the lock and then enqueues the frame on each connection's bounded
// queue without blocking, so one slow or dead peer cannot stall the rest; a
// full queue drops that frame for that peer only.
//
// Handler.ServeConn runs one connection: a writer goroutine drains the queue
// and sends pings, and the calling goroutine reads frames and broadcasts them
// as "<label>: <text>". When the read side ends for any reason the connection
// leaves the registry, the socket is closed and "<label> left the chat" is
// broadcast to everyone still connected. The sender receives its own frames.
package chat
