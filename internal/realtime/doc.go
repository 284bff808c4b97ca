// Package realtime implements the WebSocket synchronization tier: a
// connection registry indexing authenticated connections by user, and a
// hub that runs the per-connection auth handshake and fans task-change
// events out to every other authenticated connection.
//
// One goroutine reads from each connection and one drains its outbound
// queue; the registry is the only shared mutable structure and every
// mutation holds its lock. Broadcast snapshots the recipient set under
// the lock, then sends outside it so a slow connection cannot stall the
// fan-out.
package realtime
