// Package syncclient is the client-side counterpart of the realtime hub:
// it connects, authenticates, keeps a local task view reconciled against
// inbound events, and reconnects with capped backoff when the transport
// drops.
package syncclient
