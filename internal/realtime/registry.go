package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks every live connection and indexes authenticated
// connections by user for broadcast targeting. It is the single shared
// mutable structure of the realtime tier; every operation holds the lock.
//
// Invariant: a connection appears in the user index iff it is registered
// and has authenticated, and removing the last connection for a user
// removes the user's entry entirely.
type Registry struct {
	mu     sync.Mutex
	conns  map[*Conn]uuid.UUID            // all open connections; uuid.Nil until authenticated
	byUser map[uuid.UUID]map[*Conn]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[*Conn]uuid.UUID),
		byUser: make(map[uuid.UUID]map[*Conn]struct{}),
	}
}

// Register adds a newly accepted connection in the unauthenticated state.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = uuid.Nil
}

// Authenticate binds the connection to a user and inserts it into the
// user index. Calling it again with the same user is a no-op; calling it
// with a different user moves the connection, so a connection is never
// indexed under two users.
func (r *Registry) Authenticate(c *Conn, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.conns[c]
	if !ok {
		// Unknown connection; a close raced the handshake.
		return
	}
	if prev == userID {
		return
	}
	if prev != uuid.Nil {
		r.removeFromIndex(c, prev)
	}

	r.conns[c] = userID
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[*Conn]struct{})
		r.byUser[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes the connection from the global set and, if
// authenticated, from its user's index set.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.conns[c]
	if !ok {
		return
	}
	delete(r.conns, c)
	if userID != uuid.Nil {
		r.removeFromIndex(c, userID)
	}
}

func (r *Registry) removeFromIndex(c *Conn, userID uuid.UUID) {
	set, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
}

// Principal returns the user a connection authenticated as, and whether
// it has authenticated at all.
func (r *Registry) Principal(c *Conn) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.conns[c]
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// ConnectionsExcluding snapshots every authenticated connection except
// the given one. The snapshot lets callers send outside the lock;
// connections closed after the snapshot fail their sends silently.
func (r *Registry) ConnectionsExcluding(exclude *Conn) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Conn, 0, len(r.conns))
	for _, set := range r.byUser {
		for c := range set {
			if c != exclude {
				out = append(out, c)
			}
		}
	}
	return out
}

// AllConnections snapshots every open connection, authenticated or not.
func (r *Registry) AllConnections() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// UserConnections snapshots the authenticated connections of one user.
func (r *Registry) UserConnections(userID uuid.UUID) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byUser[userID]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Len returns the number of open connections, authenticated or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// AuthenticatedUsers returns the number of users with at least one
// authenticated connection.
func (r *Registry) AuthenticatedUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}
