package realtime

import (
	"sync"
)

// Registry owns the set of live connections keyed by user id. At most one
// connection per user: registering a second connection for the same user
// returns the evicted previous one so the hub can close it.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[uint]*Client),
	}
}

// Register installs client as the live connection for its user. Detection of
// an existing connection and the swap happen under one lock so there is no
// window with two live connections for one user.
func (r *Registry) Register(client *Client) (evicted *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[client.userID]
	r.conns[client.userID] = client
	if prev == client {
		return nil
	}
	return prev
}

// Remove deletes the registry entry for client, but only if client is still
// the current entry. Returns false when the entry was already replaced or
// removed; callers use that as the run-once latch for the disconnect cascade.
func (r *Registry) Remove(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[client.userID]
	if !ok || current != client {
		return false
	}
	delete(r.conns, client.userID)
	return true
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID uint) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.conns[userID]
	return client, ok
}

// IsOnline reports whether userID has a live connection.
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.conns[userID]
	return ok
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns))
	for _, client := range r.conns {
		clients = append(clients, client)
	}
	return clients
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
