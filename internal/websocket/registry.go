package websocket

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry maps each online user to their current Client. It starts empty
// and lives for the lifetime of the process.
type Registry struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[uuid.UUID]*Client)}
}

// Register makes c the user's handle and returns the handle it replaced,
// if any. The caller owns closing the replaced client.
func (r *Registry) Register(c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.clients[c.UserID]
	r.clients[c.UserID] = c
	if old == c {
		return nil
	}
	return old
}

// Unregister removes c only if it is still the registered handle, so a
// stale socket closing late cannot evict its replacement.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.clients[c.UserID]; !ok || current != c {
		return false
	}
	delete(r.clients, c.UserID)
	return true
}

func (r *Registry) Get(userID uuid.UUID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	_, ok := r.Get(userID)
	return ok
}

// OnlineUserIDs returns the online users in a stable order.
func (r *Registry) OnlineUserIDs() []uuid.UUID {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (r *Registry) clientsSnapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
