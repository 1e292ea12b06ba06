package client

import "sync"

// Registry tracks clients in registration order and designates one as active.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	order   []string
	active  string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register adds c, replacing any client with the same id. The first client
// registered becomes active.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID()]; !ok {
		r.order = append(r.order, c.ID())
	}
	r.clients[c.ID()] = c
	if r.active == "" {
		r.active = c.ID()
	}
}

// Get returns the client with the given id.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Remove destroys and removes a client. Removing the active client activates
// the earliest registered remaining one.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	if r.active == id {
		r.active = ""
		if len(r.order) > 0 {
			r.active = r.order[0]
		}
	}
	r.mu.Unlock()

	c.Destroy()
}

// List returns clients in registration order.
func (r *Registry) List() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id])
	}
	return out
}

// SetActive activates a registered client. Returns false for unknown ids.
func (r *Registry) SetActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	r.active = id
	return true
}

// Active returns the active client, if any.
func (r *Registry) Active() (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == "" {
		return nil, false
	}
	c, ok := r.clients[r.active]
	return c, ok
}

// Clear destroys and removes every client.
func (r *Registry) Clear() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.order = nil
	r.active = ""
	r.mu.Unlock()

	for _, c := range clients {
		c.Destroy()
	}
}
