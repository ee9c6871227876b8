package server

import "sync"

// Registry tracks active connections by session ID, trimmed to what the
// demo chat application's broadcast needs. Server and Worker do not use
// it; Stop drains connections through its own WaitGroup.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*RegisteredConnection
}

// RegisteredConnection is one entry in the Registry.
type RegisteredConnection struct {
	SessionID  string
	RemoteAddr string
	Path       string
	Send       func(text string) error
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*RegisteredConnection)}
}

// Add registers c, replacing any prior entry with the same SessionID.
func (r *Registry) Add(c *RegisteredConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.SessionID] = c
}

// Remove drops the entry for sessionID, if present.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, sessionID)
}

// Count returns the number of currently registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Broadcast calls every registered connection's Send with text, one after
// another and outside the lock. Send errors are ignored, so a failed send
// does not stop delivery to the rest; a Send that blocks delays the ones
// after it.
func (r *Registry) Broadcast(text string) {
	r.mu.Lock()
	targets := make([]*RegisteredConnection, 0, len(r.conns))
	for _, c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		_ = c.Send(text)
	}
}
