// Package registry tracks which identities currently have live connections.
// It is the single source of truth for presence; all state is in memory and
// vanishes with the process.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"notification-relay/internal/models"
)

// Registry maps identities to their active connection ids. One identity may
// hold several connections at once (multiple tabs or devices); an identity
// with no connections left is removed entirely so offline users never leak.
type Registry struct {
	log *zap.Logger

	mu         sync.RWMutex
	byIdentity map[models.Identity]map[string]struct{}
	byConn     map[string]models.Identity
}

func New(log *zap.Logger) *Registry {
	return &Registry{
		log:        log,
		byIdentity: make(map[models.Identity]map[string]struct{}),
		byConn:     make(map[string]models.Identity),
	}
}

// Register adds a connection under the identity's active set.
func (r *Registry) Register(identity models.Identity, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byIdentity[identity]; !ok {
		r.byIdentity[identity] = make(map[string]struct{})
	}
	r.byIdentity[identity][connID] = struct{}{}
	r.byConn[connID] = identity
	r.log.Debug("connection registered",
		zap.String("conn", connID),
		zap.String("user", identity.ID),
		zap.String("kind", string(identity.Kind)))
}

// Unregister removes a connection. Unknown connection ids are a no-op, so a
// double teardown is harmless.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	if conns, ok := r.byIdentity[identity]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byIdentity, identity)
		}
	}
	r.log.Debug("connection unregistered",
		zap.String("conn", connID),
		zap.String("user", identity.ID))
}

// IsOnline reports whether the identity has at least one live connection.
func (r *Registry) IsOnline(identity models.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identity]) > 0
}

// ConnectionsFor returns a snapshot of the identity's connection ids.
func (r *Registry) ConnectionsFor(identity models.Identity) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]string, 0, len(r.byIdentity[identity]))
	for id := range r.byIdentity[identity] {
		conns = append(conns, id)
	}
	return conns
}

// Counts returns the number of online identities and total connections,
// for the health endpoint.
func (r *Registry) Counts() (identities, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity), len(r.byConn)
}
