// Package channel implements the room layer: which connections are subscribed
// to which channels, and the fan-out of published events to them.
package channel

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"notification-relay/internal/models"
)

// Pusher is the write side of one live connection. The gateway's client type
// implements it; keeping it an interface keeps this package free of any
// transport dependency and makes fan-out trivially testable.
type Pusher interface {
	ID() string
	Push(event models.Event) error
}

// Manager owns the channel -> subscribers mapping and its reverse index.
// Both maps are mutated under one mutex so they can never disagree.
type Manager struct {
	log *zap.Logger

	mu        sync.RWMutex
	byChannel map[models.ChannelID]map[string]struct{}
	byConn    map[string]map[models.ChannelID]struct{}
	pushers   map[string]Pusher
}

func NewManager(log *zap.Logger) *Manager {
	return &Manager{
		log:       log,
		byChannel: make(map[models.ChannelID]map[string]struct{}),
		byConn:    make(map[string]map[models.ChannelID]struct{}),
		pushers:   make(map[string]Pusher),
	}
}

// Attach makes a connection known to the manager. Joins for a connection that
// was never attached are ignored.
func (m *Manager) Attach(p Pusher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushers[p.ID()] = p
	if _, ok := m.byConn[p.ID()]; !ok {
		m.byConn[p.ID()] = make(map[models.ChannelID]struct{})
	}
}

// Detach removes the connection from every channel and forgets its pusher.
// Called exactly once per connection teardown; extra calls are no-ops.
func (m *Manager) Detach(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveAllLocked(connID)
	delete(m.byConn, connID)
	delete(m.pushers, connID)
}

// Join subscribes the connection to a channel. Idempotent.
func (m *Manager) Join(connID string, ch models.ChannelID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channels, ok := m.byConn[connID]
	if !ok {
		m.log.Warn("join from unattached connection", zap.String("conn", connID), zap.Stringer("channel", ch))
		return
	}
	if _, ok := m.byChannel[ch]; !ok {
		m.byChannel[ch] = make(map[string]struct{})
	}
	m.byChannel[ch][connID] = struct{}{}
	channels[ch] = struct{}{}
}

// Leave unsubscribes the connection from a channel. Idempotent; leaving a
// channel it never joined is a no-op.
func (m *Manager) Leave(connID string, ch models.ChannelID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(connID, ch)
}

// LeaveAll unsubscribes the connection from every channel it joined, walking
// the reverse index rather than scanning all channels.
func (m *Manager) LeaveAll(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveAllLocked(connID)
}

func (m *Manager) leaveAllLocked(connID string) {
	for ch := range m.byConn[connID] {
		m.leaveLocked(connID, ch)
	}
}

func (m *Manager) leaveLocked(connID string, ch models.ChannelID) {
	if subs, ok := m.byChannel[ch]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(m.byChannel, ch)
		}
	}
	if channels, ok := m.byConn[connID]; ok {
		delete(channels, ch)
	}
}

// Subscribers returns a snapshot of the channel's current subscriber ids.
func (m *Manager) Subscribers(ch models.ChannelID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := make([]string, 0, len(m.byChannel[ch]))
	for connID := range m.byChannel[ch] {
		subs = append(subs, connID)
	}
	return subs
}

// Channels returns a snapshot of the channels the connection has joined.
func (m *Manager) Channels(connID string) []models.ChannelID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channels := make([]models.ChannelID, 0, len(m.byConn[connID]))
	for ch := range m.byConn[connID] {
		channels = append(channels, ch)
	}
	return channels
}

// Publish delivers an event to every current subscriber of the channel and
// returns how many pushes succeeded. The subscriber set is snapshotted first,
// then pushed to outside the lock; a failing push (a connection that is just
// going away) is logged and skipped, never aborting delivery to the rest.
func (m *Manager) Publish(ch models.ChannelID, eventType string, payload json.RawMessage) int {
	m.mu.RLock()
	targets := make([]Pusher, 0, len(m.byChannel[ch]))
	for connID := range m.byChannel[ch] {
		if p, ok := m.pushers[connID]; ok {
			targets = append(targets, p)
		}
	}
	m.mu.RUnlock()

	event := models.Event{Channel: ch, Type: eventType, Payload: payload}
	delivered := 0
	for _, p := range targets {
		if err := p.Push(event); err != nil {
			m.log.Warn("push failed",
				zap.String("conn", p.ID()),
				zap.Stringer("channel", ch),
				zap.String("event", eventType),
				zap.Error(err))
			continue
		}
		delivered++
	}
	m.log.Debug("event published",
		zap.Stringer("channel", ch),
		zap.String("event", eventType),
		zap.Int("recipients", delivered))
	return delivered
}
