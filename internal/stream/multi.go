// ABOUTME: Manager for multiple simultaneous outgoing streams
// ABOUTME: Clients keyed by opaque uuid tags handed to external controllers
package stream

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Multi owns a set of stream clients so one master bus can feed several
// mounts (for example a high-bitrate and a low-bitrate relay) at once.
type Multi struct {
	mu      sync.Mutex
	clients map[string]*Client
	onStat  StatusFunc
}

// NewMulti creates an empty manager. onStatus, when non-nil, observes every
// client's transitions.
func NewMulti(onStatus StatusFunc) *Multi {
	return &Multi{clients: make(map[string]*Client), onStat: onStatus}
}

// Add validates cfg, creates a client, and returns its opaque id.
func (m *Multi) Add(cfg Config) (string, error) {
	c, err := NewClient(cfg, m.onStat)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.clients[id] = c
	m.mu.Unlock()
	return id, nil
}

// Remove disconnects and drops the client with the given id.
func (m *Multi) Remove(id string) error {
	m.mu.Lock()
	c, ok := m.clients[id]
	delete(m.clients, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("stream: unknown id %s", id)
	}
	c.Disconnect()
	return nil
}

// Get returns the client for id, or an error for unknown ids.
func (m *Multi) Get(id string) (*Client, error) {
	m.mu.Lock()
	c, ok := m.clients[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("stream: unknown id %s", id)
	}
	return c, nil
}

// IDs returns the ids of all managed clients.
func (m *Multi) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	return ids
}

// UpdateMetadata stages the song on every client.
func (m *Multi) UpdateMetadata(artist, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		c.UpdateMetadata(artist, title)
	}
}

// DisconnectAll tears down every stream, keeping the clients registered.
func (m *Multi) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		c.Disconnect()
	}
}
