package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks live websocket connections by connection ID.
// Which room a connection is watching lives in the Notifier; this type only
// owns the sockets themselves.
type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID -> socket
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
}

// GetConnection returns the socket for a connection ID, or nil if the
// connection has already gone away.
func (cm *ConnectionManager) GetConnection(id string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.connections[id]
}

// ConnectionIDs returns a snapshot of all live connection IDs.
func (cm *ConnectionManager) ConnectionIDs() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	ids := make([]string, 0, len(cm.connections))
	for id := range cm.connections {
		ids = append(ids, id)
	}
	return ids
}
