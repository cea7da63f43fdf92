package server

import "sync"

// Notifier is the registry behind the push channel: it remembers which
// connections want updates for which room. Registration never touches the
// room locks, so subscribing can't stall a transition, and delivery happens
// after applyTransition has already released the room.
//
// Delivery itself is best effort. A watcher that misses a push simply
// re-fetches the room, so the registry never has to block or retry.
type Notifier struct {
	watchers map[string]map[string]bool // roomCode -> set of connectionIDs
	byConn   map[string]string          // connectionID -> roomCode
	mu       sync.RWMutex
}

func NewNotifier() *Notifier {
	return &Notifier{
		watchers: make(map[string]map[string]bool),
		byConn:   make(map[string]string),
	}
}

// Watch registers a connection for a room's updates. A connection watches
// at most one room; watching a second room replaces the first.
func (n *Notifier) Watch(roomCode, connectionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if prev, ok := n.byConn[connectionID]; ok {
		delete(n.watchers[prev], connectionID)
		if len(n.watchers[prev]) == 0 {
			delete(n.watchers, prev)
		}
	}

	if n.watchers[roomCode] == nil {
		n.watchers[roomCode] = make(map[string]bool)
	}
	n.watchers[roomCode][connectionID] = true
	n.byConn[connectionID] = roomCode
}

// Unwatch removes a connection's registration, if any.
func (n *Notifier) Unwatch(connectionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	roomCode, ok := n.byConn[connectionID]
	if !ok {
		return
	}

	delete(n.byConn, connectionID)
	delete(n.watchers[roomCode], connectionID)
	if len(n.watchers[roomCode]) == 0 {
		delete(n.watchers, roomCode)
	}
}

// Watchers returns the connection IDs currently watching a room.
func (n *Notifier) Watchers(roomCode string) []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ids := make([]string, 0, len(n.watchers[roomCode]))
	for id := range n.watchers[roomCode] {
		ids = append(ids, id)
	}
	return ids
}

// WatchedRoom returns the room a connection is watching, or "".
func (n *Notifier) WatchedRoom(connectionID string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.byConn[connectionID]
}
