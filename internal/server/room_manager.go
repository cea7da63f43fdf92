package server

import (
	"errors"
	"strings"
	"sync"

	"connectfour-server/internal/game"
)

var ErrRoomNotFound = errors.New("ROOM_NOT_FOUND: Room not found")

// RoomManager owns the canonical copy of every session, keyed by room code.
//
// Locking is two-level: mu guards only the rooms map, and each room carries
// its own mutex so transitions against the same code are serialized while
// unrelated rooms never block each other. Callers always get session values
// back, never pointers into the map.
type RoomManager struct {
	rooms map[string]*room
	mu    sync.RWMutex
}

// room pairs a session with the lock that serializes its transitions.
type room struct {
	session game.Session
	mu      sync.Mutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*room),
	}
}

// CreateRoom allocates a room with a fresh unique code and the host in
// seat 1. Code collisions are retried internally; the caller never sees
// them.
func (rm *RoomManager) CreateRoom(username string) (game.Session, error) {
	if err := rm.validateUsernameFormat(username); err != nil {
		return game.Session{}, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	usedCodes := make(map[string]bool, len(rm.rooms))
	for code := range rm.rooms {
		usedCodes[code] = true
	}
	roomCode := GenerateRoomCode(usedCodes)

	session := game.New(roomCode, strings.TrimSpace(username))
	rm.rooms[roomCode] = &room{session: session}

	return session, nil
}

// GetRoom returns the current session snapshot for a code.
func (rm *RoomManager) GetRoom(roomCode string) (game.Session, error) {
	roomCode = NormalizeRoomCode(roomCode)

	rm.mu.RLock()
	r, exists := rm.rooms[roomCode]
	rm.mu.RUnlock()

	if !exists {
		return game.Session{}, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, nil
}

// applyTransition runs fn against a room's session under that room's lock
// and stores the result if fn accepted it. fn sees the result of the
// immediately preceding transition, so two racing moves cannot both observe
// the same stale turn.
func (rm *RoomManager) applyTransition(roomCode string, fn func(game.Session) (game.Session, error)) (game.Session, error) {
	roomCode = NormalizeRoomCode(roomCode)

	rm.mu.RLock()
	r, exists := rm.rooms[roomCode]
	rm.mu.RUnlock()

	if !exists {
		return game.Session{}, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := fn(r.session)
	if err != nil {
		return game.Session{}, err
	}

	r.session = next
	return next, nil
}

// JoinRoom fills seat 2.
func (rm *RoomManager) JoinRoom(roomCode, username string) (game.Session, error) {
	if err := rm.validateUsernameFormat(username); err != nil {
		return game.Session{}, err
	}

	return rm.applyTransition(roomCode, func(s game.Session) (game.Session, error) {
		return s.Join(strings.TrimSpace(username))
	})
}

// MakeMove drops a piece for seat into column.
func (rm *RoomManager) MakeMove(roomCode string, seat, column int) (game.Session, error) {
	return rm.applyTransition(roomCode, func(s game.Session) (game.Session, error) {
		return s.Move(seat, column)
	})
}

// ResetRoom starts a fresh game in an existing room. startingSeat 0 means
// "not supplied" and defaults to seat 1.
func (rm *RoomManager) ResetRoom(roomCode string, startingSeat int) (game.Session, error) {
	return rm.applyTransition(roomCode, func(s game.Session) (game.Session, error) {
		return s.Reset(startingSeat), nil
	})
}

// Restore puts a persisted session back into the map. Used on startup
// before the server accepts requests.
func (rm *RoomManager) Restore(session game.Session) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rooms[session.RoomCode] = &room{session: session}
}

// RemoveRoom drops a room from memory. Used by the cleanup task after the
// persisted copy is deleted.
func (rm *RoomManager) RemoveRoom(roomCode string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, NormalizeRoomCode(roomCode))
}

// AllSessions snapshots every room, for the periodic save task.
func (rm *RoomManager) AllSessions() []game.Session {
	rm.mu.RLock()
	rooms := make([]*room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.RUnlock()

	sessions := make([]game.Session, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		sessions = append(sessions, r.session)
		r.mu.Unlock()
	}

	return sessions
}

func (rm *RoomManager) validateUsernameFormat(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("USERNAME_INVALID: Username cannot be empty")
	}
	if len(username) > 20 {
		return errors.New("USERNAME_INVALID: Username too long (max 20 characters)")
	}
	return nil
}
