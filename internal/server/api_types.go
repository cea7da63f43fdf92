package server

import "connectfour-server/internal/game"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ============================================================================
// ROOM ACTIONS (POST /api/rooms)
// ============================================================================
// One endpoint, dispatched on Action: "create", "join" or "reset".
type RoomActionRequest struct {
	Action      string `json:"action"`
	Username    string `json:"username,omitempty"`
	RoomCode    string `json:"roomCode,omitempty"`
	NextStarter int    `json:"nextStarter,omitempty"` // reset only; 0 means default (seat 1)
}

type CreateRoomResponse struct {
	RoomCode string       `json:"roomCode"`
	Game     game.Session `json:"game"`
}

type RoomResponse struct {
	Game game.Session `json:"game"`
}

// ============================================================================
// MOVES (POST /api/moves)
// ============================================================================
type MoveRequest struct {
	RoomCode string `json:"roomCode"`
	Column   int    `json:"column"`
	Player   int    `json:"player"` // seat making the move: 1 or 2
}

// ============================================================================
// WEBSOCKET (watch_room / room_update)
// ============================================================================
type WatchRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type RoomUpdateNotification struct {
	Game game.Session `json:"game"`
}
