package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"connectfour-server/internal/game"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/", s.HelloWorldHandler)

	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/api/rooms", s.roomsHandler)

	mux.HandleFunc("/api/moves", s.movesHandler)

	mux.HandleFunc("/websocket", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "Hello World"}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(s.db.Health())
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// writeJSON writes a JSON response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// writeRejection maps a transition error to a status code. Unknown rooms
// are 404; every validation rejection is 400 with the error text, which the
// client is free to treat as ignorable (a click on a full column) or
// surface.
func (s *Server) writeRejection(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, ErrRoomNotFound) {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// roomsHandler handles room lifecycle: POST with an action of "create",
// "join" or "reset", and GET ?code= for the pull/recovery path.
func (s *Server) roomsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetRoom(w, r)
	case http.MethodPost:
		s.handleRoomAction(w, r)
	default:
		s.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "METHOD_NOT_ALLOWED: Use GET or POST"})
	}
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if err := ValidateRoomCode(NormalizeRoomCode(code)); err != nil {
		s.writeRejection(w, err)
		return
	}

	session, err := s.roomManager.GetRoom(code)
	if err != nil {
		s.writeRejection(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, RoomResponse{Game: session})
}

func (s *Server) handleRoomAction(w http.ResponseWriter, r *http.Request) {
	var req RoomActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID_PAYLOAD: Invalid JSON body"})
		return
	}

	switch req.Action {
	case "create":
		session, err := s.roomManager.CreateRoom(req.Username)
		if err != nil {
			s.writeRejection(w, err)
			return
		}

		log.Printf("Room %s created by %s", session.RoomCode, session.Player1)
		s.saveRoom(session)
		s.writeJSON(w, http.StatusOK, CreateRoomResponse{RoomCode: session.RoomCode, Game: session})

	case "join":
		session, err := s.roomManager.JoinRoom(req.RoomCode, req.Username)
		if err != nil {
			s.writeRejection(w, err)
			return
		}

		log.Printf("Room %s joined by %s", session.RoomCode, session.Player2)
		s.saveRoom(session)
		s.broadcastRoomUpdate(session)
		s.writeJSON(w, http.StatusOK, RoomResponse{Game: session})

	case "reset":
		session, err := s.roomManager.ResetRoom(req.RoomCode, req.NextStarter)
		if err != nil {
			s.writeRejection(w, err)
			return
		}

		log.Printf("Room %s reset, seat %d starts", session.RoomCode, session.Turn)
		s.saveRoom(session)
		s.broadcastRoomUpdate(session)
		s.writeJSON(w, http.StatusOK, RoomResponse{Game: session})

	default:
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID_ACTION: Action must be create, join or reset"})
	}
}

// movesHandler applies a single piece drop.
func (s *Server) movesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "METHOD_NOT_ALLOWED: Use POST"})
		return
	}

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID_PAYLOAD: Invalid JSON body"})
		return
	}

	session, err := s.roomManager.MakeMove(req.RoomCode, req.Player, req.Column)
	if err != nil {
		s.writeRejection(w, err)
		return
	}

	s.saveRoom(session)
	s.broadcastRoomUpdate(session)
	s.writeJSON(w, http.StatusOK, RoomResponse{Game: session})
}

// saveRoom persists a snapshot after an accepted transition. Best effort:
// the in-memory copy is canonical and the periodic save task retries.
func (s *Server) saveRoom(session game.Session) {
	if err := s.persistenceManager.SaveRoom(session); err != nil {
		log.Printf("Failed to persist room %s: %v", session.RoomCode, err)
	}
}

// broadcastRoomUpdate pushes the new snapshot to every watcher of the room.
// Runs after the room lock is released; delivery failures are logged and
// otherwise ignored since watchers can always re-fetch.
func (s *Server) broadcastRoomUpdate(session game.Session) {
	for _, connID := range s.notifier.Watchers(session.RoomCode) {
		conn := s.connectionManager.GetConnection(connID)
		if conn == nil {
			continue
		}

		msg := ServerMessage{
			Type:    "room_update",
			Payload: RoomUpdateNotification{Game: session},
		}

		// Use background context for broadcasts
		if err := s.sendMessage(conn, context.Background(), msg); err != nil {
			log.Printf("Failed to broadcast to %s: %v", connID, err)
		}
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	defer func() {
		s.dropConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)
	}()

	for {
		msgType, data, err := socket.Read(ctx)

		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		s.connectionHealth.UpdateActivity(connectionID)

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(socket, ctx, "RATE_LIMITED: Too many messages, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
			s.sendError(socket, ctx, err.Error())
			continue
		}

		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID)

		case "watch_room":
			s.handleWatchRoom(socket, ctx, connectionID, msg.Payload)

		case "unwatch_room":
			s.notifier.Unwatch(connectionID)
		}
	}
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string) {
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", connectionID, err)
	}
}

// handleWatchRoom subscribes the connection to a room's updates and
// immediately sends the current snapshot, so a watcher that missed pushes
// while reconnecting starts from fresh state.
func (s *Server) handleWatchRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req WatchRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid watch_room payload")
		return
	}

	roomCode := NormalizeRoomCode(req.RoomCode)
	if err := ValidateRoomCode(roomCode); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	session, err := s.roomManager.GetRoom(roomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.notifier.Watch(roomCode, connectionID)

	response := ServerMessage{
		Type:    "room_update",
		Payload: RoomUpdateNotification{Game: session},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send snapshot to %s: %v", connectionID, err)
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: msg,
		},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}
