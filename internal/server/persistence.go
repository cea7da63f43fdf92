package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"connectfour-server/internal/game"
)

// PersistenceManager handles saving and loading room state to/from database
type PersistenceManager struct {
	db *sql.DB
}

func NewPersistenceManager(db *sql.DB) *PersistenceManager {
	return &PersistenceManager{
		db: db,
	}
}

// SaveRoom persists a session snapshot to the database.
// Uses UPSERT (INSERT OR REPLACE) to handle both new rooms and updates.
func (pm *PersistenceManager) SaveRoom(session game.Session) error {
	sessionData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize room: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO rooms (room_code, status, session_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = pm.db.Exec(
		query,
		session.RoomCode,
		string(session.Status()),
		string(sessionData),
		session.CreatedAt,
		session.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", session.RoomCode, err)
	}

	return nil
}

// LoadRoom retrieves a session from the database by room code.
func (pm *PersistenceManager) LoadRoom(roomCode string) (game.Session, error) {
	query := `
		SELECT session_data FROM rooms WHERE room_code = ?
	`

	var sessionData string
	err := pm.db.QueryRow(query, roomCode).Scan(&sessionData)

	if err == sql.ErrNoRows {
		return game.Session{}, ErrRoomNotFound
	}
	if err != nil {
		return game.Session{}, fmt.Errorf("failed to load room %s: %w", roomCode, err)
	}

	var session game.Session
	if err := json.Unmarshal([]byte(sessionData), &session); err != nil {
		return game.Session{}, fmt.Errorf("failed to deserialize room %s: %w", roomCode, err)
	}

	return session, nil
}

// LoadAllRooms retrieves every persisted session.
// Used on server startup to restore in-memory state. Finished rooms load
// too, since a concluded game can still be reset, so its room stays live
// until the cleanup task retires it.
func (pm *PersistenceManager) LoadAllRooms() ([]game.Session, error) {
	query := `
		SELECT session_data FROM rooms
		ORDER BY updated_at DESC
	`

	rows, err := pm.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var sessions []game.Session
	for rows.Next() {
		var sessionData string
		if err := rows.Scan(&sessionData); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}

		var session game.Session
		if err := json.Unmarshal([]byte(sessionData), &session); err != nil {
			// Log the error but continue with other rooms
			fmt.Printf("Warning: failed to deserialize room: %v\n", err)
			continue
		}

		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room rows: %w", err)
	}

	return sessions, nil
}

// DeleteRoom removes a room from the database. The room code becomes free
// for reuse once the in-memory copy is removed as well.
func (pm *PersistenceManager) DeleteRoom(roomCode string) error {
	query := `DELETE FROM rooms WHERE room_code = ?`

	result, err := pm.db.Exec(query, roomCode)
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomCode, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion result: %w", err)
	}

	if rowsAffected == 0 {
		return ErrRoomNotFound
	}

	return nil
}

// CleanupOldRooms deletes finished rooms older than the specified duration
// and returns the codes it removed so the in-memory copies can be dropped.
func (pm *PersistenceManager) CleanupOldRooms(olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan)

	// Collect the codes first so the caller can evict them from memory
	selectQuery := `SELECT room_code FROM rooms WHERE status = ? AND updated_at < ?`
	rows, err := pm.db.Query(selectQuery, string(game.StatusFinished), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query old rooms: %w", err)
	}

	var roomCodes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan room code: %w", err)
		}
		roomCodes = append(roomCodes, code)
	}
	rows.Close()

	deleteQuery := `DELETE FROM rooms WHERE status = ? AND updated_at < ?`
	if _, err := pm.db.Exec(deleteQuery, string(game.StatusFinished), cutoff); err != nil {
		return nil, fmt.Errorf("failed to cleanup old rooms: %w", err)
	}

	return roomCodes, nil
}
