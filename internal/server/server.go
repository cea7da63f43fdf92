package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"

	"connectfour-server/internal/database"
)

type Server struct {
	port               int
	db                 database.Service
	roomManager        *RoomManager
	connectionManager  *ConnectionManager
	notifier           *Notifier
	persistenceManager *PersistenceManager
	rateLimiter        *RateLimiter
	connectionHealth   *ConnectionHealth
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	// Initialize database
	dbService := database.New()

	// Run migrations
	if err := runMigrations(dbService.DB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	persistenceManager := NewPersistenceManager(dbService.DB())
	roomManager := NewRoomManager()

	// Load persisted rooms from database
	if err := loadPersistedState(persistenceManager, roomManager); err != nil {
		log.Printf("Warning: Failed to load persisted state: %v", err)
		// Don't fatal - allow server to start with empty state
	}

	newServer := &Server{
		port:               port,
		db:                 dbService,
		roomManager:        roomManager,
		connectionManager:  NewConnectionManager(),
		notifier:           NewNotifier(),
		persistenceManager: persistenceManager,
		rateLimiter:        NewRateLimiter(10, time.Second),
		connectionHealth:   NewConnectionHealth(),
	}

	// Start background tasks
	go newServer.periodicSaveTask()
	go newServer.cleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", newServer.port),
		Handler:      newServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return newServer, httpServer
}

// runMigrations applies database migrations using goose
func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "./db/migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("Database migrations applied successfully")
	return nil
}

// loadPersistedState restores rooms from the database
func loadPersistedState(pm *PersistenceManager, rm *RoomManager) error {
	sessions, err := pm.LoadAllRooms()
	if err != nil {
		return fmt.Errorf("failed to load rooms: %w", err)
	}

	for _, session := range sessions {
		rm.Restore(session)
		log.Printf("Restored room: %s (status: %s)", session.RoomCode, session.Status())
	}

	log.Printf("Loaded %d rooms", len(sessions))
	return nil
}

// periodicSaveTask runs every 30 seconds and persists all rooms.
// Catches anything the per-transition saves missed (e.g. a save that failed
// transiently).
func (s *Server) periodicSaveTask() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		savedCount := 0
		for _, session := range s.roomManager.AllSessions() {
			if err := s.persistenceManager.SaveRoom(session); err != nil {
				log.Printf("Periodic save failed for room %s: %v", session.RoomCode, err)
			} else {
				savedCount++
			}
		}

		log.Printf("Periodic save completed: %d rooms persisted", savedCount)
	}
}

// cleanupTask runs every hour. It retires finished rooms older than 24
// hours (players have had time to see the final board) and sweeps stale
// connection bookkeeping.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		deleted, err := s.persistenceManager.CleanupOldRooms(24 * time.Hour)
		if err != nil {
			log.Printf("Cleanup task failed: %v", err)
		} else {
			for _, roomCode := range deleted {
				s.roomManager.RemoveRoom(roomCode)
			}
			if len(deleted) > 0 {
				log.Printf("Cleanup task: deleted %d old finished rooms", len(deleted))
			}
		}

		s.rateLimiter.Cleanup()

		// Watchers quiet for over an hour are presumed gone; the next write
		// to their socket would fail anyway.
		for _, connID := range s.connectionHealth.GetInactiveConnections(1 * time.Hour) {
			s.dropConnection(connID)
		}
	}
}

// dropConnection tears down every trace of a connection.
func (s *Server) dropConnection(connectionID string) {
	s.notifier.Unwatch(connectionID)
	s.rateLimiter.RemoveConnection(connectionID)
	s.connectionHealth.RemoveConnection(connectionID)
	s.connectionManager.RemoveConnection(connectionID)
}

// Shutdown persists all rooms before the HTTP server stops accepting
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	sessions := s.roomManager.AllSessions()

	saved := 0
	for _, session := range sessions {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown save interrupted after %d/%d rooms: %w", saved, len(sessions), ctx.Err())
		default:
		}

		if err := s.persistenceManager.SaveRoom(session); err != nil {
			log.Printf("Shutdown save failed for room %s: %v", session.RoomCode, err)
			continue
		}
		saved++
	}

	log.Printf("Shutdown: persisted %d/%d rooms", saved, len(sessions))
	return s.db.Close()
}
