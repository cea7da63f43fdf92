package game

import (
	"errors"
	"time"

	"connectfour-server/internal/board"
)

var (
	ErrRoomFull       = errors.New("ROOM_FULL: Room already has two players")
	ErrGameNotStarted = errors.New("GAME_NOT_STARTED: Waiting for second player")
	ErrGameOver       = errors.New("GAME_OVER: Game has ended")
	ErrNotYourTurn    = errors.New("NOT_YOUR_TURN: It is not your turn")
	ErrInvalidSeat    = errors.New("INVALID_SEAT: Seat must be 1 or 2")
)

// TieWinner is the Winner value for a drawn game. A nil Winner means the
// game is still ongoing; 1 or 2 means that seat won.
const TieWinner = 0

// Session is the full authoritative state of one room. It is also the wire
// snapshot: marshalling a Session produces the flat record clients consume.
//
// Session is a value type. Transitions take a Session by value and return
// the updated copy, so a rejected transition can never leave partial state
// behind.
type Session struct {
	RoomCode  string     `json:"roomCode"`
	Grid      board.Grid `json:"board"`
	Player1   string     `json:"player1Username"`
	Player2   string     `json:"player2Username,omitempty"`
	Turn      int        `json:"currentTurn"`
	Winner    *int       `json:"winner"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Status values stored alongside the session snapshot.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// New creates a session for a freshly allocated room code with the host in
// seat 1. Seat 2 stays empty until a join.
func New(roomCode, host string) Session {
	now := time.Now()
	return Session{
		RoomCode:  roomCode,
		Player1:   host,
		Turn:      1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status derives the lifecycle state from the session value.
func (s Session) Status() Status {
	switch {
	case s.Winner != nil:
		return StatusFinished
	case s.Player2 == "":
		return StatusWaiting
	default:
		return StatusPlaying
	}
}

// Concluded reports whether the outcome has been set.
func (s Session) Concluded() bool {
	return s.Winner != nil
}

// Join fills seat 2 and starts the game. Seat 2, once assigned, is kept
// even across resets, so a second join is rejected regardless of identity.
func (s Session) Join(identity string) (Session, error) {
	if s.Player2 != "" {
		return s, ErrRoomFull
	}

	s.Player2 = identity
	s.UpdatedAt = time.Now()
	return s, nil
}

// Move drops a piece for seat into column. The turn check runs before the
// drop, so a structurally legal move by the wrong seat leaves the grid
// untouched. A move that both completes a line and fills the grid is a win,
// not a tie.
func (s Session) Move(seat, column int) (Session, error) {
	if seat != 1 && seat != 2 {
		return s, ErrInvalidSeat
	}
	if s.Player2 == "" {
		return s, ErrGameNotStarted
	}
	if s.Winner != nil {
		return s, ErrGameOver
	}
	if seat != s.Turn {
		return s, ErrNotYourTurn
	}

	grid, _, err := s.Grid.Drop(column, board.Cell(seat))
	if err != nil {
		return s, err
	}

	s.Grid = grid
	s.UpdatedAt = time.Now()

	if grid.HasLine(board.Cell(seat)) {
		winner := seat
		s.Winner = &winner
		return s, nil
	}

	if grid.IsFull() {
		tie := TieWinner
		s.Winner = &tie
		return s, nil
	}

	if seat == 1 {
		s.Turn = 2
	} else {
		s.Turn = 1
	}

	return s, nil
}

// Reset clears the board and outcome while keeping the room code and both
// seat identities. startingSeat picks who opens the next game; anything
// other than 1 or 2 falls back to seat 1, matching the reset request's
// optional nextStarter field. Resetting mid-game is allowed and discards
// the unfinished game.
func (s Session) Reset(startingSeat int) Session {
	if startingSeat != 1 && startingSeat != 2 {
		startingSeat = 1
	}

	s.Grid = board.Grid{}
	s.Winner = nil
	s.Turn = startingSeat
	s.UpdatedAt = time.Now()
	return s
}
