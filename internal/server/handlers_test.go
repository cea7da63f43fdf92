package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"connectfour-server/internal/board"
)

// postJSON is a tiny helper for driving the JSON endpoints.
func postJSON(t *testing.T, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Post(url, "application/json", bytes.NewReader(mustMarshal(body)))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("Failed reading response body: %v", err)
	}
	return resp, buf.Bytes()
}

// ============================================================================
// CREATE ROOM
// ============================================================================

func TestCreateRoom_HTTP(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, body := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:   "create",
		Username: "Ann",
	})

	assert.Equal(http.StatusOK, resp.StatusCode)

	var created CreateRoomResponse
	assert.NoError(json.Unmarshal(body, &created))
	assert.Equal(6, len(created.RoomCode))
	assert.Equal(created.RoomCode, created.Game.RoomCode)
	assert.Equal("Ann", created.Game.Player1)
	assert.Empty(created.Game.Player2)
	assert.Equal(1, created.Game.Turn)
	assert.Nil(created.Game.Winner)
}

func TestCreateRoom_HTTP_InvalidUsername(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, body := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:   "create",
		Username: "",
	})

	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	assert.NoError(json.Unmarshal(body, &errResp))
	assert.Contains(errResp.Error, "USERNAME_INVALID")
}

func TestCreateRoom_HTTP_PersistsSnapshot(t *testing.T) {
	assert := assert.New(t)
	s, url, cleanup := setupTestServer()
	defer cleanup()

	_, body := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:   "create",
		Username: "Ann",
	})

	var created CreateRoomResponse
	assert.NoError(json.Unmarshal(body, &created))

	loaded, err := s.persistenceManager.LoadRoom(created.RoomCode)
	assert.NoError(err)
	assert.Equal("Ann", loaded.Player1)
}

// ============================================================================
// JOIN ROOM
// ============================================================================

func TestJoinRoom_HTTP(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	_, body := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "create", Username: "Ann"})
	var created CreateRoomResponse
	assert.NoError(json.Unmarshal(body, &created))

	resp, body := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:   "join",
		RoomCode: created.RoomCode,
		Username: "Bo",
	})

	assert.Equal(http.StatusOK, resp.StatusCode)

	var joined RoomResponse
	assert.NoError(json.Unmarshal(body, &joined))
	assert.Equal("Bo", joined.Game.Player2)
}

func TestJoinRoom_HTTP_LowercaseCode(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	_, body := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "create", Username: "Ann"})
	var created CreateRoomResponse
	assert.NoError(json.Unmarshal(body, &created))

	// Room codes are case-insensitive on the way in
	resp, _ := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:   "join",
		RoomCode: "  " + strings.ToLower(created.RoomCode) + " ",
		Username: "Bo",
	})

	assert.Equal(http.StatusOK, resp.StatusCode)
}

func TestJoinRoom_HTTP_RoomFull(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	_, body := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "create", Username: "Ann"})
	var created CreateRoomResponse
	assert.NoError(json.Unmarshal(body, &created))

	postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "join", RoomCode: created.RoomCode, Username: "Bo"})
	resp, body := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "join", RoomCode: created.RoomCode, Username: "Cal"})

	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	assert.NoError(json.Unmarshal(body, &errResp))
	assert.Contains(errResp.Error, "ROOM_FULL")
}

func TestJoinRoom_HTTP_NotFound(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, body := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:   "join",
		RoomCode: "ABC123",
		Username: "Bo",
	})

	assert.Equal(http.StatusNotFound, resp.StatusCode)

	var errResp ErrorResponse
	assert.NoError(json.Unmarshal(body, &errResp))
	assert.Contains(errResp.Error, "ROOM_NOT_FOUND")
}

func TestRoomAction_HTTP_UnknownAction(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, body := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "destroy"})

	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	assert.NoError(json.Unmarshal(body, &errResp))
	assert.Contains(errResp.Error, "INVALID_ACTION")
}

// ============================================================================
// GET ROOM (pull recovery)
// ============================================================================

func TestGetRoom_HTTP(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	_, body := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "create", Username: "Ann"})
	var created CreateRoomResponse
	assert.NoError(json.Unmarshal(body, &created))

	resp, err := http.Get(url + "/api/rooms?code=" + created.RoomCode)
	assert.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusOK, resp.StatusCode)

	var fetched RoomResponse
	assert.NoError(json.NewDecoder(resp.Body).Decode(&fetched))
	assert.Equal(created.RoomCode, fetched.Game.RoomCode)
}

func TestGetRoom_HTTP_NotFound(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, err := http.Get(url + "/api/rooms?code=ABC123")
	assert.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestGetRoom_HTTP_BadCode(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, err := http.Get(url + "/api/rooms?code=NOPE")
	assert.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

// ============================================================================
// MOVES
// ============================================================================

// setupStartedGame creates a room with both seats filled and returns its code.
func setupStartedGame(t *testing.T, url string) string {
	t.Helper()

	_, body := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "create", Username: "Ann"})
	var created CreateRoomResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("Failed to parse create response: %v", err)
	}

	resp, _ := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "join", RoomCode: created.RoomCode, Username: "Bo"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Join failed with status %d", resp.StatusCode)
	}

	return created.RoomCode
}

func TestMakeMove_HTTP(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	roomCode := setupStartedGame(t, url)

	resp, body := postJSON(t, url+"/api/moves", MoveRequest{
		RoomCode: roomCode,
		Column:   3,
		Player:   1,
	})

	assert.Equal(http.StatusOK, resp.StatusCode)

	var moved RoomResponse
	assert.NoError(json.Unmarshal(body, &moved))
	assert.Equal(board.PlayerOne, moved.Game.Grid[5][3])
	assert.Equal(2, moved.Game.Turn)
	assert.Nil(moved.Game.Winner)
}

func TestMakeMove_HTTP_NotYourTurn(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	roomCode := setupStartedGame(t, url)

	resp, body := postJSON(t, url+"/api/moves", MoveRequest{
		RoomCode: roomCode,
		Column:   3,
		Player:   2,
	})

	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	assert.NoError(json.Unmarshal(body, &errResp))
	assert.Contains(errResp.Error, "NOT_YOUR_TURN")

	// Board unchanged
	fetched, err := http.Get(url + "/api/rooms?code=" + roomCode)
	assert.NoError(err)
	defer fetched.Body.Close()

	var room RoomResponse
	assert.NoError(json.NewDecoder(fetched.Body).Decode(&room))
	assert.Equal(board.Grid{}, room.Game.Grid)
	assert.Equal(1, room.Game.Turn)
}

func TestMakeMove_HTTP_BeforeJoin(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	_, body := postJSON(t, url+"/api/rooms", RoomActionRequest{Action: "create", Username: "Ann"})
	var created CreateRoomResponse
	assert.NoError(json.Unmarshal(body, &created))

	resp, body := postJSON(t, url+"/api/moves", MoveRequest{
		RoomCode: created.RoomCode,
		Column:   0,
		Player:   1,
	})

	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	assert.NoError(json.Unmarshal(body, &errResp))
	assert.Contains(errResp.Error, "GAME_NOT_STARTED")
}

func TestMakeMove_HTTP_ColumnOutOfRange(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	roomCode := setupStartedGame(t, url)

	resp, body := postJSON(t, url+"/api/moves", MoveRequest{
		RoomCode: roomCode,
		Column:   7,
		Player:   1,
	})

	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	assert.NoError(json.Unmarshal(body, &errResp))
	assert.Contains(errResp.Error, "COLUMN_OUT_OF_RANGE")
}

func TestMakeMove_HTTP_UnknownRoom(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, _ := postJSON(t, url+"/api/moves", MoveRequest{
		RoomCode: "ABC123",
		Column:   0,
		Player:   1,
	})

	assert.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestFullGame_HTTP_HorizontalWin(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	roomCode := setupStartedGame(t, url)

	moves := []MoveRequest{
		{RoomCode: roomCode, Player: 1, Column: 0},
		{RoomCode: roomCode, Player: 2, Column: 0},
		{RoomCode: roomCode, Player: 1, Column: 1},
		{RoomCode: roomCode, Player: 2, Column: 1},
		{RoomCode: roomCode, Player: 1, Column: 2},
		{RoomCode: roomCode, Player: 2, Column: 2},
		{RoomCode: roomCode, Player: 1, Column: 3},
	}

	var last RoomResponse
	for i, m := range moves {
		resp, body := postJSON(t, url+"/api/moves", m)
		assert.Equal(http.StatusOK, resp.StatusCode, "Move %d should be accepted", i)
		assert.NoError(json.Unmarshal(body, &last))
	}

	assert.NotNil(last.Game.Winner)
	assert.Equal(1, *last.Game.Winner)

	// No further moves once concluded
	resp, body := postJSON(t, url+"/api/moves", MoveRequest{RoomCode: roomCode, Player: 2, Column: 4})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	assert.NoError(json.Unmarshal(body, &errResp))
	assert.Contains(errResp.Error, "GAME_OVER")
}

// ============================================================================
// RESET
// ============================================================================

func TestResetRoom_HTTP(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	roomCode := setupStartedGame(t, url)

	// Play a couple of moves, then reset with seat 2 starting
	postJSON(t, url+"/api/moves", MoveRequest{RoomCode: roomCode, Player: 1, Column: 3})
	postJSON(t, url+"/api/moves", MoveRequest{RoomCode: roomCode, Player: 2, Column: 3})

	resp, body := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:      "reset",
		RoomCode:    roomCode,
		NextStarter: 2,
	})

	assert.Equal(http.StatusOK, resp.StatusCode)

	var reset RoomResponse
	assert.NoError(json.Unmarshal(body, &reset))
	assert.Equal(board.Grid{}, reset.Game.Grid)
	assert.Equal(2, reset.Game.Turn)
	assert.Nil(reset.Game.Winner)
	assert.Equal("Ann", reset.Game.Player1)
	assert.Equal("Bo", reset.Game.Player2)
}

func TestResetRoom_HTTP_DefaultStarter(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	roomCode := setupStartedGame(t, url)

	resp, body := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:   "reset",
		RoomCode: roomCode,
	})

	assert.Equal(http.StatusOK, resp.StatusCode)

	var reset RoomResponse
	assert.NoError(json.Unmarshal(body, &reset))
	assert.Equal(1, reset.Game.Turn)
}

func TestResetRoom_HTTP_NotFound(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, _ := postJSON(t, url+"/api/rooms", RoomActionRequest{
		Action:   "reset",
		RoomCode: "ABC123",
	})

	assert.Equal(http.StatusNotFound, resp.StatusCode)
}
