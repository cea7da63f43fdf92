package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
)

// testDBService satisfies database.Service over the test handle.
type testDBService struct {
	db *sql.DB
}

func (t *testDBService) Health() map[string]string {
	return map[string]string{"status": "up"}
}

func (t *testDBService) DB() *sql.DB {
	return t.db
}

func (t *testDBService) Close() error {
	return t.db.Close()
}

// setupTestServer builds a Server over an in-memory database and serves its
// full route set from an httptest listener. No background tasks run; tests
// drive everything explicitly.
func setupTestServer() (*Server, string, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		panic(err)
	}
	if err := goose.Up(db, "../../db/migrations"); err != nil {
		panic(err)
	}

	s := &Server{
		db:                 &testDBService{db: db},
		roomManager:        NewRoomManager(),
		connectionManager:  NewConnectionManager(),
		notifier:           NewNotifier(),
		persistenceManager: NewPersistenceManager(db),
		rateLimiter:        NewRateLimiter(10, time.Second),
		connectionHealth:   NewConnectionHealth(),
	}

	server := httptest.NewServer(s.RegisterRoutes())

	cleanup := func() {
		server.Close()
		db.Close()
	}

	return s, server.URL, cleanup
}

// wsURL turns the httptest base URL into the websocket endpoint address.
func wsURL(baseURL string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + "/websocket"
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func TestHelloWorldHandler(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, err := http.Get(url + "/")
	assert.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	assert.NoError(json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal("Hello World", body["message"])
}

func TestHealthHandler(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	resp, err := http.Get(url + "/health")
	assert.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusOK, resp.StatusCode)

	var body map[string]string
	assert.NoError(json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal("up", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	req, err := http.NewRequest(http.MethodOptions, url+"/api/rooms", nil)
	assert.NoError(err)

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusNoContent, resp.StatusCode)
	assert.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}
