// internal/handlers/control_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/imposter/internal/auth"
	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRoom   int64 = -100
	testSecret       = "s3cret"
)

// cheapParams keeps argon2 fast in tests.
var cheapParams = auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func setupServer(t *testing.T) (*APIServer, *game.Controller) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	secret, err := auth.NewSecret(testSecret, cheapParams)
	require.NoError(t, err)
	tokens, err := auth.NewIssuer(time.Hour)
	require.NoError(t, err)

	reg := session.NewRegistry(session.NewMemoryStore(), log)
	ctrl := game.NewController(game.Options{
		Registry: reg,
		Engine:   game.NewRoleEngineWithRand(nil, log, rand.New(rand.NewSource(7))),
		Secret:   secret,
		Log:      log,
	})
	return NewAPIServer(ctrl, secret, tokens, log), ctrl
}

func joinPlayers(t *testing.T, ctrl *game.Controller, room int64, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, joined, err := ctrl.Join(context.Background(), room, models.Player{ID: int64(i), FirstName: fmt.Sprintf("p%d", i)})
		require.NoError(t, err)
		require.True(t, joined)
	}
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	api, ctrl := setupServer(t)
	joinPlayers(t, ctrl, testRoom, 1)

	w := do(t, api.Routes(), http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 1, got.ActiveSessions)
}

func TestDistributeRequiresSecret(t *testing.T) {
	api, ctrl := setupServer(t)
	joinPlayers(t, ctrl, testRoom, 4)

	w := do(t, api.Routes(), http.MethodPost, "/api/distribute", `{"roomId":-100,"secret":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	st, err := ctrl.Status(context.Background(), testRoom)
	require.NoError(t, err)
	assert.False(t, st.Started)
}

func TestDistribute(t *testing.T) {
	api, ctrl := setupServer(t)
	h := api.Routes()

	t.Run("insufficient players", func(t *testing.T) {
		joinPlayers(t, ctrl, testRoom, 3)
		w := do(t, h, http.MethodPost, "/api/distribute", `{"roomId":-100,"secret":"s3cret"}`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body errorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, game.KindInsufficientPlayers, body.Kind)
	})

	t.Run("success", func(t *testing.T) {
		_, _, err := ctrl.Join(context.Background(), testRoom, models.Player{ID: 4, FirstName: "p4"})
		require.NoError(t, err)

		w := do(t, h, http.MethodPost, "/api/distribute", `{"roomId":-100,"secret":"s3cret"}`, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var got distributeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.True(t, got.Success)
		assert.Equal(t, 4, got.Players)
		assert.Equal(t, 1, got.Imposters)
		assert.Equal(t, 4, got.Sent)
		assert.Empty(t, got.Failed)
	})

	t.Run("already distributed", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/api/distribute", `{"roomId":-100,"secret":"s3cret"}`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body errorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, game.KindAlreadyDistributed, body.Kind)
	})
}

func TestStatusAndReset(t *testing.T) {
	api, ctrl := setupServer(t)
	h := api.Routes()
	joinPlayers(t, ctrl, testRoom, 4)

	w := do(t, h, http.MethodGet, "/api/status/-100?secret=s3cret", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 4, got.Status.TotalPlayers)
	assert.Len(t, got.Status.Players, 4)
	assert.False(t, got.Status.RolesDistributed)

	w = do(t, h, http.MethodGet, "/api/status/-999?secret=s3cret", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/status/abc?secret=s3cret", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/status/-100", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodPost, "/api/reset", `{"roomId":-100,"secret":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	st, err := ctrl.Status(context.Background(), testRoom)
	require.NoError(t, err)
	assert.Zero(t, st.TotalPlayers)
}

func TestBearerToken(t *testing.T) {
	api, ctrl := setupServer(t)
	h := api.Routes()
	joinPlayers(t, ctrl, testRoom, 4)

	w := do(t, h, http.MethodPost, "/api/auth/token", `{"secret":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodPost, "/api/auth/token", `{"secret":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tok map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.NotEmpty(t, tok["token"])

	bearer := map[string]string{"Authorization": "Bearer " + tok["token"]}
	w = do(t, h, http.MethodPost, "/api/distribute", `{"roomId":-100}`, bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/status/-100", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusFeed(t *testing.T) {
	api, ctrl := setupServer(t)
	joinPlayers(t, ctrl, testRoom, 2)

	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/status/-100?secret=" + testSecret
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"status"}})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	read := func() models.Status {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		var st models.Status
		require.NoError(t, json.Unmarshal(data, &st))
		return st
	}

	assert.Equal(t, 2, read().TotalPlayers)

	_, _, err = ctrl.Join(ctx, testRoom, models.Player{ID: 3, FirstName: "p3"})
	require.NoError(t, err)
	assert.Equal(t, 3, read().TotalPlayers)
}

func TestStatusFeedRejectsBadSecret(t *testing.T) {
	api, ctrl := setupServer(t)
	joinPlayers(t, ctrl, testRoom, 1)

	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/status/-100?secret=wrong"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"status"}})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(InvalidAuthTokenError), websocket.CloseStatus(err))
}

func TestHistory(t *testing.T) {
	api, _ := setupServer(t)

	w := do(t, api.Routes(), http.MethodGet, "/api/history/-100?secret="+testSecret, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var gotRoom int64
	var gotLimit int
	api.History = func(_ context.Context, roomID int64, limit int) ([]models.GameResult, error) {
		gotRoom, gotLimit = roomID, limit
		return []models.GameResult{{RoomID: roomID, Topic: "ស្វាយ", Winner: models.WinnerImposters}}, nil
	}

	w = do(t, api.Routes(), http.MethodGet, "/api/history/-100", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, api.Routes(), http.MethodGet, "/api/history/-100?limit=500&secret="+testSecret, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, api.Routes(), http.MethodGet, "/api/history/-100?limit=3&secret="+testSecret, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testRoom, gotRoom)
	assert.Equal(t, 3, gotLimit)

	var got historyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Results, 1)
	assert.Equal(t, models.WinnerImposters, got.Results[0].Winner)
}

func TestSubscribeDeliversSavesAfterSnapshot(t *testing.T) {
	api, ctrl := setupServer(t)
	joinPlayers(t, ctrl, testRoom, 2)
	ctx := context.Background()

	_, _, _, err := api.subscribe(ctx, 12345)
	assert.ErrorIs(t, err, game.ErrNotFound)

	st, updates, cancel, err := api.subscribe(ctx, testRoom)
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, 2, st.TotalPlayers)

	_, _, err = ctrl.Join(ctx, testRoom, models.Player{ID: 3, FirstName: "p3"})
	require.NoError(t, err)

	select {
	case next := <-updates:
		assert.Equal(t, 3, next.TotalPlayers)
	case <-time.After(time.Second):
		t.Fatal("save after the snapshot was not delivered")
	}
}
