// internal/handlers/status_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/imposter/internal/middleware"
	"github.com/jason-s-yu/imposter/internal/models"
)

// statusWriteTimeout bounds a single frame write to a slow subscriber.
const statusWriteTimeout = 5 * time.Second

// handleStatusWS streams the status projection of one room: a snapshot on
// connect, then one message per save of that room.
func (s *APIServer) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	roomID, err := roomParam(r)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	authorized := s.authorized(r, r.URL.Query().Get("secret"))

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"status"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "status" {
		c.Close(BadSubprotocolError, "client must speak the status subprotocol")
		return
	}
	if !authorized {
		c.Close(InvalidAuthTokenError, "invalid secret or token")
		return
	}

	st, updates, cancel, err := s.subscribe(r.Context(), roomID)
	if err != nil {
		c.Close(InvalidRoomIDError, "room has no session")
		return
	}
	defer cancel()

	middleware.LogWebSocketConnect(s.Logger, remoteAddr, roomID)

	// The feed is one-way; CloseRead handles control frames and cancels ctx on close.
	ctx := c.CloseRead(r.Context())

	err = writeStatus(ctx, c, st)
	for err == nil {
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case next := <-updates:
			err = writeStatus(ctx, c, next)
		}
	}

	if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		err = nil
	}
	middleware.LogWebSocketDisconnect(s.Logger, remoteAddr, roomID, err)
	c.Close(websocket.StatusNormalClosure, "")
}

func writeStatus(ctx context.Context, c *websocket.Conn, st models.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, statusWriteTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, data)
}

// subscribe registers a watcher for roomID and then takes the initial snapshot, so a
// save landing in between still reaches the returned channel.
func (s *APIServer) subscribe(ctx context.Context, roomID int64) (models.Status, <-chan models.Status, func(), error) {
	updates := make(chan models.Status, 16)
	cancel := s.Controller.Registry().Watch(func(sess *models.Session) {
		if sess.RoomID != roomID {
			return
		}
		select {
		case updates <- models.StatusOf(sess):
		default:
			s.Logger.WithField("room", roomID).Debug("status subscriber lagging, dropping update")
		}
	})

	st, err := s.Controller.Status(ctx, roomID)
	if err != nil {
		cancel()
		return models.Status{}, nil, nil, err
	}
	return st, updates, cancel, nil
}
