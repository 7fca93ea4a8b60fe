// internal/handlers/control.go
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jason-s-yu/imposter/internal/auth"
	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/sirupsen/logrus"
)

// roomRequest is the body of the room-scoped POST endpoints. An omitted roomId
// targets the shared private-chat lobby.
type roomRequest struct {
	RoomID int64  `json:"roomId"`
	Secret string `json:"secret"`
}

type healthResponse struct {
	Status         string  `json:"status"`
	ActiveSessions int     `json:"activeSessions"`
	UptimeSeconds  float64 `json:"uptimeSeconds"`
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		ActiveSessions: s.Controller.Registry().Count(),
		UptimeSeconds:  s.now().Sub(s.started).Round(time.Second).Seconds(),
	})
}

// handleToken exchanges the admin secret for a bearer token.
func (s *APIServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.Tokens == nil {
		writeError(w, http.StatusNotFound, "token auth disabled")
		return
	}
	var req struct {
		Secret string `json:"secret"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if s.Secret == nil || !s.Secret.Verify(req.Secret) {
		s.Logger.WithField("remote", r.RemoteAddr).Warn("token request with bad secret")
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}
	token, err := s.Tokens.Issue(auth.ControlPlaneSubject)
	if err != nil {
		s.Logger.WithError(err).Error("failed to issue token")
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type distributeResponse struct {
	Success   bool    `json:"success"`
	RoomID    int64   `json:"roomId"`
	Players   int     `json:"players"`
	Imposters int     `json:"imposters"`
	Sent      int     `json:"sent"`
	Failed    []int64 `json:"failed"`
}

func (s *APIServer) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.authorized(r, req.Secret) {
		writeGameError(w, game.ErrUnauthorized)
		return
	}

	d, err := s.Controller.Distribute(r.Context(), req.RoomID, game.System)
	if err != nil {
		s.Logger.WithFields(logrus.Fields{"room": req.RoomID, "kind": game.KindOf(err)}).Info("distribute rejected")
		writeGameError(w, err)
		return
	}
	st, err := s.Controller.Status(r.Context(), req.RoomID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	failed := d.Failed
	if failed == nil {
		failed = []int64{}
	}
	writeJSON(w, http.StatusOK, distributeResponse{
		Success:   true,
		RoomID:    req.RoomID,
		Players:   st.TotalPlayers,
		Imposters: st.ImposterCount,
		Sent:      d.Sent,
		Failed:    failed,
	})
}

func (s *APIServer) handleReset(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.authorized(r, req.Secret) {
		writeGameError(w, game.ErrUnauthorized)
		return
	}
	if err := s.Controller.Reset(r.Context(), req.RoomID, game.System); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "roomId": req.RoomID})
}

// statusResponse wraps the projection the way the control plane has always returned it.
type statusResponse struct {
	Success bool          `json:"success"`
	Status  models.Status `json:"status"`
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	if !s.authorized(r, r.URL.Query().Get("secret")) {
		writeGameError(w, game.ErrUnauthorized)
		return
	}
	st, err := s.Controller.Status(r.Context(), roomID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Status: st})
}

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type historyResponse struct {
	Success bool                `json:"success"`
	RoomID  int64               `json:"roomId"`
	Results []models.GameResult `json:"results"`
}

// handleHistory lists the room's finished games recorded by the historian.
func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, "game history disabled")
		return
	}
	roomID, err := roomParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	if !s.authorized(r, r.URL.Query().Get("secret")) {
		writeGameError(w, game.ErrUnauthorized)
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	results, err := s.History(r.Context(), roomID, limit)
	if err != nil {
		s.Logger.WithField("room", roomID).WithError(err).Error("failed to read game history")
		writeError(w, http.StatusInternalServerError, "could not read game history")
		return
	}
	if results == nil {
		results = []models.GameResult{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Success: true, RoomID: roomID, Results: results})
}
