package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/imposter/internal/auth"
	"github.com/jason-s-yu/imposter/internal/game"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// errorBody is the JSON shape of every failed control-plane call.
type errorBody struct {
	Success bool      `json:"success"`
	Error   string    `json:"error"`
	Kind    game.Kind `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeGameError maps an operation failure onto a status code by its Kind.
func writeGameError(w http.ResponseWriter, err error) {
	kind := game.KindOf(err)
	writeJSON(w, statusFor(kind), errorBody{Error: err.Error(), Kind: kind})
}

func statusFor(kind game.Kind) int {
	switch kind {
	case game.KindUnauthorized:
		return http.StatusUnauthorized
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindInsufficientPlayers, game.KindAlreadyDistributed, game.KindInvalidSetting,
		game.KindIneligible, game.KindInvalidTarget:
		return http.StatusBadRequest
	case game.KindGameInProgress, game.KindNoActiveGame, game.KindNoActiveVoting, game.KindVotingInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// authorized accepts a valid control-plane token (header or ?token=) or the admin secret.
func (s *APIServer) authorized(r *http.Request, secret string) bool {
	if s.Tokens != nil {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != "" {
			sub, err := s.Tokens.Verify(token)
			if err == nil && sub == auth.ControlPlaneSubject {
				return true
			}
			s.Logger.WithError(err).Debug("rejected control-plane token")
		}
	}
	return s.Secret != nil && s.Secret.Verify(secret)
}

// roomParam parses the {roomID} path segment.
func roomParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
}
