// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jason-s-yu/imposter/internal/auth"
	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/jason-s-yu/imposter/internal/middleware"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/sirupsen/logrus"
)

// APIServer is the control plane: a thin HTTP surface over the game controller,
// authenticated by the shared admin secret or a token minted from it.
type APIServer struct {
	Controller *game.Controller
	Secret     game.SecretVerifier
	Tokens     *auth.Issuer
	Logger     logrus.FieldLogger
	// History serves GET /api/history; nil answers 404.
	History HistoryFunc

	started time.Time
	now     func() time.Time
}

// HistoryFunc returns up to limit finished games of roomID, newest first.
type HistoryFunc func(ctx context.Context, roomID int64, limit int) ([]models.GameResult, error)

// NewAPIServer builds the control plane. tokens may be nil, which disables bearer auth.
func NewAPIServer(ctrl *game.Controller, secret game.SecretVerifier, tokens *auth.Issuer, logger logrus.FieldLogger) *APIServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &APIServer{
		Controller: ctrl,
		Secret:     secret,
		Tokens:     tokens,
		Logger:     logger,
		started:    time.Now(),
		now:        time.Now,
	}
}

// Routes returns the chi router serving every control-plane endpoint.
func (s *APIServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(s.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/token", s.handleToken)

		r.Post("/distribute", s.handleDistribute)
		r.Post("/reset", s.handleReset)
		r.Get("/status/{roomID}", s.handleStatus)
		r.Get("/ws/status/{roomID}", s.handleStatusWS)
		r.Get("/history/{roomID}", s.handleHistory)
	})
	return r
}
