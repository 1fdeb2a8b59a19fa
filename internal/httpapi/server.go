package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swaplane/offersvc/internal/core/domain"
	"github.com/swaplane/offersvc/internal/infra/resilience"
	"github.com/swaplane/offersvc/internal/offers"
)

// BreakerSource exposes circuit breaker snapshots for introspection.
type BreakerSource interface {
	BreakerStates() []resilience.Snapshot
}

// Pinger reports storage health.
type Pinger interface {
	Health(ctx context.Context) error
}

// NotificationReader lists stored notifications for a user.
type NotificationReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.NotificationEvent, error)
}

// Server is the inbound HTTP surface: offer lifecycle plus the
// health/metrics endpoints.
type Server struct {
	Router *mux.Router

	svc           *offers.Service
	notifications NotificationReader
	breakers      BreakerSource
	db            Pinger
	server        *http.Server
	log           *slog.Logger
}

// NewServer builds the router. db and breakers may be nil (memory mode,
// tests); the health endpoint degrades gracefully.
func NewServer(port int, svc *offers.Service, notifications NotificationReader, breakers BreakerSource, db Pinger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		Router:        mux.NewRouter(),
		svc:           svc,
		notifications: notifications,
		breakers:      breakers,
		db:            db,
		log:           log,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router,
	}

	s.Router.HandleFunc("/api/v1/offers", s.handleCreateOffer).Methods(http.MethodPost)
	s.Router.HandleFunc("/api/v1/offers/{id}", s.handleGetOffer).Methods(http.MethodGet)
	s.Router.HandleFunc("/api/v1/offers/{id}/status", s.handleUpdateStatus).Methods(http.MethodPatch)
	s.Router.HandleFunc("/api/v1/users/{id}/offers", s.handleListOffers).Methods(http.MethodGet)
	s.Router.HandleFunc("/api/v1/users/{id}/notifications", s.handleListNotifications).Methods(http.MethodGet)

	s.Router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/health/breakers", s.handleBreakers).Methods(http.MethodGet)
	s.Router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var in offers.CreateOfferInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, fmt.Errorf("decode body: %w", domain.ErrInvalidRequest))
		return
	}

	offer, err := s.svc.CreateOffer(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, offer)
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, fmt.Errorf("offer id: %w", domain.ErrInvalidRequest))
		return
	}

	offer, err := s.svc.GetOffer(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, offer)
}

type updateStatusRequest struct {
	Status domain.OfferStatus `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, fmt.Errorf("offer id: %w", domain.ErrInvalidRequest))
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("decode body: %w", domain.ErrInvalidRequest))
		return
	}

	offer, err := s.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, fmt.Errorf("user id: %w", domain.ErrInvalidRequest))
		return
	}

	list, err := s.svc.ListOffers(r.Context(), userID, 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []*domain.TradeOffer{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, fmt.Errorf("user id: %w", domain.ErrInvalidRequest))
		return
	}

	list, err := s.notifications.ListByUser(r.Context(), userID, 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []*domain.NotificationEvent{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.db != nil {
		if err := s.db.Health(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	var states []resilience.Snapshot
	if s.breakers != nil {
		states = s.breakers.BreakerStates()
	}
	s.writeJSON(w, http.StatusOK, states)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the domain taxonomy onto HTTP status codes. Unknown
// errors are masked as 500 without leaking internals.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		code = http.StatusServiceUnavailable
	default:
		s.log.Error("internal error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}
