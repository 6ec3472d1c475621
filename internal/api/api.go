// Package api serves the dashboard read endpoints, the mock event producer
// endpoints, and the websocket subscription endpoint.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/shoppulse/dashsvc/internal/hub"
	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/storage"
)

// Server bundles the HTTP surface's dependencies.
type Server struct {
	store storage.Store
	pub   messaging.Publisher
	hub   *hub.Hub
	log   *slog.Logger

	mockRateLimit  int
	mockRateWindow time.Duration
}

// New returns a Server. pub backs the /mock producer endpoints; h backs /ws.
func New(store storage.Store, pub messaging.Publisher, h *hub.Hub, log *slog.Logger) *Server {
	return &Server{
		store:          store,
		pub:            pub,
		hub:            h,
		log:            log,
		mockRateLimit:  5,
		mockRateWindow: 10 * time.Second,
	}
}

// SetMockRate overrides the throttle applied to the /mock endpoints.
func (s *Server) SetMockRate(limit int, window time.Duration) {
	s.mockRateLimit = limit
	s.mockRateWindow = window
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/users", s.getUsers)
		r.Get("/orders", s.getOrders)
		r.Get("/order-items", s.getOrderItems)
		r.Get("/orders-user", s.getOrdersByUser)
		r.Get("/products", s.getProducts)
		r.Get("/sales-overview", s.getSalesOverview)
		r.Get("/status-count", s.getStatusCounts)
		r.Get("/products-type-count", s.getProductCategoryCounts)
	})

	r.Route("/mock", func(r chi.Router) {
		// Requests per window per client IP, matching the producer surface's
		// intended trickle of synthetic traffic.
		r.Use(httprate.LimitByIP(s.mockRateLimit, s.mockRateWindow))
		r.Post("/new-user", s.mockNewUser)
		r.Post("/new-order", s.mockNewOrder)
		r.Post("/order-update", s.mockOrderUpdate)
		r.Post("/new-product", s.mockNewProducts)
	})

	r.Get("/ws", hub.ServeWS(s.hub, s.log))

	return r
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}
