package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shoppulse/dashsvc/internal/storage"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

var (
	errBadPage  = errors.New("invalid page, want a positive integer")
	errBadLimit = errors.New("invalid limit, want 1-100")
)

// listResponse wraps every paginated list endpoint: one page of rows plus the
// total row count so clients can render page controls.
type listResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// parsePage interprets optional page (1-based) and limit query parameters.
func parsePage(q url.Values) (storage.Page, error) {
	page, limit := 1, defaultPageLimit
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return storage.Page{}, errBadPage
		}
		page = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageLimit {
			return storage.Page{}, errBadLimit
		}
		limit = n
	}
	return storage.Page{Limit: limit, Offset: (page - 1) * limit}, nil
}

func (s *Server) getUsers(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	users, total, err := s.store.ListUsers(r.Context(), page)
	if err != nil {
		s.log.Error("list users", "error", err)
		s.respondError(w, http.StatusInternalServerError, "list users failed")
		return
	}
	s.respond(w, http.StatusOK, listResponse{Data: users, Total: total})
}

func (s *Server) getOrders(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, total, err := s.store.ListOrders(r.Context(), page)
	if err != nil {
		s.log.Error("list orders", "error", err)
		s.respondError(w, http.StatusInternalServerError, "list orders failed")
		return
	}
	s.respond(w, http.StatusOK, listResponse{Data: orders, Total: total})
}

func (s *Server) getOrderItems(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		s.respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := s.store.ListOrderItems(r.Context(), orderID, page)
	if err != nil {
		s.log.Error("list order items", "order_id", orderID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "list order items failed")
		return
	}
	s.respond(w, http.StatusOK, listResponse{Data: items, Total: total})
}

func (s *Server) getOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, total, err := s.store.ListOrdersByUser(r.Context(), userID, page)
	if err != nil {
		s.log.Error("list orders by user", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "list orders failed")
		return
	}
	s.respond(w, http.StatusOK, listResponse{Data: orders, Total: total})
}

func (s *Server) getProducts(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	products, total, err := s.store.ListProducts(r.Context(), page)
	if err != nil {
		s.log.Error("list products", "error", err)
		s.respondError(w, http.StatusInternalServerError, "list products failed")
		return
	}
	s.respond(w, http.StatusOK, listResponse{Data: products, Total: total})
}

func (s *Server) getSalesOverview(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := s.store.SalesOverview(r.Context(), from, to)
	if err != nil {
		s.log.Error("sales overview", "error", err)
		s.respondError(w, http.StatusInternalServerError, "sales overview failed")
		return
	}
	s.respond(w, http.StatusOK, points)
}

func (s *Server) getStatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.OrderStatusCounts(r.Context())
	if err != nil {
		s.log.Error("status counts", "error", err)
		s.respondError(w, http.StatusInternalServerError, "status counts failed")
		return
	}
	s.respond(w, http.StatusOK, counts)
}

func (s *Server) getProductCategoryCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.ProductCategoryCounts(r.Context())
	if err != nil {
		s.log.Error("product category counts", "error", err)
		s.respondError(w, http.StatusInternalServerError, "category counts failed")
		return
	}
	s.respond(w, http.StatusOK, counts)
}

// parseDateRange interprets optional from/to date parameters (YYYY-MM-DD).
// The default window is the last seven days; to is exclusive at end of day.
func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	to := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -7)

	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, errBadDate("from")
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, errBadDate("to")
		}
		to = t.Add(24 * time.Hour)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errRange
	}
	return from, to, nil
}
