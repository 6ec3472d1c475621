package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shoppulse/dashsvc/internal/domain"
	"github.com/shoppulse/dashsvc/internal/messaging"
)

var errRange = errors.New("from must be before to")

func errBadDate(field string) error {
	return fmt.Errorf("invalid %s date, want YYYY-MM-DD", field)
}

// mockEnvelope is the outgoing mock message: the kind tag plus whatever
// payload fields the caller supplied, with gaps filled in.
type mockEnvelope map[string]any

func (s *Server) publishMock(w http.ResponseWriter, r *http.Request, kind messaging.Kind, fill func(mockEnvelope)) {
	body := mockEnvelope{}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "read body failed")
		return
	}
	// An empty body is fine; the filler supplies defaults.
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	body["type"] = string(kind)
	if _, ok := body["timestamp"]; !ok {
		body["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	fill(body)

	key, _ := body["orderId"].(string)
	if err := s.pub.PublishEvent(r.Context(), key, body); err != nil {
		s.log.Error("mock publish failed", "kind", string(kind), "error", err)
		s.respondError(w, http.StatusBadGateway, "publish failed")
		return
	}
	s.log.Info("mock event published", "kind", string(kind))
	s.respond(w, http.StatusAccepted, body)
}

func (s *Server) mockNewUser(w http.ResponseWriter, r *http.Request) {
	s.publishMock(w, r, messaging.KindNewUser, func(m mockEnvelope) {
		id := uuid.NewString()
		if _, ok := m["name"]; !ok {
			m["name"] = "mock-user-" + id[:8]
		}
		if _, ok := m["email"]; !ok {
			m["email"] = fmt.Sprintf("%s@example.com", id[:8])
		}
		if _, ok := m["avatar"]; !ok {
			m["avatar"] = "https://avatars.example.com/" + id
		}
	})
}

func (s *Server) mockNewOrder(w http.ResponseWriter, r *http.Request) {
	s.publishMock(w, r, messaging.KindNewOrder, func(m mockEnvelope) {
		if _, ok := m["orderId"]; !ok {
			m["orderId"] = uuid.NewString()
		}
		if _, ok := m["status"]; !ok {
			m["status"] = string(domain.StatusNew)
		}
		if _, ok := m["items"]; !ok {
			m["items"] = []map[string]any{{
				"name":      "mock item",
				"quantity":  1,
				"unitPrice": 10.0,
				"costPrice": 6.0,
				"total":     10.0,
			}}
			if _, ok := m["amount"]; !ok {
				m["amount"] = 10.0
			}
		}
	})
}

func (s *Server) mockOrderUpdate(w http.ResponseWriter, r *http.Request) {
	s.publishMock(w, r, messaging.KindOrderStatusUpdate, func(m mockEnvelope) {
		if _, ok := m["status"]; !ok {
			m["status"] = string(domain.StatusProcessing)
		}
	})
}

func (s *Server) mockNewProducts(w http.ResponseWriter, r *http.Request) {
	s.publishMock(w, r, messaging.KindNewProduct, func(m mockEnvelope) {
		if _, ok := m["batchId"]; !ok {
			m["batchId"] = uuid.NewString()
		}
		if _, ok := m["products"]; !ok {
			m["products"] = []map[string]any{{
				"name":      "mock product",
				"unitPrice": 20.0,
				"costPrice": 12.0,
				"type":      string(domain.CategoryOther),
			}}
		}
	})
}
