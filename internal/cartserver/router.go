package cartserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/cartsync/internal/cartapi"
)

// Server exposes a Store over the cart HTTP contract.
type Server struct {
	store  *Store
	logger *slog.Logger
}

// NewRouter returns a gorilla/mux router serving store.
func NewRouter(store *Store, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: store, logger: logger}

	r := mux.NewRouter()
	r.Use(s.logMiddleware)
	r.HandleFunc(cartapi.PathCart, s.getCartHandler).Methods(http.MethodGet)
	r.HandleFunc(cartapi.PathAdd, s.addHandler).Methods(http.MethodPost)
	r.HandleFunc(cartapi.PathClear, s.clearHandler).Methods(http.MethodPost)
	r.HandleFunc(cartapi.PathCart+"/{lineId}", s.updateHandler).Methods(http.MethodPut)
	r.HandleFunc(cartapi.PathCart+"/{lineId}", s.deleteHandler).Methods(http.MethodDelete)
	return r
}

// getCartHandler returns the session's cart.
func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get(cartapi.QuerySessionID)
	if sid == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	snap, err := s.store.Get(r.Context(), sid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, snap)
}

// addHandler adds a menu item.
func (s *Server) addHandler(w http.ResponseWriter, r *http.Request) {
	var req cartapi.AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	line, err := s.store.Add(r.Context(), req.SessionID, req.FoodItemID, req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, line)
}

// updateHandler sets a line quantity.
func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) {
	var req cartapi.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	line, err := s.store.Update(r.Context(), req.SessionID, mux.Vars(r)["lineId"], req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, line)
}

// deleteHandler removes a line.
func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	var req cartapi.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := s.store.Remove(r.Context(), req.SessionID, mux.Vars(r)["lineId"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartapi.Envelope{Success: true})
}

// clearHandler empties the cart.
func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	var req cartapi.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := s.store.Clear(r.Context(), req.SessionID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartapi.Envelope{Success: true})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrLineNotFound), errors.Is(err, ErrUnknownFoodItem):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("cart request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("cart request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func writeData(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, status, cartapi.Envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, cartapi.Envelope{Success: false, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, env cartapi.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
