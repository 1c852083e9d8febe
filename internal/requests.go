package internal

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"toolledger-api/internal/auth"
	"toolledger-api/internal/lifecycle"
	"toolledger-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// listBorrowRequests returns all requests with joined details, optionally
// filtered by ?status=
func (s *Server) listBorrowRequests(w http.ResponseWriter, r *http.Request) {
	filter := lifecycle.RequestFilter{
		Status: models.RequestStatus(r.URL.Query().Get("status")),
	}
	requests, err := s.Lifecycle.ListRequests(r.Context(), filter)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

// listMyBorrowRequests returns the calling user's own requests
func (s *Server) listMyBorrowRequests(w http.ResponseWriter, r *http.Request) {
	filter := lifecycle.RequestFilter{
		UserID: auth.UserIDFromContext(r.Context()),
	}
	requests, err := s.Lifecycle.ListRequests(r.Context(), filter)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

// createBorrowRequest creates a pending request for the calling user
func (s *Server) createBorrowRequest(w http.ResponseWriter, r *http.Request) {
	var in models.CreateBorrowRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	req, err := s.Lifecycle.CreateRequest(r.Context(), userID, in)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(req)
}

func (s *Server) approveBorrowRequest(w http.ResponseWriter, r *http.Request) {
	s.transitionBorrowRequest(w, r, models.StatusApproved)
}

func (s *Server) declineBorrowRequest(w http.ResponseWriter, r *http.Request) {
	s.transitionBorrowRequest(w, r, models.StatusDeclined)
}

func (s *Server) returnBorrowRequest(w http.ResponseWriter, r *http.Request) {
	s.transitionBorrowRequest(w, r, models.StatusReturned)
}

// transitionBorrowRequest parses the common approve/decline/return shape,
// invokes the lifecycle core, and sends best-effort notifications after the
// transaction has committed.
func (s *Server) transitionBorrowRequest(w http.ResponseWriter, r *http.Request, target models.RequestStatus) {
	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || requestID <= 0 {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}

	var body models.TransitionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	adminID := auth.UserIDFromContext(r.Context())
	req, err := s.Lifecycle.Transition(r.Context(), requestID, target, adminID, body.Notes)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	// The domain transition is authoritative; a failed email is logged
	// and swallowed, never rolled back.
	switch target {
	case models.StatusApproved:
		if err := s.Mailer.SendApproval(req); err != nil {
			log.Printf("Failed to send approval email for request %d: %v", req.ID, err)
		}
	case models.StatusReturned:
		if err := s.Mailer.SendReturn(req); err != nil {
			log.Printf("Failed to send return email for request %d: %v", req.ID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

// writeLifecycleError maps the core's typed failures onto HTTP statuses:
// missing records are 404, domain rule violations are 400, everything else
// is a 500.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var invalidTransition *lifecycle.InvalidTransitionError
	var insufficientStock *lifecycle.InsufficientStockError
	var validation *lifecycle.ValidationError

	switch {
	case errors.Is(err, lifecycle.ErrRequestNotFound):
		http.Error(w, "Request not found", http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrEquipmentNotFound):
		http.Error(w, "Equipment not found", http.StatusNotFound)
	case errors.As(err, &invalidTransition):
		http.Error(w, invalidTransition.Error(), http.StatusBadRequest)
	case errors.As(err, &insufficientStock):
		http.Error(w, insufficientStock.Error(), http.StatusBadRequest)
	case errors.As(err, &validation):
		http.Error(w, validation.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
