package internal

import (
	"encoding/json"
	"net/http"
)

// getDashboardStats serves the admin overview counts
func (s *Server) getDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Lifecycle.DashboardStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
