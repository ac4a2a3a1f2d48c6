package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"framepress/job"
	"framepress/logger"
)

// ConversionStatusResponse represents the status response
type ConversionStatusResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// StatusHandler returns the state of a conversion by id
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Status request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for status endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in status request")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	state, exists := job.GetState(id)
	if !exists {
		logger.Warnf("Conversion not found: %s", id)
		http.Error(w, fmt.Sprintf("Conversion %s not found", id), http.StatusNotFound)
		return
	}

	response := ConversionStatusResponse{
		ID:    id,
		State: state.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Errorf("Failed to encode status response: %v", err)
		return
	}
}
