package routes

import (
	"fmt"
	"net/http"
	"strings"

	"framepress/job"
	"framepress/logger"
)

// CancelHandler aborts an in-flight conversion by id. Cancellation
// propagates into the pipeline and terminates a running encoder process.
func CancelHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Cancel request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodDelete {
		logger.Warnf("Invalid method for cancel endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in cancel request")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	logger.Infof("Attempting to cancel conversion: %s", id)
	if err := job.Cancel(id); err != nil {
		logger.Errorf("Failed to cancel conversion %s: %v", id, err)
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, fmt.Sprintf("Conversion not found: %v", err), http.StatusNotFound)
		} else {
			http.Error(w, fmt.Sprintf("Cannot cancel conversion: %v", err), http.StatusConflict)
		}
		return
	}

	logger.Infof("Conversion cancelled: %s", id)
	w.WriteHeader(http.StatusNoContent)
}
