package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"framepress/config"
	"framepress/credentials"
	"framepress/job"
	"framepress/logger"
	"framepress/models"
	"framepress/utils"
)

var pipeline *job.Pipeline

// Init wires the conversion pipeline used by the HTTP handlers.
func Init(p *job.Pipeline) {
	pipeline = p
}

// verifyJWT verifies the request token and returns the claims.
func verifyJWT(r *http.Request) (*models.FramepressJWT, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header required")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	return utils.VerifyFramepressJWT(token, utils.VerifyConfig{
		SecretKey: []byte(config.GetJWTSecret()),
	})
}

// failureStatus maps a failure kind to an HTTP status. Conversion failures
// are expected outcomes, not server errors.
func failureStatus(kind job.Kind) int {
	switch kind {
	case job.KindDownload:
		return http.StatusBadGateway
	case job.KindValidation, job.KindEncoding:
		return http.StatusUnprocessableEntity
	case job.KindSizeConstraint:
		return http.StatusRequestEntityTooLarge
	case job.KindUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusUnprocessableEntity
}

type failureResponse struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// ConvertHandler runs the conversion pipeline synchronously for one media
// reference and returns the inline envelope. The request context is the
// parent cancellation: a disconnecting client aborts the outstanding
// download or kills the running encoder.
func ConvertHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var claims *models.FramepressJWT
	if !config.AuthDisabled() {
		var err error
		claims, err = verifyJWT(r)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
			return
		}
	}

	var req models.MediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	u, _ := url.Parse(req.URL)
	if claims != nil && !claims.AllowsScheme(u.Scheme) {
		http.Error(w, fmt.Sprintf("Token does not allow %s sources", u.Scheme), http.StatusForbidden)
		return
	}

	var creds map[string]string
	if req.CredentialKey != "" {
		var err error
		creds, err = credentials.GetCredentials(req.CredentialKey)
		if err != nil {
			logger.Errorf("Failed to look up credentials %s: %v", req.CredentialKey, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if creds == nil {
			http.Error(w, "Unknown credential key", http.StatusBadRequest)
			return
		}
	}

	id := req.ID()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := job.Track(id, cancel); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	logger.Infof("Converting %s (%s) as %s", req.URL, req.Kind, id)
	env, err := pipeline.Convert(ctx, req, creds)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			job.Finish(id, job.StateCancelled)
		} else {
			job.Finish(id, job.StateFailed)
		}
		kind := job.Classify(err)
		logger.Warnf("Conversion %s failed (%s): %v", id, kind, err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failureStatus(kind))
		json.NewEncoder(w).Encode(failureResponse{ID: id, Kind: string(kind), Error: err.Error()})
		return
	}
	job.Finish(id, job.StateCompleted)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(struct {
		ID string `json:"id"`
		models.InlineEnvelope
	}{ID: id, InlineEnvelope: env}); err != nil {
		logger.Errorf("Failed to encode convert response: %v", err)
	}
}
