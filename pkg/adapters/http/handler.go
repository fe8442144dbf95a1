// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package http is the HTTP adapter: it exposes the storage gateway's
// operations over a JSON API and serves health and metrics endpoints.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/storagegw/storagegw/pkg/blobstore"
	"github.com/storagegw/storagegw/pkg/gateway"
	"github.com/storagegw/storagegw/pkg/observability/logging"
	"github.com/storagegw/storagegw/pkg/observability/metrics"
)

// Handler implements the HTTP adapter
type Handler struct {
	gw      *gateway.Gateway
	logger  *logging.Logger
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// New creates a new HTTP handler
func New(gw *gateway.Gateway, logger *logging.Logger, m *metrics.Metrics) *Handler {
	h := &Handler{
		gw:      gw,
		logger:  logger,
		metrics: m,
		mux:     http.NewServeMux(),
	}

	// Register routes
	h.mux.HandleFunc("GET /health", h.handleHealth)

	// Files API
	h.mux.HandleFunc("POST /v1/files", h.handleUploadFile)
	h.mux.HandleFunc("GET /v1/files", h.handleListFiles)
	h.mux.HandleFunc("GET /v1/files/{key...}", h.handleDownloadFile)
	h.mux.HandleFunc("DELETE /v1/files/{key...}", h.handleDeleteFile)

	// Metadata API
	h.mux.HandleFunc("GET /v1/metadata/{key...}", h.handleGetMetadata)
	h.mux.HandleFunc("PUT /v1/metadata/{key...}", h.handleUpdateMetadata)

	// Signed URLs and visibility
	h.mux.HandleFunc("GET /v1/urls/{key...}", h.handleSignedURL)
	h.mux.HandleFunc("PUT /v1/visibility/{key...}", h.handleSetVisibility)

	// Composite operations
	h.mux.HandleFunc("POST /v1/copy", h.handleCopy)
	h.mux.HandleFunc("POST /v1/move", h.handleMove)
	h.mux.HandleFunc("POST /v1/rename", h.handleRename)
	h.mux.HandleFunc("POST /v1/process", h.handleProcess)

	// Providers API
	h.mux.HandleFunc("GET /v1/providers", h.handleListProviders)
	h.mux.HandleFunc("PUT /v1/providers/current", h.handleSwitchProvider)

	if m != nil {
		h.mux.Handle("GET /metrics", m.Handler())
	}

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	h.mux.ServeHTTP(w, r)
}

// handleHealth handles health check requests. The server is considered
// healthy when at least one provider is; per-provider detail is included
// so dashboards get the full picture from one endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.gw.Snapshot()

	anyHealthy := false
	for _, p := range snap {
		if p.Healthy {
			anyHealthy = true
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !anyHealthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"providers": snap,
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
}

// writeStorageError maps a gateway error onto an HTTP status and error type.
func (h *Handler) writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, gateway.ErrProviderNotFound):
		h.writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, gateway.ErrProviderUnhealthy):
		h.writeError(w, http.StatusConflict, "provider_unhealthy", err.Error())
	case errors.Is(err, gateway.ErrNoProviderAvailable):
		h.writeError(w, http.StatusServiceUnavailable, "no_provider_available", err.Error())
	case errors.Is(err, blobstore.ErrNotSupported):
		h.writeError(w, http.StatusNotImplemented, "not_supported", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
	}
}
