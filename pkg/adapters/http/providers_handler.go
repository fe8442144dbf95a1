// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"net/http"
	"strings"
)

// handleListProviders handles GET /v1/providers
func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	snap := h.gw.Snapshot()

	current, err := h.gw.CurrentProvider()
	if err != nil {
		// An empty registry still yields an (empty) listing.
		current = ""
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"object":  "list",
		"current": current,
		"data":    snap,
	})
}

// handleSwitchProvider handles PUT /v1/providers/current
func (h *Handler) handleSwitchProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	if err := h.gw.SwitchProvider(r.Context(), req.Name); err != nil {
		h.logger.Error("Failed to switch provider", "error", err, "provider", req.Name)
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"current": req.Name,
	})
}
