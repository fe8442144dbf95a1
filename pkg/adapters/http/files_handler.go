// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storagegw/storagegw/pkg/blobstore"
)

const (
	maxFileSize = 512 * 1024 * 1024 // 512 MB

	defaultListLimit = 100
	maxListLimit     = 1000

	defaultURLExpiry = 15 * time.Minute
)

// handleUploadFile handles POST /v1/files
func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form
	err := r.ParseMultipartForm(maxFileSize)
	if err != nil {
		h.logger.Error("Failed to parse multipart form", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse multipart form")
		return
	}

	// Get file from form
	file, header, err := r.FormFile("file")
	if err != nil {
		h.logger.Error("Failed to get file from form", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "File is required")
		return
	}
	defer file.Close()

	// The key defaults to the uploaded filename
	key := r.FormValue("key")
	if key == "" {
		key = header.Filename
	}
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Key is required")
		return
	}

	// Optional user metadata as a JSON object
	var metadata map[string]string
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Metadata must be a JSON object of strings")
			return
		}
	}

	// Read file content
	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read file content", "error", err)
		h.writeError(w, http.StatusInternalServerError, "read_error", "Failed to read file content")
		return
	}

	info, err := h.gw.Upload(r.Context(), &blobstore.Object{
		Key:         key,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(content)),
		Data:        content,
		Metadata:    metadata,
	})
	if err != nil {
		h.logger.Error("Failed to upload file", "error", err, "key", key)
		h.writeStorageError(w, err)
		return
	}

	h.logger.Info("File uploaded", "key", key, "bytes", len(content))
	h.writeJSON(w, http.StatusOK, info)
}

// handleListFiles handles GET /v1/files
func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	prefix := query.Get("prefix")

	limit := defaultListLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxListLimit {
			limit = l
		}
	}

	infos, err := h.gw.List(r.Context(), prefix, limit)
	if err != nil {
		h.logger.Error("Failed to list files", "error", err, "prefix", prefix)
		h.writeStorageError(w, err)
		return
	}
	if infos == nil {
		infos = []*blobstore.ObjectInfo{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   infos,
	})
}

// handleDownloadFile handles GET /v1/files/{key...}
func (h *Handler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Key is required")
		return
	}

	info, err := h.gw.GetMetadata(r.Context(), key)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	content, err := h.gw.Download(r.Context(), key)
	if err != nil {
		h.logger.Error("Failed to download file", "error", err, "key", key)
		h.writeStorageError(w, err)
		return
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// handleDeleteFile handles DELETE /v1/files/{key...}
func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Key is required")
		return
	}

	if err := h.gw.Delete(r.Context(), key); err != nil {
		h.logger.Error("Failed to delete file", "error", err, "key", key)
		h.writeStorageError(w, err)
		return
	}

	h.logger.Info("File deleted", "key", key)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":     key,
		"deleted": true,
	})
}

// handleGetMetadata handles GET /v1/metadata/{key...}
func (h *Handler) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Key is required")
		return
	}

	info, err := h.gw.GetMetadata(r.Context(), key)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// handleUpdateMetadata handles PUT /v1/metadata/{key...}
func (h *Handler) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Key is required")
		return
	}

	var metadata map[string]string
	if err := json.NewDecoder(r.Body).Decode(&metadata); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Body must be a JSON object of strings")
		return
	}

	info, err := h.gw.UpdateMetadata(r.Context(), key, metadata)
	if err != nil {
		h.logger.Error("Failed to update metadata", "error", err, "key", key)
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// handleSignedURL handles GET /v1/urls/{key...}
func (h *Handler) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Key is required")
		return
	}

	expiry := defaultURLExpiry
	if expiryStr := r.URL.Query().Get("expiry"); expiryStr != "" {
		d, err := time.ParseDuration(expiryStr)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Expiry must be a positive duration")
			return
		}
		expiry = d
	}

	url, err := h.gw.SignedURL(r.Context(), key, expiry)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":        key,
		"url":        url,
		"expires_in": expiry.String(),
	})
}

// handleSetVisibility handles PUT /v1/visibility/{key...}
func (h *Handler) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Key is required")
		return
	}

	var req struct {
		Public bool `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	var err error
	if req.Public {
		err = h.gw.SetPublic(r.Context(), key)
	} else {
		err = h.gw.SetPrivate(r.Context(), key)
	}
	if err != nil {
		h.logger.Error("Failed to set visibility", "error", err, "key", key, "public", req.Public)
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":    key,
		"public": req.Public,
	})
}

// keyPairRequest is the body of copy, move and rename calls.
type keyPairRequest struct {
	SrcKey string `json:"src_key"`
	DstKey string `json:"dst_key"`
}

func (h *Handler) readKeyPair(w http.ResponseWriter, r *http.Request) (keyPairRequest, bool) {
	var req keyPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return req, false
	}
	if strings.TrimSpace(req.SrcKey) == "" || strings.TrimSpace(req.DstKey) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "src_key and dst_key are required")
		return req, false
	}
	return req, true
}

// handleCopy handles POST /v1/copy
func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readKeyPair(w, r)
	if !ok {
		return
	}

	info, err := h.gw.Copy(r.Context(), req.SrcKey, req.DstKey)
	if err != nil {
		h.logger.Error("Failed to copy file", "error", err, "src_key", req.SrcKey, "dst_key", req.DstKey)
		h.writeStorageError(w, err)
		return
	}

	h.logger.Info("File copied", "src_key", req.SrcKey, "dst_key", req.DstKey)
	h.writeJSON(w, http.StatusOK, info)
}

// handleMove handles POST /v1/move
func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readKeyPair(w, r)
	if !ok {
		return
	}

	info, err := h.gw.Move(r.Context(), req.SrcKey, req.DstKey)
	if err != nil {
		h.logger.Error("Failed to move file", "error", err, "src_key", req.SrcKey, "dst_key", req.DstKey)
		h.writeStorageError(w, err)
		return
	}

	h.logger.Info("File moved", "src_key", req.SrcKey, "dst_key", req.DstKey)
	h.writeJSON(w, http.StatusOK, info)
}

// handleRename handles POST /v1/rename
func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readKeyPair(w, r)
	if !ok {
		return
	}

	info, err := h.gw.Rename(r.Context(), req.SrcKey, req.DstKey)
	if err != nil {
		h.logger.Error("Failed to rename file", "error", err, "src_key", req.SrcKey, "dst_key", req.DstKey)
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// handleProcess handles POST /v1/process
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "key is required")
		return
	}

	info, err := h.gw.Process(r.Context(), req.Key)
	if err != nil {
		h.logger.Error("Failed to process file", "error", err, "key", req.Key)
		h.writeStorageError(w, err)
		return
	}

	h.logger.Info("File processed", "key", req.Key)
	h.writeJSON(w, http.StatusOK, info)
}
