// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagegw/storagegw/pkg/blobstore/memory"
	"github.com/storagegw/storagegw/pkg/gateway"
	"github.com/storagegw/storagegw/pkg/observability/logging"
	"github.com/storagegw/storagegw/pkg/observability/metrics"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	reg := gateway.NewRegistry()
	for i, name := range []string{"primary", "backup"} {
		p := gateway.NewProvider(name, "memory", i+1, i == 0, memory.New())
		require.NoError(t, reg.Register(p))
	}

	m := metrics.New()

	// A synchronous first sweep marks the in-memory providers healthy.
	monitor := gateway.NewMonitor(reg, gateway.MonitorConfig{Interval: time.Hour}, nil, m)
	require.NoError(t, monitor.Start(t.Context()))
	t.Cleanup(monitor.Stop)

	sel := gateway.NewSelector(reg, gateway.SelectorConfig{})
	gw := gateway.New(reg, sel, gateway.Options{Metrics: m})
	return New(gw, logging.Discard(), m)
}

func uploadRequest(t *testing.T, key, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "upload.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if key != "" {
		require.NoError(t, mw.WriteField("key", key))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doUpload(t *testing.T, h *Handler, key, content string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, key, content))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUploadAndDownload(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "docs/a.txt", "hello"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info struct {
		Key  string `json:"key"`
		Size int64  `json:"size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "docs/a.txt", info.Key)
	assert.Equal(t, int64(5), info.Size)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/docs/a.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestUploadDefaultsKeyToFilename(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "", "x"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/upload.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDownloadMissingFile(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestDeleteFile(t *testing.T) {
	h := newTestHandler(t)
	doUpload(t, h, "a.txt", "x")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/files/a.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/a.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFilesWithPrefix(t *testing.T) {
	h := newTestHandler(t)
	doUpload(t, h, "docs/a.txt", "x")
	doUpload(t, h, "docs/b.txt", "y")
	doUpload(t, h, "img/c.png", "z")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files?prefix=docs/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Key string `json:"key"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestMetadataRoundTrip(t *testing.T) {
	h := newTestHandler(t)
	doUpload(t, h, "a.txt", "x")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/metadata/a.txt",
		strings.NewReader(`{"owner":"ops"}`))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metadata/a.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info struct {
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "ops", info.Metadata["owner"])
}

func TestSignedURLNotSupportedByMemoryBackend(t *testing.T) {
	h := newTestHandler(t)
	doUpload(t, h, "a.txt", "x")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/urls/a.txt", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestSignedURLRejectsBadExpiry(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/urls/a.txt?expiry=banana", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetVisibility(t *testing.T) {
	h := newTestHandler(t)
	doUpload(t, h, "a.txt", "x")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/visibility/a.txt",
		strings.NewReader(`{"public":true}`))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metadata/a.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info struct {
		Public bool `json:"public"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Public)
}

func TestCopyAndMove(t *testing.T) {
	h := newTestHandler(t)
	doUpload(t, h, "src.txt", "payload")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/copy",
		strings.NewReader(`{"src_key":"src.txt","dst_key":"copy.txt"}`))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/move",
		strings.NewReader(`{"src_key":"copy.txt","dst_key":"moved.txt"}`))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The move source is gone; the original and the destination remain.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/copy.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, key := range []string{"src.txt", "moved.txt"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/"+key, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "payload", rec.Body.String())
	}
}

func TestCopyRequiresBothKeys(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/copy",
		strings.NewReader(`{"src_key":"only.txt"}`))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessEndpoint(t *testing.T) {
	h := newTestHandler(t)
	doUpload(t, h, "p.txt", "bytes")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/process",
		strings.NewReader(`{"key":"p.txt"}`))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/p.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bytes", rec.Body.String())
}

func TestListProviders(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/providers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Current string `json:"current"`
		Data    []struct {
			Name    string `json:"name"`
			Healthy bool   `json:"healthy"`
			Current bool   `json:"current"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "primary", resp.Current)
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].Current)
	assert.True(t, resp.Data[0].Healthy)
}

func TestSwitchProvider(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/providers/current",
		strings.NewReader(`{"name":"backup"}`))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	current, err := h.gw.CurrentProvider()
	require.NoError(t, err)
	assert.Equal(t, "backup", current)
}

func TestSwitchProviderUnknown(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/providers/current",
		strings.NewReader(`{"name":"azure"}`))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	current, err := h.gw.CurrentProvider()
	require.NoError(t, err)
	assert.Equal(t, "primary", current)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	doUpload(t, h, "a.txt", "x")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storagegw_provider_healthy")
}
