package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	s := New(Config{Name: "test", Version: "v1"}, prometheus.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady_NotReadyThenReady(t *testing.T) {
	s := New(Config{Name: "test", Version: "v1"}, prometheus.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.handleReady(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetReady(true)
	rec2 := httptest.NewRecorder()
	s.handleReady(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestHandleHealth_MethodNotAllowed(t *testing.T) {
	s := New(Config{Name: "test", Version: "v1"}, prometheus.NewRegistry())

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
