package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/halcyonlabs/vaultgate/internal/coordinator/proxy"
	"github.com/halcyonlabs/vaultgate/pkg/api"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T, endpoints []string) *httptest.Server {
	t.Helper()

	pool := proxy.NewPool(endpoints, slog.New(slog.DiscardHandler))
	router := NewRouter(pool, proxy.FailoverStrategy{}, slog.New(slog.DiscardHandler))
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func newBackend(t *testing.T, body map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDataAnnotatesProcessedBy(t *testing.T) {
	backend := newBackend(t, map[string]any{"result": "success", "user": "user1"})
	coord := newCoordinator(t, []string{backend.URL})

	resp, err := http.Post(coord.URL+"/api/data", "application/json",
		strings.NewReader(`{"certificate":"x","data":"y"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "success", body["result"])
	require.Equal(t, backend.URL, body["processed_by"])
}

func TestDataAllDown(t *testing.T) {
	// A closed listener: reserve a port, then shut it down.
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	coord := newCoordinator(t, []string{deadURL})

	resp, err := http.Post(coord.URL+"/api/data", "application/json",
		strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "All servers are down", body["error"])
}

func TestHealthAggregation(t *testing.T) {
	backend := newBackend(t, nil)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	coord := newCoordinator(t, []string{backend.URL, deadURL})

	resp, err := http.Get(coord.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health api.CoordinatorHealth
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, "running", health.Coordinator)
	require.Equal(t, 1, health.UpCount)
	require.Len(t, health.Servers, 2)
	require.Equal(t, "up", health.Servers[0].Status)
	require.Equal(t, "down", health.Servers[1].Status)
}
