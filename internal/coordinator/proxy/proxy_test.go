package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingBackend is an httptest server that records how many /api/data
// requests it received.
type countingBackend struct {
	srv  *httptest.Server
	hits atomic.Int64
}

func newCountingBackend(t *testing.T, dataStatus int, dataBody map[string]any) *countingBackend {
	t.Helper()

	b := &countingBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/data", func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(dataStatus)
		_ = json.NewEncoder(w).Encode(dataBody)
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

// deadEndpoint returns a URL with no listener behind it.
func deadEndpoint(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestFailover_FirstHealthyBackendWins(t *testing.T) {
	down := deadEndpoint(t)
	second := newCountingBackend(t, http.StatusOK, map[string]any{"result": "success"})
	third := newCountingBackend(t, http.StatusOK, map[string]any{"result": "success"})

	pool := NewPool([]string{down, second.srv.URL, third.srv.URL}, testLogger())

	result, err := FailoverStrategy{}.Forward(context.Background(), pool, ForwardRequest{
		Method: http.MethodPost,
		Path:   "/api/data",
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	require.Equal(t, second.srv.URL, result.Endpoint)
	require.Equal(t, http.StatusOK, result.StatusCode)

	require.EqualValues(t, 1, second.hits.Load())
	require.Zero(t, third.hits.Load(), "backends after the first success are never contacted")
}

func TestFailover_SkipsRejectingBackend(t *testing.T) {
	rejecting := newCountingBackend(t, http.StatusInternalServerError, map[string]any{"error": "boom"})
	healthy := newCountingBackend(t, http.StatusOK, map[string]any{"result": "success"})

	pool := NewPool([]string{rejecting.srv.URL, healthy.srv.URL}, testLogger())

	result, err := FailoverStrategy{}.Forward(context.Background(), pool, ForwardRequest{
		Method: http.MethodPost,
		Path:   "/api/data",
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	require.Equal(t, healthy.srv.URL, result.Endpoint)
	require.EqualValues(t, 1, rejecting.hits.Load(), "rejecting backend was tried first")
}

func TestFailover_AllDown(t *testing.T) {
	pool := NewPool([]string{deadEndpoint(t), deadEndpoint(t), deadEndpoint(t)}, testLogger())

	_, err := FailoverStrategy{}.Forward(context.Background(), pool, ForwardRequest{
		Method: http.MethodPost,
		Path:   "/api/data",
		Body:   []byte(`{}`),
	})
	require.ErrorIs(t, err, ErrAllDown)
}

func TestFailover_ForwardsHeaders(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/data", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	pool := NewPool([]string{srv.URL}, testLogger())

	header := http.Header{}
	header.Set("Authorization", "Bearer test-session-token")
	_, err := FailoverStrategy{}.Forward(context.Background(), pool, ForwardRequest{
		Method: http.MethodPost,
		Path:   "/api/data",
		Body:   []byte(`{}`),
		Header: header,
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer test-session-token", gotAuth)
}

func TestPoolHealth(t *testing.T) {
	up := newCountingBackend(t, http.StatusOK, nil)
	down := deadEndpoint(t)

	pool := NewPool([]string{up.srv.URL, down}, testLogger())

	statuses := pool.Health(context.Background())
	require.Len(t, statuses, 2)
	require.Equal(t, up.srv.URL, statuses[0].Server)
	require.Equal(t, "up", statuses[0].Status)
	require.Equal(t, down, statuses[1].Server)
	require.Equal(t, "down", statuses[1].Status)
}
