package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/domain"
	"github.com/aristath/equiscan/internal/health"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(_ context.Context) error { return f.err }

func newTestServer(busClient *bus.Bus, categories []string) *Server {
	return New(Config{
		Log:        zerolog.Nop(),
		Port:       0,
		DevMode:    true,
		Bus:        busClient,
		Categories: categories,
	})
}

func TestHandleHealthz_WithoutChecker(t *testing.T) {
	s := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.handleHealthz(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleReadyz_NoReadinessConfigured(t *testing.T) {
	s := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	s.handleReadyz(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReadyz_AllHealthy(t *testing.T) {
	s := newTestServer(nil, nil)
	s.readiness = health.NewReadinessChecker(fakePinger{}, fakePinger{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.handleReadyz(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReadyz_DependencyDown(t *testing.T) {
	s := newTestServer(nil, nil)
	s.readiness = health.NewReadinessChecker(fakePinger{err: assert.AnError}, fakePinger{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.handleReadyz(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleCategorySnapshot_UnknownCategory(t *testing.T) {
	s := newTestServer(nil, []string{"top_gainers"})
	req := httptest.NewRequest(http.MethodGet, "/api/scanner/categories/bogus", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCategorySnapshot_BusNotConfigured(t *testing.T) {
	s := newTestServer(nil, []string{"top_gainers"})
	req := httptest.NewRequest(http.MethodGet, "/api/scanner/categories/top_gainers", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// newTestBus connects to a Redis instance from TEST_REDIS_URL, skipping
// the test when no such instance is configured, mirroring
// internal/bus's own integration tests.
func newTestBus(t *testing.T) *bus.Bus {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Bus integration test")
	}
	b, err := bus.New(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestHandleCategorySnapshot_Miss(t *testing.T) {
	b := newTestBus(t)
	s := newTestServer(b, []string{"top_gainers"})

	req := httptest.NewRequest(http.MethodGet, "/api/scanner/categories/top_gainers", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp categorySnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "top_gainers", resp.Category)
	assert.Empty(t, resp.Rows)
}

func TestHandleCategorySnapshot_Found(t *testing.T) {
	b := newTestBus(t)
	s := newTestServer(b, []string{"top_gainers"})

	ranking := domain.CategoryRanking{
		Category: domain.Category("top_gainers"),
		Sequence: 7,
		Rows: []domain.RankedRow{
			{Symbol: "AAPL", Rank: 1, Price: 150.0, ChangePct: 5.2},
		},
	}
	require.NoError(t, b.Set(context.Background(), "ranking:top_gainers", ranking, 0))

	req := httptest.NewRequest(http.MethodGet, "/api/scanner/categories/top_gainers", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp categorySnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Sequence)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "AAPL", resp.Rows[0].Symbol)
}
