package http_server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"classgame/internal/http/gamehandler"
	"classgame/internal/metrics"
	"classgame/internal/room"
	"classgame/internal/services/score"
	"classgame/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	registry := room.NewMemoryRegistry()
	wsSrv := ws.NewWsServer(ws.NewHub(), registry, ws.WithMetrics(m))
	gh := gamehandler.New(registry, score.NewScoreService(score.NewMemoryStore()), m)

	engine := NewHttpServer(context.Background(), 8085, wsSrv, gh, reg).Engine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	body := strings.NewReader(`{"owner_id":"t1","participant_id":"s1","points":3}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/R/scores", body)
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `classgame_score_submissions_total{outcome="created"} 1`)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
