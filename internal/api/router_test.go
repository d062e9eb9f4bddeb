package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup-client/internal/builds"
	"github.com/stitts-dev/dfs-lineup-client/internal/feeds"
	"github.com/stitts-dev/dfs-lineup-client/internal/session"
	"github.com/stitts-dev/dfs-lineup-client/internal/solver"
	"github.com/stitts-dev/dfs-lineup-client/pkg/config"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// testBackends fakes the projection feed and the solver stream
func testBackends(t *testing.T) (feedURL, solverURL string) {
	t.Helper()

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows := []map[string]interface{}{
			{"Driver": "Kyle Larson", "Team": "HMS", "DK Sal": 9800, "DK Proj": 55.0},
			{"Driver": "Denny Hamlin", "Team": "JGR", "DK Sal": 9300, "DK Proj": 51.0},
			{"Driver": `Truex, Jr., Martin`, "Team": "JGR", "DK Sal": 8900, "DK Proj": 47.0},
		}
		json.NewEncoder(w).Encode(rows)
	}))
	t.Cleanup(feed.Close)

	solverSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; i < 2; i++ {
			fmt.Fprintf(w, "data: {\"players\":[\"Kyle Larson\",\"Truex, Jr., Martin\"],\"salary\":18700,\"total\":%d}\n\n", 100+i)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"done\":true,\"produced\":2}\n\n")
		flusher.Flush()
	}))
	t.Cleanup(solverSrv.Close)

	return feed.URL, solverSrv.URL
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	feedURL, solverURL := testBackends(t)
	log := testLogger()

	cfg := &config.Config{MaxLineups: 150}
	store := builds.NewStore(filepath.Join(t.TempDir(), "builds.db"), true, log)
	settings := builds.NewSettingsStore(store)
	feedService := feeds.NewService(feedURL, 5*time.Second, nil, 60, "@every 30m", log)
	newClient := func() *solver.Client {
		return solver.NewClient(solverURL, solverURL, 5*time.Second, log)
	}
	manager := session.NewManager(newClient, store, settings, nil, log)

	router := gin.New()
	apiV1 := router.Group("/api/v1")
	SetupRoutes(apiV1, manager, feedService, store, cfg)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success, "body: %s", w.Body.String())
	return resp.Data
}

func TestGetPool(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/sports/nascar/sites/dk/pool", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope(t, w)
	assert.Len(t, data["players"], 3)
	assert.EqualValues(t, 50000, data["max_cap"])
}

func TestGetPoolUnknownSport(t *testing.T) {
	router := testRouter(t)
	w := doJSON(t, router, http.MethodGet, "/api/v1/sports/curling/sites/dk/pool", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions", gin.H{"sport": "nascar", "site": "dk"})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := envelope(t, w)["session"].(map[string]interface{})["id"].(string)

	w = doJSON(t, router, http.MethodPut, "/api/v1/sessions/"+sessionID+"/constraints", gin.H{
		"lineup_count": 2,
		"lock":         []string{"Kyle Larson"},
		"boosts":       gin.H{"Kyle Larson": 2},
	})
	require.Equal(t, http.StatusOK, w.Code)
	boosts := envelope(t, w)["boosts"].(map[string]interface{})
	assert.EqualValues(t, 2, boosts["Kyle Larson"])

	w = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/optimize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		w := doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/lineups", nil)
		if w.Code != http.StatusOK {
			return false
		}
		var resp struct {
			Data struct {
				Progress struct {
					Finished bool `json:"finished"`
				} `json:"progress"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.Data.Progress.Finished
	}, 5*time.Second, 20*time.Millisecond)

	w = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/lineups", nil)
	data := envelope(t, w)
	assert.Len(t, data["lineups"], 2)
	assert.NotEmpty(t, data["exposure"])

	w = doJSON(t, router, http.MethodDelete, "/api/v1/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportRoundTripsCommaNames(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions", gin.H{"sport": "nascar", "site": "dk"})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := envelope(t, w)["session"].(map[string]interface{})["id"].(string)

	w = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/optimize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		w := doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/export", nil)
		return w.Code == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	w = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/export", nil)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "lineups_nascar_dk.csv")

	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 2)
	assert.Equal(t, "Truex, Jr., Martin", records[1][1])
}

func TestExportEmptyRejected(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions", gin.H{"sport": "mlb", "site": "dk"})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := envelope(t, w)["session"].(map[string]interface{})["id"].(string)

	w = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/export", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuildsCRUD(t *testing.T) {
	router := testRouter(t)
	base := "/api/v1/sports/mlb/sites/dk/builds"

	w := doJSON(t, router, http.MethodPost, base, gin.H{
		"settings": gin.H{"cap": 50000},
		"lineups":  []gin.H{{"players": []string{"A"}, "salary": 1, "total": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	buildID := envelope(t, w)["id"].(string)
	assert.Equal(t, "Build 1", envelope(t, w)["name"])

	w = doJSON(t, router, http.MethodGet, base, nil)
	assert.Len(t, envelope(t, w)["builds"], 1)

	w = doJSON(t, router, http.MethodPut, "/api/v1/builds/"+buildID, gin.H{"name": "Sunday GPP"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/builds/"+buildID, nil)
	assert.Equal(t, "Sunday GPP", envelope(t, w)["name"])

	w = doJSON(t, router, http.MethodDelete, "/api/v1/builds/"+buildID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/builds/"+buildID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuildsScopedByPage(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sports/mlb/sites/dk/builds", gin.H{
		"settings": gin.H{}, "lineups": []gin.H{},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/sports/mlb/sites/fd/builds", nil)
	assert.Empty(t, envelope(t, w)["builds"])
}
