package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/questionsim/internal/api"
	"github.com/knowledge-engine/questionsim/internal/config"
	"github.com/knowledge-engine/questionsim/internal/engine"
	"github.com/knowledge-engine/questionsim/internal/ingest"
	"github.com/knowledge-engine/questionsim/internal/storage"
)

const corpusCSV = "id,question\n" +
	"1,ما هو عنوان المكتب؟\n" +
	"2,ما هو عنوان المكتب\n" +
	"3,كيف الطقس اليوم؟\n"

func setupServer(t *testing.T) (*api.Server, string) {
	t.Helper()
	dir := t.TempDir()
	corpus := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(corpus, []byte(corpusCSV), 0o644))

	cfg := config.Default()
	cfg.Export.Dir = filepath.Join(dir, "exports")

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logger.WithField("test", "api")

	exporter, err := storage.NewFileExporter(cfg.Export.Dir)
	require.NoError(t, err)

	eng := engine.NewEngine(cfg, entry, ingest.NewLoader(cfg.Ingest, entry), exporter)
	return api.NewServer(eng, entry), corpus
}

func loaded(t *testing.T) *api.Server {
	t.Helper()
	server, corpus := setupServer(t)
	_, err := server.Engine.Load(context.Background(), corpus)
	require.NoError(t, err)
	return server
}

func serve(server *api.Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)
	return rr
}

func TestHandleStatus(t *testing.T) {
	server, _ := setupServer(t)

	rr := serve(server, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Loading)
	assert.Nil(t, resp.Snapshot)
	assert.NotEmpty(t, resp.Uptime)

	rr = serve(server, http.MethodPost, "/api/v1/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleLoad(t *testing.T) {
	server, corpus := setupServer(t)

	body, _ := json.Marshal(api.LoadRequest{Source: corpus})
	rr := serve(server, http.MethodPost, "/api/v1/load", string(body))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool {
		return !server.Engine.IsLoading()
	}, 5*time.Second, 10*time.Millisecond)

	rr = serve(server, http.MethodGet, "/api/v1/status", "")
	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, 3, resp.Snapshot.Questions)
	assert.Equal(t, corpus, resp.Snapshot.Source)
}

func TestHandleLoadBadRequests(t *testing.T) {
	server, _ := setupServer(t)

	rr := serve(server, http.MethodPost, "/api/v1/load", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(server, http.MethodPost, "/api/v1/load", `{"source": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(server, http.MethodGet, "/api/v1/load", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleLoadFailureIsReported(t *testing.T) {
	server, _ := setupServer(t)

	rr := serve(server, http.MethodPost, "/api/v1/load", `{"source": "/definitely/missing.csv"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool {
		return !server.Engine.IsLoading()
	}, 5*time.Second, 10*time.Millisecond)

	status := server.Engine.Status()
	assert.Nil(t, status.Snapshot)
	assert.Contains(t, status.LastError, "missing.csv")
}

func TestHandleQuestions(t *testing.T) {
	server := loaded(t)

	rr := serve(server, http.MethodGet, "/api/v1/questions", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.QuestionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, "1", resp.Questions[0].ID)

	rr = serve(server, http.MethodGet, "/api/v1/questions?q=3", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, 2, resp.Questions[0].Index)
}

func TestHandleQuestionsNotLoaded(t *testing.T) {
	server, _ := setupServer(t)

	rr := serve(server, http.MethodGet, "/api/v1/questions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleSimilar(t *testing.T) {
	server := loaded(t)

	rr := serve(server, http.MethodGet, "/api/v1/similar?index=0&threshold=0", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.SimilarResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "1", resp.Query.ID)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "2", resp.Results[0].ID)
	assert.Equal(t, "100.0%", resp.Results[0].Similarity)
	assert.Equal(t, "high", string(resp.Results[0].Band))
	assert.Equal(t, "3", resp.Results[1].ID)

	// missing or malformed threshold falls back to the default of 30
	rr = serve(server, http.MethodGet, "/api/v1/similar?index=0&threshold=abc", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 30.0, resp.Threshold)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "2", resp.Results[0].ID)
}

func TestHandleSimilarBadRequests(t *testing.T) {
	server := loaded(t)

	rr := serve(server, http.MethodGet, "/api/v1/similar?index=x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(server, http.MethodGet, "/api/v1/similar?index=9", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "out of range")
}

func TestHandleExport(t *testing.T) {
	server := loaded(t)

	rr := serve(server, http.MethodPost, "/api/v1/export", `{"index": 0, "threshold": 50, "format": "csv"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp api.ExportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, ".csv", filepath.Ext(resp.Path))

	data, err := os.ReadFile(resp.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ID: 1")
	assert.Contains(t, string(data), "100.0%,2,ما هو عنوان المكتب")
}

func TestHandleExportErrors(t *testing.T) {
	server := loaded(t)

	rr := serve(server, http.MethodPost, "/api/v1/export", `{"index": 2, "threshold": 95}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(server, http.MethodPost, "/api/v1/export", `{"index": 0, "threshold": 0, "format": "pdf"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(server, http.MethodPost, "/api/v1/export", `[`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
