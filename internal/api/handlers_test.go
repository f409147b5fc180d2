package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/covidct/builder/internal/catalog"
	"github.com/covidct/builder/internal/config"
	"github.com/covidct/builder/internal/models"
)

func testHandler(t *testing.T) (*Handler, *config.Config) {
	t.Helper()

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	entries := []models.ManifestEntry{
		{Filename: "cncb-c1-0000.png", Class: models.ClassCOVID19, Source: "cncb", CaseID: "c1"},
		{Filename: "lidc-n1-0000.png", Class: models.ClassNormal, Source: "lidc", CaseID: "n1"},
	}
	require.NoError(t, cat.RecordRun("run-1", "3A", entries))

	cfg := &config.Config{
		OutputDir: t.TempDir(),
		SplitDir:  t.TempDir(),
		Version:   "3A",
	}
	return NewHandler(cat, cfg, nil, "test"), cfg
}

func doRequest(t *testing.T, h *Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	h, _ := testHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/api/health")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestHandleStats(t *testing.T) {
	h, _ := testHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/api/manifest/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)

	classes := body["classes"].(map[string]interface{})
	assert.Equal(t, float64(1), classes["Normal"])
	assert.Equal(t, float64(0), classes["Pneumonia"])
	assert.Equal(t, float64(1), classes["COVID-19"])

	sources := body["sources"].(map[string]interface{})
	assert.Equal(t, float64(1), sources["cncb"])
}

func TestHandleEntries(t *testing.T) {
	h, _ := testHandler(t)

	t.Run("first page", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/manifest/entries?page=1&pageSize=1")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeJSON(t, rec)
		assert.Equal(t, float64(2), body["total"])
		entries := body["entries"].([]interface{})
		require.Len(t, entries, 1)
		first := entries[0].(map[string]interface{})
		assert.Equal(t, "cncb-c1-0000.png", first["filename"])
	})

	t.Run("explicit run id", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/manifest/entries?runId=run-1")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, float64(2), body["total"])
	})

	t.Run("unknown run id answers 404", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/manifest/entries?runId=ghost")
		require.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, "NOT_FOUND", body["code"])
	})
}

func TestHandleStatsUnknownRun(t *testing.T) {
	h, _ := testHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/api/manifest/stats?runId=ghost")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestHandleStatsExplicitRun(t *testing.T) {
	h, _ := testHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/api/manifest/stats?runId=run-1")
	require.Equal(t, http.StatusOK, rec.Code)

	run := decodeJSON(t, rec)["run"].(map[string]interface{})
	assert.Equal(t, "run-1", run["id"])
	assert.Equal(t, "3A", run["version"])
}

func TestHandleEntriesMsgpack(t *testing.T) {
	h, _ := testHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/api/manifest/entries/msgpack")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var body map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["total"])
}

func TestHandleVerify(t *testing.T) {
	h, cfg := testHandler(t)

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.SplitDir, "train_CT-3A.txt"),
		[]byte("cncb-c1-0000.png 2\nmissing.png 0\n"), 0644))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.OutputDir, "cncb-c1-0000.png"), []byte("png"), 0644))

	rec := doRequest(t, h, http.MethodPost, "/api/verify")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "3A", body["version"])
	assert.Equal(t, false, body["complete"])
	assert.Equal(t, "1/2 files created, dataset incomplete", body["summary"])

	report := body["report"].(map[string]interface{})
	missing := report["missing"].([]interface{})
	require.Len(t, missing, 1)
	assert.Equal(t, "missing.png", missing[0])
}

func TestHandleVerifyBadVersion(t *testing.T) {
	h, _ := testHandler(t)
	rec := doRequest(t, h, http.MethodPost, "/api/verify?version=banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVerifyNoSplitFiles(t *testing.T) {
	h, _ := testHandler(t)
	rec := doRequest(t, h, http.MethodPost, "/api/verify")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "BAD_REQUEST", body["code"])
}
