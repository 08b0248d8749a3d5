package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hdrp/internal/pipeline"
)

// stubRunner implements Runner.
type stubRunner struct {
	got  pipeline.ExecuteRequest
	resp pipeline.ExecuteResponse
}

func (s *stubRunner) Execute(_ context.Context, req pipeline.ExecuteRequest) pipeline.ExecuteResponse {
	s.got = req
	return s.resp
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestExecuteSuccess(t *testing.T) {
	runner := &stubRunner{resp: pipeline.ExecuteResponse{
		Success: true,
		RunID:   "run-1",
		Report:  "# report",
	}}
	s := New(runner, zap.NewNop())

	rec := doRequest(t, s, "POST", "/execute", `{"query":"q","provider":"simulated","run_id":"run-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pipeline.ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "q", runner.got.Query)
	assert.Equal(t, "simulated", runner.got.Provider)
}

func TestExecuteLogicalFailureIsStill200(t *testing.T) {
	runner := &stubRunner{resp: pipeline.ExecuteResponse{
		Success:      false,
		RunID:        "run-2",
		ErrorMessage: "query must not be empty",
	}}
	s := New(runner, zap.NewNop())

	rec := doRequest(t, s, "POST", "/execute", `{"query":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pipeline.ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "query must not be empty", resp.ErrorMessage)
}

func TestExecuteMalformedBody(t *testing.T) {
	s := New(&stubRunner{}, zap.NewNop())
	rec := doRequest(t, s, "POST", "/execute", `{"query": unquoted}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := New(&stubRunner{}, zap.NewNop())
	rec := doRequest(t, s, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
