package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakline/descent/internal/config"
	"github.com/peakline/descent/internal/logging"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Optimizer.MaxFunEvals = 1000
	cfg.Optimizer.MaxIter = 1000
	cfg.Optimizer.Eps = 1e-6

	logger := logging.New(logging.FatalLevel, io.Discard)
	srv := NewServer(cfg, logger)

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, ts *httptest.Server, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// waitForJob polls until the job reaches the done state.
func waitForJob(t *testing.T, ts *httptest.Server, id string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, body := getJSON(t, ts, "/api/v1/jobs/"+id)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		if body["state"] == "done" {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return nil
}

func TestMinimizeEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postJSON(t, ts, "/api/v1/minimize", map[string]interface{}{
		"objective": "quad1",
		"x0":        []float64{0, 0},
		"formula":   "fr",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id, ok := body["job_id"].(string)
	require.True(t, ok)

	done := waitForJob(t, ts, id)
	result, ok := done["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "optimal", result["status"])
	assert.Equal(t, "quad1", done["objective"])

	x, ok := result["x"].([]interface{})
	require.True(t, ok)
	require.Len(t, x, 2)
}

func TestMinimizeSteepestDescent(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postJSON(t, ts, "/api/v1/minimize", map[string]interface{}{
		"objective": "sphere",
		"dim":       3,
		"method":    "sd",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	done := waitForJob(t, ts, body["job_id"].(string))
	result := done["result"].(map[string]interface{})
	assert.Equal(t, "optimal", result["status"])
}

func TestMinimizeRejects(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		req  map[string]interface{}
	}{
		{"missing objective", map[string]interface{}{"x0": []float64{0, 0}}},
		{"unknown objective", map[string]interface{}{"objective": "himmelblau"}},
		{"unknown formula", map[string]interface{}{"objective": "quad1", "formula": "newton"}},
		{"dimension mismatch", map[string]interface{}{"objective": "quad1", "x0": []float64{0, 0, 0}}},
		{"bad eps", map[string]interface{}{"objective": "quad1", "eps": 0.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts, "/api/v1/minimize", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestEvalCapClamped(t *testing.T) {
	ts := newTestServer(t)

	// A request may tighten the evaluation cap but not exceed the
	// service limit.
	resp, body := postJSON(t, ts, "/api/v1/minimize", map[string]interface{}{
		"objective":  "rosenbrock",
		"x0":         []float64{-1, 1},
		"formula":    "dy",
		"max_f_eval": 1000000,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	done := waitForJob(t, ts, body["job_id"].(string))
	result := done["result"].(map[string]interface{})
	assert.LessOrEqual(t, result["f_eval"].(float64), 1001.0)
}

func TestJobNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, body := getJSON(t, ts, "/api/v1/jobs/job_999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestListJobs(t *testing.T) {
	ts := newTestServer(t)

	_, body := postJSON(t, ts, "/api/v1/minimize", map[string]interface{}{
		"objective": "quad2",
		"x0":        []float64{0, 0},
	})
	id := body["job_id"].(string)
	waitForJob(t, ts, id)

	resp, list := getJSON(t, ts, "/api/v1/jobs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	jobs, ok := list["jobs"].([]interface{})
	require.True(t, ok)
	require.Len(t, jobs, 1)
	entry := jobs[0].(map[string]interface{})
	assert.Equal(t, id, entry["id"])
	assert.Equal(t, "done", entry["state"])
}
