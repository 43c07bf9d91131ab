package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/emissions/dataset"
	"github.com/YuminosukeSato/emissions/inference"
	"github.com/YuminosukeSato/emissions/pipeline"
	"github.com/YuminosukeSato/emissions/pkg/log"
)

var (
	predictorOnce sync.Once
	predictor     *inference.Predictor
	predictorErr  error
)

func testPredictor(t *testing.T) *inference.Predictor {
	t.Helper()
	predictorOnce.Do(func() {
		ds, err := dataset.Generate(42, 1000)
		if err != nil {
			predictorErr = err
			return
		}
		train, _, err := dataset.TrainTestSplit(ds, 0.2, 42)
		if err != nil {
			predictorErr = err
			return
		}
		p := pipeline.New()
		if err := p.Fit(train); err != nil {
			predictorErr = err
			return
		}
		predictor, predictorErr = inference.New(p)
	})
	require.NoError(t, predictorErr)
	return predictor
}

func newTestServer(t *testing.T) (*Server, *log.TestLogger) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return New(testPredictor(t), Options{MaxBodyBytes: 1024}, logger), logger
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPredictEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/predict",
		`{"fuel_consumption": 10, "vehicle_type": "car", "distance": 100, "engine_size": 2000, "country_factor": 2.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "g CO2", resp.Unit)

	want, err := testPredictor(t).Predict(10, "car", 100, 2000, 2.5)
	require.NoError(t, err)
	assert.Equal(t, want, resp.Emissions)
}

func TestPredictEndpointErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		status  int
		errType string
	}{
		{
			name:    "unknown category",
			body:    `{"fuel_consumption": 10, "vehicle_type": "tractor", "distance": 100, "engine_size": 2000, "country_factor": 2.5}`,
			status:  http.StatusUnprocessableEntity,
			errType: "unknown_category",
		},
		{
			name:    "missing field",
			body:    `{"fuel_consumption": 10, "vehicle_type": "car", "distance": 100, "engine_size": 2000}`,
			status:  http.StatusBadRequest,
			errType: "shape_mismatch",
		},
		{
			name:    "extra field",
			body:    `{"fuel_consumption": 10, "vehicle_type": "car", "distance": 100, "engine_size": 2000, "country_factor": 2.5, "colour": "red"}`,
			status:  http.StatusBadRequest,
			errType: "shape_mismatch",
		},
		{
			name:    "wrong type",
			body:    `{"fuel_consumption": "ten", "vehicle_type": "car", "distance": 100, "engine_size": 2000, "country_factor": 2.5}`,
			status:  http.StatusBadRequest,
			errType: "shape_mismatch",
		},
		{
			name:    "malformed json",
			body:    `{"fuel_consumption": 10,`,
			status:  http.StatusBadRequest,
			errType: "shape_mismatch",
		},
		{
			name:    "trailing data",
			body:    `{"fuel_consumption": 10, "vehicle_type": "car", "distance": 100, "engine_size": 2000, "country_factor": 2.5}{"x": 1}`,
			status:  http.StatusBadRequest,
			errType: "shape_mismatch",
		},
		{
			name:    "body too large",
			body:    `{"vehicle_type": "` + strings.Repeat("x", 2048) + `"}`,
			status:  http.StatusRequestEntityTooLarge,
			errType: "body_too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/predict", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.errType, resp.Type)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestModelAndHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/model", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info inference.ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, []string{"bus", "car", "truck"}, info.Categories)
	assert.Len(t, info.FeatureNames, 7)
	assert.Len(t, info.Coefficients, 7)

	rec = doRequest(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	valid := `{"fuel_consumption": 10, "vehicle_type": "car", "distance": 100, "engine_size": 2000, "country_factor": 2.5}`
	doRequest(t, s, http.MethodPost, "/api/v1/predict", valid)
	doRequest(t, s, http.MethodPost, "/api/v1/predict", strings.Replace(valid, "car", "tractor", 1))

	doRequest(t, s, http.MethodGet, "/nope", "")
	doRequest(t, s, http.MethodGet, "/api/v1/predict", "")

	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, `emissions_predictions_total{outcome="ok"} 1`)
	assert.Contains(t, body, `emissions_predictions_total{outcome="unknown_category"} 1`)
	assert.Contains(t, body, "emissions_prediction_duration_seconds_count 1")
	assert.Contains(t, body, `http_request_count_total{method="POST",route="/api/v1/predict",status="200"} 1`)
	assert.Contains(t, body, `http_request_count_total{method="POST",route="/api/v1/predict",status="422"} 1`)
	assert.Contains(t, body, `http_request_count_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, body, `http_request_count_total{method="GET",route="unmatched",status="405"} 1`)
}

func TestRequestLogging(t *testing.T) {
	s, logger := newTestServer(t)
	doRequest(t, s, http.MethodGet, "/healthz", "")

	assert.True(t, logger.ContainsMessage("HTTP request"))
	assert.True(t, logger.ContainsField("http.route", "/healthz"))

	doRequest(t, s, http.MethodPost, "/healthz", "")
	assert.True(t, logger.ContainsField("http.status", float64(http.StatusMethodNotAllowed)))
	assert.True(t, logger.ContainsField("http.route", "unmatched"))
}

func TestServeGracefulShutdown(t *testing.T) {
	dir := t.TempDir()
	_, err := pipeline.Save(testPredictor(t).Pipeline(), filepath.Join(dir, "model.json"), nil)
	require.NoError(t, err)
	pr, err := inference.Open(filepath.Join(dir, "model.json"))
	require.NoError(t, err)

	s := New(pr, Options{ShutdownTimeout: time.Second}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), pr.Model().ArtifactID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
