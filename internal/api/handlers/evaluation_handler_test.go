package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-eval/backend/internal/checks"
	"github.com/dataset-eval/backend/internal/dataset"
	"github.com/dataset-eval/backend/internal/evaluation"
	"github.com/dataset-eval/backend/internal/inference"
	"github.com/dataset-eval/backend/internal/middleware/validation"
	"github.com/dataset-eval/backend/internal/storage/sqlite"
)

type stubClassifiers struct {
	err error
}

func (s stubClassifiers) Relevance(context.Context, string) (checks.Relevance, error) {
	return checks.Relevant, s.err
}

func (s stubClassifiers) ContainsPII(context.Context, string) (bool, error) {
	return false, s.err
}

func (s stubClassifiers) ContainsBias(context.Context, string) (bool, error) {
	return false, s.err
}

func (s stubClassifiers) Gender(context.Context, string) (checks.Gender, error) {
	return checks.GenderUnknown, s.err
}

var defaultParams = validation.EvaluationParams{QualityThreshold: 0.9, ComplianceThreshold: 0.95}

func newTestApp(t *testing.T, catalog evaluation.Classifiers) *fiber.App {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })

	runner := NewRunner(evaluation.NewEvaluator(catalog), store, defaultParams, 1)
	h := NewEvaluationHandler(runner, store)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/evaluations", validation.Middleware(validation.Config{Defaults: defaultParams}), h.CreateEvaluation)
	api.Get("/evaluations", h.ListEvaluations)
	api.Get("/evaluations/:id/report", h.GetReport)
	api.Get("/evaluations/:id/dataset", h.GetFlaggedDataset)
	return app
}

const sampleCSV = "customer_message,name,contact_info\n" +
	"Where is my order?,Ann,ann@example.com\n" +
	"Where is my order?,Bob,\n" +
	"I want to cancel my subscription,Cy,\n" +
	",Dee,\n"

func postCSV(t *testing.T, app *fiber.App, target, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-Dataset-Name", "support.csv")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCreateEvaluation(t *testing.T) {
	app := newTestApp(t, stubClassifiers{})

	resp, out := postCSV(t, app, "/api/v1/evaluations?pii=true", sampleCSV)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	assert.NotEmpty(t, out["id"])
	assert.Equal(t, "support.csv", out["source"])

	scores := out["scores"].(map[string]interface{})
	assert.Equal(t, 4.0, scores["total"])
	assert.Equal(t, 3.0, scores["quality_issues"])
	assert.Equal(t, 1.0, scores["pii_entries"])

	verdict := out["verdict"].(map[string]interface{})
	assert.Equal(t, false, verdict["fit_for_purpose"])
	assert.Equal(t, []interface{}{"quality", "compliance"}, verdict["top_issues"])
	assert.Contains(t, out["report"], "Entries with Detected Email PII: 1")
}

func TestCreateEvaluationMultipart(t *testing.T) {
	app := newTestApp(t, nil)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "../uploads/tickets.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/evaluations", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "tickets.csv", out["source"])
}

func TestCreateEvaluationErrors(t *testing.T) {
	tests := []struct {
		name       string
		catalog    evaluation.Classifiers
		target     string
		body       string
		wantStatus int
	}{
		{"missing columns", stubClassifiers{}, "/api/v1/evaluations", "customer_message\nhi\n", fiber.StatusBadRequest},
		{"empty dataset", stubClassifiers{}, "/api/v1/evaluations", "customer_message,name,contact_info\n", fiber.StatusBadRequest},
		{"bad threshold", stubClassifiers{}, "/api/v1/evaluations?compliance_threshold=3", sampleCSV, fiber.StatusBadRequest},
		{"checks unavailable", nil, "/api/v1/evaluations?bias=true", sampleCSV, fiber.StatusServiceUnavailable},
		{
			"rejected credentials",
			stubClassifiers{err: fmt.Errorf("401: %w", inference.ErrAuthentication)},
			"/api/v1/evaluations?relevance=true",
			sampleCSV,
			fiber.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, tt.catalog)
			resp, out := postCSV(t, app, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestStoredRunEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	_, out := postCSV(t, app, "/api/v1/evaluations", sampleCSV)
	id := out["id"].(string)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/evaluations/"+id+"/report", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	report, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(report), "Duplicate Entries: 2")
	assert.Contains(t, string(report), "Email PII Detection Not Performed")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/evaluations/"+id+"/dataset", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	flagged, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(flagged), "customer_message,name,contact_info,duplicate_flag,"))

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/evaluations?limit=5", nil))
	require.NoError(t, err)
	var list struct {
		Evaluations []struct {
			ID     string   `json:"id"`
			Checks []string `json:"checks"`
		} `json:"evaluations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Evaluations, 1)
	assert.Equal(t, id, list.Evaluations[0].ID)
	assert.Empty(t, list.Evaluations[0].Checks)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/evaluations/nope/report", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/evaluations?limit=0", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, statusFor(&dataset.MalformedInputError{Missing: []string{"name"}}))
	assert.Equal(t, fiber.StatusBadRequest, statusFor(fmt.Errorf("score: %w", evaluation.ErrEmptyDataset)))
	assert.Equal(t, fiber.StatusBadGateway, statusFor(inference.ErrAuthentication))
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(errors.New("disk full")))
	assert.Equal(t, "Failed to evaluate dataset", clientMessage(errors.New("disk full")))
}

func TestWebSocketOptionsOverlayDefaults(t *testing.T) {
	var req wsRequest
	require.NoError(t, json.Unmarshal([]byte(`{"type":"evaluate","options":{"quality_threshold":0.5,"pii":true}}`), &req))

	got := req.Options.params(defaultParams)
	assert.Equal(t, validation.EvaluationParams{QualityThreshold: 0.5, ComplianceThreshold: 0.95, PII: true}, got)
}

func TestHealthHandler(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	app := fiber.New()
	ok := NewHealthHandler(map[string]Pinger{"sqlite": healthy})
	bad := NewHealthHandler(map[string]Pinger{"sqlite": healthy, "redis": down})
	app.Get("/health", ok.Health)
	app.Get("/ready", ok.Ready)
	app.Get("/ready-bad", bad.Ready)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/ready-bad", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
