package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsushimemet/fridge-predictor/internal/table"
)

func decodePredict(t *testing.T, w *httptest.ResponseRecorder) PredictResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestPredict(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/predict", `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":2}]}`)
	resp := decodePredict(t, w)
	require.Len(t, resp.Predictions, 1)
	assert.Equal(t, Prediction{CategoryID: "dairy", DaysSinceLastPurchase: 2, Probability: 0.95}, resp.Predictions[0])
	assert.GreaterOrEqual(t, resp.ResponseTimeMS, 0.0)
	assert.Contains(t, decodeBody(t, w), "response_time_ms")
}

func TestPredictBatchPreservesOrder(t *testing.T) {
	srv := testServer(t)

	body := `{"items":[
		{"categoryId":"dairy","daysSinceLastPurchase":5},
		{"categoryId":"dairy","daysSinceLastPurchase":31},
		{"categoryId":"dairy","daysSinceLastPurchase":10},
		{"categoryId":"beans","daysSinceLastPurchase":0},
		{"categoryId":"unknown","daysSinceLastPurchase":3}
	]}`
	resp := decodePredict(t, do(t, srv, "POST", "/predict", body))

	assert.Equal(t, []Prediction{
		{CategoryID: "dairy", DaysSinceLastPurchase: 5, Probability: 0.7},
		{CategoryID: "dairy", DaysSinceLastPurchase: 31, Probability: 0.1},
		{CategoryID: "dairy", DaysSinceLastPurchase: 10, Probability: 0.1}, // gap falls to the last bucket
		{CategoryID: "beans", DaysSinceLastPurchase: 0, Probability: 0.9},
		{CategoryID: "unknown", DaysSinceLastPurchase: 3, Probability: 0.5},
	}, resp.Predictions)
}

func TestPredictRoundsProbability(t *testing.T) {
	srv := newTestServer(t,
		table.NewFileSource(writeTable(t, `{"fish":{"0-1":0.87654}}`)),
		Options{PredictionsEnabled: true})

	resp := decodePredict(t, do(t, srv, "POST", "/predict", `{"items":[{"categoryId":"fish","daysSinceLastPurchase":0}]}`))
	assert.Equal(t, 0.88, resp.Predictions[0].Probability)
}

func TestPredictValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "No JSON data provided"},
		{"not json", "not json", "No JSON data provided"},
		{"json null", "null", "No JSON data provided"},
		{"empty object", "{}", "No JSON data provided"},
		{"array body", `[{"categoryId":"dairy"}]`, "No JSON data provided"},
		{"items wrong type", `{"items":"dairy"}`, "No JSON data provided"},
		{"items absent", `{"other":1}`, "No items provided"},
		{"items null", `{"items":null}`, "No items provided"},
		{"items empty", `{"items":[]}`, "No items provided"},
		{"missing category", `{"items":[{"daysSinceLastPurchase":1}]}`, "categoryId is required"},
		{"empty category", `{"items":[{"categoryId":"","daysSinceLastPurchase":1}]}`, "categoryId is required"},
		{"missing days", `{"items":[{"categoryId":"dairy"}]}`, "daysSinceLastPurchase is required"},
		{"null days", `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":null}]}`, "daysSinceLastPurchase is required"},
		{"negative days", `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":-1}]}`, "daysSinceLastPurchase must be non-negative"},
		{"fractional days", `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":1.5}]}`, "daysSinceLastPurchase must be an integer"},
		{"huge days", `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":1e12}]}`, "daysSinceLastPurchase is too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t)
			w := do(t, srv, "POST", "/predict", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.want, decodeBody(t, w)["error"])
		})
	}
}

func TestPredictFirstInvalidItemWins(t *testing.T) {
	srv := testServer(t)

	body := `{"items":[
		{"categoryId":"dairy","daysSinceLastPurchase":1},
		{"categoryId":"dairy","daysSinceLastPurchase":-4},
		{"daysSinceLastPurchase":2}
	]}`
	w := do(t, srv, "POST", "/predict", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, "daysSinceLastPurchase must be non-negative", resp["error"])
	assert.NotContains(t, resp, "predictions")

	// Rejected batches are not counted
	assert.Equal(t, 0, srv.metrics.Snapshot().RequestCount)
}

func TestPredictMissingTableUsesDefault(t *testing.T) {
	srv := newTestServer(t, table.NewFileSource("/nonexistent/probability_matrix.json"), Options{PredictionsEnabled: true})

	resp := decodePredict(t, do(t, srv, "POST", "/predict", `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":2}]}`))
	assert.Equal(t, 0.5, resp.Predictions[0].Probability)
}

func TestPredictCorruptTableUsesDefault(t *testing.T) {
	for _, content := range []string{`{"dairy":{"abc":0.9}}`, `{"dairy":{" 0-3":0.9}}`, `{"dairy":{"+0-3":0.9}}`} {
		srv := newTestServer(t, table.NewFileSource(writeTable(t, content)), Options{PredictionsEnabled: true})

		resp := decodePredict(t, do(t, srv, "POST", "/predict", `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":2}]}`))
		assert.Equal(t, 0.5, resp.Predictions[0].Probability, content)
	}
}

func TestPredictReloadsPerRequest(t *testing.T) {
	path := writeTable(t, `{"dairy":{"0-3":0.95}}`)
	srv := newTestServer(t, table.NewFileSource(path), Options{PredictionsEnabled: true})
	body := `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":1}]}`

	resp := decodePredict(t, do(t, srv, "POST", "/predict", body))
	require.Equal(t, 0.95, resp.Predictions[0].Probability)

	require.NoError(t, os.WriteFile(path, []byte(`{"dairy":{"0-3":0.4}}`), 0o644))

	resp = decodePredict(t, do(t, srv, "POST", "/predict", body))
	assert.Equal(t, 0.4, resp.Predictions[0].Probability)
}

func TestPredictCachedNeedsReload(t *testing.T) {
	path := writeTable(t, `{"dairy":{"0-3":0.95}}`)
	srv := newTestServer(t, table.NewCache(table.NewFileSource(path)), Options{PredictionsEnabled: true})
	body := `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":1}]}`

	decodePredict(t, do(t, srv, "POST", "/predict", body))
	require.NoError(t, os.WriteFile(path, []byte(`{"dairy":{"0-3":0.4},"fish":{"0-1":0.8}}`), 0o644))

	resp := decodePredict(t, do(t, srv, "POST", "/predict", body))
	assert.Equal(t, 0.95, resp.Predictions[0].Probability)

	w := do(t, srv, "POST", "/reload", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reload := decodeBody(t, w)
	assert.Equal(t, true, reload["cached"])
	assert.Equal(t, float64(2), reload["categories"])

	resp = decodePredict(t, do(t, srv, "POST", "/predict", body))
	assert.Equal(t, 0.4, resp.Predictions[0].Probability)
}

func TestPredictCachedPicksUpLateTable(t *testing.T) {
	path := writeTable(t, `{"dairy":`)
	srv := newTestServer(t, table.NewCache(table.NewFileSource(path)), Options{PredictionsEnabled: true})
	body := `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":1}]}`

	resp := decodePredict(t, do(t, srv, "POST", "/predict", body))
	assert.Equal(t, 0.5, resp.Predictions[0].Probability)

	require.NoError(t, os.WriteFile(path, []byte(`{"dairy":{"0-3":0.95}}`), 0o644))

	resp = decodePredict(t, do(t, srv, "POST", "/predict", body))
	assert.Equal(t, 0.95, resp.Predictions[0].Probability)
}

func TestReloadFailureKeepsCache(t *testing.T) {
	path := writeTable(t, `{"dairy":{"0-3":0.95}}`)
	srv := newTestServer(t, table.NewCache(table.NewFileSource(path)), Options{PredictionsEnabled: true})
	body := `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":1}]}`

	decodePredict(t, do(t, srv, "POST", "/predict", body))
	require.NoError(t, os.Remove(path))

	w := do(t, srv, "POST", "/reload", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	resp := decodePredict(t, do(t, srv, "POST", "/predict", body))
	assert.Equal(t, 0.95, resp.Predictions[0].Probability)
}

func TestReloadUncached(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/reload", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, float64(2), body["categories"])
}

func TestPredictDisabled(t *testing.T) {
	srv := newTestServer(t, table.NewFileSource(writeTable(t, testTable)), Options{PredictionsEnabled: false})

	w := do(t, srv, "POST", "/predict", `{"items":[{"categoryId":"dairy","daysSinceLastPurchase":2}]}`)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Predictions feature is disabled", decodeBody(t, w)["error"])
}

func TestMetricsAfterPredictions(t *testing.T) {
	srv := testServer(t)

	const n = 105
	for i := 0; i < n; i++ {
		cat := "dairy"
		if i%5 == 0 {
			cat = "beans"
		}
		body := fmt.Sprintf(`{"items":[{"categoryId":%q,"daysSinceLastPurchase":%d},{"categoryId":"fish","daysSinceLastPurchase":1}]}`, cat, i)
		require.Equal(t, http.StatusOK, do(t, srv, "POST", "/predict", body).Code, "predict %d", i)
	}
	// rejected batch
	do(t, srv, "POST", "/predict", `{"items":[]}`)

	w := do(t, srv, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		RequestCount   int            `json:"request_count"`
		CategoryCounts map[string]int `json:"category_counts"`
		Average        *float64       `json:"average_response_time_ms"`
		Total          int            `json:"total_response_times"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, n, body.RequestCount)
	assert.Equal(t, 100, body.Total)
	assert.Equal(t, map[string]int{"beans": 21, "dairy": 84}, body.CategoryCounts)
	require.NotNil(t, body.Average)
	assert.GreaterOrEqual(t, *body.Average, 0.0)
}

func TestMetricsEmpty(t *testing.T) {
	srv := testServer(t)

	body := decodeBody(t, do(t, srv, "GET", "/metrics", ""))
	assert.Equal(t, float64(0), body["request_count"])
	assert.Equal(t, float64(0), body["total_response_times"])
	assert.Equal(t, map[string]any{}, body["category_counts"])
}
