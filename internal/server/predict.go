package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atsushimemet/fridge-predictor/internal/metrics"
	"github.com/atsushimemet/fridge-predictor/internal/table"
)

const (
	maxBodyBytes = 1 << 20
	maxDays      = math.MaxInt32
)

// Client-facing validation messages.
const (
	msgNoJSON         = "No JSON data provided"
	msgNoItems        = "No items provided"
	msgNoCategory     = "categoryId is required"
	msgNoDays         = "daysSinceLastPurchase is required"
	msgNegativeDays   = "daysSinceLastPurchase must be non-negative"
	msgFractionalDays = "daysSinceLastPurchase must be an integer"
	msgDaysTooLarge   = "daysSinceLastPurchase is too large"
)

// PredictItem is one entry of a prediction request. Pointer fields tell a
// missing value apart from a zero one.
type PredictItem struct {
	CategoryID            *string  `json:"categoryId"`
	DaysSinceLastPurchase *float64 `json:"daysSinceLastPurchase"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Items []PredictItem `json:"items"`
}

// Prediction is one resolved item.
type Prediction struct {
	CategoryID            string  `json:"categoryId"`
	DaysSinceLastPurchase int     `json:"daysSinceLastPurchase"`
	Probability           float64 `json:"probability"`
}

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	Predictions    []Prediction `json:"predictions"`
	ResponseTimeMS float64      `json:"response_time_ms"`
}

type query struct {
	category string
	days     int
}

var errBadBody = errors.New(msgNoJSON)

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !s.opts.PredictionsEnabled {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "Predictions feature is disabled",
			"message": "This feature is currently not available",
		})
		return
	}

	items, err := decodePredictRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	queries, msg := validateItems(items)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	// One load per batch: every item sees the same table, and edits to the
	// source show up on the next request.
	t := s.tables.Load(r.Context())
	log := s.log.WithField("request_id", r.Header.Get(requestIDHeader))

	predictions := make([]Prediction, len(queries))
	for i, q := range queries {
		p, fallback := table.Resolve(t, q.category, q.days)
		if fallback {
			log.WithField("category", q.category).Warn("no buckets for category, using default probability")
		}
		predictions[i] = Prediction{
			CategoryID:            q.category,
			DaysSinceLastPurchase: q.days,
			Probability:           metrics.Round2(p),
		}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	n, avg := s.metrics.Record(predictions[0].CategoryID, elapsed)
	log.WithFields(logrus.Fields{
		"request":              n,
		"category":             predictions[0].CategoryID,
		"items":                len(predictions),
		"response_time_ms":     metrics.Round2(elapsed),
		"avg_response_time_ms": metrics.Round2(avg),
	}).Info("prediction served")

	writeJSON(w, http.StatusOK, PredictResponse{
		Predictions:    predictions,
		ResponseTimeMS: metrics.Round2(elapsed),
	})
}

// decodePredictRequest reads the body. A missing, unparseable, or empty
// object body is errBadBody; an absent or empty items list is reported
// separately.
func decodePredictRequest(body io.Reader) ([]PredictItem, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil, errBadBody
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope) == 0 {
		return nil, errBadBody
	}

	var req PredictRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errBadBody
	}
	if len(req.Items) == 0 {
		return nil, errors.New(msgNoItems)
	}
	return req.Items, nil
}

// validateItems checks every item in order and returns the message for the
// first invalid one. No item is resolved unless all are valid.
func validateItems(items []PredictItem) ([]query, string) {
	out := make([]query, 0, len(items))
	for _, it := range items {
		if it.CategoryID == nil || *it.CategoryID == "" {
			return nil, msgNoCategory
		}
		if it.DaysSinceLastPurchase == nil {
			return nil, msgNoDays
		}
		d := *it.DaysSinceLastPurchase
		switch {
		case d < 0:
			return nil, msgNegativeDays
		case d != math.Trunc(d):
			return nil, msgFractionalDays
		case d > maxDays:
			return nil, msgDaysTooLarge
		}
		out = append(out, query{category: *it.CategoryID, days: int(d)})
	}
	return out, ""
}
