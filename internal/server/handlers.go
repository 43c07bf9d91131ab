package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/YuminosukeSato/emissions/inference"
	"github.com/YuminosukeSato/emissions/pipeline"
	"github.com/YuminosukeSato/emissions/pkg/errors"
	"github.com/YuminosukeSato/emissions/pkg/log"
)

const (
	emissionsUnit = "g CO2"

	outcomeOK              = "ok"
	outcomeInvalid         = "invalid_input"
	outcomeUnknownCategory = "unknown_category"
	outcomeError           = "error"
)

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	Emissions float64 `json:"emissions"`
	Unit      string  `json:"unit"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

type Handler struct {
	predictor    *inference.Predictor
	metrics      *Metrics
	logger       log.Logger
	maxBodyBytes int64
}

func NewHandler(predictor *inference.Predictor, metrics *Metrics, logger log.Logger, maxBodyBytes int64) *Handler {
	return &Handler{
		predictor:    predictor,
		metrics:      metrics,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	row, err := pipeline.DecodeRow(r.Body)
	if err != nil {
		h.fail(w, err)
		return
	}

	start := time.Now()
	emissions, err := h.predictor.PredictRow(row)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.metrics.RecordPrediction(outcomeOK, time.Since(start))

	writeJSON(w, http.StatusOK, PredictResponse{Emissions: emissions, Unit: emissionsUnit})
}

func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.predictor.Model())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"artifact_id": h.predictor.Model().ArtifactID,
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, outcome, kind := classify(err)
	h.metrics.RecordPrediction(outcome, 0)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Prediction failed",
			log.OperationKey, log.OperationPredict,
			log.ErrAttrKey, err,
		)
	} else {
		h.logger.Debug("Prediction rejected",
			log.OperationKey, log.OperationPredict,
			log.ErrAttrKey, err,
		)
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Type: kind})
}

// classify maps the error taxonomy onto HTTP status codes.
func classify(err error) (status int, outcome, kind string) {
	var (
		shape      *errors.InputShapeError
		validation *errors.ValidationError
		unknown    *errors.UnknownCategoryError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &unknown):
		return http.StatusUnprocessableEntity, outcomeUnknownCategory, "unknown_category"
	case errors.As(err, &shape):
		return http.StatusBadRequest, outcomeInvalid, "shape_mismatch"
	case errors.As(err, &validation):
		return http.StatusBadRequest, outcomeInvalid, "invalid_argument"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, outcomeInvalid, "body_too_large"
	default:
		return http.StatusInternalServerError, outcomeError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
