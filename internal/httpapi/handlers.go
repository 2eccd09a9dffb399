package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
	"github.com/ryabkov82/pvoutput-ingest/internal/job"
	"github.com/ryabkov82/pvoutput-ingest/internal/version"
)

// Handler handles HTTP requests
type Handler struct {
	store  *job.Store
	clock  clock.PassiveClock
	logger *zap.SugaredLogger
}

// NewHandler creates a new handler
func NewHandler(store *job.Store, clk clock.PassiveClock, logger *zap.SugaredLogger) *Handler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// CreateJob handles POST /jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req job.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if err := req.Validate(h.clock.Now()); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	jobID, err := h.store.Create(req)
	if err != nil {
		if errors.Is(err, job.ErrQueueFull) {
			http.Error(w, "Queue is full, please try again later", http.StatusTooManyRequests)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to create job: %v", err), http.StatusInternalServerError)
		return
	}

	h.logger.Infow("job created", "jobId", jobID, "kind", req.Kind, "systemId", req.SystemID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"jobId":  jobID,
		"status": job.StatusQueued,
	})
}

// GetJobStatus handles GET /jobs/{jobId}
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	j, err := h.store.Get(jobID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"jobId":     j.ID,
		"kind":      j.Request.Kind,
		"status":    j.Status,
		"createdAt": j.CreatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		response["startedAt"] = j.StartedAt.Format(time.RFC3339)
	}
	if j.FinishedAt != nil {
		response["finishedAt"] = j.FinishedAt.Format(time.RFC3339)
	}
	if j.LastError != "" {
		response["lastError"] = j.LastError
	}
	if j.ErrorKind != job.ErrorNone {
		response["errorKind"] = j.ErrorKind
	}
	if j.Result != nil {
		response["rowCount"] = j.Result.Len()
		if j.Status == job.StatusSucceeded {
			response["columns"] = j.Result.Columns
			response["rows"] = encodeRows(j.Result)
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// CancelJob handles POST /jobs/{jobId}/cancel
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if err := h.store.Cancel(jobID); err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, job.ErrFinished):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.logger.Infow("job canceled", "jobId", jobID)

	writeJSON(w, http.StatusOK, map[string]string{
		"status": string(job.StatusCanceled),
	})
}

// GetVersion handles GET /version
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Info())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// encodeRows converts rows to JSON-safe values: NaN and infinities become
// null, times become RFC 3339 strings.
func encodeRows(t *ingest.Table) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		out := make(map[string]interface{}, len(row))
		for k, v := range row {
			out[k] = jsonValue(v)
		}
		rows = append(rows, out)
	}
	return rows
}

func jsonValue(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return v
	}
}
