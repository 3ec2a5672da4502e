package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ValentinKolb/qKV/lib/coordinator"
	"github.com/ValentinKolb/qKV/lib/quorum"
	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("api")

// --------------------------------------------------------------------------
// Routes and headers
// --------------------------------------------------------------------------

const (
	PathStatus  = "/v0/status"
	PathEntity  = "/v0/entity"
	PathReplica = "/v0/replica"
	PathMetrics = "/metrics"

	// ParamID is the query parameter holding the key
	ParamID = "id"
	// ParamReplicas is the query parameter holding the quorum (ack/from)
	ParamReplicas = "replicas"

	// HeaderUpdated carries the last update time (unix millis) of a replica answer
	HeaderUpdated = "X-Updated"
)

// maxBodySize bounds the size of a value
const maxBodySize = 64 << 20

// handler serves the client facing API of a node
type handler struct {
	coordinator *coordinator.Coordinator
	endpoint    *replica.Endpoint
}

// NewHandler creates the HTTP handler of a node. The entity routes go through
// the coordinator, the replica route is served by the local endpoint only.
func NewHandler(coord *coordinator.Coordinator, endpoint *replica.Endpoint) http.Handler {
	h := &handler{
		coordinator: coord,
		endpoint:    endpoint,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathStatus, h.handleStatus)
	mux.HandleFunc(PathEntity, h.handleEntity)
	mux.HandleFunc(PathReplica, h.handleReplica)
	mux.HandleFunc("GET "+PathMetrics, handleMetrics)
	mux.HandleFunc("/", handleDefault)

	return logRequests(mux)
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (h *handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeBody(w, http.StatusOK, []byte("OK"))
}

// handleEntity serves GET, PUT and DELETE with the quorum of the replicas parameter
func (h *handler) handleEntity(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get(ParamID)
	if key == "" {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	q, err := h.coordinator.Resolve(r.URL.Query().Get(ParamReplicas))
	if err != nil {
		Logger.Debugf("Rejected replicas parameter: %v", err)
		writeStatus(w, http.StatusBadRequest)
		return
	}

	var result coordinator.Result
	switch r.Method {
	case http.MethodGet:
		result, err = h.coordinator.Get(r.Context(), key, q)
	case http.MethodPut:
		var value []byte
		value, err = readBody(w, r)
		if err != nil {
			writeStatus(w, http.StatusBadRequest)
			return
		}
		result, err = h.coordinator.Put(r.Context(), key, value, q)
	case http.MethodDelete:
		result, err = h.coordinator.Delete(r.Context(), key, q)
	default:
		writeStatus(w, http.StatusBadRequest)
		return
	}

	if err != nil {
		if errors.Is(err, coordinator.ErrBadRequest) || errors.Is(err, quorum.ErrInvalidQuorum) {
			writeStatus(w, http.StatusBadRequest)
			return
		}
		Logger.Errorf("%s %q failed: %v", r.Method, key, err)
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	switch result.Outcome {
	case coordinator.OutcomeOK:
		writeBody(w, http.StatusOK, result.Value)
	default:
		writeStatus(w, outcomeStatus(result.Outcome))
	}
}

// handleReplica renders the local replica endpoint
func (h *handler) handleReplica(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get(ParamID)

	var resp replica.Response
	switch r.Method {
	case http.MethodGet:
		resp = h.endpoint.Get(key)
	case http.MethodPut:
		value, err := readBody(w, r)
		if err != nil {
			writeStatus(w, http.StatusBadRequest)
			return
		}
		resp = h.endpoint.Put(key, value)
	case http.MethodDelete:
		resp = h.endpoint.Delete(key)
	default:
		writeStatus(w, http.StatusBadRequest)
		return
	}

	if resp.Timestamp != 0 {
		w.Header().Set(HeaderUpdated, strconv.FormatInt(resp.Timestamp, 10))
	}

	switch resp.Status {
	case replica.StatusFound:
		writeBody(w, http.StatusOK, resp.Value)
	default:
		writeStatus(w, replicaStatus(resp.Status))
	}
}

func handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w, true)
}

// handleDefault answers every unknown route with 400
func handleDefault(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusBadRequest)
}

// --------------------------------------------------------------------------
// Status mapping
// --------------------------------------------------------------------------

func outcomeStatus(o coordinator.Outcome) int {
	switch o {
	case coordinator.OutcomeOK:
		return http.StatusOK
	case coordinator.OutcomeCreated:
		return http.StatusCreated
	case coordinator.OutcomeAccepted:
		return http.StatusAccepted
	case coordinator.OutcomeNotFound:
		return http.StatusNotFound
	case coordinator.OutcomeQuorumNotReached:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func replicaStatus(s replica.Status) int {
	switch s {
	case replica.StatusFound:
		return http.StatusOK
	case replica.StatusNotFound:
		return http.StatusNotFound
	case replica.StatusCreated:
		return http.StatusCreated
	case replica.StatusAccepted:
		return http.StatusAccepted
	case replica.StatusBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

func writeStatus(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil && !errors.Is(err, context.Canceled) {
		Logger.Debugf("Failed to write response body: %v", err)
	}
}

// statusRecorder captures the status code for the request log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request at debug level
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.RequestURI(), rw.status, time.Since(start))
	})
}
