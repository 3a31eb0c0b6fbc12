package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corey/mapbuilder/internal/adapters/lightbox"
	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/ports"
)

// HealthResult is the /api/health payload.
type HealthResult struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Uptime   string `json:"uptime"`
	Requests int64  `json:"requests"`
	Failures int64  `json:"failures"`
}

// EstimateResult is the POST /api/buildable payload.
type EstimateResult struct {
	BuildableArea *buildable.Report `json:"buildableArea"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// ErrorBody is the error envelope. The 500 shape matches what map clients
// already parse.
type ErrorBody struct {
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

const genericFailure = "Something went wrong!"

// badRequest marks client mistakes caught before the backend runs.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResult{
		Status:   "ok",
		Provider: s.backend.ProviderName(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Requests: s.requests.Load(),
		Failures: s.failures.Load(),
	})
}

func (s *Server) handleParcelsByGeometry(w http.ResponseWriter, r *http.Request) {
	var q ports.GeometryQuery
	if err := decodeBody(w, r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(q.WKT) == "" {
		s.writeError(w, r, &badRequest{"wkt is required"})
		return
	}
	pc, err := s.backend.Provider().ParcelsByGeometry(r.Context(), q.WithDefaults())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, pc.Raw)
}

func (s *Server) handleParcelsByAddress(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		s.writeError(w, r, &badRequest{"text is required"})
		return
	}
	pc, err := s.backend.Provider().ParcelsByAddress(r.Context(), text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, pc.Raw)
}

func (s *Server) handleStructures(w http.ResponseWriter, r *http.Request) {
	sc, err := s.backend.Provider().StructuresByParcel(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, sc.Raw)
}

func (s *Server) handleZoning(w http.ResponseWriter, r *http.Request) {
	zc, err := s.backend.Provider().ZoningByParcel(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, zc.Raw)
}

// handleAssess takes the lot facts a map client already holds from a parcel
// search: ?lotArea= (square feet) and/or ?wkt= (parcel outline).
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	parcel := ports.Parcel{ID: r.PathValue("id")}
	q := r.URL.Query()
	if v := q.Get("lotArea"); v != "" {
		area, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, r, &badRequest{"lotArea must be a number"})
			return
		}
		parcel.Derived.CalculatedLotArea = area
	}
	parcel.Geometry.WKT = q.Get("wkt")

	a, err := s.backend.AssessParcel(r.Context(), parcel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var in buildable.ParcelInput
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.backend.Estimate(&in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EstimateResult{BuildableArea: report, Warnings: buildable.Warnings(report)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &badRequest{"invalid JSON body: " + err.Error()}
	}
	return nil
}

// writeError maps err onto a status and the error envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorBody{Error: err.Error(), RequestID: RequestID(r.Context())}
	status := http.StatusInternalServerError

	var (
		bad     *badRequest
		missing *buildable.MissingInputError
		apiErr  *lightbox.APIError
	)
	switch {
	case errors.As(err, &bad):
		status, body.Message = http.StatusBadRequest, "Invalid request"
	case errors.As(err, &missing):
		status, body.Message = http.StatusBadRequest, "Invalid request"
		body.Details = map[string]string{"field": missing.Field}
	case errors.Is(err, ports.ErrNotFound):
		status, body.Message = http.StatusNotFound, "Not found"
	case errors.As(err, &apiErr):
		status, body.Message = http.StatusBadGateway, genericFailure
		body.Details = upstreamDetails(apiErr.Body)
	default:
		body.Message = genericFailure
	}

	if status >= 500 {
		s.log.Error("request failed", "path", r.URL.Path, "status", status, "error", err, "request_id", body.RequestID)
	}
	writeJSON(w, status, body)
}

// upstreamDetails passes a JSON upstream body through as JSON.
func upstreamDetails(body string) any {
	if body == "" {
		return nil
	}
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}
