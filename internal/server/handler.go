package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/owldoor/zipradius/internal/proximity"
)

// HealthReport describes service readiness.
type HealthReport struct {
	Status   string     `json:"status"`
	Loaded   bool       `json:"loaded"`
	Records  int        `json:"records"`
	Source   string     `json:"source,omitempty"`
	LoadedAt *time.Time `json:"loadedAt,omitempty"`
}

// ErrorResponse reports an error.
type ErrorResponse struct {
	Message string `json:"error"`
	Code    string `json:"code"`
}

// PostalCodeResponse is a single reference record.
type PostalCodeResponse struct {
	Code      string  `json:"code"`
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) ReportHealth(w http.ResponseWriter, req *http.Request) {
	report := HealthReport{Status: "ok"}
	if table, ok := s.status.Loaded(); ok {
		report.Loaded = true
		report.Records = table.Len()
		report.Source = table.Source()
		loadedAt := table.LoadedAt().UTC()
		report.LoadedAt = &loadedAt
	}
	sendJSON(w, report, http.StatusOK)
}

// GetProximity answers GET /v1/proximity?code=90210&radius=5.
func (s *Server) GetProximity(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	code := firstOf(q.Get("code"), q.Get("zip"), q.Get("centerCode"))
	radiusStr := firstOf(q.Get("radius"), q.Get("radiusMiles"))
	if radiusStr == "" {
		sendError(w, "must specify a radius in miles", proximity.CodeInvalidInput, http.StatusBadRequest)
		return
	}
	radius, err := strconv.ParseFloat(radiusStr, 64)
	if err != nil {
		sendError(w, fmt.Sprintf("radius %q is not a number", radiusStr), proximity.CodeInvalidInput, http.StatusBadRequest)
		return
	}

	s.query(w, req, proximity.Request{CenterCode: code, RadiusMiles: radius})
}

// PostProximity answers POST /v1/proximity with a JSON proximity.Request body.
func (s *Server) PostProximity(w http.ResponseWriter, req *http.Request) {
	var body proximity.Request
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.logger.Debug("bad proximity body", zap.Error(err), zap.String("request_id", requestID(req.Context())))
		sendError(w, "error decoding request body as a proximity request", proximity.CodeInvalidInput, http.StatusBadRequest)
		return
	}
	s.query(w, req, body)
}

func (s *Server) GetPostalCode(w http.ResponseWriter, req *http.Request) {
	rec, err := s.svc.Lookup(req.Context(), mux.Vars(req)["code"])
	if err != nil {
		s.sendServiceError(w, req, err)
		return
	}
	sendJSON(w, PostalCodeResponse{
		Code:      rec.Code,
		City:      rec.City,
		Region:    rec.Region,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
	}, http.StatusOK)
}

func (s *Server) query(w http.ResponseWriter, req *http.Request, q proximity.Request) {
	resp, err := s.svc.Query(req.Context(), q)
	if err != nil {
		s.sendServiceError(w, req, err)
		return
	}
	sendJSON(w, resp, http.StatusOK)
}

func (s *Server) sendServiceError(w http.ResponseWriter, req *http.Request, err error) {
	code := proximity.ErrorCode(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if errors.Is(err, req.Context().Err()) {
			// client went away
			return
		}
		s.logger.Error("request failed", zap.Error(err), zap.String("request_id", requestID(req.Context())))
		msg = "server error"
	}
	sendError(w, msg, code, status)
}

func statusFor(code string) int {
	switch code {
	case proximity.CodeInvalidInput:
		return http.StatusBadRequest
	case proximity.CodeCenterNotFound:
		return http.StatusNotFound
	case proximity.CodeDataUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sendError(w http.ResponseWriter, msg, code string, status int) {
	sendJSON(w, ErrorResponse{Message: msg, Code: code}, status)
}

func sendJSON(w http.ResponseWriter, object interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(object)
}
