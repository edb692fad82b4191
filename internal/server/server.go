// Package server exposes proximity queries over HTTP.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/owldoor/zipradius/internal/postal"
	"github.com/owldoor/zipradius/internal/proximity"
)

// LoadStatus reports whether the reference data has been loaded.
type LoadStatus interface {
	Loaded() (*postal.Table, bool)
}

// Server routes HTTP requests to a proximity.Service.
type Server struct {
	svc        *proximity.Service
	status     LoadStatus
	logger     *zap.Logger
	corsOrigin string
	handler    http.Handler
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCORSOrigin sets Access-Control-Allow-Origin. Empty disables CORS headers.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		s.corsOrigin = origin
	}
}

func New(svc *proximity.Service, status LoadStatus, opts ...Option) *Server {
	s := &Server{
		svc:        svc,
		status:     status,
		logger:     zap.NewNop(),
		corsOrigin: "*",
	}
	for _, opt := range opts {
		opt(s)
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.ReportHealth).Methods(http.MethodGet)
	router.HandleFunc("/v1/proximity", s.GetProximity).Methods(http.MethodGet)
	router.HandleFunc("/v1/proximity", s.PostProximity).Methods(http.MethodPost)
	router.HandleFunc("/v1/postal/{code}", s.GetPostalCode).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sendError(w, "no such endpoint", "not_found", http.StatusNotFound)
	})

	s.handler = s.withRequestID(s.logRequests(s.cors(router)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(w, req)
}
