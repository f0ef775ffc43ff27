// Package api exposes the mutation services over HTTP. Handlers decode
// the request, call one service and render either the result or an
// errmodel envelope.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/service"
)

// Server routes requests to the services.
type Server struct {
	svc    *service.Services
	log    *logrus.Logger
	router *mux.Router
}

// NewServer builds the router. A nil log discards request logs.
func NewServer(svc *service.Services, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	s := &Server{svc: svc, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "metadata")
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	orgs := s.router.PathPrefix("/organizations").Subrouter()
	orgs.HandleFunc("", s.createOrganization).Methods(http.MethodPost)
	orgs.HandleFunc("/{name}", s.getOrganization).Methods(http.MethodGet)
	orgs.HandleFunc("/{name}/principals", s.setPrincipals).Methods(http.MethodPut)

	apps := s.router.PathPrefix("/apps").Subrouter()
	apps.HandleFunc("", s.listApps).Methods(http.MethodGet)
	apps.HandleFunc("", s.registerApp).Methods(http.MethodPost)
	apps.HandleFunc("/{app_id}", s.getApp).Methods(http.MethodGet)
	apps.HandleFunc("/{app_id}/integrations", s.setIntegration).Methods(http.MethodPut)
	apps.HandleFunc("/{app_id}/datasources/{datasource_id}", s.updateFreshness).Methods(http.MethodPut)
	apps.HandleFunc("/{app_id}/events", s.listEvents).Methods(http.MethodGet)
	apps.HandleFunc("/{app_id}/events", s.createOrUpdateEvent).Methods(http.MethodPost)
	apps.HandleFunc("/{app_id}/events/{name}", s.getEvent).Methods(http.MethodGet)

	s.router.HandleFunc("/catalog", s.eventsByApp).Methods(http.MethodGet)

	commons := s.router.PathPrefix("/common-events").Subrouter()
	commons.HandleFunc("", s.listCommonEvents).Methods(http.MethodGet)
	commons.HandleFunc("", s.createCommonEvent).Methods(http.MethodPost)
	commons.HandleFunc("/{name}/parameters", s.addCommonEventParameters).Methods(http.MethodPost)

	contexts := s.router.PathPrefix("/event-contexts").Subrouter()
	contexts.HandleFunc("", s.listEventContexts).Methods(http.MethodGet)
	contexts.HandleFunc("", s.createEventContext).Methods(http.MethodPost)
	contexts.HandleFunc("/{name}/parameters", s.addEventContextParameters).Methods(http.MethodPost)

	atomics := s.router.PathPrefix("/atomic-parameters").Subrouter()
	atomics.HandleFunc("", s.listAtomicParameters).Methods(http.MethodGet)
	atomics.HandleFunc("", s.createAtomicParameter).Methods(http.MethodPost)

	raw := s.router.PathPrefix("/raw-schemas").Subrouter()
	raw.HandleFunc("/{path:.+}", s.getRawSchema).Methods(http.MethodGet)
	raw.HandleFunc("/{path:.+}", s.putRawSchema).Methods(http.MethodPut)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		entry := s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Debug("request")
	})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errmodel.Validation("invalid_body", "request body is not valid JSON: "+err.Error(), nil)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
