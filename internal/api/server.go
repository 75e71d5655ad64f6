// Package api serves the graph data endpoints, the live feed socket, health
// and metrics over a gorilla/mux router.
package api

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"energyweb/internal/dataset"
	"energyweb/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

type Options struct {
	// ShowAcademic exposes academic buildings on the sensor group listing.
	ShowAcademic bool
	// Live is mounted on /ws when set.
	Live    http.Handler
	Metrics *metrics.Metrics
}

type Server struct {
	assembler *dataset.Assembler
	log       logrus.FieldLogger
	opts      Options
}

func NewServer(a *dataset.Assembler, log logrus.FieldLogger, opts Options) *Server {
	return &Server{assembler: a, log: log, opts: opts}
}

// Router registers every route without the outer middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	s.handle(r, "/health", "health", s.health)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	if s.opts.Live != nil {
		r.Handle("/ws", s.opts.Live)
	}

	g := r.PathPrefix("/graph").Subrouter()
	g.Use(handlers.CompressHandler)

	s.handle(g, "/{start:[0-9]+}/data.json", "dynamic", s.dynamic)
	s.handle(g, "/{family:static|dataaccess}/validate", "validate", s.validate)
	s.handle(g, "/{family:static|dataaccess}/{start:[0-9]+}/to/{end:[0-9]+}/{res}/data.json", "range_json", s.rangeJSON)
	s.handle(g, "/{family:static|dataaccess}/{start:[0-9]+}/to/{end:[0-9]+}/{res}/data.csv", "range_csv", s.rangeCSV)
	s.handle(g, "/detail/{building}/{view}/{start:[0-9]+}/graph_data.json", "detail_graph", s.detailGraph)
	s.handle(g, "/detail/{building}/{view}/{start:[0-9]+}/table_data.json", "detail_table", s.detailTable)
	s.handle(g, "/energytable/data.json", "energytable", s.energyTable)
	s.handle(g, "/sensor_groups/{scope}", "sensor_groups", s.sensorGroups)

	return r
}

func (s *Server) handle(r *mux.Router, path, name string, h http.HandlerFunc) {
	r.Handle(path, s.opts.Metrics.WrapHandler(name, h)).Methods(http.MethodGet).Name(name)
}

// Handler is the router behind access logging, panic recovery and CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(s.log),
		handlers.PrintRecoveryStack(true),
	)(h)
	return s.accessLog(h)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		m := httpsnoop.CaptureMetrics(next, w, r)

		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"code":       m.Code,
			"bytes":      m.Written,
			"duration":   m.Duration,
		}).Info("HTTP request")
	})
}
