package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/YuminosukeSato/emissions/pkg/log"
)

// APIPrefix is the versioned prefix for JSON endpoints.
const APIPrefix = "/api/v1"

// Router wraps mux.Router to add more functionality
type Router struct {
	*mux.Router
	middleware []mux.MiddlewareFunc
}

// NewRouter creates and configures a new router with all dependencies
func NewRouter(handler *Handler, metrics *Metrics, logger log.Logger) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		middleware: []mux.MiddlewareFunc{
			metrics.Middleware,
			requestLogging(logger),
		},
	}

	r.setup()
	r.registerRoutes(handler, metrics)

	return r
}

// setup configures the base router with middleware and common settings
func (r *Router) setup() {
	for _, m := range r.middleware {
		r.Use(m)
	}
	// mux は一致しなかったリクエストにミドルウェアを適用しないため、ここで包む
	r.NotFoundHandler = r.wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found", Type: "not_found"})
	}))
	r.MethodNotAllowedHandler = r.wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed", Type: "method_not_allowed"})
	}))
}

// wrap applies the middleware list in the same order as Use
func (r *Router) wrap(h http.Handler) http.Handler {
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h
}

// registerRoutes registers all application routes
func (r *Router) registerRoutes(handler *Handler, metrics *Metrics) {
	// API routes live on the root router so a method mismatch answers 405.
	// A PathPrefix subrouter would fall through to NotFoundHandler instead.
	r.HandleFunc(APIPrefix+"/predict", handler.Predict).Methods(http.MethodPost)
	r.HandleFunc(APIPrefix+"/model", handler.Model).Methods(http.MethodGet)

	r.HandleFunc("/healthz", handler.Health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

func requestLogging(logger log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			logger.Debug("HTTP request",
				"http.method", r.Method,
				"http.route", routeTemplate(r),
				"http.status", sw.Status(),
				log.DurationMsKey, time.Since(start).Milliseconds(),
			)
		})
	}
}
