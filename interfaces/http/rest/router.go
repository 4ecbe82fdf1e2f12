package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/services"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/codec"
	"github.com/noctisdark/mazenrecords-sst/interfaces/http/rest/handlers"
	"github.com/noctisdark/mazenrecords-sst/interfaces/http/rest/middleware"
	"github.com/noctisdark/mazenrecords-sst/pkg/auth"
	pkgerrors "github.com/noctisdark/mazenrecords-sst/pkg/errors"
	"github.com/noctisdark/mazenrecords-sst/pkg/observability"
)

// Options holds the router settings taken from configuration
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
	// Debug exposes internal error messages in 500 responses.
	Debug bool
}

// Router creates and configures the HTTP router
type Router struct {
	visits    *services.EntityService[entities.Visit]
	brands    *services.EntityService[entities.Brand]
	sync      *services.SyncService
	validator *auth.JWTValidator
	metrics   *observability.Collector
	opts      Options
	logger    *zap.Logger
}

// NewRouter creates a new router instance. validator and metrics may be nil.
func NewRouter(
	visits *services.EntityService[entities.Visit],
	brands *services.EntityService[entities.Brand],
	sync *services.SyncService,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		visits:    visits,
		brands:    brands,
		sync:      sync,
		validator: validator,
		metrics:   metrics,
		opts:      opts,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()
	errHandler := pkgerrors.NewErrorHandler(rt.logger, rt.opts.Debug)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}
	router.Use(errHandler.Middleware)

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errHandler.HandleStatus(w, r, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	visitHandler := handlers.NewEntityHandler[entities.Visit](rt.visits, codec.Visits, isNumericID, errHandler, rt.logger)
	brandHandler := handlers.NewEntityHandler[entities.Brand](rt.brands, codec.Brands, nil, errHandler, rt.logger)
	syncHandler := handlers.NewSyncHandler(rt.sync, codec.Visits, codec.Brands, errHandler, rt.logger)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		r.Route("/visits", visitHandler.Routes)
		r.Route("/brands", brandHandler.Routes)

		r.Get("/updatesSince", syncHandler.UpdatesSince)
		r.Patch("/upload", syncHandler.Upload)
		r.Put("/replace", syncHandler.Replace)
		r.Patch("/sync", syncHandler.Sync)
	})

	return router
}

func isNumericID(id string) bool {
	_, ok := codec.ParseNumericID(id)
	return ok
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
