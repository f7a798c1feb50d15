package router

import (
	"net/http"
	"time"

	"github.com/acted/rules-engine/internal/handler"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config wraps common API configuration parameters
type Config struct {
	CORS           bool
	RequestTimeout time.Duration
}

// New returns a new fully configured instance of chi.Mux
func New(config Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.SetHeader("Strict-Transport-Security", "max-age=63072000"))
	if config.CORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(SubjectMiddleware)
	r.Use(CustomZapLogger)
	r.Use(chimiddleware.Recoverer)
	if config.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(config.RequestTimeout))
	}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(rg chi.Router) {
		rg.Get("/health", handler.IsAlive)
		rg.Post("/engine/{entryPoint}", handler.ExecuteEntryPoint)
		rg.Post("/vat/cart", handler.CalculateCartVAT)
		rg.Post("/acknowledgments", handler.PostAcknowledgment)
		rg.Post("/acknowledgments/consume", handler.ConsumeOrderAcknowledgments)
	})

	return r
}

// Routes lists every registered route, for startup logs
func Routes(r chi.Routes) []string {
	routes := make([]string, 0)
	chi.Walk(r, func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	return routes
}
