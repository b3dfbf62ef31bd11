// Package api wires the Chi router, middleware stack, and handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/priceguard/server/internal/api/handler"
	"github.com/priceguard/server/internal/api/openapi"
	"github.com/priceguard/server/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Process-Time", "Link"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/history", h.HealthCheckHistory)
	})

	// Swagger UI backed by the embedded OpenAPI document.
	r.Get("/docs/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(openapi.JSON)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// Product tracking (authenticated)
	r.Route("/product", func(r chi.Router) {
		r.Use(handler.AuthMiddleware(cfg.JWTSecret))
		r.Post("/verify", h.VerifyURL)
		r.Post("/", h.AddProduct)
		r.Get("/tracking", h.TrackingList)
		r.Get("/recommend", h.Recommend)
		r.Patch("/target-price", h.UpdateTargetPrice)
		r.Get("/{productCode}", h.ProductDetails)
		r.Delete("/{productCode}", h.DeleteProduct)
	})

	// Device registration (authenticated)
	r.Route("/user", func(r chi.Router) {
		r.Use(handler.AuthMiddleware(cfg.JWTSecret))
		r.Put("/device", h.RegisterDevice)
		r.Delete("/device", h.UnregisterDevice)
	})

	return r
}
