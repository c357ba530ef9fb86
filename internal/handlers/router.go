package handlers

import (
	"net/http"

	"memory-map-backend/internal/metrics"
	"memory-map-backend/internal/middleware"
	"memory-map-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps are the services and settings the HTTP surface is built from
type RouterDeps struct {
	UserService     *services.UserService
	MemoryService   *services.MemoryService
	WishlistService *services.WishlistService
	UploadService   *services.UploadService
	Hub             *services.EventsHub
	UploadLimiter   *middleware.UserRateLimiter
	HealthChecks    map[string]HealthPinger
	AllowedOrigin   string
	SecureCookies   bool
}

// NewRouter builds the HTTP handler
func NewRouter(deps RouterDeps) http.Handler {
	userHandler := NewUserHandler(deps.UserService, deps.UserService.SessionTTL(), deps.SecureCookies)
	memoryHandler := NewMemoryHandler(deps.MemoryService)
	wishlistHandler := NewWishlistHandler(deps.WishlistService)
	uploadHandler := NewUploadHandler(deps.UploadService)
	wsHandler := NewWebSocketHandler(deps.Hub, deps.UserService, deps.AllowedOrigin)
	healthHandler := NewHealthHandler(deps.HealthChecks)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(deps.AllowedOrigin))

	r.Get("/healthz", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/register", userHandler.Register)
		r.Post("/user", userHandler.SyncUser)
		r.Post("/login", userHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(deps.UserService))

			r.Get("/memories", memoryHandler.ListMemories)
			r.Post("/memories", memoryHandler.CreateMemory)
			r.Get("/memories/{id}", memoryHandler.GetMemory)
			r.Put("/memories/{id}", memoryHandler.UpdateMemory)
			r.Delete("/memories/{id}", memoryHandler.DeleteMemory)

			r.Get("/wishlist", wishlistHandler.ListWishlist)
			r.Post("/wishlist", wishlistHandler.CreatePlace)
			r.Patch("/wishlist/{id}", wishlistHandler.UpdatePlace)
			r.Delete("/wishlist/{id}", wishlistHandler.DeletePlace)

			r.With(deps.UploadLimiter.Middleware).Post("/upload", uploadHandler.Upload)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
