package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/userauth/user-auth-be/internal/api/handlers"
	"github.com/userauth/user-auth-be/internal/auth"
	"github.com/userauth/user-auth-be/internal/services"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(tokenService *auth.TokenService, userService services.UserServiceProvider) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	userHandler := handlers.NewUserHandler(userService, tokenService)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.Post("/register", userHandler.Register)
		r.Post("/token", userHandler.Login)

		// Everything below requires a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(tokenService.Middleware())
			r.Post("/logout", userHandler.Logout)
			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", userHandler.GetMe)
				r.Put("/", userHandler.UpdateMe)
				r.Post("/change-password", userHandler.ChangePassword)
			})
		})
	})

	return r
}
