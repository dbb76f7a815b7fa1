package routes

import (
	"github.com/Dosada05/family-ranking/handlers"
	"github.com/Dosada05/family-ranking/middleware"
	"github.com/Dosada05/family-ranking/models"
	"github.com/Dosada05/family-ranking/monitor"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	gameHandler *handlers.GameHandler,
	teamHandler *handlers.TeamHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	adminOnly := middleware.Authorize(string(models.RoleAdmin))

	router.Handle("/metrics", monitor.Handler())

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)
	router.Post("/auth/forgot-password", authHandler.ForgotPassword)
	router.Post("/auth/reset-password", authHandler.ResetPassword)

	router.Route("/games", func(r chi.Router) {
		r.Get("/", gameHandler.List)
		r.Get("/{gameID}", gameHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(adminOnly)

			r.Post("/", gameHandler.Create)
			r.Put("/{gameID}", gameHandler.Update)
			r.Delete("/{gameID}", gameHandler.Delete)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", teamHandler.ListByGame)
		r.Get("/{teamID}", teamHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", teamHandler.Create)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/ranking", matchHandler.Ranking)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", matchHandler.Create)
			r.Get("/my", matchHandler.ListMine)
			r.Post("/{matchID}/accept", matchHandler.Accept)
			r.Post("/{matchID}/reject", matchHandler.Reject)
			r.Post("/{matchID}/settle-request", matchHandler.RequestSettlement)
			r.Post("/{matchID}/settle-confirm", matchHandler.ConfirmSettlement)
		})
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/me", userHandler.GetMe)
		r.Put("/me", userHandler.UpdateMe)
		r.Post("/me/avatar", userHandler.UploadAvatar)
		r.Get("/{userID}", userHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)

			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Put("/{userID}", userHandler.Update)
			r.Delete("/{userID}", userHandler.Delete)
		})
	})

	router.Get("/ws/games/{gameID}", webSocketHandler.ServeWs)
}
