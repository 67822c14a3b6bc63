package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"games_catalog/internal/controllers"
	"games_catalog/internal/identity"
	appmw "games_catalog/internal/middleware"
	"games_catalog/internal/services"
	"games_catalog/internal/storage/database"
	"games_catalog/internal/storage/uploads"
	"games_catalog/internal/web"
)

// Deps is everything the router needs to build the services.
type Deps struct {
	Storage  *database.Storage
	Uploads  *uploads.Uploads
	Catalog  services.Catalog
	Sessions *identity.SessionManager
	Hasher   *identity.PasswordHasher
	Renderer *web.Renderer
	// SSO switches signup and login to the SSO service when set.
	SSO      services.SSOClient
	SSOAppID uint32
	Cors     []string
}

func SetupRouter(log *slog.Logger, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	ratingService := services.NewRatingService(deps.Storage, log)
	reviewService := services.NewReviewService(deps.Storage, log)
	gameService := services.NewGameService(deps.Catalog, ratingService, reviewService, log)
	listService := services.NewListService(deps.Storage, deps.Catalog, ratingService, log)

	var images uploads.ImageStore
	if deps.Uploads != nil {
		images = deps.Uploads
	}
	userService := services.NewUserService(deps.Storage, deps.Hasher, images, deps.Catalog, log)

	r.Use(appmw.Session(deps.Sessions, userService, log))

	var authenticator controllers.Authenticator = userService
	if deps.SSO != nil {
		authenticator = services.NewSSOAuthenticator(userService, deps.SSO, deps.SSOAppID, log)
	}

	gameController := controllers.NewGameController(gameService, ratingService, log)
	pageController := controllers.NewPageController(deps.Renderer, gameService, ratingService, reviewService, userService, log)
	listController := controllers.NewListController(deps.Renderer, listService, log)
	authController := controllers.NewAuthController(deps.Renderer, authenticator, userService, deps.Sessions, log)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.Cors,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Get("/platforms", gameController.Platforms)
		r.Get("/genres", gameController.Genres)
		r.Get("/search", gameController.Search)

		r.Route("/games", func(r chi.Router) {
			r.Get("/", gameController.ListGames)
			r.Get("/all", gameController.AllGames)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", gameController.GetGame)
				r.Put("/rating", gameController.Rate)
			})
		})

		r.Route("/lists", func(r chi.Router) {
			r.Post("/", listController.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listController.Get)
				r.Put("/", listController.Update)
				r.Delete("/", listController.Delete)
			})
		})
	})

	r.Get("/", pageController.Home)

	r.Get("/signup", authController.SignupForm)
	r.Post("/signup", authController.Signup)
	r.Get("/login", authController.LoginForm)
	r.Post("/login", authController.Login)
	r.Get("/logout", authController.Logout)

	r.Get("/users/profile/{id}", pageController.Profile)
	r.Post("/users/delete", authController.DeleteAccount)

	r.Route("/games/{id}", func(r chi.Router) {
		r.Get("/", pageController.Game)
		r.Post("/rate", pageController.Rate)
		r.Post("/reviews", pageController.AddReview)
	})
	r.Post("/reviews/{id}/delete", pageController.DeleteReview)

	r.Get("/new_list", listController.NewForm)
	r.Post("/new_list", listController.CreateForm)
	r.Route("/list/{id}", func(r chi.Router) {
		r.Get("/", listController.Show)
		r.Get("/edit", listController.EditForm)
		r.Post("/edit", listController.UpdateForm)
		r.Post("/delete", listController.DeleteForm)
	})

	r.Handle("/static/*", http.StripPrefix("/static", web.Static()))
	if deps.Uploads != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads", http.FileServer(http.Dir(deps.Uploads.Dir()))))
	}

	r.NotFound(pageController.NotFound)

	return r
}
