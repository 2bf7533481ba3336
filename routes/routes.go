package routes

import (
	"net/http"

	"github.com/Dosada05/tournament-officiating/handlers"
	"github.com/Dosada05/tournament-officiating/metrics"
	"github.com/Dosada05/tournament-officiating/middleware"
	"github.com/Dosada05/tournament-officiating/services"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Registrant *handlers.RegistrantHandler
	Catalog    *handlers.CatalogHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

func SetupRoutes(router chi.Router, h Handlers, auth middleware.TokenParser, opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(opts.Metrics.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	authenticate := middleware.Authenticate(auth)
	judgeOrOrganizer := middleware.Authorize(services.RoleJudge, services.RoleOrganizer)
	organizerOnly := middleware.Authorize(services.RoleOrganizer)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Auth.Login)
		r.With(authenticate).Get("/me", h.Auth.Me)
	})

	router.Route("/catalog", func(r chi.Router) {
		r.Get("/", h.Catalog.GetHandler)
		r.Get("/suggest", h.Catalog.SuggestHandler)
	})

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты: просмотр турниров и регистрация участников
		r.Get("/", h.Tournament.ListHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)
			r.Post("/", h.Tournament.CreateHandler)
		})

		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", h.Tournament.GetByIDHandler)

			r.Route("/registrants", func(r chi.Router) {
				r.Post("/validate", h.Registrant.ValidateHandler)
				r.Post("/", h.Registrant.SubmitHandler)
				r.Get("/", h.Registrant.ListHandler)

				r.Group(func(r chi.Router) {
					r.Use(authenticate)
					r.Use(organizerOnly)
					r.Delete("/{registrantID}", h.Registrant.DeleteHandler)
					r.Post("/bulk/review", h.Registrant.ReviewBatchHandler)
					r.Post("/bulk", h.Registrant.BulkRegisterHandler)
				})
			})

			// Судьи и организатор
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(judgeOrOrganizer)
				r.Get("/overview", h.Tournament.OverviewHandler)
				r.Get("/matches", h.Tournament.MatchesHandler)
				r.Post("/matches/{matchID}/result", h.Tournament.SubmitResultHandler)
				r.Get("/standings", h.Tournament.StandingsHandler)
				r.Patch("/status", h.Tournament.UpdateStatusHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(organizerOnly)
				r.Post("/start", h.Tournament.StartHandler)
			})
		})
	})

	router.Route("/ws", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(judgeOrOrganizer)
		r.Get("/tournaments/{tournamentID}", h.WebSocket.ServeWs)
	})
}
