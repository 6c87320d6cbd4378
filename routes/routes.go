package routes

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/svxarena/tourneyzone/handlers"
	"github.com/svxarena/tourneyzone/middleware"
	"github.com/svxarena/tourneyzone/models"
)

//go:embed openapi.json
var openAPIDoc []byte

type Handlers struct {
	Auth         *handlers.AuthHandler
	Wallet       *handlers.WalletHandler
	Tournament   *handlers.TournamentHandler
	Registration *handlers.RegistrationHandler
	Admin        *handlers.AdminHandler
	WebSocket    *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// Limiter guards login, signup and wallet writes. Nil disables it.
	Limiter *middleware.RateLimiter
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.Metrics)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limited := func(next http.Handler) http.Handler {
		if opts.Limiter == nil {
			return next
		}
		return opts.Limiter.Handler(next)
	}
	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(openAPIDoc)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/auth", func(r chi.Router) {
		r.Use(limited)
		r.Post("/signup", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuthenticate(opts.JWTSecret))
		r.Get("/tournaments", h.Tournament.ListHandler)
		r.Get("/tournaments/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/results", h.Tournament.ResultsHandler)
	})
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	router.Route("/wallet", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", h.Wallet.GetWallet)
		r.Get("/transactions", h.Wallet.Transactions)
		r.Get("/reconcile", h.Wallet.Reconcile)
		r.With(limited).Post("/deposits", h.Wallet.Deposit)
		r.With(limited).Post("/withdrawals", h.Wallet.Withdraw)
	})

	router.Route("/organizer", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.Authorize(models.RoleOrganizer))

		r.Post("/tournaments", h.Tournament.CreateHandler)
		r.Get("/tournaments", h.Tournament.ListMineHandler)
		r.Route("/tournaments/{id}", func(r chi.Router) {
			r.Put("/", h.Tournament.UpdateHandler)
			r.Delete("/", h.Tournament.DeleteHandler)
			r.Post("/registrations/{registrationID}/approve", h.Tournament.ApproveRegistrationHandler)
			r.Post("/registrations/{registrationID}/reject", h.Tournament.RejectRegistrationHandler)
			r.Post("/room", h.Tournament.ShareRoomHandler)
			r.Post("/results", h.Tournament.SubmitResultsHandler)
		})
	})

	router.Route("/player", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.Authorize(models.RolePlayer))
		r.Post("/tournaments/{id}/register", h.Registration.RegisterTeam)
		r.Get("/registrations", h.Registration.ListMine)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.Authorize(models.RoleAdmin))

		r.Get("/dashboard", h.Admin.Dashboard)
		r.Get("/transactions/pending", h.Admin.PendingTransactions)
		r.Post("/deposits/{transactionID}/verify", h.Admin.VerifyDeposit)
		r.Post("/deposits/bulk", h.Admin.BulkDeposits)
		r.Get("/deposits/bulk", h.Admin.BulkDepositLogs)
		r.Post("/withdrawals/{transactionID}/complete", h.Admin.CompleteWithdrawal)
		r.Post("/users/{userID}/suspend", h.Admin.SuspendUser)
		r.Post("/users/{userID}/reactivate", h.Admin.ReactivateUser)
		r.Get("/users/{userID}/reconcile", h.Admin.ReconcileUser)
		r.Delete("/tournaments/{id}", h.Tournament.DeleteHandler)
	})
}
