package handlers

import (
	"net/http"
	"time"

	"github.com/findosh/quantdesk/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// requestTimeout bounds a whole request, provider fetches included
const requestTimeout = 60 * time.Second

// Routes builds the HTTP router
func (h *Handler) Routes(logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Recover)
	r.Use(middleware.Logger)
	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	authMiddleware := middleware.NewAuth(h.authService)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/token", h.APIToken)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)

			r.Route("/quotes", func(r chi.Router) {
				r.Post("/", h.APIQuotes)
				r.Get("/{ticker}", h.APIQuote)
				r.Get("/{ticker}/info", h.APITickerInfo)
				r.Delete("/{ticker}/cache", h.APIInvalidateTicker)
			})

			r.Post("/history", h.APIHistory)
			r.Post("/positions/import", h.APIImportPositions)

			r.Route("/calculations", func(r chi.Router) {
				r.Post("/portfolio", h.APIPortfolioMetrics)
				r.Post("/position/{ticker}", h.APIPositionMetrics)
				r.Post("/convert", h.APIConvert)
			})
		})
	})

	return r
}
