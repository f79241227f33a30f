/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. Auth:       Caller identity (auth.go)

ROUTE GROUPS:
  /api/practice     Practice info
  /api/admins/*     Admin registry
  /api/doctors/*    Doctor directory
  /api/patients/*   Patient registry, notes, statements
  /api/bookings/*   Booking lifecycle
  /api/notes/*      Note log
  /api/balance/*    Patient withdrawals
  /api/escrow/*     Escrow funding and holdings
  /api/scenarios/*  Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Auth        Auth
	CORSOrigins []string
	Logger      zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderCallerAddress},
		AllowCredentials: true,
	}))
	r.Use(opts.Auth.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/practice", h.GetPractice)

		r.Route("/admins", func(r chi.Router) {
			r.Get("/", h.ListAdmins)
			r.Post("/", h.AddAdmin)
			r.Get("/{address}", h.GetAdmin)
		})

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", h.ListDoctors)
			r.Post("/", h.AddDoctor)
			r.Get("/{address}", h.GetDoctor)
		})

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", h.ListPatients)
			r.Post("/", h.AddPatient)
			r.Post("/register", h.RegisterPatient)
			r.Get("/{address}", h.GetPatient)
			r.Get("/{address}/notes", h.ListNotes)
			r.Get("/{address}/statement", h.GetStatement)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.ListBookings)
			r.Post("/", h.AddBooking)
			r.Get("/{id}", h.GetBooking)
			r.Post("/{id}/book", h.Book)
			r.Post("/{id}/cancel", h.CancelBooking)
			r.Post("/{id}/no-show", h.MarkNoShowUp)
			r.Post("/{id}/visited", h.MarkVisited)
		})

		r.Get("/notes/{id}", h.GetNote)

		r.Post("/balance/withdraw", h.Withdraw)

		r.Route("/escrow", func(r chi.Router) {
			r.Get("/", h.GetHoldings)
			r.Post("/fund", h.Fund)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			evt := logger.Info()
			if ww.Status() >= http.StatusInternalServerError {
				evt = logger.Error()
			}
			evt.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("latency", time.Since(start)).
				Str("remote_ip", r.RemoteAddr).
				Msg("request")
		})
	}
}
