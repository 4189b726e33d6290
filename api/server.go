/*
server.go - HTTP router and middleware configuration

Configures the chi router, middleware stack, and route table for the
ledger's external interface. Grounded in timeoff's api/server.go:
same middleware stack (Logger, Recoverer, RequestID, CORS) and the same
r.Route nested-grouping style, re-pointed at the transaction and admin
endpoints this system exposes instead of employee/policy routes.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the router with every route wired to h.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/entry", h.CreateTransaction)
		r.Get("/", h.ListTransactions)
		r.Post("/{id}/post", h.PostTransaction)
		r.Post("/{id}/verify", h.VerifyTransaction)
		r.Post("/{id}/reverse", h.ReverseTransaction)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/run-eod", h.RunEOD)
		r.Post("/eod/batch/{job}", h.RunEODJob)
		r.Get("/eod/status", h.EODStatus)
		r.Post("/set-system-date", h.SetSystemDate)
		r.Post("/bod/run", h.RunBOD)
		r.Get("/eod/batch-job-7/download/{kind}/{yyyymmdd}", h.DownloadReport)
	})

	return r
}
