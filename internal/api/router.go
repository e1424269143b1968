/**
 * @description
 * This file sets up the HTTP router for the payments service. It defines the API
 * endpoints, associates them with their handlers, and applies the middleware
 * stack: request logging, panic recovery, timeouts, CORS and bearer-token
 * authentication for everything under the authenticated group.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: router and standard middleware.
 * - github.com/go-chi/cors: CORS handling for the browser client.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	authmw "github.com/zedx/payments-service/pkg/middleware"
)

// NewRouter creates the service router.
func NewRouter(h *Handlers, tokens authmw.TokenParser, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.RegisterHandler)
		r.Post("/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(tokens))

			r.Get("/me", h.ProfileHandler)

			// Aggregator link sessions
			r.Post("/plaid/create-link-token", h.CreateLinkTokenHandler)
			r.Post("/plaid/exchange-card-token", h.ExchangeCardTokenHandler)
			r.Post("/plaid/exchange-bank-token", h.ExchangeBankTokenHandler)
			r.Get("/cards", h.ListCardsHandler)

			// Payments network
			r.Post("/dwolla/customers", h.CreateCustomerHandler)
			r.Get("/dwolla/customers/status", h.CustomerStatusHandler)
			r.Get("/dwolla/funding-sources", h.ListFundingSourcesHandler)
			r.Delete("/dwolla/funding-sources/{id}", h.RemoveFundingSourceHandler)
			r.Post("/dwolla/transfers", h.CreateTransferHandler)

			r.Get("/payments", h.ListPaymentsHandler)
		})
	})

	return r
}
