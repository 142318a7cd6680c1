package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/starford/ofmock/internal/mockservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// limiter, if non-nil, throttles the routes that generate data.
func NewRouter(svc *mockservice.Service, authEnabled bool, token string, sseHandler http.Handler, limiter *rate.Limiter) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Contracts.
	r.Get("/contracts", h.ListContracts)
	r.Post("/contracts", h.UploadContract)
	r.Get("/contracts/{name}", h.GetContract)
	r.Delete("/contracts/{name}", h.DeleteContract)
	r.Get("/categories", h.Categories)

	// Generation.
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(limiter))
		r.Get("/contracts/{name}/endpoints/mock", h.MockEndpoint)
		r.Post("/contracts/{name}/schemas/{schema}/records", h.GenerateRecords)
		r.Post("/data/tree", h.BuildTree)
	})

	// Record store.
	r.Get("/records", h.Stats)
	r.Delete("/records", h.ResetRecords)
	r.Get("/records/{contract}", h.ListRecords)
	r.Post("/records/{contract}", h.RegisterRecord)

	// Correlations.
	r.Get("/correlations", h.CorrelationGraph)
	r.Get("/correlations/chain", h.Chain)
	r.Get("/correlations/{contract}", h.RulesFor)
	r.Get("/data/correlated", h.FindCorrelated)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
