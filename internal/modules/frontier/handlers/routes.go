package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all simulation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/simulations", func(r chi.Router) {
		r.Post("/", h.HandleCreateSimulation)
		r.Get("/", h.HandleListSimulations)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetSimulation(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/portfolios", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetPortfolios(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/prices", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetPrices(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/chart.png", func(w http.ResponseWriter, r *http.Request) {
				h.HandleFrontierChart(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/weights/{kind}.png", func(w http.ResponseWriter, r *http.Request) {
				h.HandleWeightsChart(w, r, chi.URLParam(r, "id"), chi.URLParam(r, "kind"))
			})
			r.Get("/export.parquet", func(w http.ResponseWriter, r *http.Request) {
				h.HandleExport(w, r, chi.URLParam(r, "id"))
			})
		})
	})
}
