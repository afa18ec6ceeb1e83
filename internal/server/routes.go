package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evmarket/internal/domain"
)

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/ads/active", s.handleActiveAd)
		r.Get("/ads/{id}/qr", s.handleAdQR)

		// Business
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.roleMiddleware(domain.RoleBusiness))

			r.Get("/business/entitlement", s.handleEntitlement)
			r.Post("/business/renew", s.handleRenew)
			r.Post("/business/subscribe", s.handleSubscribe)
			r.Get("/business/ads", s.handleMyAds)
			r.Post("/business/ads", s.handleSubmitAd)
			r.Post("/business/ads/{id}/cancel", s.handleCancelMyAd)
			r.Post("/business/placements/quote", s.handlePlacementQuote)
			r.Post("/business/placements", s.handlePlacementPurchase)
			r.Post("/business/creatives", s.handleUploadCreative)
		})

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.roleMiddleware(domain.RoleAdmin))

			r.Get("/admin/overview", s.handleAdminOverview)
			r.Get("/admin/ads/pending", s.handlePendingAds)
			r.Get("/admin/ads/slot", s.handleCurrentSlot)
			r.Delete("/admin/ads/slot", s.handleStopPromotion)
			r.Post("/admin/ads/expire", s.handleExpireOverdue)
			r.Get("/admin/ads/reconcile", s.handleReconcile)
			r.Post("/admin/ads/{id}/publish", s.handlePublish)
			r.Post("/admin/ads/{id}/reject", s.handleReject)
			r.Post("/admin/ads/{id}/cancel", s.handleAdminCancel)
		})
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
