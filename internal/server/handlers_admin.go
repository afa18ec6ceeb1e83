package server

import (
	"net/http"

	"evmarket/internal/domain"
	"evmarket/internal/service"
)

type publishRequest struct {
	Title        *string  `json:"title,omitempty"`
	Description  *string  `json:"description,omitempty"`
	TargetLink   *string  `json:"targetLink,omitempty"`
	ImageURL     *string  `json:"imageUrl,omitempty"`
	TargetPages  []string `json:"targetPages,omitempty"`
	DurationDays any      `json:"durationDays,omitempty"`
}

func (p publishRequest) edited() bool {
	return p.Title != nil || p.Description != nil || p.TargetLink != nil || p.ImageURL != nil
}

// handleAdminOverview returns ledger counts, revenue and the current slot
func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.svc.History.AdminOverview(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// handlePendingAds lists the review queue, newest first
func (s *Server) handlePendingAds(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Review.ListPending(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.AdRequest{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleCurrentSlot returns the stored slot, expired or not
func (s *Server) handleCurrentSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := s.svc.History.Slot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if slot == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// handlePublish approves a pending request into the global slot. Fields left
// out of the body keep the request's submitted values.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	in := service.PublishInput{
		TargetPages:  req.TargetPages,
		DurationDays: domain.DurationDaysFrom(req.DurationDays),
	}
	if req.edited() {
		content, err := s.editedContent(r, getURLParam(r, "id"), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		in.Content = content
	}

	slot, err := s.svc.Review.Publish(r.Context(), getURLParam(r, "id"), in)
	s.writeResult(w, r, http.StatusOK, slot, err)
}

func (s *Server) editedContent(r *http.Request, id string, req publishRequest) (*domain.AdContent, error) {
	pending, err := s.svc.Review.ListPending(r.Context())
	if err != nil {
		return nil, err
	}
	for _, row := range pending {
		if row.ID != id {
			continue
		}
		content := row.Content()
		if req.Title != nil {
			content.Title = *req.Title
		}
		if req.Description != nil {
			content.Description = *req.Description
		}
		if req.TargetLink != nil {
			content.TargetLink = *req.TargetLink
		}
		if req.ImageURL != nil {
			content.ImageURL = *req.ImageURL
		}
		return &content, nil
	}
	// not pending: let Publish report not-found or the transition error
	return nil, nil
}

// handleReject rejects a pending request
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	req, err := s.svc.Review.Reject(r.Context(), getURLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleAdminCancel cancels a request. With ?stop=true the live promotion is
// also stopped when it is showing this request.
func (s *Server) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	id := getURLParam(r, "id")
	var (
		req *domain.AdRequest
		err error
	)
	if r.URL.Query().Get("stop") == "true" {
		req, err = s.svc.Cancellation.CancelAndStop(r.Context(), id)
	} else {
		req, err = s.svc.Cancellation.Cancel(r.Context(), id)
	}
	s.writeResult(w, r, http.StatusOK, req, err)
}

// handleStopPromotion clears the global slot without touching the ledger
func (s *Server) handleStopPromotion(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Cancellation.StopActivePromotion(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExpireOverdue runs the expiry sweep on demand
func (s *Server) handleExpireOverdue(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Cancellation.ExpireOverdue(r.Context())
	if err != nil && report == nil {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		s.log.WarnContext(r.Context(), "expiry sweep incomplete", "error", err)
		writeJSON(w, http.StatusMultiStatus, partialBody{Data: report, Warning: err.Error(), Operation: "expire"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleReconcile reports drift between the ledger and the slot
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Reconciler.Report(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
