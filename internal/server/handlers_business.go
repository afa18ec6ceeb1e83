package server

import (
	"fmt"
	"io"
	"net/http"

	"evmarket/internal/domain"
	"evmarket/internal/service"
)

type renewRequest struct {
	PlanTier   domain.PlanTier   `json:"planTier"`
	PaymentRef string            `json:"paymentRef"`
	Ad         *domain.AdContent `json:"ad,omitempty"`
}

type subscribeRequest struct {
	PlanTier      domain.PlanTier   `json:"planTier"`
	PaymentMethod string            `json:"paymentMethod"`
	Ad            *domain.AdContent `json:"ad,omitempty"`
}

type placementRequest struct {
	domain.AdContent
	PaymentMethod string `json:"paymentMethod"`
}

type quoteRequest struct {
	TargetPages []string `json:"targetPages"`
}

// handleEntitlement returns the caller's plan with activity evaluated now
func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Renewal.Current(r.Context(), getIdentity(r).AccountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleRenew applies a payment the client already confirmed with the provider
func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Renewal.Renew(r.Context(), service.RenewInput{
		AccountID:  getIdentity(r).AccountID,
		PlanTier:   req.PlanTier,
		PaymentRef: req.PaymentRef,
		Ad:         req.Ad,
	})
	s.writeResult(w, r, http.StatusOK, res, err)
}

// handleSubscribe charges the plan price server-side and then renews
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Renewal.Purchase(r.Context(), service.PurchaseInput{
		AccountID:      getIdentity(r).AccountID,
		PlanTier:       req.PlanTier,
		PaymentMethod:  req.PaymentMethod,
		Ad:             req.Ad,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	s.writeResult(w, r, http.StatusOK, res, err)
}

// handleMyAds lists the caller's ledger rows, newest first
func (s *Server) handleMyAds(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.History.ForAccount(r.Context(), getIdentity(r).AccountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.AdRequest{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleSubmitAd queues ad content for review under the caller's plan
func (s *Server) handleSubmitAd(w http.ResponseWriter, r *http.Request) {
	var content domain.AdContent
	if err := decodeJSON(w, r, &content); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := s.svc.Submission.Submit(r.Context(), getIdentity(r).AccountID, content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// handleCancelMyAd cancels one of the caller's own requests. The live slot
// is not touched.
func (s *Server) handleCancelMyAd(w http.ResponseWriter, r *http.Request) {
	id := getURLParam(r, "id")
	owned, err := s.ownsRequest(r, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !owned {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}

	req, err := s.svc.Cancellation.Cancel(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) ownsRequest(r *http.Request, id string) (bool, error) {
	rows, err := s.svc.History.ForAccount(r.Context(), getIdentity(r).AccountID)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// handlePlacementQuote prices a set of target pages
func (s *Server) handlePlacementQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	quote, err := s.svc.Placement.Quote(req.TargetPages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handlePlacementPurchase charges for a single placement and queues it for review
func (s *Server) handlePlacementPurchase(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	row, err := s.svc.Placement.Purchase(r.Context(), service.PlacementInput{
		AccountID:      getIdentity(r).AccountID,
		Content:        req.AdContent,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// handleUploadCreative stores the multipart "file" field and returns its URL
func (s *Server) handleUploadCreative(w http.ResponseWriter, r *http.Request) {
	if s.creatives == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "creative uploads are not configured"})
		return
	}

	limit := s.config.S3.MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, domain.NewValidationError("file", fmt.Sprintf("could not read upload: %v", err)))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	url, err := s.creatives.Upload(r.Context(), getIdentity(r).AccountID, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"imageUrl": url})
}
