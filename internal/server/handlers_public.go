package server

import (
	"net/http"

	"github.com/skip2/go-qrcode"

	"evmarket/internal/domain"
	"evmarket/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token   string          `json:"token"`
	Account *domain.Account `json:"account"`
}

// handleLogin checks credentials and issues a token as cookie and body
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	account, err := s.svc.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.issueToken(w, r, http.StatusOK, account)
}

// handleRegister creates a business or user account and signs it in
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	account, err := s.svc.Accounts.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.issueToken(w, r, http.StatusCreated, account)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, status int, account *domain.Account) {
	token, err := s.generateToken(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setAuthCookie(w, token, s.config.JWT.ExpirationHours*3600)
	writeJSON(w, status, authResponse{Token: token, Account: account})
}

// handleLogout clears the auth cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleActiveAd returns the ad a page should render, or 204 when none
func (s *Server) handleActiveAd(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("page")
	if !domain.IsTargetPage(page) {
		s.writeError(w, r, domain.NewValidationError("page", "unknown page "+page))
		return
	}

	slot, err := s.svc.Visibility.ActiveAdFor(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if slot == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// handleAdQR renders the live ad's target link as a PNG QR code
func (s *Server) handleAdQR(w http.ResponseWriter, r *http.Request) {
	slot, err := s.svc.Visibility.Live(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if slot == nil || slot.SourceRequestID != getURLParam(r, "id") {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}

	png, err := qrcode.Encode(slot.TargetLink, qrcode.Medium, 256)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
