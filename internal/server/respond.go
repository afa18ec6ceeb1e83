package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"evmarket/internal/domain"
	"evmarket/internal/domain/payments"
	"evmarket/internal/service"
	"evmarket/internal/storage"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error      string              `json:"error"`
	Fields     []domain.FieldError `json:"fields,omitempty"`
	PaymentRef string              `json:"paymentRef,omitempty"`
}

type partialBody struct {
	Data      any      `json:"data,omitempty"`
	Warning   string   `json:"warning"`
	Operation string   `json:"operation"`
	Completed []string `json:"completed"`
	Failed    string   `json:"failed"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	return nil
}

// writeResult writes data with status, or a 207 when err is a partial write
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	var perr *domain.PartialWriteError
	if errors.As(err, &perr) {
		writeJSON(w, http.StatusMultiStatus, partialBody{
			Data:      data,
			Warning:   perr.Error(),
			Operation: perr.Operation,
			Completed: perr.Completed,
			Failed:    perr.Failed,
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, data)
}

// writeError maps domain errors to HTTP responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr    *domain.ValidationError
		perr    *domain.PartialWriteError
		persist *domain.PaymentPersistError
	)
	switch {
	case errors.As(err, &persist):
		s.log.ErrorContext(r.Context(), "payment not recorded", "payment_ref", persist.PaymentRef, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:      "payment was taken but could not be recorded; contact support with the payment reference",
			PaymentRef: persist.PaymentRef,
		})
	case errors.As(err, &perr):
		s.writeResult(w, r, http.StatusOK, nil, err)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, storage.ErrUnsupportedCreative):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
	case errors.Is(err, domain.ErrEntitlementRequired):
		writeJSON(w, http.StatusPaymentRequired, errorBody{Error: err.Error()})
	case errors.Is(err, payments.ErrDeclined):
		writeJSON(w, http.StatusPaymentRequired, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrPaymentOutcomeUnknown):
		writeJSON(w, http.StatusAccepted, map[string]string{
			"outcome": "unknown",
			"message": "payment was not confirmed; nothing was changed",
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, service.ErrPaymentInProgress):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		s.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
