package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"stars-engine/internal/apperr"
	"stars-engine/internal/commission"
	"stars-engine/internal/gateway"
	"stars-engine/internal/ledger"
	"stars-engine/internal/purchase"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const maxRequestBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": code})
}

// errorStatus maps the error taxonomy onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, apperr.ErrValidation.Error()
	case errors.Is(err, apperr.ErrInsufficientFunds):
		return http.StatusPaymentRequired, apperr.ErrInsufficientFunds.Error()
	case errors.Is(err, apperr.ErrRecipientNotFound):
		return http.StatusNotFound, apperr.ErrRecipientNotFound.Error()
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, apperr.ErrNotFound.Error()
	case errors.Is(err, apperr.ErrUserBlocked):
		return http.StatusForbidden, apperr.ErrUserBlocked.Error()
	case errors.Is(err, gateway.ErrServiceClosed):
		return http.StatusServiceUnavailable, gateway.ErrServiceClosed.Error()
	case errors.Is(err, purchase.ErrCooldownActive):
		return http.StatusConflict, purchase.ErrCooldownActive.Error()
	case errors.Is(err, commission.ErrInvalidTransition):
		return http.StatusConflict, commission.ErrInvalidTransition.Error()
	case errors.Is(err, ledger.ErrDuplicatePurchase):
		return http.StatusConflict, ledger.ErrDuplicatePurchase.Error()
	case errors.Is(err, apperr.ErrExternalService):
		return http.StatusBadGateway, apperr.ErrExternalService.Error()
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	body := map[string]any{"ok": false, "error": code}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
		body["reason"] = ve.Reason
	}
	var fe *apperr.FundsError
	if errors.As(err, &fe) {
		body["need"] = fe.Need
		body["have"] = fe.Have
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	metricErrors.Add(strconv.Itoa(status), 1)
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || n == 0 {
		writeError(w, r, apperr.Invalid(name, "must be a non-zero integer"))
		return 0, false
	}
	return n, true
}
