package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
	"github.com/alanyoungcy/launchpad/internal/server/middleware"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a domain error kind to an HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindArithmetic:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps err to a status and a stable error code. Integrity
// and unknown errors are logged and hidden from the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind == domain.KindIntegrity {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", middleware.RequestIDFrom(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if errors.Is(err, domain.ErrRateLimited) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: de.Message, Code: string(de.Code)})
		return
	}
	writeJSON(w, statusFor(de.Kind), errorResponse{Error: de.Message, Code: string(de.Code)})
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}
	return opts
}

// pathAddress parses the named path parameter as an address.
func pathAddress(r *http.Request, name string) (common.Address, error) {
	return domain.ParseAddress(r.PathValue(name))
}

// caller returns the verified signer, or ErrUnauthorized when the route was
// not wrapped in signature auth.
func caller(r *http.Request) (common.Address, error) {
	addr, ok := middleware.CallerFrom(r.Context())
	if !ok {
		return common.Address{}, domain.ErrUnauthorized
	}
	return addr, nil
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidRequest.Wrap(err)
	}
	return nil
}

// parseAmount reads an amount given either in base units or as a decimal
// string in display units. Exactly one must be set.
func parseAmount(base, display string, decimals int32) (uint64, error) {
	switch {
	case base != "" && display != "":
		return 0, domain.ErrInvalidAmount
	case base != "":
		v, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			return 0, domain.ErrInvalidAmount.Wrap(err)
		}
		return v, nil
	case display != "":
		return domain.ParseUnits(display, decimals)
	default:
		return 0, nil
	}
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
