package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"filedeck/internal/domain"
)

// errorBody is the JSON error shape shared by REST responses.
type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// statusFor maps an error to its HTTP status through its error code.
func statusFor(err error) int {
	switch domain.ErrorCodeOf(err) {
	case domain.CodeInvalidInput, domain.CodePathOutsideSandbox, domain.CodeRPCInvalidPayload:
		return http.StatusBadRequest
	case domain.CodeNotFound, domain.CodeRPCMethodNotFound:
		return http.StatusNotFound
	case domain.CodeDuplicate:
		return http.StatusConflict
	case domain.CodeLimitReached:
		return http.StatusRequestEntityTooLarge
	case domain.CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail renders the client-facing message for err. Unclassified errors
// are reported generically; their text only goes to the log.
func errorDetail(err error) string {
	code := domain.ErrorCodeOf(err)
	if code == domain.CodeUnknown {
		return http.StatusText(http.StatusInternalServerError)
	}
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return err.Error()
	}
	switch {
	case code == domain.CodeDuplicate:
		return "Destination already exists: " + de.Detail
	case code == domain.CodePathOutsideSandbox, code == domain.CodeSettingsCorrupt, de.Detail == "":
		return de.Err.Error()
	}
	return de.Detail
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// writeError writes the JSON error body for err. Server-side failures are
// logged at error level.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", domain.RequestIDFromContext(r.Context()),
			"error", err)
	}
	writeJSON(w, status, errorBody{Detail: errorDetail(err), Code: string(domain.ErrorCodeOf(err))})
}
