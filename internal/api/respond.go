package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/services"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid, services.ErrorAdminExists:
		return http.StatusBadRequest
	case services.ErrorUnauthorized, services.ErrorSessionExpired:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorBody maps err to a status and a client-safe message. Unknown errors
// never leak their text.
func (rt *Router) errorBody(err error) (int, string) {
	if se, ok := services.AsServiceError(err); ok {
		return statusFor(se.Code), se.Message
	}
	rt.logger.Error("unhandled error", zap.Error(err))
	return http.StatusInternalServerError, "Internal server error"
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	status, msg := rt.errorBody(err)
	writeJSON(w, status, map[string]any{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
}

// decodeJSON reads a bounded JSON body into dst and runs its validate tags.
func (rt *Router) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return services.NewInvalidError("Invalid request")
	}
	if err := rt.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return services.NewInvalidError("Invalid " + verrs[0].Field())
		}
		return services.NewInvalidError("Invalid request")
	}
	return nil
}
