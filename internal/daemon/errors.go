package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"tailor/internal/api"
	"tailor/internal/logging"
	"tailor/internal/services"
)

// HTTPStatus maps an error kind to its response status.
func HTTPStatus(kind string) int {
	switch kind {
	case services.KindValidation, services.KindUnrecognizedCommand, services.KindUnknownOperation:
		return http.StatusBadRequest
	case services.KindAssetNotFound, services.KindVersionNotFound:
		return http.StatusNotFound
	case services.KindDuplicateVersion:
		return http.StatusConflict
	case services.KindEngineFailure:
		return http.StatusBadGateway
	case services.KindTimeout:
		return http.StatusGatewayTimeout
	case services.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.Kind(err)
	status := HTTPStatus(kind)
	body := api.ErrorResponse{Error: err.Error(), Kind: kind}
	if kind == services.KindEngineFailure || kind == services.KindTimeout {
		body.Diagnostic = services.Diagnostic(err)
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Warn("request failed",
			logging.String("path", r.URL.Path),
			logging.String("kind", kind),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
