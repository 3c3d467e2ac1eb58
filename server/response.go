package server

import (
	"encoding/json"
	"net/http"

	"github.com/abate-Agegnehu/musiccollectionbackend/apperrors"
	"github.com/abate-Agegnehu/musiccollectionbackend/logger"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError maps err to its status and public message. Server side
// failures are logged with their cause, which never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logger.String("requestId", RequestIDFrom(r.Context())),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("kind", kind.String()),
			logger.ErrorField(err))
	}
	writeMessage(w, status, apperrors.PublicMessage(err))
}
