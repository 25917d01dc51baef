package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jkindrix/zenquote/internal/errors"
)

// writeError writes err using the API error envelope.
func writeError(w http.ResponseWriter, err *apperrors.Error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err.ToResponse())
}
