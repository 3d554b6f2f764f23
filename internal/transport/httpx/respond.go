package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type errorResponse struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError маппит таксономию ошибок ядра на HTTP-коды.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	writeJSON(w, statusFromKind(kind), errorResponse{Error: err.Error(), Kind: kind})
}

func statusFromKind(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
