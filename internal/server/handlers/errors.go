package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/iudanet/worksync/pkg/api"
)

// WriteError пишет api.ErrorResponse с указанным статусом
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
