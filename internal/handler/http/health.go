package http

import (
	"net/http"
	"time"

	"bookbell/internal/handler/http/respond"
)

// healthResponse is the liveness payload.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Liveness reports process liveness. It is unauthenticated and carries no
// dependency checks: a dispatcher with an unreachable booking API is still
// alive, it just logs empty cycles.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
