package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/card-duel-backend/internal/store"
)

const healthTimeout = 2 * time.Second

type health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Store    string `json:"store"`
}

// Healthz reports ok unless the store supports Ping and the ping fails.
func Healthz(st store.Store, sessions func(context.Context) int, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		body := health{Status: "ok", Store: "memory"}
		code := http.StatusOK
		if p, ok := st.(store.Pinger); ok {
			body.Store = "ok"
			if err := p.Ping(ctx); err != nil {
				log.Warn("store ping failed", zap.Error(err))
				body.Status, body.Store = "degraded", "unreachable"
				code = http.StatusServiceUnavailable
			}
		}
		if sessions != nil {
			body.Sessions = sessions(ctx)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}
