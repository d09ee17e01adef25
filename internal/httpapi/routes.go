package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/card-duel-backend/internal/hub"
	"github.com/DoyleJ11/card-duel-backend/internal/identity"
	"github.com/DoyleJ11/card-duel-backend/internal/plaza"
	"github.com/DoyleJ11/card-duel-backend/internal/store"
	"github.com/DoyleJ11/card-duel-backend/internal/ws"
)

type Deps struct {
	Hub            *hub.Hub
	Plaza          *plaza.Plaza
	Store          store.Store
	Verifier       *identity.Verifier
	Logger         *zap.Logger
	OriginPatterns []string
	PingInterval   time.Duration
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	opts := ws.Options{
		Verifier:       d.Verifier,
		Logger:         d.Logger,
		OriginPatterns: d.OriginPatterns,
		PingInterval:   d.PingInterval,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz(d.Store, d.Hub.Count, d.Logger.Named("http")))
	r.Get("/ws/plaza", ws.PlazaHandler(d.Plaza, opts))
	r.Get("/ws/battle", ws.BattleHandler(d.Hub, opts))
	return r
}
