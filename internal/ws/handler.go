package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/card-duel-backend/internal/engine"
	"github.com/DoyleJ11/card-duel-backend/internal/hub"
	"github.com/DoyleJ11/card-duel-backend/internal/identity"
	"github.com/DoyleJ11/card-duel-backend/internal/plaza"
	"github.com/DoyleJ11/card-duel-backend/internal/session"
	"github.com/DoyleJ11/card-duel-backend/internal/types"
)

const (
	defaultPingInterval = 30 * time.Second
	pingTimeout         = 10 * time.Second
	writeTimeout        = 3 * time.Second
)

type Options struct {
	Verifier *identity.Verifier
	Logger   *zap.Logger
	// PingInterval paces keepalive pings; zero means 30s.
	PingInterval time.Duration
	// In dev ONLY, loosen origin checks, e.g. "localhost:*".
	OriginPatterns []string
}

// PlazaHandler attaches a connection to the shared social space.
func PlazaHandler(p *plaza.Plaza, opts Options) http.HandlerFunc {
	log := logger(opts).Named("ws.plaza")
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := opts.Verifier.UserID(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan plaza.Notice, 32)
		peerID := uuid.NewString()
		if !p.Send(plaza.Join{PeerID: peerID, UserID: userID, Outbox: out}) {
			conn.Close(websocket.StatusTryAgainLater, "plaza closed")
			return
		}
		defer p.Send(plaza.Leave{PeerID: peerID})
		log.Debug("plaza connection open", zap.String("peer", peerID), zap.String("user", userID))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for n := range out {
				write(writeCtx, conn, noticeMessage(n))
			}
			// Outbox closed while the reader still runs: the plaza gave up on this peer.
			if writeCtx.Err() == nil {
				conn.Close(websocket.StatusPolicyViolation, "connection too slow")
			}
		}()
		go keepalive(writeCtx, conn, opts.PingInterval)

		readLoop(r.Context(), conn, func(cm types.ClientMessage) bool {
			m, ok := toPlazaMsg(peerID, cm)
			if !ok {
				return false
			}
			return p.Send(m)
		})
	}
}

// BattleHandler attaches a connection to the battle session named by the
// session query parameter.
func BattleHandler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := logger(opts).Named("ws.battle")
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("session")
		if id == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}
		userID, err := opts.Verifier.UserID(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s := h.Get(r.Context(), id)
		if s == nil || !s.Live() {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Update, 16)
		clientID := uuid.NewString()
		if !s.Send(session.Join{ClientID: clientID, UserID: userID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "session closed")
			return
		}
		defer s.Send(session.Leave{ClientID: clientID})
		log.Debug("battle connection open", zap.String("session", id), zap.String("client", clientID))

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for u := range out {
				write(writeCtx, conn, updateMessage(u))
			}
			if writeCtx.Err() == nil {
				conn.Close(websocket.StatusNormalClosure, "session over")
			}
		}()
		go keepalive(writeCtx, conn, opts.PingInterval)

		readLoop(r.Context(), conn, func(cm types.ClientMessage) bool {
			cmd, ok := toEngineCommand(cm)
			if !ok {
				return false
			}
			return s.Send(session.FromClient{ClientID: clientID, Cmd: cmd})
		})
	}
}

// keepalive pings the peer until ctx ends. Reads carry no deadline, so a
// missed pong is what ends a dead connection.
func keepalive(ctx context.Context, conn *websocket.Conn, every time.Duration) {
	if every <= 0 {
		every = defaultPingInterval
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					conn.Close(websocket.StatusGoingAway, "ping timeout")
				}
				return
			}
		}
	}
}

// readLoop decodes frames until the connection ends. handle reports whether
// the message was understood.
func readLoop(ctx context.Context, conn *websocket.Conn, handle func(types.ClientMessage) bool) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Clean close, going-away and everything else end the same way.
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			write(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
			continue
		}
		if !handle(cm) {
			write(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "unknown type"})
		}
	}
}

func write(parent context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	_ = wsjson.Write(ctx, conn, msg)
}

func toPlazaMsg(peerID string, m types.ClientMessage) (plaza.Msg, bool) {
	switch m.Type {
	case types.MsgMove:
		return plaza.Move{PeerID: peerID, Position: plaza.Position{X: m.X, Y: m.Y, Z: m.Z, Rotation: m.Rotation}}, true
	case types.MsgDuelChallenge:
		return plaza.Challenge{PeerID: peerID, TargetID: m.TargetID}, true
	case types.MsgDuelJoined:
		return plaza.Joined{PeerID: peerID, SessionID: m.BattleSessionID}, true
	case types.MsgDuelJoinFailed:
		return plaza.JoinFailed{PeerID: peerID, SessionID: m.BattleSessionID}, true
	default:
		return nil, false
	}
}

func toEngineCommand(m types.ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case types.MsgStartGame:
		return engine.Command{Type: engine.CmdStartGame}, true
	case types.MsgPlayCard:
		return engine.Command{Type: engine.CmdPlayCard, Slot: m.CardIndex, Target: m.TargetPosition}, true
	case types.MsgEndTurn:
		return engine.Command{Type: engine.CmdEndTurn}, true
	default:
		return engine.Command{}, false
	}
}

func noticeMessage(n plaza.Notice) types.ServerMessage {
	switch n.Kind {
	case plaza.NoticeWelcome:
		return types.ServerMessage{Type: types.MsgWelcome, ID: n.PeerID}
	case plaza.NoticePresence:
		return types.ServerMessage{Type: types.MsgPresence, Peers: n.Peers}
	case plaza.NoticeDuelStart:
		return types.ServerMessage{Type: types.MsgDuelStart, BattleSessionID: n.SessionID}
	default:
		msg := types.ServerMessage{Type: types.MsgDuelError}
		if n.Err != nil {
			msg.Message = n.Err.Error()
		}
		return msg
	}
}

func updateMessage(u session.Update) types.ServerMessage {
	switch {
	case u.Err != nil:
		return types.ServerMessage{Type: types.MsgError, Error: u.Err.Error()}
	case u.Attacks != nil:
		return types.ServerMessage{Type: types.MsgAttackSequence, Attacks: u.Attacks}
	default:
		snap := u.Snapshot
		return types.ServerMessage{Type: types.MsgState, Version: snap.Version, State: &snap.State}
	}
}

func logger(opts Options) *zap.Logger {
	if opts.Logger == nil {
		return zap.NewNop()
	}
	return opts.Logger
}
