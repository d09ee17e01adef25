// Package hub owns the set of running battle sessions. A single goroutine
// creates, looks up and forgets sessions so the id map needs no locking.
package hub

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/card-duel-backend/internal/session"
)

var ErrHubClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Invited []string // identities allowed to sit; empty leaves seats open
	Reply   chan *session.Session
}

type GetSession struct {
	ID    string
	Reply chan *session.Session
}

type RemoveSession struct {
	ID string
}

type CountSessions struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (CountSessions) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	base     session.Deps
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHub starts the hub. Every session it creates receives a copy of base
// with its own OnClose hook; base.Rand must be nil so each session seeds its
// own generator.
func NewHub(parent context.Context, base session.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if base.Logger == nil {
		base.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		base:     base,
		log:      base.Logger.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				id := uuid.NewString()
				deps := h.base
				deps.Rand = nil
				deps.OnClose = h.forget
				deps.Invited = msg.Invited
				s := session.New(h.ctx, id, deps)
				h.sessions[id] = s
				h.log.Info("battle session created", zap.String("session", id))
				msg.Reply <- s

			case GetSession:
				msg.Reply <- h.sessions[msg.ID] // May be nil

			case RemoveSession:
				if _, ok := h.sessions[msg.ID]; ok {
					delete(h.sessions, msg.ID)
					h.log.Info("battle session removed", zap.String("session", msg.ID))
				}

			case CountSessions:
				msg.Reply <- len(h.sessions)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// forget runs on the session's close path.
func (h *Hub) forget(id string) {
	select {
	case h.inbox <- RemoveSession{ID: id}:
	case <-h.done:
	}
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		s.Send(session.Shutdown{})
	}
	clear(h.sessions)
	h.cancel()
}

func (h *Hub) ask(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create starts a new battle session under a fresh id. When invited is
// non-empty only those identities can take a seat.
func (h *Hub) Create(ctx context.Context, invited ...string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if err := h.ask(ctx, CreateSession{Invited: invited, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns nil when no session is registered under id.
func (h *Hub) Get(ctx context.Context, id string) *session.Session {
	reply := make(chan *session.Session, 1)
	if err := h.ask(ctx, GetSession{ID: id, Reply: reply}); err != nil {
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-h.done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Live reports whether id names a session that is still running.
func (h *Hub) Live(ctx context.Context, id string) bool {
	s := h.Get(ctx, id)
	return s != nil && s.Live()
}

func (h *Hub) Count(ctx context.Context) int {
	reply := make(chan int, 1)
	if err := h.ask(ctx, CountSessions{Reply: reply}); err != nil {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.done:
		return 0
	case <-ctx.Done():
		return 0
	}
}

// NewBattle creates a session reserved for the two users and returns its id.
func (h *Hub) NewBattle(ctx context.Context, userA, userB string) (string, error) {
	s, err := h.Create(ctx, userA, userB)
	if err != nil {
		return "", err
	}
	return s.ID(), nil
}
