// Package session runs one battle: a single goroutine owns the engine state,
// applies inbound commands in arrival order and broadcasts immutable
// snapshots to every connected peer.
package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/card-duel-backend/internal/catalog"
	"github.com/DoyleJ11/card-duel-backend/internal/engine"
	"github.com/DoyleJ11/card-duel-backend/internal/loadout"
	"github.com/DoyleJ11/card-duel-backend/internal/store"
)

type Msg interface{ isSessionMsg() }

type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isSessionMsg() {}

type Join struct {
	ClientID string
	UserID   string
	Outbox   chan Update // where this client wants to receive updates
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type idleCheck struct{ gen int }

func (idleCheck) isSessionMsg() {}

type Snapshot struct {
	Version int
	State   engine.State
}

// Update is one outbound item. Exactly one field is set.
type Update struct {
	Snapshot *Snapshot
	Attacks  []engine.AttackEvent
	Err      error
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
	Rewarded   bool
}

type Deps struct {
	Store         store.Store
	Catalog       *catalog.Catalog
	Logger        *zap.Logger
	Rand          *rand.Rand // owned by the session; nil seeds a fresh one
	VictoryReward int
	StoreTimeout  time.Duration
	RewardTimeout time.Duration
	IdleTimeout   time.Duration
	OnClose       func(id string)
	// Invited limits seats to these identities; nil leaves the battle open.
	Invited       []string
}

const (
	defaultStoreTimeout  = 3 * time.Second
	defaultRewardTimeout = 5 * time.Second
)

type Session struct {
	id       string
	inbox    chan Msg
	state    engine.State
	version  int
	clients  map[string]chan Update
	deps     Deps
	log      *zap.Logger
	rng      *rand.Rand
	rewarded bool
	idleGen  int
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	rewards  sync.WaitGroup
}

func New(parent context.Context, id string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(parent)
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = defaultStoreTimeout
	}
	if deps.RewardTimeout <= 0 {
		deps.RewardTimeout = defaultRewardTimeout
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	s := &Session{
		id:      id,
		inbox:   make(chan Msg, 64),
		state:   engine.NewState(),
		clients: make(map[string]chan Update),
		deps:    deps,
		log:     deps.Logger.Named("session").With(zap.String("session", id)),
		rng:     rng,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.state.Invited = slices.Clone(deps.Invited)
	s.armIdle()

	go s.loop()
	return s
}

func (s *Session) ID() string { return s.id }

// Inbox exposes the raw inbox for tests and the transport layer.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Send delivers m unless the session has already stopped.
func (s *Session) Send(m Msg) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- m:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Live() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// WaitRewards blocks until in-flight reward writes have finished.
func (s *Session) WaitRewards() { s.rewards.Wait() }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)

			case Leave:
				if s.handleLeave(msg) {
					s.shutdown()
					return
				}

			case FromClient:
				s.handleCommand(msg)

			case GetState:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					State:      s.state.Clone(),
					Rewarded:   s.rewarded,
				}

			case idleCheck:
				if msg.gen == s.idleGen && len(s.clients) == 0 {
					s.log.Info("closing idle session")
					s.shutdown()
					return
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleJoin(msg Join) {
	cmd := engine.Command{Type: engine.CmdJoin, ConnectionID: msg.ClientID, UserID: msg.UserID}
	if _, err := engine.Apply(&s.state, cmd, s.rng); err != nil {
		s.log.Info("join rejected", zap.String("client", msg.ClientID), zap.Error(err))
		select {
		case msg.Outbox <- Update{Err: err}:
		default:
		}
		close(msg.Outbox)
		return
	}
	s.clients[msg.ClientID] = msg.Outbox
	s.idleGen++
	s.commit(nil)
}

// handleLeave reports whether the session should stop.
func (s *Session) handleLeave(msg Leave) bool {
	if ch, ok := s.clients[msg.ClientID]; ok {
		close(ch)
		delete(s.clients, msg.ClientID)
	}
	if seat, ok := s.state.SeatOf(msg.ClientID); ok {
		events, _ := engine.Apply(&s.state, engine.Command{Type: engine.CmdLeave, Player: seat}, s.rng)
		if events != nil {
			s.commit(nil)
		}
	}
	if len(s.clients) > 0 {
		return false
	}
	if s.state.Phase != engine.PhaseWaiting {
		return true
	}
	s.armIdle()
	return false
}

func (s *Session) handleCommand(msg FromClient) {
	log := s.log.With(zap.String("client", msg.ClientID), zap.String("cmd", string(msg.Cmd.Type)))
	seat, ok := s.state.SeatOf(msg.ClientID)
	if !ok {
		s.reply(msg.ClientID, engine.ErrUnknownPlayer)
		return
	}
	cmd := msg.Cmd
	cmd.Player = seat

	if cmd.Type == engine.CmdStartGame {
		if err := engine.CanStart(&s.state); err != nil {
			s.reply(msg.ClientID, err)
			return
		}
		cmd.Loadouts = s.resolveLoadouts()
	}

	events, err := engine.Apply(&s.state, cmd, s.rng)
	if err != nil {
		if errors.Is(err, engine.ErrMustPlayCard) {
			log.Warn("end turn refused without a card play", zap.Int("seat", seat))
		} else {
			log.Debug("command rejected", zap.Error(err))
		}
		s.reply(msg.ClientID, err)
		return
	}
	if events == nil {
		log.Debug("command was a no-op", zap.Int("slot", cmd.Slot))
		return
	}
	s.commit(events)

	for _, e := range events {
		if e.Type == engine.EvtBattleEnded {
			s.issueReward(e.Winner)
		}
	}
}

// commit bumps the version and broadcasts the attack batch (if any) followed
// by the new snapshot.
func (s *Session) commit(events []engine.Event) {
	s.version++
	if attacks := engine.Attacks(events); len(attacks) > 0 {
		s.broadcast(Update{Attacks: attacks})
	}
	st := s.state.Clone()
	s.broadcast(Update{Snapshot: &Snapshot{Version: s.version, State: st}})
}

func (s *Session) resolveLoadouts() [2]loadout.Loadout {
	var out [2]loadout.Loadout
	for i, p := range s.state.Players {
		deck, owned := s.fetchCollection(p.UserID)
		out[i] = loadout.Resolve(s.rng, deck, owned, s.deps.Catalog)
	}
	return out
}

// fetchCollection reads a point-in-time snapshot of the player's deck and
// collection. Failures degrade to nil so the resolver falls back to random.
func (s *Session) fetchCollection(userID string) (*store.Deck, *store.Collection) {
	if userID == "" || s.deps.Store == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.deps.StoreTimeout)
	defer cancel()

	deck, err := s.deps.Store.GetDeck(ctx, userID)
	if err != nil {
		s.log.Warn("deck lookup failed", zap.String("user", userID), zap.Error(err))
		deck = nil
	}
	owned, err := s.deps.Store.GetOwnedCollection(ctx, userID)
	if err != nil {
		s.log.Warn("collection lookup failed", zap.String("user", userID), zap.Error(err))
		owned = nil
	}
	return deck, owned
}

// issueReward fires the victory award once per battle. It never blocks the
// loop and is not retried.
func (s *Session) issueReward(winner int) {
	if s.rewarded {
		return
	}
	s.rewarded = true

	userID := s.state.Sides[winner].UserID
	log := s.log.With(zap.Int("winner", winner), zap.String("user", userID), zap.Int("amount", s.deps.VictoryReward))
	if userID == "" || s.deps.Store == nil {
		log.Info("winner has no backing identity, skipping reward")
		return
	}

	s.rewards.Add(1)
	go func() {
		defer s.rewards.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.deps.RewardTimeout)
		defer cancel()
		if err := s.deps.Store.AwardCurrency(ctx, userID, s.deps.VictoryReward); err != nil {
			log.Error("victory reward failed", zap.Error(err))
			return
		}
		log.Info("victory reward issued")
	}()
}

func (s *Session) reply(clientID string, err error) {
	ch, ok := s.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- Update{Err: err}:
	default:
		s.drop(clientID)
	}
}

func (s *Session) broadcast(u Update) {
	for id, ch := range s.clients {
		select {
		case ch <- u:
			//ok
		default:
			// Client is slow/full - drop them.
			s.drop(id)
		}
	}
}

func (s *Session) drop(clientID string) {
	s.log.Info("dropping slow client", zap.String("client", clientID))
	close(s.clients[clientID])
	delete(s.clients, clientID)
}

// armIdle schedules an idle check; any join in between invalidates it.
func (s *Session) armIdle() {
	if s.deps.IdleTimeout <= 0 {
		return
	}
	s.idleGen++
	gen := s.idleGen
	time.AfterFunc(s.deps.IdleTimeout, func() {
		select {
		case s.inbox <- idleCheck{gen: gen}:
		case <-s.done:
		}
	})
}

func (s *Session) shutdown() {
	select {
	case <-s.done:
		return
	default:
	}
	for id, ch := range s.clients {
		close(ch) // Tell client no more updates
		delete(s.clients, id)
	}
	close(s.done)
	s.cancel()
	if s.deps.OnClose != nil {
		go s.deps.OnClose(s.id)
	}
}
