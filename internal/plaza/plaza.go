// Package plaza is the shared social space: it tracks who is online and where
// they stand, and runs the challenge, confirm and handoff handshake that moves
// two peers into a battle session.
package plaza

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/card-duel-backend/internal/loadout"
	"github.com/DoyleJ11/card-duel-backend/internal/pending"
	"github.com/DoyleJ11/card-duel-backend/internal/store"
)

const DefaultChallengeRange = 5.0

var (
	ErrUnknownPeer       = errors.New("challenger is not in the plaza")
	ErrTargetNotFound    = errors.New("target is not in the plaza")
	ErrSelfChallenge     = errors.New("cannot challenge yourself")
	ErrOutOfRange        = errors.New("target is out of range")
	ErrNotLinked         = errors.New("both players must be signed in to duel")
	ErrDeckNotReady      = errors.New("both players need a deck with one leader and at least one unit")
	ErrTargetUnreachable = errors.New("target is not reachable")
	ErrBattleUnavailable = errors.New("could not open a battle session")
	ErrJoinFailed        = errors.New("duel setup failed")
)

// Battles is the host of battle sessions.
type Battles interface {
	// NewBattle opens a session only userA and userB can sit in.
	NewBattle(ctx context.Context, userA, userB string) (string, error)
	Live(ctx context.Context, id string) bool
}

type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
}

// Distance ignores rotation.
func (p Position) Distance(o Position) float64 {
	return math.Sqrt((p.X-o.X)*(p.X-o.X) + (p.Y-o.Y)*(p.Y-o.Y) + (p.Z-o.Z)*(p.Z-o.Z))
}

type NoticeKind string

const (
	NoticeWelcome   NoticeKind = "welcome"
	NoticePresence  NoticeKind = "presence"
	NoticeDuelStart NoticeKind = "duelStart"
	NoticeDuelError NoticeKind = "duelError"
)

type PeerView struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
	Linked   bool     `json:"linked"`
}

// Notice is one outbound plaza message. Kind selects which fields matter.
type Notice struct {
	Kind      NoticeKind
	PeerID    string
	Peers     []PeerView
	SessionID string
	Err       error
}

type peer struct {
	id          string
	userID      string
	pos         Position
	outbox      chan Notice
	unreachable bool
}

type Msg interface{ isPlazaMsg() }

type Join struct {
	PeerID string
	UserID string // empty for anonymous connections
	Outbox chan Notice
}

type Leave struct{ PeerID string }

type Move struct {
	PeerID   string
	Position Position
}

type Challenge struct {
	PeerID   string
	TargetID string
}

type Joined struct {
	PeerID    string
	SessionID string
}

type JoinFailed struct {
	PeerID    string
	SessionID string
}

type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isPlazaMsg()       {}
func (Leave) isPlazaMsg()      {}
func (Move) isPlazaMsg()       {}
func (Challenge) isPlazaMsg()  {}
func (Joined) isPlazaMsg()     {}
func (JoinFailed) isPlazaMsg() {}
func (GetView) isPlazaMsg()    {}
func (Shutdown) isPlazaMsg()   {}

type View struct {
	Peers   []PeerView
	Pending int
}

type Deps struct {
	Registry     *pending.Registry
	Battles      Battles
	Store        store.Store
	Logger       *zap.Logger
	Range        float64
	StoreTimeout time.Duration
}

type Plaza struct {
	inbox  chan Msg
	peers  map[string]*peer
	deps   Deps
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, deps Deps) *Plaza {
	ctx, cancel := context.WithCancel(parent)
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Range <= 0 {
		deps.Range = DefaultChallengeRange
	}
	if deps.Registry == nil {
		deps.Registry = pending.New(pending.DefaultTTL, nil)
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = 3 * time.Second
	}
	p := &Plaza{
		inbox:  make(chan Msg, 128),
		peers:  make(map[string]*peer),
		deps:   deps,
		log:    deps.Logger.Named("plaza"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Plaza) Inbox() chan<- Msg { return p.inbox }

func (p *Plaza) Done() <-chan struct{} { return p.done }

// Send delivers m unless the plaza has stopped.
func (p *Plaza) Send(m Msg) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.inbox <- m:
		return true
	case <-p.done:
		return false
	}
}

func (p *Plaza) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			p.shutdown()
			return

		case m := <-p.inbox:
			switch msg := m.(type) {
			case Join:
				p.handleJoin(msg)
			case Leave:
				p.handleLeave(msg)
			case Move:
				p.handleMove(msg)
			case Challenge:
				p.handleChallenge(msg)
			case Joined:
				p.handleJoined(msg)
			case JoinFailed:
				p.handleJoinFailed(msg)
			case GetView:
				msg.Reply <- View{Peers: p.peerViews(), Pending: p.deps.Registry.Len()}
			case Shutdown:
				p.shutdown()
				return
			}
		}
	}
}

func (p *Plaza) handleJoin(msg Join) {
	if old, ok := p.peers[msg.PeerID]; ok {
		p.disconnect(old)
	}
	p.peers[msg.PeerID] = &peer{id: msg.PeerID, userID: msg.UserID, outbox: msg.Outbox}
	p.log.Info("peer joined", zap.String("peer", msg.PeerID), zap.Bool("linked", msg.UserID != ""))

	p.send(msg.PeerID, Notice{Kind: NoticeWelcome, PeerID: msg.PeerID})
	p.sweep()
	p.broadcastPresence()
}

func (p *Plaza) handleLeave(msg Leave) {
	pr, ok := p.peers[msg.PeerID]
	if !ok {
		return
	}
	p.disconnect(pr)
	delete(p.peers, msg.PeerID)
	for _, d := range p.deps.Registry.RemoveParticipant(msg.PeerID) {
		p.log.Info("pending duel dropped, participant left",
			zap.String("peer", msg.PeerID), zap.String("session", d.SessionID))
	}
	p.log.Info("peer left", zap.String("peer", msg.PeerID))
	p.sweep()
	p.broadcastPresence()
}

// handleMove applies the position without validation.
func (p *Plaza) handleMove(msg Move) {
	pr, ok := p.peers[msg.PeerID]
	if !ok {
		return
	}
	pr.pos = msg.Position
	p.sweep()
	p.broadcastPresence()
}

func (p *Plaza) handleChallenge(msg Challenge) {
	p.sweep()

	log := p.log.With(zap.String("challenger", msg.PeerID), zap.String("target", msg.TargetID))
	challenger, target, err := p.checkChallenge(msg)
	if err != nil {
		log.Info("challenge rejected", zap.Error(err))
		p.reject(msg.PeerID, err)
		if errors.Is(err, ErrDeckNotReady) {
			p.reject(msg.TargetID, err)
		}
		return
	}

	pair := pending.Pair(challenger.id, target.id)
	live := func(id string) bool { return p.deps.Battles.Live(p.ctx, id) }
	create := func() (string, error) { return p.deps.Battles.NewBattle(p.ctx, challenger.userID, target.userID) }
	d, created, err := p.deps.Registry.Ensure(pair, live, create)
	if err != nil {
		log.Error("battle session creation failed", zap.Error(err))
		p.reject(msg.PeerID, ErrBattleUnavailable)
		return
	}
	if created {
		log.Info("duel announced", zap.String("session", d.SessionID))
	} else {
		log.Info("duel re-announced", zap.String("session", d.SessionID))
	}

	start := Notice{Kind: NoticeDuelStart, SessionID: d.SessionID}
	p.send(challenger.id, start)
	p.send(target.id, start)
}

// checkChallenge runs the preconditions in order and stops at the first
// failure.
func (p *Plaza) checkChallenge(msg Challenge) (*peer, *peer, error) {
	challenger, ok := p.peers[msg.PeerID]
	if !ok {
		return nil, nil, ErrUnknownPeer
	}
	target, ok := p.peers[msg.TargetID]
	if !ok {
		return nil, nil, ErrTargetNotFound
	}
	if challenger == target {
		return nil, nil, ErrSelfChallenge
	}
	if challenger.pos.Distance(target.pos) > p.deps.Range {
		return nil, nil, ErrOutOfRange
	}
	if challenger.userID == "" || target.userID == "" {
		return nil, nil, ErrNotLinked
	}
	if challenger.userID == target.userID {
		return nil, nil, ErrSelfChallenge
	}
	if !p.deckReady(challenger.userID) || !p.deckReady(target.userID) {
		return nil, nil, ErrDeckNotReady
	}
	if target.unreachable {
		return nil, nil, ErrTargetUnreachable
	}
	return challenger, target, nil
}

func (p *Plaza) deckReady(userID string) bool {
	if p.deps.Store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(p.ctx, p.deps.StoreTimeout)
	defer cancel()
	deck, err := p.deps.Store.GetDeck(ctx, userID)
	if err != nil {
		p.log.Warn("deck lookup failed", zap.String("user", userID), zap.Error(err))
		return false
	}
	return loadout.Ready(deck)
}

func (p *Plaza) handleJoined(msg Joined) {
	complete, found := p.deps.Registry.Ack(msg.SessionID, msg.PeerID)
	if !found {
		return
	}
	if complete {
		p.log.Info("duel handshake complete", zap.String("session", msg.SessionID))
	}
}

// handleJoinFailed drops the pending duel at once; nothing is retried.
func (p *Plaza) handleJoinFailed(msg JoinFailed) {
	d, ok := p.deps.Registry.Fail(msg.SessionID)
	if !ok {
		return
	}
	p.log.Info("duel join failed",
		zap.String("peer", msg.PeerID), zap.String("session", msg.SessionID))
	p.reject(d.Pair.A, ErrJoinFailed)
	p.reject(d.Pair.B, ErrJoinFailed)
}

func (p *Plaza) sweep() {
	present := func(id string) bool {
		pr, ok := p.peers[id]
		return ok && !pr.unreachable
	}
	for _, d := range p.deps.Registry.Sweep(present) {
		p.log.Debug("pending duel swept", zap.String("session", d.SessionID))
	}
}

func (p *Plaza) peerViews() []PeerView {
	out := make([]PeerView, 0, len(p.peers))
	for _, pr := range p.peers {
		out = append(out, PeerView{ID: pr.id, Position: pr.pos, Linked: pr.userID != ""})
	}
	slices.SortFunc(out, func(a, b PeerView) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (p *Plaza) broadcastPresence() {
	views := p.peerViews()
	for id := range p.peers {
		p.send(id, Notice{Kind: NoticePresence, Peers: slices.Clone(views)})
	}
}

func (p *Plaza) reject(peerID string, err error) {
	p.send(peerID, Notice{Kind: NoticeDuelError, Err: err})
}

// send never blocks. A peer whose outbox is full is marked unreachable and
// its outbox closed so the connection winds down.
func (p *Plaza) send(peerID string, n Notice) {
	pr, ok := p.peers[peerID]
	if !ok || pr.unreachable {
		return
	}
	select {
	case pr.outbox <- n:
	default:
		p.log.Info("peer unreachable, closing outbox", zap.String("peer", peerID))
		p.disconnect(pr)
	}
}

func (p *Plaza) disconnect(pr *peer) {
	if pr.unreachable {
		return
	}
	pr.unreachable = true
	close(pr.outbox)
}

func (p *Plaza) shutdown() {
	for id, pr := range p.peers {
		p.disconnect(pr)
		delete(p.peers, id)
	}
	p.cancel()
}
