package plaza

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/card-duel-backend/internal/pending"
	"github.com/DoyleJ11/card-duel-backend/internal/store"
)

type fakeBattles struct {
	mu      sync.Mutex
	created []string
	invited [][2]string
	dead    map[string]bool
	fail    bool
}

func (f *fakeBattles) NewBattle(_ context.Context, userA, userB string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("hub closed")
	}
	f.invited = append(f.invited, [2]string{userA, userB})
	id := fmt.Sprintf("battle-%d", len(f.created)+1)
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeBattles) Live(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.dead[id]
}

func (f *fakeBattles) kill(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead == nil {
		f.dead = map[string]bool{}
	}
	f.dead[id] = true
}

func (f *fakeBattles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	plaza   *Plaza
	battles *fakeBattles
	store   *store.Memory
	clock   *fakeClock
	reg     *pending.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Unix(0, 0)}
	reg := pending.New(15*time.Second, clock.Now)
	mem := store.NewMemory()
	ready := store.Deck{LeaderIDs: []string{"warlord_kael"}, UnitIDs: []string{"fire_drake"}}
	mem.PutDeck("alice", ready)
	mem.PutDeck("bob", ready)
	battles := &fakeBattles{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p := New(ctx, Deps{Registry: reg, Battles: battles, Store: mem, Range: 5, StoreTimeout: time.Second})
	return &fixture{plaza: p, battles: battles, store: mem, clock: clock, reg: reg}
}

// join adds a peer and drains its welcome notice.
func (f *fixture) join(t *testing.T, id, userID string, pos Position) chan Notice {
	t.Helper()
	out := make(chan Notice, 64)
	f.plaza.Inbox() <- Join{PeerID: id, UserID: userID, Outbox: out}
	n := recvNotice(t, out, NoticeWelcome)
	require.Equal(t, id, n.PeerID)
	f.plaza.Inbox() <- Move{PeerID: id, Position: pos}
	f.view(t)
	return out
}

func (f *fixture) view(t *testing.T) View {
	t.Helper()
	reply := make(chan View, 1)
	f.plaza.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

// recvNotice skips presence updates until a notice of kind arrives.
func recvNotice(t *testing.T, ch <-chan Notice, kind NoticeKind) Notice {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", kind)
			}
			if n.Kind == kind {
				return n
			}
			if n.Kind != NoticePresence {
				t.Fatalf("expected %s, got %+v", kind, n)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
			return Notice{}
		}
	}
}

// recvNoDuelNotice fails on any non-presence notice.
func recvNoDuelNotice(t *testing.T, ch <-chan Notice) {
	t.Helper()
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			if n.Kind != NoticePresence {
				t.Fatalf("unexpected notice %+v", n)
			}
		default:
			return
		}
	}
}

func TestPosition_Distance(t *testing.T) {
	a := Position{X: 1, Y: 2, Z: 3, Rotation: 90}
	b := Position{X: 4, Y: 6, Z: 3}
	assert.InDelta(t, 5.0, a.Distance(b), 1e-9)
}

func TestChallenge_OutOfRangeCreatesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	b := f.join(t, "pb", "bob", Position{X: 6})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	n := recvNotice(t, a, NoticeDuelError)
	assert.ErrorIs(t, n.Err, ErrOutOfRange)

	v := f.view(t)
	assert.Equal(t, 0, v.Pending)
	assert.Equal(t, 0, f.battles.count())
	recvNoDuelNotice(t, b)
}

func TestChallenge_AtThresholdStartsDuel(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	b := f.join(t, "pb", "bob", Position{Z: 5})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	na := recvNotice(t, a, NoticeDuelStart)
	nb := recvNotice(t, b, NoticeDuelStart)
	assert.Equal(t, "battle-1", na.SessionID)
	assert.Equal(t, na.SessionID, nb.SessionID)

	require.Len(t, f.battles.invited, 1)
	assert.Equal(t, [2]string{"alice", "bob"}, f.battles.invited[0])

	d, ok := f.reg.Get(pending.Pair("pa", "pb"))
	require.True(t, ok)
	assert.Equal(t, "battle-1", d.SessionID)
	assert.Empty(t, d.Acks)
}

func TestChallenge_DuplicateIsReplayed(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	b := f.join(t, "pb", "bob", Position{X: 1})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	f.plaza.Inbox() <- Challenge{PeerID: "pb", TargetID: "pa"}

	first := recvNotice(t, a, NoticeDuelStart)
	second := recvNotice(t, a, NoticeDuelStart)
	assert.Equal(t, first.SessionID, second.SessionID)
	recvNotice(t, b, NoticeDuelStart)
	recvNotice(t, b, NoticeDuelStart)

	assert.Equal(t, 1, f.battles.count())
	assert.Equal(t, 1, f.view(t).Pending)
}

func TestChallenge_Preconditions(t *testing.T) {
	cases := []struct {
		name       string
		setup      func(f *fixture)
		targetID   string
		bobUser    string
		want       error
		targetSees bool
	}{
		{name: "unknown target", targetID: "ghost", bobUser: "bob", want: ErrTargetNotFound},
		{name: "self", targetID: "pa", bobUser: "bob", want: ErrSelfChallenge},
		{name: "anonymous target", targetID: "pb", bobUser: "", want: ErrNotLinked},
		{name: "same identity on two connections", targetID: "pb", bobUser: "alice", want: ErrSelfChallenge},
		{
			name:     "missing deck",
			targetID: "pb",
			bobUser:  "bob",
			setup: func(f *fixture) {
				f.store.PutDeck("bob", store.Deck{LeaderIDs: []string{"a", "b"}, UnitIDs: []string{"u"}})
			},
			want:       ErrDeckNotReady,
			targetSees: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			a := f.join(t, "pa", "alice", Position{})
			b := f.join(t, "pb", tc.bobUser, Position{X: 1})

			f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: tc.targetID}
			n := recvNotice(t, a, NoticeDuelError)
			assert.ErrorIs(t, n.Err, tc.want)

			f.view(t)
			if tc.targetSees {
				nb := recvNotice(t, b, NoticeDuelError)
				assert.ErrorIs(t, nb.Err, tc.want)
			} else {
				recvNoDuelNotice(t, b)
			}
			assert.Equal(t, 0, f.battles.count())
		})
	}
}

func TestChallenge_UnreachableTarget(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})

	// welcome + presence fill the target's outbox; the next presence overflows it
	slow := make(chan Notice, 2)
	f.plaza.Inbox() <- Join{PeerID: "pb", UserID: "bob", Outbox: slow}
	f.plaza.Inbox() <- Move{PeerID: "pb", Position: Position{X: 1}}
	f.view(t)

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	n := recvNotice(t, a, NoticeDuelError)
	assert.ErrorIs(t, n.Err, ErrTargetUnreachable)
	assert.Equal(t, 0, f.battles.count())
}

func TestChallenge_BattleCreationFailure(t *testing.T) {
	f := newFixture(t)
	f.battles.fail = true
	a := f.join(t, "pa", "alice", Position{})
	f.join(t, "pb", "bob", Position{X: 1})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	n := recvNotice(t, a, NoticeDuelError)
	assert.ErrorIs(t, n.Err, ErrBattleUnavailable)
	assert.Equal(t, 0, f.view(t).Pending)
}

func TestHandshake_BothAcksComplete(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	f.join(t, "pb", "bob", Position{X: 1})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	id := recvNotice(t, a, NoticeDuelStart).SessionID

	f.plaza.Inbox() <- Joined{PeerID: "pa", SessionID: id}
	assert.Equal(t, 1, f.view(t).Pending)
	f.plaza.Inbox() <- Joined{PeerID: "pb", SessionID: id}
	assert.Equal(t, 0, f.view(t).Pending)
}

func TestHandshake_JoinFailedDropsAndNotifiesBoth(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	b := f.join(t, "pb", "bob", Position{X: 1})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	id := recvNotice(t, a, NoticeDuelStart).SessionID
	recvNotice(t, b, NoticeDuelStart)

	f.plaza.Inbox() <- Joined{PeerID: "pa", SessionID: id}
	f.plaza.Inbox() <- JoinFailed{PeerID: "pb", SessionID: id}

	assert.ErrorIs(t, recvNotice(t, a, NoticeDuelError).Err, ErrJoinFailed)
	assert.ErrorIs(t, recvNotice(t, b, NoticeDuelError).Err, ErrJoinFailed)
	assert.Equal(t, 0, f.view(t).Pending)
}

func TestPending_ExpiresAndIsReplaced(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	f.join(t, "pb", "bob", Position{X: 1})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	first := recvNotice(t, a, NoticeDuelStart).SessionID

	f.clock.Advance(16 * time.Second)
	f.plaza.Inbox() <- Move{PeerID: "pa", Position: Position{Y: 1}}
	assert.Equal(t, 0, f.view(t).Pending, "move sweeps expired entries")

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	second := recvNotice(t, a, NoticeDuelStart).SessionID
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, f.battles.count())
}

func TestPending_DeadSessionIsReplaced(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	f.join(t, "pb", "bob", Position{X: 1})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	first := recvNotice(t, a, NoticeDuelStart).SessionID
	f.battles.kill(first)

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	second := recvNotice(t, a, NoticeDuelStart).SessionID
	assert.NotEqual(t, first, second)

	_, ok := f.reg.BySession(first)
	assert.False(t, ok)
}

func TestLeave_DropsPendingAndUpdatesPresence(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	b := f.join(t, "pb", "bob", Position{X: 1})

	f.plaza.Inbox() <- Challenge{PeerID: "pa", TargetID: "pb"}
	recvNotice(t, a, NoticeDuelStart)

	f.plaza.Inbox() <- Leave{PeerID: "pb"}
	v := f.view(t)
	assert.Equal(t, 0, v.Pending)
	require.Len(t, v.Peers, 1)
	assert.Equal(t, "pa", v.Peers[0].ID)

	for range b {
		// drained until closed
	}

	var last Notice
	for {
		select {
		case n := <-a:
			if n.Kind == NoticePresence {
				last = n
			}
			continue
		default:
		}
		break
	}
	require.Len(t, last.Peers, 1)
	assert.Equal(t, "pa", last.Peers[0].ID)
}

func TestPresence_ReportsPositions(t *testing.T) {
	f := newFixture(t)
	f.join(t, "pb", "", Position{})
	a := f.join(t, "pa", "alice", Position{X: 2, Y: 3, Z: 4, Rotation: 45})

	v := f.view(t)
	require.Len(t, v.Peers, 2)
	assert.Equal(t, "pa", v.Peers[0].ID)
	assert.Equal(t, Position{X: 2, Y: 3, Z: 4, Rotation: 45}, v.Peers[0].Position)
	assert.True(t, v.Peers[0].Linked)
	assert.False(t, v.Peers[1].Linked)

	n := recvNotice(t, a, NoticePresence)
	assert.Len(t, n.Peers, 2)
}

func TestShutdown_ClosesOutboxes(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "pa", "alice", Position{})
	f.plaza.Inbox() <- Shutdown{}
	<-f.plaza.Done()
	for range a {
	}
	assert.False(t, f.plaza.Send(Leave{PeerID: "pa"}))
}
