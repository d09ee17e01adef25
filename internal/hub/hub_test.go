package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/card-duel-backend/internal/catalog"
	"github.com/DoyleJ11/card-duel-backend/internal/engine"
	"github.com/DoyleJ11/card-duel-backend/internal/session"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, session.Deps{Catalog: cat, StoreTimeout: time.Second})
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	s1, err := h.Create(ctx)
	require.NoError(t, err)
	s2 := h.Get(ctx, s1.ID())

	if s1 == nil || s2 == nil || s1 != s2 {
		t.Fatalf("expected same session pointer")
	}
	assert.True(t, h.Live(ctx, s1.ID()))
	assert.Equal(t, 1, h.Count(ctx))
}

func TestHub_CreateAssignsDistinctIDs(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	a, err := h.Create(ctx)
	require.NoError(t, err)
	b, err := h.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, h.Count(ctx))
}

func TestHub_UnknownSession(t *testing.T) {
	h := newTestHub(t)
	assert.Nil(t, h.Get(context.Background(), "nope"))
	assert.False(t, h.Live(context.Background(), "nope"))
}

func TestHub_ClosedSessionIsForgotten(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	s, err := h.Create(ctx)
	require.NoError(t, err)
	s.Send(session.Shutdown{})
	<-s.Done()

	require.Eventually(t, func() bool {
		return h.Get(ctx, s.ID()) == nil
	}, time.Second, 10*time.Millisecond)
	assert.False(t, h.Live(ctx, s.ID()))
}

func TestHub_ShutdownStopsSessions(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	s, err := h.Create(ctx)
	require.NoError(t, err)
	h.Inbox() <- ShutdownHub{}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("session still running after hub shutdown")
	}
	<-h.Done()

	_, err = h.Create(ctx)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_NewBattleReturnsLiveID(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	id, err := h.NewBattle(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, h.Live(ctx, id))

	s := h.Get(ctx, id)
	require.NotNil(t, s)
	out := make(chan session.Update, 2)
	s.Inbox() <- session.Join{ClientID: "cc", UserID: "carol", Outbox: out}
	u := <-out
	assert.ErrorIs(t, u.Err, engine.ErrNotInvited)
}
