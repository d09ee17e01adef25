package store

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Store used in development and tests.
type Memory struct {
	mu       sync.RWMutex
	decks    map[string]Deck
	owned    map[string]Collection
	balances map[string]int64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		decks:    make(map[string]Deck),
		owned:    make(map[string]Collection),
		balances: make(map[string]int64),
	}
}

func (m *Memory) PutDeck(userID string, d Deck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decks[userID] = Deck{
		LeaderIDs: slices.Clone(d.LeaderIDs),
		UnitIDs:   slices.Clone(d.UnitIDs),
	}
}

// Grant adds leaders and units to a user's collection, skipping ones already owned.
func (m *Memory) Grant(userID string, leaderIDs, unitIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.owned[userID]
	for _, id := range leaderIDs {
		if !slices.Contains(c.LeaderIDs, id) {
			c.LeaderIDs = append(c.LeaderIDs, id)
		}
	}
	for _, id := range unitIDs {
		if !slices.Contains(c.UnitIDs, id) {
			c.UnitIDs = append(c.UnitIDs, id)
		}
	}
	m.owned[userID] = c
}

func (m *Memory) Balance(userID string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[userID]
}

func (m *Memory) GetDeck(ctx context.Context, userID string) (*Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decks[userID]
	if !ok {
		return nil, nil
	}
	return &Deck{LeaderIDs: slices.Clone(d.LeaderIDs), UnitIDs: slices.Clone(d.UnitIDs)}, nil
}

func (m *Memory) GetOwnedCollection(ctx context.Context, userID string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.owned[userID]
	if !ok {
		return nil, nil
	}
	return &Collection{LeaderIDs: slices.Clone(c.LeaderIDs), UnitIDs: slices.Clone(c.UnitIDs)}, nil
}

func (m *Memory) AwardCurrency(ctx context.Context, userID string, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" {
		return ErrNoUser
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	m.balances[userID] += int64(amount)
	m.mu.Unlock()
	return nil
}
