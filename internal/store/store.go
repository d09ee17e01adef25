package store

import (
	"context"
	"errors"
)

var ErrInvalidAmount = errors.New("award amount must be positive")
var ErrNoUser = errors.New("missing user id")

// Deck is a user's saved battle deck.
type Deck struct {
	LeaderIDs []string `json:"leader_ids"`
	UnitIDs   []string `json:"unit_ids"`
}

// Collection lists the leaders and units a user owns.
type Collection struct {
	LeaderIDs []string `json:"leader_ids"`
	UnitIDs   []string `json:"unit_ids"`
}

// Store is the Collection Store. GetDeck and GetOwnedCollection return
// (nil, nil) when the user has nothing saved.
type Store interface {
	GetDeck(ctx context.Context, userID string) (*Deck, error)
	GetOwnedCollection(ctx context.Context, userID string) (*Collection, error)
	AwardCurrency(ctx context.Context, userID string, amount int) error
}

// Pinger is implemented by stores backed by a remote database.
type Pinger interface {
	Ping(ctx context.Context) error
}
