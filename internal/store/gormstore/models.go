package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

type CardKind string

const (
	KindLeader CardKind = "leader"
	KindUnit   CardKind = "unit"
)

type DeckRecord struct {
	UserID    string                      `gorm:"primaryKey"`
	LeaderIDs datatypes.JSONSlice[string] `gorm:"not null"`
	UnitIDs   datatypes.JSONSlice[string] `gorm:"not null"`
	UpdatedAt time.Time
}

func (DeckRecord) TableName() string { return "decks" }

type OwnedCard struct {
	ID        uint     `gorm:"primaryKey"`
	UserID    string   `gorm:"not null;uniqueIndex:idx_owned_card"`
	Kind      CardKind `gorm:"not null;uniqueIndex:idx_owned_card"`
	CardID    string   `gorm:"not null;uniqueIndex:idx_owned_card"`
	CreatedAt time.Time
}

func (OwnedCard) TableName() string { return "owned_cards" }

type Wallet struct {
	UserID    string `gorm:"primaryKey"`
	Balance   int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (Wallet) TableName() string { return "wallets" }
