// Package gormstore implements the Collection Store on PostgreSQL.
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/card-duel-backend/internal/store"
)

type Store struct {
	pool  *pgxpool.Pool
	sqlDB *sql.DB
	db    *gorm.DB
	log   *zap.Logger
}

var _ store.Store = (*Store)(nil)
var _ store.Pinger = (*Store)(nil)

// Open connects a pgx pool, hands it to gorm and migrates the schema.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		pool.Close()
		return nil, multierr.Append(fmt.Errorf("open gorm: %w", err), sqlDB.Close())
	}

	s := &Store{pool: pool, sqlDB: sqlDB, db: db, log: log.Named("gormstore")}
	if err := s.migrate(ctx); err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&DeckRecord{}, &OwnedCard{}, &Wallet{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	err := s.sqlDB.Close()
	s.pool.Close()
	return err
}

func (s *Store) GetDeck(ctx context.Context, userID string) (*store.Deck, error) {
	var rec DeckRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deck %s: %w", userID, err)
	}
	return &store.Deck{LeaderIDs: []string(rec.LeaderIDs), UnitIDs: []string(rec.UnitIDs)}, nil
}

func (s *Store) GetOwnedCollection(ctx context.Context, userID string) (*store.Collection, error) {
	var cards []OwnedCard
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", userID, err)
	}
	if len(cards) == 0 {
		return nil, nil
	}
	c := &store.Collection{}
	for _, card := range cards {
		switch card.Kind {
		case KindLeader:
			c.LeaderIDs = append(c.LeaderIDs, card.CardID)
		case KindUnit:
			c.UnitIDs = append(c.UnitIDs, card.CardID)
		default:
			s.log.Warn("unknown card kind", zap.String("user", userID), zap.String("kind", string(card.Kind)))
		}
	}
	return c, nil
}

// AwardCurrency adds amount to the user's wallet, creating it on first award.
func (s *Store) AwardCurrency(ctx context.Context, userID string, amount int) error {
	if userID == "" {
		return store.ErrNoUser
	}
	if amount <= 0 {
		return store.ErrInvalidAmount
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("wallets.balance + ?", amount),
			"updated_at": time.Now(),
		}),
	}).Create(&Wallet{UserID: userID, Balance: int64(amount)}).Error
	if err != nil {
		return fmt.Errorf("award %d to %s: %w", amount, userID, err)
	}
	return nil
}

func (s *Store) PutDeck(ctx context.Context, userID string, d store.Deck) error {
	rec := DeckRecord{
		UserID:    userID,
		LeaderIDs: datatypes.NewJSONSlice(d.LeaderIDs),
		UnitIDs:   datatypes.NewJSONSlice(d.UnitIDs),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"leader_ids", "unit_ids", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put deck %s: %w", userID, err)
	}
	return nil
}

// Grant records ownership, ignoring cards the user already has.
func (s *Store) Grant(ctx context.Context, userID string, kind CardKind, cardIDs ...string) error {
	if len(cardIDs) == 0 {
		return nil
	}
	cards := make([]OwnedCard, 0, len(cardIDs))
	for _, id := range cardIDs {
		cards = append(cards, OwnedCard{UserID: userID, Kind: kind, CardID: id})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&cards).Error
	if err != nil {
		return fmt.Errorf("grant %s to %s: %w", kind, userID, err)
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	var w Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", userID, err)
	}
	return w.Balance, nil
}
