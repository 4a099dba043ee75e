// Package indexer maintains an off-chain read model of the matrix ledger:
// it consumes the engine event stream and persists rows that dashboards can
// query without replaying ledger state.
package indexer

import (
	"context"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"orphifund/core/events"
)

// Registration is one row per matrix_register call.
type Registration struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint64 `gorm:"index"`
	Address   string `gorm:"index"`
	Sponsor   string
	Placement string
	Tier      uint8
	Amount    string
	Timestamp uint64
}

// Withdrawal is one row per completed withdrawal split.
type Withdrawal struct {
	ID         uint   `gorm:"primaryKey"`
	Address    string `gorm:"index"`
	Paid       string
	Reinvested string
	RateBps    uint64
	Timestamp  uint64
}

// Distribution is one row per pool distribution run.
type Distribution struct {
	ID         uint   `gorm:"primaryKey"`
	Pool       string `gorm:"index"`
	Budget     string
	TotalPaid  string
	Recipients uint64
	Timestamp  uint64
}

// RankChange records leader rank transitions for leaderboard views.
type RankChange struct {
	ID        uint   `gorm:"primaryKey"`
	Address   string `gorm:"index"`
	OldRank   uint8
	NewRank   uint8
	Timestamp uint64
}

// Indexer subscribes to the broadcaster and writes rows to SQLite.
type Indexer struct {
	db     *gorm.DB
	source *events.Broadcaster
	logger *slog.Logger
}

// Open initialises the SQLite database and migrates the row types.
func Open(path string, source *events.Broadcaster, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Registration{}, &Withdrawal{}, &Distribution{}, &RankChange{}); err != nil {
		return nil, err
	}
	return &Indexer{db: db, source: source, logger: logger}, nil
}

// Run consumes events until the context is cancelled. Intended to run in its
// own goroutine; indexing failures are logged and skipped, never fatal.
func (ix *Indexer) Run(ctx context.Context) {
	sub := ix.source.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			ix.apply(evt)
		}
	}
}

func (ix *Indexer) apply(evt events.Event) {
	var err error
	switch e := evt.(type) {
	case events.UserRegistered:
		err = ix.db.Create(&Registration{
			UserID:    e.ID,
			Address:   e.User.Hex(),
			Sponsor:   e.Sponsor.Hex(),
			Placement: e.Placement.Hex(),
			Tier:      e.Tier,
			Amount:    e.Amount.String(),
			Timestamp: e.Timestamp,
		}).Error
	case events.Withdrawal:
		err = ix.db.Create(&Withdrawal{
			Address:    e.User.Hex(),
			Paid:       e.Paid.String(),
			Reinvested: e.Reinvested.String(),
			RateBps:    e.RateBps,
			Timestamp:  e.Timestamp,
		}).Error
	case events.PoolDistributed:
		err = ix.db.Create(&Distribution{
			Pool:       e.Pool,
			Budget:     e.Budget.String(),
			TotalPaid:  e.TotalPaid.String(),
			Recipients: e.Recipients,
			Timestamp:  e.Timestamp,
		}).Error
	case events.LeaderRankChanged:
		err = ix.db.Create(&RankChange{
			Address:   e.User.Hex(),
			OldRank:   e.OldRank,
			NewRank:   e.NewRank,
			Timestamp: e.Timestamp,
		}).Error
	default:
		return
	}
	if err != nil {
		ix.logger.Error("indexer write failed",
			slog.String("event", evt.EventType()), slog.Any("error", err))
	}
}
