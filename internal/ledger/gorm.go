package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/teamdraft/auctiond/internal/model"
)

// GormLedger implements Ledger on Postgres through gorm.
type GormLedger struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the ledger tables.
func Open(dsn string) (*GormLedger, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, model.WrapError(model.KindStoreUnavailable, "connect ledger", err)
	}
	if err := db.AutoMigrate(&model.Auction{}, &model.AuctionPlayer{}, &model.TeamBudget{}); err != nil {
		return nil, model.WrapError(model.KindStoreUnavailable, "migrate ledger", err)
	}
	return &GormLedger{db: db}, nil
}

// NewGormLedger wraps an existing gorm connection.
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// GetAuction loads one auction.
func (l *GormLedger) GetAuction(ctx context.Context, auctionID string) (*model.Auction, error) {
	var auction model.Auction
	err := l.db.WithContext(ctx).Where("id = ?", auctionID).First(&auction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.NewError(model.KindNotFound, "auction not found")
	}
	if err != nil {
		return nil, model.WrapError(model.KindStoreUnavailable, "load auction", err)
	}
	return &auction, nil
}

// SetAuctionStatus applies one admin-driven status transition, rejecting
// invalid moves and lost races on the current status.
func (l *GormLedger) SetAuctionStatus(ctx context.Context, auctionID string, to model.AuctionStatus) error {
	auction, err := l.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if !model.ValidAuctionTransition(auction.Status, to) {
		return model.NewError(model.KindInvalidRequest,
			"invalid auction transition "+string(auction.Status)+" -> "+string(to))
	}

	res := l.db.WithContext(ctx).Model(&model.Auction{}).
		Where("id = ? AND status = ?", auctionID, auction.Status).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return model.WrapError(model.KindStoreUnavailable, "update auction status", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NewError(model.KindInvalidRequest, "auction status changed concurrently")
	}
	return nil
}

// GetPlayer loads one auction player.
func (l *GormLedger) GetPlayer(ctx context.Context, auctionID, playerID string) (*model.AuctionPlayer, error) {
	var player model.AuctionPlayer
	err := l.db.WithContext(ctx).
		Where("auction_id = ? AND player_id = ?", auctionID, playerID).
		First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.NewError(model.KindNotFound, "player not found in auction")
	}
	if err != nil {
		return nil, model.WrapError(model.KindStoreUnavailable, "load player", err)
	}
	return &player, nil
}

// GetTeamBudget loads one team's remaining budget.
func (l *GormLedger) GetTeamBudget(ctx context.Context, auctionID, teamID string) (*model.TeamBudget, error) {
	var budget model.TeamBudget
	err := l.db.WithContext(ctx).
		Where("auction_id = ? AND team_id = ?", auctionID, teamID).
		First(&budget).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.NewError(model.KindNotFound, "team not in auction")
	}
	if err != nil {
		return nil, model.WrapError(model.KindStoreUnavailable, "load team budget", err)
	}
	return &budget, nil
}

// FinalizeSale commits the sale in one transaction. The conditional
// status guard carries the no-double-sale invariant; the conditional
// budget guard carries non-negativity.
func (l *GormLedger) FinalizeSale(ctx context.Context, auctionID, playerID, teamID string, amount int64) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AuctionPlayer{}).
			Where("auction_id = ? AND player_id = ? AND status = ?", auctionID, playerID, model.PlayerAvailable).
			Updates(map[string]interface{}{
				"status":     model.PlayerSold,
				"sold_to":    teamID,
				"sold_price": amount,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return model.WrapError(model.KindStoreUnavailable, "mark player sold", res.Error)
		}
		if res.RowsAffected == 0 {
			return l.classifyFinalized(tx, auctionID, playerID)
		}

		res = tx.Model(&model.TeamBudget{}).
			Where("auction_id = ? AND team_id = ? AND remaining_budget >= ?", auctionID, teamID, amount).
			Updates(map[string]interface{}{
				"remaining_budget": gorm.Expr("remaining_budget - ?", amount),
				"updated_at":       time.Now(),
			})
		if res.Error != nil {
			return model.WrapError(model.KindStoreUnavailable, "deduct budget", res.Error)
		}
		if res.RowsAffected == 0 {
			// Either the team is unknown or the budget cannot cover
			// the sale; both roll the status change back.
			var budget model.TeamBudget
			err := tx.Where("auction_id = ? AND team_id = ?", auctionID, teamID).First(&budget).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.NewError(model.KindNotFound, "team not in auction")
			}
			return model.NewError(model.KindInsufficientBudget, "sale exceeds remaining budget")
		}
		return nil
	})
}

// MarkUnsold closes an available player's window without a sale.
func (l *GormLedger) MarkUnsold(ctx context.Context, auctionID, playerID string) error {
	res := l.db.WithContext(ctx).Model(&model.AuctionPlayer{}).
		Where("auction_id = ? AND player_id = ? AND status = ?", auctionID, playerID, model.PlayerAvailable).
		Updates(map[string]interface{}{
			"status":     model.PlayerUnsold,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return model.WrapError(model.KindStoreUnavailable, "mark player unsold", res.Error)
	}
	if res.RowsAffected == 0 {
		return l.classifyFinalized(l.db.WithContext(ctx), auctionID, playerID)
	}
	return nil
}

// classifyFinalized turns a failed conditional update into the precise
// error kind the admin sees.
func (l *GormLedger) classifyFinalized(tx *gorm.DB, auctionID, playerID string) error {
	var player model.AuctionPlayer
	err := tx.Where("auction_id = ? AND player_id = ?", auctionID, playerID).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewError(model.KindNotFound, "player not found in auction")
	}
	if err != nil {
		return model.WrapError(model.KindStoreUnavailable, "load player", err)
	}
	switch player.Status {
	case model.PlayerSold:
		return model.NewError(model.KindAlreadySold, "player already sold")
	case model.PlayerUnsold:
		return model.NewError(model.KindAlreadyUnsold, "player already unsold")
	}
	return model.NewError(model.KindInvalidRequest, "player not available")
}
