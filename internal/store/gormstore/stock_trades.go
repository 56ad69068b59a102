package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"gorm.io/gorm"
)

// StockTradeByID returns a non-deleted trade in the user's scope.
func (s *Store) StockTradeByID(ctx context.Context, userID, tradeID int64) (*model.StockTrade, error) {
	var t model.StockTrade
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_deleted = ?", tradeID, userID, false).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateStockTrade inserts a new open position.
func (s *Store) CreateStockTrade(ctx context.Context, t *model.StockTrade) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	return s.db.WithContext(ctx).Create(t).Error
}

// SaveStockTrade persists edits on an existing trade.
func (s *Store) SaveStockTrade(ctx context.Context, t *model.StockTrade) error {
	t.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(t).Error
}

// SaveStockTradePair persists a partial-close split atomically: the shrunk
// still-open original and the new closed slice commit or roll back together.
func (s *Store) SaveStockTradePair(ctx context.Context, remaining, closed *model.StockTrade) error {
	now := time.Now().UTC()
	remaining.UpdatedAt = now
	closed.CreatedAt = now
	closed.UpdatedAt = now
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(remaining).Error; err != nil {
			return err
		}
		return tx.Create(closed).Error
	})
}

// ListStockTrades returns all non-deleted trades of a strategy, newest open
// first.
func (s *Store) ListStockTrades(ctx context.Context, userID, strategyID int64) ([]model.StockTrade, error) {
	var out []model.StockTrade
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND strategy_id = ? AND is_deleted = ?", userID, strategyID, false).
		Order("open_time DESC").
		Find(&out).Error
	return out, err
}

// OpenStockPositions returns the strategy's still-open trades.
func (s *Store) OpenStockPositions(ctx context.Context, userID, strategyID int64) ([]model.StockTrade, error) {
	var out []model.StockTrade
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND strategy_id = ? AND status = ? AND is_deleted = ?",
			userID, strategyID, model.StatusOpen, false).
		Order("open_time DESC").
		Find(&out).Error
	return out, err
}

// StockTradesTouching returns every non-deleted trade of the strategy whose
// open or close lands on/after fromDay, oldest open first. This is the replay
// event source.
func (s *Store) StockTradesTouching(ctx context.Context, strategyID int64, fromDay time.Time) ([]model.StockTrade, error) {
	day := dateutil.DayOf(fromDay)
	var out []model.StockTrade
	err := s.db.WithContext(ctx).
		Where("strategy_id = ? AND is_deleted = ?", strategyID, false).
		Where("open_time >= ? OR (status = ? AND close_time IS NOT NULL AND close_time >= ?)",
			day, model.StatusClosed, day).
		Order("open_time ASC").
		Find(&out).Error
	return out, err
}

// StockPositionsOpenAt reconstructs the open set as of the end of boundaryDay:
// opened on/before it and either still open or closed strictly after it.
func (s *Store) StockPositionsOpenAt(ctx context.Context, strategyID int64, boundaryDay time.Time) ([]model.StockTrade, error) {
	nextDay := dateutil.DayOf(boundaryDay).AddDate(0, 0, 1)
	var out []model.StockTrade
	err := s.db.WithContext(ctx).
		Where("strategy_id = ? AND is_deleted = ? AND open_time < ?", strategyID, false, nextDay).
		Where("status = ? OR close_time IS NULL OR close_time >= ?", model.StatusOpen, nextDay).
		Order("open_time ASC").
		Find(&out).Error
	return out, err
}

// EarliestStockEvent returns the first open or close time recorded for the
// strategy, used when deriving a missing anchor. ok is false for an empty
// ledger.
func (s *Store) EarliestStockEvent(ctx context.Context, strategyID int64) (time.Time, bool, error) {
	var t model.StockTrade
	err := s.db.WithContext(ctx).
		Where("strategy_id = ? AND is_deleted = ?", strategyID, false).
		Order("open_time ASC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	earliest := t.OpenTime
	if t.CloseTime != nil && t.CloseTime.Before(earliest) {
		earliest = *t.CloseTime
	}
	return earliest, true, nil
}

// LatestStockEvent returns the newest open/close/update instant of the
// strategy's live trades. Capital-curve reads compare it against the latest
// snapshot to decide whether a catch-up replay is due.
func (s *Store) LatestStockEvent(ctx context.Context, strategyID int64) (time.Time, bool, error) {
	var t model.StockTrade
	err := s.db.WithContext(ctx).
		Where("strategy_id = ? AND is_deleted = ?", strategyID, false).
		Order("updated_at DESC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	latest := t.OpenTime
	if t.CloseTime != nil && t.CloseTime.After(latest) {
		latest = *t.CloseTime
	}
	if t.UpdatedAt.After(latest) {
		latest = t.UpdatedAt
	}
	return latest, true, nil
}

// SoftDeleteStockTrade flags one trade deleted. The flag is permanent.
func (s *Store) SoftDeleteStockTrade(ctx context.Context, userID, tradeID int64) error {
	res := s.db.WithContext(ctx).Model(&model.StockTrade{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", tradeID, userID, false).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// ClearStockTrades soft-deletes every live trade of the strategy and reports
// how many were flagged.
func (s *Store) ClearStockTrades(ctx context.Context, userID, strategyID int64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.StockTrade{}).
		Where("user_id = ? AND strategy_id = ? AND is_deleted = ?", userID, strategyID, false).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
