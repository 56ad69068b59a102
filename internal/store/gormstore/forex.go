package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ForexAccount returns the user's account, seeding a default one on first
// use. Account creation races are resolved by re-reading after a conflict.
func (s *Store) ForexAccount(ctx context.Context, userID int64) (*model.ForexAccount, error) {
	var acct model.ForexAccount
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	day := dateutil.DayOf(now)
	seed := decimal.NewFromInt(10000)
	acct = model.ForexAccount{
		UserID:         userID,
		Currency:       "USD",
		Leverage:       100,
		InitialBalance: seed,
		InitialDate:    &day,
		Balance:        seed,
		Equity:         seed,
		Margin:         decimal.Zero,
		FreeMargin:     seed,
		MarginLevel:    decimal.Zero,
		MaxDrawdown:    decimal.Zero,
		PeakEquity:     seed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(&acct).Error; err != nil {
		var existing model.ForexAccount
		if err2 := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; err2 == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &acct, nil
}

// SaveForexAccount persists reconciliation outputs or a reset.
func (s *Store) SaveForexAccount(ctx context.Context, acct *model.ForexAccount) error {
	acct.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(acct).Error
}

// ForexTradeByID returns a non-deleted forex trade in the user's scope.
func (s *Store) ForexTradeByID(ctx context.Context, userID, tradeID int64) (*model.ForexTrade, error) {
	var t model.ForexTrade
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

// CreateForexTrade inserts a new open position.
func (s *Store) CreateForexTrade(ctx context.Context, t *model.ForexTrade) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	return s.db.WithContext(ctx).Create(t).Error
}

// SaveForexTrade persists edits on an existing trade.
func (s *Store) SaveForexTrade(ctx context.Context, t *model.ForexTrade) error {
	t.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(t).Error
}

// ListForexTrades returns all non-deleted trades in scope, newest open first.
// strategyID nil means the whole account.
func (s *Store) ListForexTrades(ctx context.Context, userID int64, strategyID *int64) ([]model.ForexTrade, error) {
	q := s.db.WithContext(ctx).Where("user_id = ? AND is_deleted = ?", userID, false)
	if strategyID != nil {
		q = q.Where("strategy_id = ?", *strategyID)
	}
	var out []model.ForexTrade
	err := q.Order("open_time DESC").Find(&out).Error
	return out, err
}

// ClosedForexTrades returns the scope's closed trades ordered by close time,
// the exact walk order the reconciliation engine needs.
func (s *Store) ClosedForexTrades(ctx context.Context, userID int64, strategyID *int64) ([]model.ForexTrade, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ? AND status = ? AND close_time IS NOT NULL",
			userID, false, model.StatusClosed)
	if strategyID != nil {
		q = q.Where("strategy_id = ?", *strategyID)
	}
	var out []model.ForexTrade
	err := q.Order("close_time ASC").Find(&out).Error
	return out, err
}

// OpenForexPositions returns the scope's still-open positions.
func (s *Store) OpenForexPositions(ctx context.Context, userID int64, strategyID *int64) ([]model.ForexTrade, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ? AND status = ?", userID, false, model.StatusOpen)
	if strategyID != nil {
		q = q.Where("strategy_id = ?", *strategyID)
	}
	var out []model.ForexTrade
	err := q.Order("open_time ASC").Find(&out).Error
	return out, err
}

// SoftDeleteForexTrade flags one trade deleted.
func (s *Store) SoftDeleteForexTrade(ctx context.Context, userID, tradeID int64) error {
	res := s.db.WithContext(ctx).Model(&model.ForexTrade{}).
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

// ClearForexTrades soft-deletes every live trade in scope.
func (s *Store) ClearForexTrades(ctx context.Context, userID int64, strategyID *int64) (int64, error) {
	q := s.db.WithContext(ctx).Model(&model.ForexTrade{}).
		Where("user_id = ? AND is_deleted = ?", userID, false)
	if strategyID != nil {
		q = q.Where("strategy_id = ?", *strategyID)
	}
	res := q.Updates(map[string]interface{}{"is_deleted": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
