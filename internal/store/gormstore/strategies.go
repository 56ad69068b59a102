package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User returns the journal owner's row, creating a bare one on first use.
func (s *Store) User(ctx context.Context, userID int64) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = model.User{ID: userID, Username: "journal", CreatedAt: time.Now().UTC()}
		if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
			return nil, err
		}
		return &u, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser persists anchor changes on the user row.
func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}

// StrategyByID returns the strategy in the user's scope.
func (s *Store) StrategyByID(ctx context.Context, userID, strategyID int64) (*model.Strategy, error) {
	var st model.Strategy
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", strategyID, userID).
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// DefaultStrategy returns the user's first strategy for market, creating one
// when none exists yet. Its anchor starts empty and is derived on first
// replay.
func (s *Store) DefaultStrategy(ctx context.Context, userID int64, market string) (*model.Strategy, error) {
	var st model.Strategy
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND market = ?", userID, market).
		Order("id ASC").
		First(&st).Error
	if err == nil {
		return &st, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	st = model.Strategy{
		UserID:    userID,
		Name:      "默认策略",
		UID:       uuid.NewString(),
		Market:    market,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateStrategy adds a named sub-ledger with an optional anchor.
func (s *Store) CreateStrategy(ctx context.Context, st *model.Strategy) error {
	if st.UID == "" {
		st.UID = uuid.NewString()
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	return s.db.WithContext(ctx).Create(st).Error
}

// SaveStrategy persists anchor or naming changes.
func (s *Store) SaveStrategy(ctx context.Context, st *model.Strategy) error {
	st.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(st).Error
}

// ListStrategies returns all of the user's strategies for one market.
func (s *Store) ListStrategies(ctx context.Context, userID int64, market string) ([]model.Strategy, error) {
	var out []model.Strategy
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if market != "" {
		q = q.Where("market = ?", market)
	}
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SetStrategyAnchor rewrites the strategy anchor in place.
func (s *Store) SetStrategyAnchor(ctx context.Context, strategyID int64, capital decimal.Decimal, day time.Time) error {
	d := dateutil.DayOf(day)
	return s.db.WithContext(ctx).Model(&model.Strategy{}).
		Where("id = ?", strategyID).
		Updates(map[string]interface{}{
			"initial_capital": capital,
			"initial_date":    d,
			"updated_at":      time.Now().UTC(),
		}).Error
}
