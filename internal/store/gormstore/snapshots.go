package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotBefore returns the most recent snapshot strictly before day, or nil.
func (s *Store) SnapshotBefore(ctx context.Context, strategyID int64, day time.Time) (*model.CapitalSnapshot, error) {
	var snap model.CapitalSnapshot
	err := s.db.WithContext(ctx).
		Where("strategy_id = ? AND day < ?", strategyID, dateutil.DayOf(day)).
		Order("day DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// LatestSnapshot returns the newest snapshot of the strategy, or nil.
func (s *Store) LatestSnapshot(ctx context.Context, strategyID int64) (*model.CapitalSnapshot, error) {
	var snap model.CapitalSnapshot
	err := s.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("day DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Snapshots returns the strategy's snapshot series, optionally bounded,
// oldest first.
func (s *Store) Snapshots(ctx context.Context, strategyID int64, from, to *time.Time) ([]model.CapitalSnapshot, error) {
	q := s.db.WithContext(ctx).Where("strategy_id = ?", strategyID)
	if from != nil {
		q = q.Where("day >= ?", dateutil.DayOf(*from))
	}
	if to != nil {
		q = q.Where("day <= ?", dateutil.DayOf(*to))
	}
	var out []model.CapitalSnapshot
	err := q.Order("day ASC").Find(&out).Error
	return out, err
}

// ReplaceSnapshotsFrom makes the persisted rows for days >= fromDay exactly
// equal to computed, in one transaction: every computed day is upserted and
// every stale persisted day in the range is deleted. Replay idempotence
// depends on this being a full diff, not an append.
func (s *Store) ReplaceSnapshotsFrom(ctx context.Context, strategyID int64, fromDay time.Time, computed []model.CapitalSnapshot) error {
	from := dateutil.DayOf(fromDay)
	keep := make(map[string]bool, len(computed))
	for i := range computed {
		computed[i].Day = dateutil.DayOf(computed[i].Day)
		keep[dateutil.FormatDay(computed[i].Day)] = true
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []model.CapitalSnapshot
		if err := tx.Where("strategy_id = ? AND day >= ?", strategyID, from).Find(&existing).Error; err != nil {
			return err
		}
		for _, row := range existing {
			if keep[dateutil.FormatDay(row.Day)] {
				continue
			}
			if err := tx.Delete(&model.CapitalSnapshot{}, "id = ?", row.ID).Error; err != nil {
				return err
			}
		}
		for i := range computed {
			snap := computed[i]
			if snap.CreatedAt.IsZero() {
				snap.CreatedAt = time.Now().UTC()
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "strategy_id"}, {Name: "day"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"available_funds", "position_value", "total_equity",
				}),
			}).Create(&snap).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetSnapshots deletes every snapshot of the strategy except keepDay and
// upserts the anchor row. This is the "clear all trades restores initial
// funding" write path.
func (s *Store) ResetSnapshots(ctx context.Context, anchor model.CapitalSnapshot) error {
	anchor.Day = dateutil.DayOf(anchor.Day)
	if anchor.CreatedAt.IsZero() {
		anchor.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("strategy_id = ? AND day <> ?", anchor.StrategyID, anchor.Day).
			Delete(&model.CapitalSnapshot{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "strategy_id"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"available_funds", "position_value", "total_equity",
			}),
		}).Create(&anchor).Error
	})
}

// DeleteSnapshots removes every snapshot row of the strategy.
func (s *Store) DeleteSnapshots(ctx context.Context, strategyID int64) error {
	return s.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Delete(&model.CapitalSnapshot{}).Error
}
