// Package replay rebuilds a stock strategy's capital curve from its trade
// ledger. The curve is derived state: every run recomputes the affected date
// range from the anchor (or a resume point) and rewrites the snapshot rows to
// exactly match, so replay is idempotent and self-healing.
package replay

import (
	"context"
	"sort"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/ledger/fees"
	"github.com/apple-taste/trade-view/internal/logger"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/gormstore"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/shopspring/decimal"
)

type Engine struct {
	store          *gormstore.Store
	fees           *fees.Registry
	defaultCapital decimal.Decimal
}

func NewEngine(store *gormstore.Store, reg *fees.Registry, defaultCapital decimal.Decimal) *Engine {
	return &Engine{store: store, fees: reg, defaultCapital: defaultCapital}
}

// Replay recomputes the snapshot series of one strategy. startDay == nil
// replays from the anchor; a later startDay resumes from the last snapshot
// before it. Passing a startDay is purely an optimization, the result is the
// same either way.
func (e *Engine) Replay(ctx context.Context, userID, strategyID int64, startDay *time.Time) error {
	st, err := e.store.StrategyByID(ctx, userID, strategyID)
	if err != nil {
		return err
	}
	anchorCap, anchorDay, err := e.resolveAnchor(ctx, st)
	if err != nil {
		return err
	}

	// 确定有效起点: 从锚点之后恢复时带入上一快照
	effStart := anchorDay
	funds := anchorCap
	var carryOpen []model.StockTrade
	if startDay != nil && dateutil.DayOf(*startDay).After(anchorDay) {
		snap, err := e.store.SnapshotBefore(ctx, strategyID, *startDay)
		if err != nil {
			return err
		}
		if snap != nil {
			effStart = dateutil.DayOf(*startDay)
			funds = snap.AvailableFunds
			carryOpen, err = e.store.StockPositionsOpenAt(ctx, strategyID, snap.Day)
			if err != nil {
				return err
			}
		}
	}

	trades, err := e.store.StockTradesTouching(ctx, strategyID, effStart)
	if err != nil {
		return err
	}
	events := buildEvents(trades, effStart)

	if len(events) == 0 {
		if effStart.Equal(anchorDay) {
			// 整个账本为空, 资金曲线收敛为初始入金
			return e.store.ResetSnapshots(ctx, model.CapitalSnapshot{
				UserID:         userID,
				StrategyID:     strategyID,
				Day:            anchorDay,
				AvailableFunds: anchorCap,
				PositionValue:  decimal.Zero,
				TotalEquity:    anchorCap,
			})
		}
		// 起点之后没有任何事件, 清掉该区间的陈旧快照
		return e.store.ReplaceSnapshotsFrom(ctx, strategyID, effStart, nil)
	}

	open := make(map[int64]*model.StockTrade, len(carryOpen))
	posValue := decimal.Zero
	for i := range carryOpen {
		t := &carryOpen[i]
		open[t.ID] = t
		posValue = posValue.Add(t.EntryPrice.Mul(decimal.NewFromInt(t.Shares)))
	}

	byDay := map[string]model.CapitalSnapshot{}
	record := func(day time.Time, funds, pos decimal.Decimal) {
		byDay[dateutil.FormatDay(day)] = model.CapitalSnapshot{
			UserID:         userID,
			StrategyID:     strategyID,
			Day:            dateutil.DayOf(day),
			AvailableFunds: funds,
			PositionValue:  pos,
			TotalEquity:    funds.Add(pos),
		}
	}
	if effStart.Equal(anchorDay) {
		// 锚点当日的兜底记录, 同日事件会覆盖它
		record(anchorDay, anchorCap, decimal.Zero)
	}

	for _, ev := range events {
		t := ev.trade
		size := decimal.NewFromInt(t.Shares)
		cost := t.EntryPrice.Mul(size)

		switch ev.kind {
		case eventOpen:
			funds = funds.Sub(cost).Sub(t.EntryFee)
			open[t.ID] = t
			posValue = posValue.Add(cost)
		case eventClose:
			if t.ProfitLoss.Valid {
				// 已有盈亏时直接还原卖出所得, 不再重新推导卖出费用
				funds = funds.Add(cost).Add(t.EntryFee).Add(t.ProfitLoss.Decimal)
			} else {
				proceeds := t.ExitPrice.Decimal.Mul(size)
				funds = funds.Add(proceeds).Sub(e.sellFee(t))
			}
			if _, ok := open[t.ID]; ok {
				delete(open, t.ID)
				posValue = posValue.Sub(cost)
			}
		}
		record(ev.at, funds, posValue)
	}

	computed := make([]model.CapitalSnapshot, 0, len(byDay))
	for _, snap := range byDay {
		computed = append(computed, snap)
	}
	sort.Slice(computed, func(i, j int) bool { return computed[i].Day.Before(computed[j].Day) })

	return e.store.ReplaceSnapshotsFrom(ctx, strategyID, effStart, computed)
}

// resolveAnchor returns the strategy's (capital, day) anchor, deriving and
// persisting one on first use: the user-level anchor if set, else the earliest
// trade event, else today.
func (e *Engine) resolveAnchor(ctx context.Context, st *model.Strategy) (decimal.Decimal, time.Time, error) {
	if st.InitialCapital.Valid && st.InitialDate != nil {
		return st.InitialCapital.Decimal, dateutil.DayOf(*st.InitialDate), nil
	}

	u, err := e.store.User(ctx, st.UserID)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	capital := e.defaultCapital
	if st.InitialCapital.Valid {
		capital = st.InitialCapital.Decimal
	} else if u.InitialCapital.Valid {
		capital = u.InitialCapital.Decimal
	}

	var day time.Time
	if st.InitialDate != nil {
		day = dateutil.DayOf(*st.InitialDate)
	} else {
		earliest, ok, err := e.store.EarliestStockEvent(ctx, st.ID)
		if err != nil {
			return decimal.Zero, time.Time{}, err
		}
		switch {
		case u.InitialCapitalDate != nil && ok:
			day = dateutil.MinDay(*u.InitialCapitalDate, earliest)
		case u.InitialCapitalDate != nil:
			day = dateutil.DayOf(*u.InitialCapitalDate)
		case ok:
			day = dateutil.DayOf(earliest)
		default:
			day = dateutil.DayOf(time.Now())
		}
	}

	if err := e.store.SetStrategyAnchor(ctx, st.ID, capital, day); err != nil {
		return decimal.Zero, time.Time{}, err
	}
	st.InitialCapital = decimal.NewNullDecimal(capital)
	st.InitialDate = &day
	logger.Infof("strategy %d anchor derived: %s @ %s", st.ID, capital, dateutil.FormatDay(day))
	return capital, day, nil
}

// sellFee prefers the fee recorded on the trade and falls back to the
// schedule.
func (e *Engine) sellFee(t *model.StockTrade) decimal.Decimal {
	if !t.ExitFee.IsZero() {
		return t.ExitFee
	}
	fee, err := e.fees.Calculator().SellFee(t.ExitPrice.Decimal, t.Shares, t.Code)
	if err != nil {
		if !ledger.IsValidation(err) {
			logger.Warnf("sell fee for trade %d: %v", t.ID, err)
		}
		return decimal.Zero
	}
	return fee
}
