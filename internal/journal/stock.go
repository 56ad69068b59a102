package journal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/ledger/splitter"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/shopspring/decimal"
)

// StockTradeInput carries a new stock position. StrategyID 0 targets the
// user's default stock strategy; a zero EntryFee is computed from the fee
// schedule.
type StockTradeInput struct {
	StrategyID int64
	Code       string
	Name       string
	OpenTime   time.Time
	Shares     int64
	EntryPrice decimal.Decimal
	EntryFee   decimal.NullDecimal
	StopLoss   decimal.NullDecimal
	TakeProfit decimal.NullDecimal
	Tags       []string
	Notes      string
}

// StockTradeUpdate carries edits; nil fields are left untouched. Setting
// ExitPrice closes the trade and recomputes fee, P&L and actual risk/reward.
type StockTradeUpdate struct {
	Code       *string
	Name       *string
	OpenTime   *time.Time
	CloseTime  *time.Time
	Shares     *int64
	EntryPrice *decimal.Decimal
	EntryFee   *decimal.Decimal
	ExitPrice  *decimal.Decimal
	ExitFee    *decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Tags       []string
	Notes      *string
}

// CreateStockTrade opens a position and schedules a background replay from
// its open day.
func (s *Service) CreateStockTrade(ctx context.Context, userID int64, in StockTradeInput) (*model.StockTrade, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, ledger.Validationf("stock code is required")
	}
	if in.Shares <= 0 {
		return nil, ledger.Validationf("shares must be positive")
	}
	if !in.EntryPrice.IsPositive() {
		return nil, ledger.Validationf("entry price must be positive")
	}

	strat, err := s.stockStrategy(ctx, userID, in.StrategyID)
	if err != nil {
		return nil, err
	}

	entryFee := decimal.Zero
	if in.EntryFee.Valid && !in.EntryFee.Decimal.IsZero() {
		entryFee = in.EntryFee.Decimal
	} else {
		entryFee, err = s.fees.Calculator().BuyFee(in.EntryPrice, in.Shares)
		if err != nil {
			return nil, err
		}
	}

	trade := &model.StockTrade{
		UserID:        userID,
		StrategyID:    strat.ID,
		Code:          code,
		Name:          strings.TrimSpace(in.Name),
		OpenTime:      orNow(in.OpenTime),
		Shares:        in.Shares,
		EntryPrice:    in.EntryPrice,
		EntryFee:      entryFee,
		StopLoss:      in.StopLoss,
		TakeProfit:    in.TakeProfit,
		TheoreticalRR: theoreticalRR(in.EntryPrice, in.StopLoss, in.TakeProfit),
		Notes:         in.Notes,
		Status:        model.StatusOpen,
	}
	if len(in.Tags) > 0 {
		raw, err := json.Marshal(in.Tags)
		if err != nil {
			return nil, err
		}
		trade.Tags = raw
	}
	if err := s.store.CreateStockTrade(ctx, trade); err != nil {
		return nil, err
	}

	openDay := dateutil.DayOf(trade.OpenTime)
	s.scheduleStockReplay(userID, strat.ID, openDay)
	return trade, nil
}

// UpdateStockTrade applies edits and synchronously replays every affected
// strategy from the trade's earliest touched day.
func (s *Service) UpdateStockTrade(ctx context.Context, userID, tradeID int64, up StockTradeUpdate) (*model.StockTrade, error) {
	trade, err := s.store.StockTradeByID(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	oldOpenDay := dateutil.DayOf(trade.OpenTime)
	strategyID := trade.StrategyID

	if up.Code != nil {
		trade.Code = strings.TrimSpace(*up.Code)
	}
	if up.Name != nil {
		trade.Name = strings.TrimSpace(*up.Name)
	}
	if up.OpenTime != nil {
		trade.OpenTime = up.OpenTime.UTC()
	}
	if up.CloseTime != nil {
		ct := up.CloseTime.UTC()
		trade.CloseTime = &ct
	}
	if up.Shares != nil {
		if *up.Shares <= 0 {
			return nil, ledger.Validationf("shares must be positive")
		}
		trade.Shares = *up.Shares
	}
	if up.EntryPrice != nil {
		if !up.EntryPrice.IsPositive() {
			return nil, ledger.Validationf("entry price must be positive")
		}
		trade.EntryPrice = *up.EntryPrice
	}
	if up.StopLoss != nil {
		trade.StopLoss = decimal.NewNullDecimal(*up.StopLoss)
	}
	if up.TakeProfit != nil {
		trade.TakeProfit = decimal.NewNullDecimal(*up.TakeProfit)
	}
	if up.Notes != nil {
		trade.Notes = *up.Notes
	}
	if up.Tags != nil {
		raw, err := json.Marshal(up.Tags)
		if err != nil {
			return nil, err
		}
		trade.Tags = raw
	}

	// 买入价或股数变化时重算买入手续费
	if up.EntryFee != nil {
		trade.EntryFee = *up.EntryFee
	} else if up.EntryPrice != nil || up.Shares != nil {
		fee, err := s.fees.Calculator().BuyFee(trade.EntryPrice, trade.Shares)
		if err != nil {
			return nil, err
		}
		trade.EntryFee = fee
	}

	// 改离场价即视为平仓, 重算卖出费用/盈亏/实际盈亏比
	if up.ExitPrice != nil {
		if !up.ExitPrice.IsPositive() {
			return nil, ledger.Validationf("exit price must be positive")
		}
		trade.ExitPrice = decimal.NewNullDecimal(*up.ExitPrice)
		if up.ExitFee != nil {
			trade.ExitFee = *up.ExitFee
		} else {
			fee, err := s.fees.Calculator().SellFee(*up.ExitPrice, trade.Shares, trade.Code)
			if err != nil {
				return nil, err
			}
			trade.ExitFee = fee
		}
		size := decimal.NewFromInt(trade.Shares)
		pl := up.ExitPrice.Sub(trade.EntryPrice).Mul(size).
			Sub(trade.EntryFee).Sub(trade.ExitFee).Round(2)
		trade.ProfitLoss = decimal.NewNullDecimal(pl)
		if trade.StopLoss.Valid {
			risk := trade.EntryPrice.Sub(trade.StopLoss.Decimal)
			if risk.IsPositive() {
				trade.ActualRR = decimal.NewNullDecimal(up.ExitPrice.Sub(trade.EntryPrice).Div(risk).Round(2))
			}
		}
		trade.Status = model.StatusClosed
		if trade.CloseTime == nil {
			now := time.Now().UTC()
			trade.CloseTime = &now
		}
	} else if up.ExitFee != nil {
		trade.ExitFee = *up.ExitFee
	}
	trade.TheoreticalRR = theoreticalRR(trade.EntryPrice, trade.StopLoss, trade.TakeProfit)

	if err := s.saveAndReplayStock(ctx, userID, strategyID, trade,
		dateutil.MinDay(oldOpenDay, dateutil.DayOf(trade.OpenTime))); err != nil {
		return nil, err
	}
	return trade, nil
}

// DeleteStockTrade soft-deletes one trade and replays from its open day.
func (s *Service) DeleteStockTrade(ctx context.Context, userID, tradeID int64) error {
	trade, err := s.store.StockTradeByID(ctx, userID, tradeID)
	if err != nil {
		return err
	}
	release := s.locks.acquire(stockScope(trade.StrategyID))
	defer release()

	if err := s.store.SoftDeleteStockTrade(ctx, userID, tradeID); err != nil {
		return err
	}
	day := dateutil.DayOf(trade.OpenTime)
	return s.stock.Replay(ctx, userID, trade.StrategyID, &day)
}

// ClearStockTrades soft-deletes the whole strategy ledger; the follow-up
// replay collapses the capital curve back to the anchor.
func (s *Service) ClearStockTrades(ctx context.Context, userID, strategyID int64) (int64, error) {
	strat, err := s.stockStrategy(ctx, userID, strategyID)
	if err != nil {
		return 0, err
	}
	release := s.locks.acquire(stockScope(strat.ID))
	defer release()

	n, err := s.store.ClearStockTrades(ctx, userID, strat.ID)
	if err != nil {
		return 0, err
	}
	return n, s.stock.Replay(ctx, userID, strat.ID, nil)
}

// SplitClose closes qty shares of an open position (0 = all) and replays from
// the earliest affected day before returning.
func (s *Service) SplitClose(ctx context.Context, userID, tradeID int64, req splitter.Request) (*splitter.Result, error) {
	trade, err := s.store.StockTradeByID(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	release := s.locks.acquire(stockScope(trade.StrategyID))
	defer release()

	req.ExitTime = orNow(req.ExitTime)
	res, err := s.split.Close(trade, req)
	if err != nil {
		return nil, err
	}
	if res.Remaining != nil {
		err = s.store.SaveStockTradePair(ctx, res.Remaining, res.Closed)
	} else {
		err = s.store.SaveStockTrade(ctx, res.Closed)
	}
	if err != nil {
		return nil, err
	}
	return res, s.stock.Replay(ctx, userID, trade.StrategyID, &res.EarliestDay)
}

// ReplayStock forces a synchronous replay, the manual "recalculate" path.
// startDay nil replays from the anchor.
func (s *Service) ReplayStock(ctx context.Context, userID, strategyID int64, startDay *time.Time) error {
	release := s.locks.acquire(stockScope(strategyID))
	defer release()
	return s.stock.Replay(ctx, userID, strategyID, startDay)
}

// ResetStockAnchor rewrites the strategy anchor, discards all prior snapshots
// and rebuilds the curve from the new anchor.
func (s *Service) ResetStockAnchor(ctx context.Context, userID, strategyID int64, capital decimal.Decimal, day time.Time) error {
	if !capital.IsPositive() {
		return ledger.Validationf("initial capital must be positive")
	}
	strat, err := s.stockStrategy(ctx, userID, strategyID)
	if err != nil {
		return err
	}
	release := s.locks.acquire(stockScope(strat.ID))
	defer release()

	if err := s.store.SetStrategyAnchor(ctx, strat.ID, capital, day); err != nil {
		return err
	}
	if err := s.store.DeleteSnapshots(ctx, strat.ID); err != nil {
		return err
	}
	return s.stock.Replay(ctx, userID, strat.ID, nil)
}

// StockTrades lists the strategy's live trades.
func (s *Service) StockTrades(ctx context.Context, userID, strategyID int64) ([]model.StockTrade, error) {
	strat, err := s.stockStrategy(ctx, userID, strategyID)
	if err != nil {
		return nil, err
	}
	return s.store.ListStockTrades(ctx, userID, strat.ID)
}

// CapitalCurve returns the strategy's snapshot series. When the latest
// snapshot is older than the latest trade event it first runs a catch-up
// replay, so readers never see a curve staler than the ledger.
func (s *Service) CapitalCurve(ctx context.Context, userID, strategyID int64, from, to *time.Time) ([]model.CapitalSnapshot, error) {
	strat, err := s.stockStrategy(ctx, userID, strategyID)
	if err != nil {
		return nil, err
	}
	stale, err := s.curveStale(ctx, strat.ID)
	if err != nil {
		return nil, err
	}
	if stale {
		release := s.locks.acquire(stockScope(strat.ID))
		err := s.stock.Replay(ctx, userID, strat.ID, nil)
		release()
		if err != nil {
			return nil, err
		}
	}
	return s.store.Snapshots(ctx, strat.ID, from, to)
}

func (s *Service) curveStale(ctx context.Context, strategyID int64) (bool, error) {
	latestEvent, ok, err := s.store.LatestStockEvent(ctx, strategyID)
	if err != nil || !ok {
		return false, err
	}
	snap, err := s.store.LatestSnapshot(ctx, strategyID)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return true, nil
	}
	return snap.Day.Before(dateutil.DayOf(latestEvent)), nil
}

// Strategies lists the user's sub-ledgers for one market ("" = all).
func (s *Service) Strategies(ctx context.Context, userID int64, market string) ([]model.Strategy, error) {
	return s.store.ListStrategies(ctx, userID, market)
}

// CreateStrategy adds a named sub-ledger.
func (s *Service) CreateStrategy(ctx context.Context, userID int64, name, market string, capital decimal.NullDecimal, day *time.Time) (*model.Strategy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ledger.Validationf("strategy name is required")
	}
	if market != model.MarketStock && market != model.MarketForex {
		return nil, ledger.Validationf("unknown market %q", market)
	}
	st := &model.Strategy{
		UserID:         userID,
		Name:           name,
		Market:         market,
		InitialCapital: capital,
	}
	if day != nil {
		d := dateutil.DayOf(*day)
		st.InitialDate = &d
	}
	if err := s.store.CreateStrategy(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) stockStrategy(ctx context.Context, userID, strategyID int64) (*model.Strategy, error) {
	if strategyID == 0 {
		return s.store.DefaultStrategy(ctx, userID, model.MarketStock)
	}
	strat, err := s.store.StrategyByID(ctx, userID, strategyID)
	if err != nil {
		return nil, err
	}
	if strat.Market != model.MarketStock {
		return nil, ledger.Validationf("strategy %d is not a stock strategy", strat.ID)
	}
	return strat, nil
}

func (s *Service) saveAndReplayStock(ctx context.Context, userID, strategyID int64, trade *model.StockTrade, fromDay time.Time) error {
	release := s.locks.acquire(stockScope(strategyID))
	defer release()
	if err := s.store.SaveStockTrade(ctx, trade); err != nil {
		return err
	}
	return s.stock.Replay(ctx, userID, strategyID, &fromDay)
}

func (s *Service) scheduleStockReplay(userID, strategyID int64, fromDay time.Time) {
	s.tasks.Go("stock-replay", func(ctx context.Context) error {
		release := s.locks.acquire(stockScope(strategyID))
		defer release()
		return s.stock.Replay(ctx, userID, strategyID, &fromDay)
	})
}

// theoreticalRR is the planned reward/risk ratio from entry, stop and target,
// rounded to 2 decimals; unset when risk is non-positive.
func theoreticalRR(entry decimal.Decimal, stop, target decimal.NullDecimal) decimal.NullDecimal {
	if !stop.Valid || !target.Valid {
		return decimal.NullDecimal{}
	}
	risk := entry.Sub(stop.Decimal)
	if !risk.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(target.Decimal.Sub(entry).Div(risk).Round(2))
}
