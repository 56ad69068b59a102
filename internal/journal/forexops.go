package journal

import (
	"context"
	"strings"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/ledger/forex"
	"github.com/apple-taste/trade-view/internal/market/quote"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/shopspring/decimal"
)

// ForexTradeInput carries a new forex position.
type ForexTradeInput struct {
	StrategyID int64
	Symbol     string
	Side       string
	Lots       decimal.Decimal
	OpenTime   time.Time
	OpenPrice  decimal.Decimal
	StopLoss   decimal.NullDecimal
	TakeProfit decimal.NullDecimal
	Commission decimal.Decimal
	Swap       decimal.Decimal
	Notes      string
}

// ForexCloseInput closes an open forex position. Zero CloseTime means now;
// Commission/Swap override the stored values when set.
type ForexCloseInput struct {
	ClosePrice decimal.Decimal
	CloseTime  time.Time
	Commission *decimal.Decimal
	Swap       *decimal.Decimal
}

// CreateForexTrade opens a position and schedules a background account
// reconciliation.
func (s *Service) CreateForexTrade(ctx context.Context, userID int64, in ForexTradeInput) (*model.ForexTrade, error) {
	symbol, err := quote.NormalizeSymbol(in.Symbol)
	if err != nil {
		return nil, err
	}
	side := strings.ToUpper(strings.TrimSpace(in.Side))
	if side != model.SideBuy && side != model.SideSell {
		return nil, ledger.Validationf("side must be BUY or SELL")
	}
	if !in.Lots.IsPositive() {
		return nil, ledger.Validationf("lots must be positive")
	}
	if !in.OpenPrice.IsPositive() {
		return nil, ledger.Validationf("open price must be positive")
	}

	strat, err := s.forexStrategy(ctx, userID, in.StrategyID)
	if err != nil {
		return nil, err
	}

	trade := &model.ForexTrade{
		UserID:     userID,
		StrategyID: strat.ID,
		Symbol:     symbol,
		Side:       side,
		Lots:       in.Lots,
		OpenTime:   orNow(in.OpenTime),
		OpenPrice:  in.OpenPrice,
		StopLoss:   in.StopLoss,
		TakeProfit: in.TakeProfit,
		Commission: in.Commission,
		Swap:       in.Swap,
		Notes:      in.Notes,
		Status:     model.StatusOpen,
	}
	if err := s.store.CreateForexTrade(ctx, trade); err != nil {
		return nil, err
	}

	sid := strat.ID
	s.tasks.Go("forex-reconcile", func(ctx context.Context) error {
		release := s.locks.acquire(forexScope(userID))
		defer release()
		_, err := s.forex.Reconcile(ctx, userID, &sid)
		return err
	})
	return trade, nil
}

// CloseForexTrade closes an open position, derives its realized profit and
// reconciles the account before returning.
func (s *Service) CloseForexTrade(ctx context.Context, userID, tradeID int64, in ForexCloseInput) (*model.ForexTrade, error) {
	if !in.ClosePrice.IsPositive() {
		return nil, ledger.Validationf("close price must be positive")
	}
	trade, err := s.store.ForexTradeByID(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status != model.StatusOpen {
		return nil, ledger.Validationf("trade %d is not open", tradeID)
	}

	release := s.locks.acquire(forexScope(userID))
	defer release()

	closeTime := orNow(in.CloseTime)
	trade.CloseTime = &closeTime
	trade.ClosePrice = decimal.NewNullDecimal(in.ClosePrice)
	if in.Commission != nil {
		trade.Commission = *in.Commission
	}
	if in.Swap != nil {
		trade.Swap = *in.Swap
	}
	gross := forex.GrossProfit(trade.Symbol, trade.Side, trade.Lots, trade.OpenPrice, in.ClosePrice)
	trade.Profit = decimal.NewNullDecimal(gross.Sub(trade.Commission).Sub(trade.Swap))
	trade.Status = model.StatusClosed

	if err := s.store.SaveForexTrade(ctx, trade); err != nil {
		return nil, err
	}
	if _, err := s.forex.Reconcile(ctx, userID, &trade.StrategyID); err != nil {
		return nil, err
	}
	return trade, nil
}

// UpdateForexTrade edits the journal-only fields of a trade. Price and size
// are immutable after entry, delete and re-create to fix those.
func (s *Service) UpdateForexTrade(ctx context.Context, userID, tradeID int64, stop, target *decimal.Decimal, notes *string) (*model.ForexTrade, error) {
	trade, err := s.store.ForexTradeByID(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	if stop != nil {
		trade.StopLoss = decimal.NewNullDecimal(*stop)
	}
	if target != nil {
		trade.TakeProfit = decimal.NewNullDecimal(*target)
	}
	if notes != nil {
		trade.Notes = *notes
	}
	if err := s.store.SaveForexTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// DeleteForexTrade soft-deletes one trade and reconciles the account.
func (s *Service) DeleteForexTrade(ctx context.Context, userID, tradeID int64) error {
	trade, err := s.store.ForexTradeByID(ctx, userID, tradeID)
	if err != nil {
		return err
	}
	release := s.locks.acquire(forexScope(userID))
	defer release()

	if err := s.store.SoftDeleteForexTrade(ctx, userID, tradeID); err != nil {
		return err
	}
	_, err = s.forex.Reconcile(ctx, userID, &trade.StrategyID)
	return err
}

// ClearForexTrades soft-deletes the scope's trades and reconciles.
func (s *Service) ClearForexTrades(ctx context.Context, userID int64, strategyID *int64) (int64, error) {
	release := s.locks.acquire(forexScope(userID))
	defer release()

	n, err := s.store.ClearForexTrades(ctx, userID, strategyID)
	if err != nil {
		return 0, err
	}
	_, err = s.forex.Reconcile(ctx, userID, strategyID)
	return n, err
}

// ForexTrades lists the scope's live trades, newest first.
func (s *Service) ForexTrades(ctx context.Context, userID int64, strategyID *int64) ([]model.ForexTrade, error) {
	return s.store.ListForexTrades(ctx, userID, strategyID)
}

// ForexPositions lists the scope's open positions.
func (s *Service) ForexPositions(ctx context.Context, userID int64, strategyID *int64) ([]model.ForexTrade, error) {
	return s.store.OpenForexPositions(ctx, userID, strategyID)
}

// ForexAccountView reconciles and returns the account, so readers always see
// metrics derived from the current ledger and quotes.
func (s *Service) ForexAccountView(ctx context.Context, userID int64, strategyID *int64) (*model.ForexAccount, error) {
	release := s.locks.acquire(forexScope(userID))
	defer release()
	return s.forex.Reconcile(ctx, userID, strategyID)
}

// SetForexInitial re-anchors the account (or one forex strategy) without
// touching the trade ledger, then reconciles.
func (s *Service) SetForexInitial(ctx context.Context, userID int64, capital decimal.Decimal, day *time.Time, strategyID *int64) (*model.ForexAccount, error) {
	if !capital.IsPositive() {
		return nil, ledger.Validationf("initial balance must be positive")
	}
	release := s.locks.acquire(forexScope(userID))
	defer release()

	if strategyID != nil {
		strat, err := s.store.StrategyByID(ctx, userID, *strategyID)
		if err != nil {
			return nil, err
		}
		anchorDay := time.Now().UTC()
		if day != nil {
			anchorDay = *day
		} else if strat.InitialDate != nil {
			anchorDay = *strat.InitialDate
		}
		if err := s.store.SetStrategyAnchor(ctx, strat.ID, capital, anchorDay); err != nil {
			return nil, err
		}
	} else {
		acct, err := s.store.ForexAccount(ctx, userID)
		if err != nil {
			return nil, err
		}
		acct.InitialBalance = capital
		if day != nil {
			d := dateutil.DayOf(*day)
			acct.InitialDate = &d
		}
		if err := s.store.SaveForexAccount(ctx, acct); err != nil {
			return nil, err
		}
	}
	return s.forex.Reconcile(ctx, userID, strategyID)
}

// ResetForexAccount re-anchors the account at balance/day, wipes the scope's
// trades and reconciles, restoring the account to its funding state.
func (s *Service) ResetForexAccount(ctx context.Context, userID int64, balance decimal.Decimal, day time.Time, leverage int64, strategyID *int64) (*model.ForexAccount, error) {
	if !balance.IsPositive() {
		return nil, ledger.Validationf("balance must be positive")
	}
	release := s.locks.acquire(forexScope(userID))
	defer release()

	acct, err := s.store.ForexAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	d := dateutil.DayOf(orNow(day))
	acct.InitialBalance = balance
	acct.InitialDate = &d
	if leverage > 0 {
		acct.Leverage = leverage
	}
	if err := s.store.SaveForexAccount(ctx, acct); err != nil {
		return nil, err
	}
	if _, err := s.store.ClearForexTrades(ctx, userID, strategyID); err != nil {
		return nil, err
	}
	return s.forex.Reconcile(ctx, userID, strategyID)
}

// ForexCapitalCurve returns balance-after-each-close points for the scope.
func (s *Service) ForexCapitalCurve(ctx context.Context, userID int64, strategyID *int64, from, to *time.Time) ([]forex.CurvePoint, error) {
	return s.forex.CapitalCurve(ctx, userID, strategyID, from, to)
}

// Quote returns the current mid-price for a pair, the thin passthrough used
// by the quotes endpoint.
func (s *Service) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.quotes.MidPrice(ctx, symbol)
}

func (s *Service) forexStrategy(ctx context.Context, userID, strategyID int64) (*model.Strategy, error) {
	if strategyID == 0 {
		return s.store.DefaultStrategy(ctx, userID, model.MarketForex)
	}
	strat, err := s.store.StrategyByID(ctx, userID, strategyID)
	if err != nil {
		return nil, err
	}
	if strat.Market != model.MarketForex {
		return nil, ledger.Validationf("strategy %d is not a forex strategy", strat.ID)
	}
	return strat, nil
}
