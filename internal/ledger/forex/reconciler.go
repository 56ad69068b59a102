// Package forex reconciles a leveraged account from its trade ledger: balance
// and drawdown from the closed-trade walk, margin from open positions, equity
// from live mid-quotes. All account metrics are outputs of Reconcile, never
// inputs.
package forex

import (
	"context"
	"strings"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/logger"
	"github.com/apple-taste/trade-view/internal/market/quote"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/gormstore"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ContractSize returns the per-lot multiplier. 黄金每手100盎司, 货币对每手100000
func ContractSize(symbol string) decimal.Decimal {
	if strings.EqualFold(symbol, "XAUUSD") {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(100000)
}

// GrossProfit is direction x (close - open) x lots x contract size, before
// commission and swap.
func GrossProfit(symbol, side string, lots, openPrice, closePrice decimal.Decimal) decimal.Decimal {
	diff := closePrice.Sub(openPrice)
	if !strings.EqualFold(side, model.SideBuy) {
		diff = openPrice.Sub(closePrice)
	}
	return diff.Mul(lots).Mul(ContractSize(symbol))
}

type Reconciler struct {
	store  *gormstore.Store
	quotes quote.Provider
}

func NewReconciler(store *gormstore.Store, quotes quote.Provider) *Reconciler {
	return &Reconciler{store: store, quotes: quotes}
}

// Reconcile recomputes every account metric for the user, optionally scoped to
// one forex strategy, and persists them on the account row. Quote failures
// drop the affected position's floating contribution and are never fatal.
func (r *Reconciler) Reconcile(ctx context.Context, userID int64, strategyID *int64) (*model.ForexAccount, error) {
	acct, err := r.store.ForexAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	initial, anchorDay, err := r.resolveAnchor(ctx, userID, strategyID, acct)
	if err != nil {
		return nil, err
	}

	closed, err := r.store.ClosedForexTrades(ctx, userID, strategyID)
	if err != nil {
		return nil, err
	}

	running := initial
	peak := running
	maxDrawdown := decimal.Zero

	for i := range closed {
		t := &closed[i]
		if anchorDay != nil && t.CloseTime != nil && dateutil.DayOf(*t.CloseTime).Before(*anchorDay) {
			continue
		}
		profit, backfilled := realizedProfit(t)
		if backfilled {
			t.Profit = decimal.NewNullDecimal(profit)
			if err := r.store.SaveForexTrade(ctx, t); err != nil {
				return nil, err
			}
		}
		running = running.Add(profit)
		if running.GreaterThan(peak) {
			peak = running
		}
		if peak.IsPositive() {
			dd := peak.Sub(running).Div(peak).Mul(hundred)
			if dd.GreaterThan(maxDrawdown) {
				maxDrawdown = dd
			}
		}
	}

	open, err := r.store.OpenForexPositions(ctx, userID, strategyID)
	if err != nil {
		return nil, err
	}

	margin := marginFor(open, acct.Leverage)
	floating := r.floatingProfit(ctx, open)

	equity := running.Add(floating)
	acct.Balance = running
	acct.Equity = equity
	acct.Margin = margin
	acct.FreeMargin = equity.Sub(margin)
	if margin.IsPositive() {
		acct.MarginLevel = equity.Div(margin).Mul(hundred)
	} else {
		acct.MarginLevel = decimal.Zero
	}
	acct.PeakEquity = decimal.Max(peak, equity)
	acct.MaxDrawdown = maxDrawdown

	if err := r.store.SaveForexAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// CurvePoint is one balance point of the forex capital curve.
type CurvePoint struct {
	Day     time.Time
	Balance decimal.Decimal
}

// CapitalCurve returns the balance after each closed trade, one point per day,
// anchored at the account's initial balance.
func (r *Reconciler) CapitalCurve(ctx context.Context, userID int64, strategyID *int64, from, to *time.Time) ([]CurvePoint, error) {
	acct, err := r.store.ForexAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	anchor := dateutil.DayOf(time.Now())
	if acct.InitialDate != nil {
		anchor = dateutil.DayOf(*acct.InitialDate)
	}
	if from != nil && dateutil.DayOf(*from).After(anchor) {
		anchor = dateutil.DayOf(*from)
	}

	closed, err := r.store.ClosedForexTrades(ctx, userID, strategyID)
	if err != nil {
		return nil, err
	}

	running := acct.InitialBalance
	points := []CurvePoint{{Day: anchor, Balance: running}}
	for i := range closed {
		t := &closed[i]
		d := anchor
		if t.CloseTime != nil {
			d = dateutil.DayOf(*t.CloseTime)
		}
		if d.Before(anchor) {
			continue
		}
		profit, _ := realizedProfit(t)
		running = running.Add(profit)
		if last := &points[len(points)-1]; last.Day.Equal(d) {
			last.Balance = running
		} else {
			points = append(points, CurvePoint{Day: d, Balance: running})
		}
	}
	if to != nil {
		end := dateutil.DayOf(*to)
		trimmed := points[:0]
		for _, p := range points {
			if !p.Day.After(end) {
				trimmed = append(trimmed, p)
			}
		}
		points = trimmed
	}
	return points, nil
}

func (r *Reconciler) resolveAnchor(ctx context.Context, userID int64, strategyID *int64, acct *model.ForexAccount) (decimal.Decimal, *time.Time, error) {
	initial := acct.InitialBalance
	anchorDay := acct.InitialDate
	if strategyID == nil {
		return initial, anchorDay, nil
	}
	st, err := r.store.StrategyByID(ctx, userID, *strategyID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if st.Market != model.MarketForex {
		return decimal.Zero, nil, ledger.Validationf("strategy %d is not a forex strategy", st.ID)
	}
	if st.InitialDate != nil {
		anchorDay = st.InitialDate
	}
	if st.InitialCapital.Valid {
		initial = st.InitialCapital.Decimal
	}
	return initial, anchorDay, nil
}

// realizedProfit returns the trade's realized P&L, deriving it from prices
// when the stored value is missing. backfilled reports whether the caller
// should persist the derived value.
func realizedProfit(t *model.ForexTrade) (profit decimal.Decimal, backfilled bool) {
	if t.Profit.Valid {
		return t.Profit.Decimal, false
	}
	if !t.ClosePrice.Valid {
		return decimal.Zero, false
	}
	gross := GrossProfit(t.Symbol, t.Side, t.Lots, t.OpenPrice, t.ClosePrice.Decimal)
	return gross.Sub(t.Commission).Sub(t.Swap), true
}

func marginFor(open []model.ForexTrade, leverage int64) decimal.Decimal {
	if leverage <= 0 {
		return decimal.Zero
	}
	lev := decimal.NewFromInt(leverage)
	margin := decimal.Zero
	for i := range open {
		p := &open[i]
		if !p.OpenPrice.IsPositive() || !p.Lots.IsPositive() {
			continue
		}
		notional := p.OpenPrice.Mul(p.Lots).Mul(ContractSize(p.Symbol))
		margin = margin.Add(notional.Div(lev))
	}
	return margin
}

// floatingProfit sums unrealized P&L over open positions. Positions whose
// quote cannot be fetched are skipped.
func (r *Reconciler) floatingProfit(ctx context.Context, open []model.ForexTrade) decimal.Decimal {
	floating := decimal.Zero
	for i := range open {
		p := &open[i]
		mid, err := r.quotes.MidPrice(ctx, p.Symbol)
		if err != nil {
			logger.Debugf("skip floating P&L for %s: %v", p.Symbol, err)
			continue
		}
		gross := GrossProfit(p.Symbol, p.Side, p.Lots, p.OpenPrice, mid)
		floating = floating.Add(gross.Sub(p.Commission).Sub(p.Swap))
	}
	return floating
}
