// Package splitter closes stock positions, whole or in part. A partial close
// carves a new terminal record off the open position and shrinks the original;
// the two records together preserve the position's share count and entry fee.
package splitter

import (
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/ledger/fees"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/shopspring/decimal"
)

// BoardLot 股票最小交易单位, 100股一手
const BoardLot int64 = 100

// Request describes one close action against an open stock position.
// Shares == 0 closes the full remaining position.
type Request struct {
	Shares    int64
	ExitPrice decimal.Decimal
	ExitTime  time.Time
	// ExitFee overrides the schedule-computed sell fee when valid.
	ExitFee decimal.NullDecimal
}

// Result is what the caller must persist. After a full close Remaining is nil
// and Closed is the mutated original; after a partial close both are set and
// must be written in the same transaction.
type Result struct {
	Remaining *model.StockTrade
	Closed    *model.StockTrade
	// EarliestDay is the first ledger day the close touches, the point the
	// capital curve must be replayed from.
	EarliestDay time.Time
}

type Splitter struct {
	fees    *fees.Registry
	lotSize int64
}

func New(reg *fees.Registry) *Splitter {
	return &Splitter{fees: reg, lotSize: BoardLot}
}

// Close validates the request and computes the close in memory; it never
// writes. Validation failures leave the trade untouched.
func (sp *Splitter) Close(trade *model.StockTrade, req Request) (*Result, error) {
	if trade.Status != model.StatusOpen || trade.IsDeleted {
		return nil, ledger.Validationf("trade %d is not an open position", trade.ID)
	}
	if !req.ExitPrice.IsPositive() {
		return nil, ledger.Validationf("exit price must be positive")
	}
	if req.ExitTime.Before(trade.OpenTime) {
		return nil, ledger.Validationf("close time %s is before open time", req.ExitTime.Format(time.RFC3339))
	}

	qty := req.Shares
	if qty == 0 {
		qty = trade.Shares
	}
	switch {
	case qty < 0:
		return nil, ledger.Validationf("close quantity must be positive")
	case qty > trade.Shares:
		return nil, ledger.Validationf("close quantity %d exceeds position size %d", qty, trade.Shares)
	case qty != trade.Shares && qty%sp.lotSize != 0:
		return nil, ledger.Validationf("close quantity %d is not a multiple of the board lot %d", qty, sp.lotSize)
	}

	exitFee, err := sp.exitFee(trade, req, qty)
	if err != nil {
		return nil, err
	}

	earliest := dateutil.MinDay(dateutil.DayOf(trade.OpenTime), dateutil.DayOf(req.ExitTime))
	closeTime := req.ExitTime

	if qty == trade.Shares {
		// 全部平仓, 原记录原地转为closed
		finalize(trade, req.ExitPrice, closeTime, trade.EntryFee, exitFee, qty)
		return &Result{Closed: trade, EarliestDay: earliest}, nil
	}

	// 部分平仓: 入场费按股数比例拆分
	portion := trade.EntryFee.
		Mul(decimal.NewFromInt(qty)).
		Div(decimal.NewFromInt(trade.Shares)).
		Round(6)

	closed := *trade
	closed.ID = 0
	closed.Shares = qty
	closed.EntryFee = portion
	closed.CreatedAt = time.Time{}
	closed.UpdatedAt = time.Time{}
	finalize(&closed, req.ExitPrice, closeTime, portion, exitFee, qty)

	trade.Shares -= qty
	trade.EntryFee = trade.EntryFee.Sub(portion)

	return &Result{Remaining: trade, Closed: &closed, EarliestDay: earliest}, nil
}

func (sp *Splitter) exitFee(trade *model.StockTrade, req Request, qty int64) (decimal.Decimal, error) {
	if req.ExitFee.Valid {
		if req.ExitFee.Decimal.IsNegative() {
			return decimal.Zero, ledger.Validationf("exit fee must not be negative")
		}
		return req.ExitFee.Decimal, nil
	}
	return sp.fees.Calculator().SellFee(req.ExitPrice, qty, trade.Code)
}

// finalize flips a record to closed and fills the derived fields.
func finalize(t *model.StockTrade, exit decimal.Decimal, at time.Time, entryFee, exitFee decimal.Decimal, qty int64) {
	t.Status = model.StatusClosed
	t.CloseTime = &at
	t.ExitPrice = decimal.NewNullDecimal(exit)
	t.ExitFee = exitFee

	gross := exit.Sub(t.EntryPrice).Mul(decimal.NewFromInt(qty))
	t.ProfitLoss = decimal.NewNullDecimal(gross.Sub(entryFee).Sub(exitFee).Round(2))

	if t.StopLoss.Valid {
		risk := t.EntryPrice.Sub(t.StopLoss.Decimal)
		if !risk.IsZero() {
			rr := exit.Sub(t.EntryPrice).Div(risk).Round(2)
			t.ActualRR = decimal.NewNullDecimal(rr)
		}
	}
}
