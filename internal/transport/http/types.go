package journalhttp

import (
	"time"

	"github.com/shopspring/decimal"
)

// createStrategyRequest 新建策略请求体。
type createStrategyRequest struct {
	Name           string           `json:"name" binding:"required"`
	Market         string           `json:"market" binding:"required"`
	InitialCapital *decimal.Decimal `json:"initial_capital"`
	InitialDate    string           `json:"initial_date"`
}

type createStockTradeRequest struct {
	StrategyID int64            `json:"strategy_id"`
	Code       string           `json:"code" binding:"required"`
	Name       string           `json:"name"`
	OpenTime   *time.Time       `json:"open_time"`
	Shares     int64            `json:"shares" binding:"required"`
	EntryPrice decimal.Decimal  `json:"entry_price" binding:"required"`
	EntryFee   *decimal.Decimal `json:"entry_fee"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	Tags       []string         `json:"tags"`
	Notes      string           `json:"notes"`
}

type updateStockTradeRequest struct {
	Code       *string          `json:"code"`
	Name       *string          `json:"name"`
	OpenTime   *time.Time       `json:"open_time"`
	CloseTime  *time.Time       `json:"close_time"`
	Shares     *int64           `json:"shares"`
	EntryPrice *decimal.Decimal `json:"entry_price"`
	EntryFee   *decimal.Decimal `json:"entry_fee"`
	ExitPrice  *decimal.Decimal `json:"exit_price"`
	ExitFee    *decimal.Decimal `json:"exit_fee"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	Tags       []string         `json:"tags"`
	Notes      *string          `json:"notes"`
}

// splitCloseRequest 平仓请求; shares 为 0 表示全部平仓。
type splitCloseRequest struct {
	Shares    int64            `json:"shares"`
	ExitPrice decimal.Decimal  `json:"exit_price" binding:"required"`
	ExitTime  *time.Time       `json:"exit_time"`
	ExitFee   *decimal.Decimal `json:"exit_fee"`
}

type recalculateRequest struct {
	StrategyID int64  `json:"strategy_id"`
	StartDate  string `json:"start_date"`
}

type resetAnchorRequest struct {
	StrategyID int64           `json:"strategy_id"`
	Capital    decimal.Decimal `json:"capital" binding:"required"`
	Date       string          `json:"date" binding:"required"`
}

type createForexTradeRequest struct {
	StrategyID int64            `json:"strategy_id"`
	Symbol     string           `json:"symbol" binding:"required"`
	Side       string           `json:"side" binding:"required"`
	Lots       decimal.Decimal  `json:"lots" binding:"required"`
	OpenTime   *time.Time       `json:"open_time"`
	OpenPrice  decimal.Decimal  `json:"open_price" binding:"required"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	Commission *decimal.Decimal `json:"commission"`
	Swap       *decimal.Decimal `json:"swap"`
	Notes      string           `json:"notes"`
}

type updateForexTradeRequest struct {
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	Notes      *string          `json:"notes"`
}

type closeForexTradeRequest struct {
	ClosePrice decimal.Decimal  `json:"close_price" binding:"required"`
	CloseTime  *time.Time       `json:"close_time"`
	Commission *decimal.Decimal `json:"commission"`
	Swap       *decimal.Decimal `json:"swap"`
}

type forexInitialRequest struct {
	StrategyID *int64          `json:"strategy_id"`
	Balance    decimal.Decimal `json:"initial_balance" binding:"required"`
	Date       string          `json:"initial_date"`
}

type forexResetRequest struct {
	StrategyID *int64          `json:"strategy_id"`
	Balance    decimal.Decimal `json:"balance" binding:"required"`
	Date       string          `json:"date"`
	Leverage   int64           `json:"leverage"`
}
