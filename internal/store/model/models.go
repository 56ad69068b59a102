package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Trade status values. A trade only ever moves open -> closed; soft deletion
// is an orthogonal flag, permanent once set.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Strategy market kinds.
const (
	MarketStock = "stock"
	MarketForex = "forex"
)

// Forex trade sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// User carries only the journal anchor; identity and auth live elsewhere.
type User struct {
	ID                 int64               `gorm:"column:id;primaryKey"`
	Username           string              `gorm:"column:username;uniqueIndex"`
	InitialCapital     decimal.NullDecimal `gorm:"column:initial_capital;type:TEXT"`
	InitialCapitalDate *time.Time          `gorm:"column:initial_capital_date"`
	CreatedAt          time.Time           `gorm:"column:created_at"`
}

func (User) TableName() string { return "users" }

// Strategy is an isolated per-user sub-ledger for one market. The anchor
// (initial capital + date) defines where its capital curve starts.
type Strategy struct {
	ID             int64               `gorm:"column:id;primaryKey"`
	UserID         int64               `gorm:"column:user_id;index:idx_strategies_user_market,priority:1"`
	Name           string              `gorm:"column:name"`
	UID            string              `gorm:"column:uid;uniqueIndex"`
	Market         string              `gorm:"column:market;index:idx_strategies_user_market,priority:2"`
	InitialCapital decimal.NullDecimal `gorm:"column:initial_capital;type:TEXT"`
	InitialDate    *time.Time          `gorm:"column:initial_date"`
	CreatedAt      time.Time           `gorm:"column:created_at"`
	UpdatedAt      time.Time           `gorm:"column:updated_at"`
}

func (Strategy) TableName() string { return "strategies" }

// StockTrade is one journal entry for a stock position. EntryFee/ExitFee are
// the buy/sell commissions; ProfitLoss is set on close and is authoritative
// for replay once present.
type StockTrade struct {
	ID            int64               `gorm:"column:id;primaryKey"`
	UserID        int64               `gorm:"column:user_id;index:idx_stock_user_open,priority:1"`
	StrategyID    int64               `gorm:"column:strategy_id;index:idx_stock_strategy_open,priority:1"`
	Code          string              `gorm:"column:code"`
	Name          string              `gorm:"column:name"`
	OpenTime      time.Time           `gorm:"column:open_time;index:idx_stock_strategy_open,priority:2"`
	CloseTime     *time.Time          `gorm:"column:close_time"`
	Shares        int64               `gorm:"column:shares"`
	EntryPrice    decimal.Decimal     `gorm:"column:entry_price;type:TEXT"`
	ExitPrice     decimal.NullDecimal `gorm:"column:exit_price;type:TEXT"`
	EntryFee      decimal.Decimal     `gorm:"column:entry_fee;type:TEXT"`
	ExitFee       decimal.Decimal     `gorm:"column:exit_fee;type:TEXT"`
	StopLoss      decimal.NullDecimal `gorm:"column:stop_loss;type:TEXT"`
	TakeProfit    decimal.NullDecimal `gorm:"column:take_profit;type:TEXT"`
	ProfitLoss    decimal.NullDecimal `gorm:"column:profit_loss;type:TEXT"`
	TheoreticalRR decimal.NullDecimal `gorm:"column:theoretical_rr;type:TEXT"`
	ActualRR      decimal.NullDecimal `gorm:"column:actual_rr;type:TEXT"`
	Tags          datatypes.JSON      `gorm:"column:tags;type:TEXT"`
	Notes         string              `gorm:"column:notes;type:TEXT"`
	Status        string              `gorm:"column:status;index"`
	IsDeleted     bool                `gorm:"column:is_deleted;index"`
	CreatedAt     time.Time           `gorm:"column:created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at"`
}

func (StockTrade) TableName() string { return "stock_trades" }

// ForexTrade is one journal entry for a leveraged forex position.
type ForexTrade struct {
	ID         int64               `gorm:"column:id;primaryKey"`
	UserID     int64               `gorm:"column:user_id;index:idx_forex_user_open,priority:1"`
	StrategyID int64               `gorm:"column:strategy_id;index:idx_forex_strategy_open,priority:1"`
	Symbol     string              `gorm:"column:symbol"`
	Side       string              `gorm:"column:side"`
	Lots       decimal.Decimal     `gorm:"column:lots;type:TEXT"`
	OpenTime   time.Time           `gorm:"column:open_time;index:idx_forex_strategy_open,priority:2"`
	CloseTime  *time.Time          `gorm:"column:close_time"`
	OpenPrice  decimal.Decimal     `gorm:"column:open_price;type:TEXT"`
	ClosePrice decimal.NullDecimal `gorm:"column:close_price;type:TEXT"`
	StopLoss   decimal.NullDecimal `gorm:"column:stop_loss;type:TEXT"`
	TakeProfit decimal.NullDecimal `gorm:"column:take_profit;type:TEXT"`
	Commission decimal.Decimal     `gorm:"column:commission;type:TEXT"`
	Swap       decimal.Decimal     `gorm:"column:swap;type:TEXT"`
	Profit     decimal.NullDecimal `gorm:"column:profit;type:TEXT"`
	Notes      string              `gorm:"column:notes;type:TEXT"`
	Status     string              `gorm:"column:status;index"`
	IsDeleted  bool                `gorm:"column:is_deleted;index"`
	CreatedAt  time.Time           `gorm:"column:created_at"`
	UpdatedAt  time.Time           `gorm:"column:updated_at"`
}

func (ForexTrade) TableName() string { return "forex_trades" }

// CapitalSnapshot is fully derived state: one row per strategy per day that
// has at least one ledger event (or the anchor day itself). Replay owns these
// rows outright and rewrites them.
type CapitalSnapshot struct {
	ID             int64           `gorm:"column:id;primaryKey"`
	UserID         int64           `gorm:"column:user_id;index"`
	StrategyID     int64           `gorm:"column:strategy_id;uniqueIndex:idx_snapshot_strategy_day,priority:1"`
	Day            time.Time       `gorm:"column:day;uniqueIndex:idx_snapshot_strategy_day,priority:2"`
	AvailableFunds decimal.Decimal `gorm:"column:available_funds;type:TEXT"`
	PositionValue  decimal.Decimal `gorm:"column:position_value;type:TEXT"`
	TotalEquity    decimal.Decimal `gorm:"column:total_equity;type:TEXT"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
}

func (CapitalSnapshot) TableName() string { return "capital_snapshots" }

// ForexAccount holds the last reconciliation outputs for a user's leveraged
// account. The metric columns are never hand-edited outside an explicit reset.
type ForexAccount struct {
	ID             int64           `gorm:"column:id;primaryKey"`
	UserID         int64           `gorm:"column:user_id;uniqueIndex"`
	Currency       string          `gorm:"column:currency"`
	Leverage       int64           `gorm:"column:leverage"`
	InitialBalance decimal.Decimal `gorm:"column:initial_balance;type:TEXT"`
	InitialDate    *time.Time      `gorm:"column:initial_date"`
	Balance        decimal.Decimal `gorm:"column:balance;type:TEXT"`
	Equity         decimal.Decimal `gorm:"column:equity;type:TEXT"`
	Margin         decimal.Decimal `gorm:"column:margin;type:TEXT"`
	FreeMargin     decimal.Decimal `gorm:"column:free_margin;type:TEXT"`
	MarginLevel    decimal.Decimal `gorm:"column:margin_level;type:TEXT"`
	MaxDrawdown    decimal.Decimal `gorm:"column:max_drawdown;type:TEXT"`
	PeakEquity     decimal.Decimal `gorm:"column:peak_equity;type:TEXT"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (ForexAccount) TableName() string { return "forex_accounts" }
