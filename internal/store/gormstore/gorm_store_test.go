package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := dateutil.ParseDay(s)
	require.NoError(t, err)
	return d
}

func TestUserAutoCreate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.User(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.False(t, u.InitialCapital.Valid)

	again, err := s.User(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestDefaultStrategyPerMarket(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	stock, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)
	assert.Equal(t, model.MarketStock, stock.Market)
	assert.NotEmpty(t, stock.UID)

	forex, err := s.DefaultStrategy(ctx, 1, model.MarketForex)
	require.NoError(t, err)
	assert.NotEqual(t, stock.ID, forex.ID)

	// 再次获取复用已有策略, 不重复建
	again, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)
	assert.Equal(t, stock.ID, again.ID)
}

func TestStrategyByIDScoped(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	_, err = s.StrategyByID(ctx, 2, st.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSetStrategyAnchor(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	day := mustDay(t, "2024-03-01")
	require.NoError(t, s.SetStrategyAnchor(ctx, st.ID, decimal.NewFromInt(50000), day.Add(15*time.Hour)))

	got, err := s.StrategyByID(ctx, 1, st.ID)
	require.NoError(t, err)
	require.True(t, got.InitialCapital.Valid)
	assert.True(t, got.InitialCapital.Decimal.Equal(decimal.NewFromInt(50000)))
	require.NotNil(t, got.InitialDate)
	assert.True(t, dateutil.SameDay(*got.InitialDate, day), "锚点日期必须归一到当日零点")
}

func snap(strategyID int64, day time.Time, funds, pos int64) model.CapitalSnapshot {
	f := decimal.NewFromInt(funds)
	p := decimal.NewFromInt(pos)
	return model.CapitalSnapshot{
		UserID: 1, StrategyID: strategyID, Day: day,
		AvailableFunds: f, PositionValue: p, TotalEquity: f.Add(p),
	}
}

func TestReplaceSnapshotsFromDiff(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	d1 := mustDay(t, "2024-01-01")
	d2 := mustDay(t, "2024-01-05")
	d3 := mustDay(t, "2024-01-09")
	require.NoError(t, s.ReplaceSnapshotsFrom(ctx, st.ID, d1, []model.CapitalSnapshot{
		snap(st.ID, d1, 100000, 0),
		snap(st.ID, d2, 90000, 10000),
		snap(st.ID, d3, 95000, 0),
	}))

	// 重放结果变了: d2 金额更新, d3 不再出现, 新增 d4
	d4 := mustDay(t, "2024-01-12")
	require.NoError(t, s.ReplaceSnapshotsFrom(ctx, st.ID, d2, []model.CapitalSnapshot{
		snap(st.ID, d2, 80000, 20000),
		snap(st.ID, d4, 101000, 0),
	}))

	rows, err := s.Snapshots(ctx, st.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, dateutil.SameDay(rows[0].Day, d1))
	assert.True(t, rows[0].AvailableFunds.Equal(decimal.NewFromInt(100000)), "范围之外的旧快照不能被动")
	assert.True(t, dateutil.SameDay(rows[1].Day, d2))
	assert.True(t, rows[1].AvailableFunds.Equal(decimal.NewFromInt(80000)))
	assert.True(t, dateutil.SameDay(rows[2].Day, d4))
}

func TestReplaceSnapshotsFromIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	d1 := mustDay(t, "2024-01-01")
	computed := []model.CapitalSnapshot{snap(st.ID, d1, 100000, 0)}
	require.NoError(t, s.ReplaceSnapshotsFrom(ctx, st.ID, d1, computed))
	require.NoError(t, s.ReplaceSnapshotsFrom(ctx, st.ID, d1, []model.CapitalSnapshot{snap(st.ID, d1, 100000, 0)}))

	rows, err := s.Snapshots(ctx, st.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestResetSnapshotsKeepsAnchorOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	d1 := mustDay(t, "2024-01-01")
	d2 := mustDay(t, "2024-01-05")
	require.NoError(t, s.ReplaceSnapshotsFrom(ctx, st.ID, d1, []model.CapitalSnapshot{
		snap(st.ID, d1, 90000, 10000),
		snap(st.ID, d2, 95000, 5000),
	}))

	require.NoError(t, s.ResetSnapshots(ctx, snap(st.ID, d1, 100000, 0)))

	rows, err := s.Snapshots(ctx, st.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, dateutil.SameDay(rows[0].Day, d1))
	assert.True(t, rows[0].TotalEquity.Equal(decimal.NewFromInt(100000)))
}

func TestSnapshotBeforeAndLatest(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	d1 := mustDay(t, "2024-01-01")
	d2 := mustDay(t, "2024-01-10")
	require.NoError(t, s.ReplaceSnapshotsFrom(ctx, st.ID, d1, []model.CapitalSnapshot{
		snap(st.ID, d1, 100000, 0),
		snap(st.ID, d2, 90000, 10000),
	}))

	before, err := s.SnapshotBefore(ctx, st.ID, mustDay(t, "2024-01-10"))
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.True(t, dateutil.SameDay(before.Day, d1), "严格早于给定日")

	none, err := s.SnapshotBefore(ctx, st.ID, d1)
	require.NoError(t, err)
	assert.Nil(t, none)

	latest, err := s.LatestSnapshot(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, dateutil.SameDay(latest.Day, d2))
}

func stockTrade(strategyID int64, code string, open time.Time) *model.StockTrade {
	return &model.StockTrade{
		UserID: 1, StrategyID: strategyID, Code: code,
		OpenTime: open, Shares: 100,
		EntryPrice: decimal.NewFromInt(10),
		EntryFee:   decimal.NewFromInt(5),
		Status:     model.StatusOpen,
	}
}

func closeAt(t *model.StockTrade, at time.Time) *model.StockTrade {
	t.Status = model.StatusClosed
	t.CloseTime = &at
	t.ExitPrice = decimal.NewNullDecimal(decimal.NewFromInt(11))
	return t
}

func TestStockTradesTouching(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	// 早开早平: 完全在窗口之前
	old := closeAt(stockTrade(st.ID, "000001", mustDay(t, "2024-01-02")), mustDay(t, "2024-01-04"))
	require.NoError(t, s.CreateStockTrade(ctx, old))
	// 早开晚平: 平仓落在窗口内
	spanning := closeAt(stockTrade(st.ID, "000002", mustDay(t, "2024-01-03")), mustDay(t, "2024-01-20"))
	require.NoError(t, s.CreateStockTrade(ctx, spanning))
	// 窗口内开仓
	fresh := stockTrade(st.ID, "600036", mustDay(t, "2024-01-15"))
	require.NoError(t, s.CreateStockTrade(ctx, fresh))

	got, err := s.StockTradesTouching(ctx, st.ID, mustDay(t, "2024-01-10"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "000002", got[0].Code)
	assert.Equal(t, "600036", got[1].Code)
}

func TestStockPositionsOpenAt(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	// 边界日结束时仍持有: 开于边界前, 平于边界后
	held := closeAt(stockTrade(st.ID, "000001", mustDay(t, "2024-01-02")), mustDay(t, "2024-01-20"))
	require.NoError(t, s.CreateStockTrade(ctx, held))
	// 边界前已平
	gone := closeAt(stockTrade(st.ID, "000002", mustDay(t, "2024-01-02")), mustDay(t, "2024-01-05"))
	require.NoError(t, s.CreateStockTrade(ctx, gone))
	// 边界后才开
	later := stockTrade(st.ID, "600036", mustDay(t, "2024-01-15"))
	require.NoError(t, s.CreateStockTrade(ctx, later))

	got, err := s.StockPositionsOpenAt(ctx, st.ID, mustDay(t, "2024-01-10"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "000001", got[0].Code)
}

func TestSaveStockTradePair(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	orig := stockTrade(st.ID, "000001", mustDay(t, "2024-01-02"))
	orig.Shares = 1000
	require.NoError(t, s.CreateStockTrade(ctx, orig))

	orig.Shares = 700
	slice := closeAt(stockTrade(st.ID, "000001", orig.OpenTime), mustDay(t, "2024-01-08"))
	slice.Shares = 300
	require.NoError(t, s.SaveStockTradePair(ctx, orig, slice))

	all, err := s.ListStockTrades(ctx, 1, st.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotZero(t, slice.ID)

	open, err := s.OpenStockPositions(ctx, 1, st.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(700), open[0].Shares)
}

func TestSoftDeleteAndClearStockTrades(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	a := stockTrade(st.ID, "000001", mustDay(t, "2024-01-02"))
	b := stockTrade(st.ID, "000002", mustDay(t, "2024-01-03"))
	require.NoError(t, s.CreateStockTrade(ctx, a))
	require.NoError(t, s.CreateStockTrade(ctx, b))

	require.NoError(t, s.SoftDeleteStockTrade(ctx, 1, a.ID))
	assert.ErrorIs(t, s.SoftDeleteStockTrade(ctx, 1, a.ID), ledger.ErrNotFound)
	_, err = s.StockTradeByID(ctx, 1, a.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	n, err := s.ClearStockTrades(ctx, 1, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rest, err := s.ListStockTrades(ctx, 1, st.ID)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestEarliestAndLatestStockEvent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketStock)
	require.NoError(t, err)

	_, ok, err := s.EarliestStockEvent(ctx, st.ID)
	require.NoError(t, err)
	assert.False(t, ok, "空账本没有事件")

	tr := closeAt(stockTrade(st.ID, "000001", mustDay(t, "2024-01-02")), mustDay(t, "2024-01-09"))
	require.NoError(t, s.CreateStockTrade(ctx, tr))

	earliest, ok, err := s.EarliestStockEvent(ctx, st.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, dateutil.SameDay(earliest, mustDay(t, "2024-01-02")))

	latest, ok, err := s.LatestStockEvent(ctx, st.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, latest.Before(mustDay(t, "2024-01-09")))
}

func forexTrade(strategyID int64, symbol string, open time.Time) *model.ForexTrade {
	return &model.ForexTrade{
		UserID: 1, StrategyID: strategyID, Symbol: symbol, Side: model.SideBuy,
		Lots: decimal.NewFromFloat(0.1), OpenTime: open,
		OpenPrice: decimal.NewFromFloat(1.1), Status: model.StatusOpen,
	}
}

func TestForexAccountSeed(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	acct, err := s.ForexAccount(ctx, 1)
	require.NoError(t, err)
	assert.True(t, acct.InitialBalance.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, int64(100), acct.Leverage)
	assert.Equal(t, "USD", acct.Currency)

	again, err := s.ForexAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, again.ID)
}

func TestClosedForexTradesOrdering(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.DefaultStrategy(ctx, 1, model.MarketForex)
	require.NoError(t, err)

	late := forexTrade(st.ID, "EURUSD", mustDay(t, "2024-01-02"))
	late.Status = model.StatusClosed
	c1 := mustDay(t, "2024-01-20")
	late.CloseTime = &c1
	require.NoError(t, s.CreateForexTrade(ctx, late))

	early := forexTrade(st.ID, "GBPUSD", mustDay(t, "2024-01-03"))
	early.Status = model.StatusClosed
	c2 := mustDay(t, "2024-01-10")
	early.CloseTime = &c2
	require.NoError(t, s.CreateForexTrade(ctx, early))

	stillOpen := forexTrade(st.ID, "USDJPY", mustDay(t, "2024-01-04"))
	require.NoError(t, s.CreateForexTrade(ctx, stillOpen))

	closed, err := s.ClosedForexTrades(ctx, 1, &st.ID)
	require.NoError(t, err)
	require.Len(t, closed, 2)
	assert.Equal(t, "GBPUSD", closed[0].Symbol, "按平仓时间升序")
	assert.Equal(t, "EURUSD", closed[1].Symbol)

	open, err := s.OpenForexPositions(ctx, 1, &st.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "USDJPY", open[0].Symbol)
}

func TestClearForexTradesScoped(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st1, err := s.DefaultStrategy(ctx, 1, model.MarketForex)
	require.NoError(t, err)
	st2 := &model.Strategy{UserID: 1, Name: "剥头皮", Market: model.MarketForex}
	require.NoError(t, s.CreateStrategy(ctx, st2))

	require.NoError(t, s.CreateForexTrade(ctx, forexTrade(st1.ID, "EURUSD", mustDay(t, "2024-01-02"))))
	require.NoError(t, s.CreateForexTrade(ctx, forexTrade(st2.ID, "GBPUSD", mustDay(t, "2024-01-03"))))

	n, err := s.ClearForexTrades(ctx, 1, &st2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rest, err := s.ListForexTrades(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "EURUSD", rest[0].Symbol)
}
