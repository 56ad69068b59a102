package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/ledger/fees"
	"github.com/apple-taste/trade-view/internal/ledger/forex"
	"github.com/apple-taste/trade-view/internal/ledger/replay"
	"github.com/apple-taste/trade-view/internal/ledger/splitter"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/gormstore"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(s string) time.Time {
	d, err := dateutil.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeQuotes struct {
	prices map[string]decimal.Decimal
}

func (f *fakeQuotes) MidPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	if p, ok := f.prices[symbol]; ok {
		return p, nil
	}
	return decimal.Zero, errors.New("quote unavailable")
}

func newService(t *testing.T) (*Service, *gormstore.Store, *fakeQuotes) {
	t.Helper()
	st, err := gormstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg, err := fees.NewRegistry("")
	require.NoError(t, err)

	q := &fakeQuotes{prices: map[string]decimal.Decimal{}}
	svc := NewService(st,
		reg,
		replay.NewEngine(st, reg, dec("100000")),
		forex.NewReconciler(st, q),
		q,
	)
	return svc, st, q
}

func TestCreateStockTrade(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	trade, err := svc.CreateStockTrade(ctx, 1, StockTradeInput{
		Code:       "600519",
		Name:       "贵州茅台",
		OpenTime:   day("2024-03-04").Add(9 * time.Hour),
		Shares:     1000,
		EntryPrice: dec("10.00"),
		StopLoss:   decimal.NewNullDecimal(dec("9.00")),
		TakeProfit: decimal.NewNullDecimal(dec("13.00")),
	})
	require.NoError(t, err)
	assert.NotZero(t, trade.ID)
	assert.NotZero(t, trade.StrategyID, "default strategy must be assigned")
	// auto fee: 10000 x 0.0003 = 3 -> floor 5.00
	assert.True(t, trade.EntryFee.Equal(dec("5.00")), "got %s", trade.EntryFee)
	// theoretical RR: (13-10)/(10-9) = 3
	require.True(t, trade.TheoreticalRR.Valid)
	assert.True(t, trade.TheoreticalRR.Decimal.Equal(dec("3.00")))

	// the background replay must land before the curve is read
	svc.Wait()
	snaps, err := st.Snapshots(ctx, trade.StrategyID, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	assert.True(t, last.AvailableFunds.Equal(dec("89995")), "got %s", last.AvailableFunds)
	assert.True(t, last.PositionValue.Equal(dec("10000")))
}

func TestCreateStockTradeValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateStockTrade(ctx, 1, StockTradeInput{Shares: 100, EntryPrice: dec("10")})
	assert.True(t, ledger.IsValidation(err), "missing code: %v", err)

	_, err = svc.CreateStockTrade(ctx, 1, StockTradeInput{Code: "600519", Shares: 0, EntryPrice: dec("10")})
	assert.True(t, ledger.IsValidation(err), "zero shares: %v", err)

	_, err = svc.CreateStockTrade(ctx, 1, StockTradeInput{Code: "600519", Shares: 100, EntryPrice: decimal.Zero})
	assert.True(t, ledger.IsValidation(err), "zero price: %v", err)
}

func TestUpdateStockTradeCloseByExitPrice(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	trade, err := svc.CreateStockTrade(ctx, 1, StockTradeInput{
		Code:       "000001",
		OpenTime:   day("2024-03-04").Add(9 * time.Hour),
		Shares:     1000,
		EntryPrice: dec("10.00"),
	})
	require.NoError(t, err)
	svc.Wait()

	exit := dec("12.00")
	closeAt := day("2024-03-08").Add(14 * time.Hour)
	updated, err := svc.UpdateStockTrade(ctx, 1, trade.ID, StockTradeUpdate{
		ExitPrice: &exit,
		CloseTime: &closeAt,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusClosed, updated.Status)
	// sell fee: commission 5.00 + stamp 12.00 (Shenzhen code, no transfer)
	assert.True(t, updated.ExitFee.Equal(dec("17.00")), "got %s", updated.ExitFee)
	// P&L: 2000 - 5 - 17
	require.True(t, updated.ProfitLoss.Valid)
	assert.True(t, updated.ProfitLoss.Decimal.Equal(dec("1978.00")), "got %s", updated.ProfitLoss.Decimal)

	// update replays synchronously
	snaps, err := st.Snapshots(ctx, trade.StrategyID, nil, nil)
	require.NoError(t, err)
	last := snaps[len(snaps)-1]
	assert.True(t, last.AvailableFunds.Equal(dec("101978")), "got %s", last.AvailableFunds)
	assert.True(t, last.PositionValue.IsZero())
}

func TestSplitClosePartial(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	trade, err := svc.CreateStockTrade(ctx, 1, StockTradeInput{
		Code:       "600519",
		OpenTime:   day("2024-03-04").Add(9 * time.Hour),
		Shares:     1000,
		EntryPrice: dec("10.00"),
	})
	require.NoError(t, err)
	svc.Wait()

	res, err := svc.SplitClose(ctx, 1, trade.ID, splitter.Request{
		Shares:    300,
		ExitPrice: dec("12.00"),
		ExitTime:  day("2024-03-08").Add(14 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Remaining)
	require.NotNil(t, res.Closed)
	assert.NotZero(t, res.Closed.ID, "closed slice must be persisted")

	trades, err := st.ListStockTrades(ctx, 1, trade.StrategyID)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	var totalShares int64
	totalFee := decimal.Zero
	for _, tr := range trades {
		totalShares += tr.Shares
		totalFee = totalFee.Add(tr.EntryFee)
	}
	assert.Equal(t, int64(1000), totalShares)
	assert.True(t, totalFee.Equal(dec("5.00")), "entry fee conserved, got %s", totalFee)

	// the split replays before returning: the curve reflects the partial exit
	snaps, err := st.Snapshots(ctx, trade.StrategyID, nil, nil)
	require.NoError(t, err)
	last := snaps[len(snaps)-1]
	assert.True(t, last.PositionValue.Equal(dec("7000")), "got %s", last.PositionValue)
}

func TestSplitCloseRejectsOddLot(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	trade, err := svc.CreateStockTrade(ctx, 1, StockTradeInput{
		Code: "600519", OpenTime: day("2024-03-04"), Shares: 1000, EntryPrice: dec("10.00"),
	})
	require.NoError(t, err)
	svc.Wait()

	_, err = svc.SplitClose(ctx, 1, trade.ID, splitter.Request{
		Shares: 150, ExitPrice: dec("12.00"), ExitTime: day("2024-03-08"),
	})
	assert.True(t, ledger.IsValidation(err), "got %v", err)
}

func TestClearStockTradesRestoresAnchor(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	trade, err := svc.CreateStockTrade(ctx, 1, StockTradeInput{
		Code: "600519", OpenTime: day("2024-03-04"), Shares: 1000, EntryPrice: dec("10.00"),
	})
	require.NoError(t, err)
	svc.Wait()

	require.NoError(t, svc.ResetStockAnchor(ctx, 1, trade.StrategyID, dec("100000"), day("2024-01-01")))

	n, err := svc.ClearStockTrades(ctx, 1, trade.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	snaps, err := st.Snapshots(ctx, trade.StrategyID, nil, nil)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Day.Equal(day("2024-01-01")))
	assert.True(t, snaps[0].TotalEquity.Equal(dec("100000")))
}

func TestCapitalCurveCatchesUp(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	trade, err := svc.CreateStockTrade(ctx, 1, StockTradeInput{
		Code: "600519", OpenTime: day("2024-03-04"), Shares: 1000, EntryPrice: dec("10.00"),
	})
	require.NoError(t, err)
	svc.Wait()

	// wipe the snapshots behind the service's back; the read must self-heal
	require.NoError(t, st.DeleteSnapshots(ctx, trade.StrategyID))

	snaps, err := svc.CapitalCurve(ctx, 1, trade.StrategyID, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	assert.True(t, last.AvailableFunds.Equal(dec("89995")), "got %s", last.AvailableFunds)
}

func TestForexCreateCloseLifecycle(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	// pin the account anchor before the trade days
	acct, err := st.ForexAccount(ctx, 1)
	require.NoError(t, err)
	anchor := day("2024-01-01")
	acct.InitialBalance = dec("10000")
	acct.InitialDate = &anchor
	require.NoError(t, st.SaveForexAccount(ctx, acct))

	trade, err := svc.CreateForexTrade(ctx, 1, ForexTradeInput{
		Symbol:    "eur/usd",
		Side:      "buy",
		Lots:      dec("1"),
		OpenTime:  day("2024-01-10"),
		OpenPrice: dec("1.1000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", trade.Symbol)
	assert.Equal(t, model.SideBuy, trade.Side)
	svc.Wait()

	closed, err := svc.CloseForexTrade(ctx, 1, trade.ID, ForexCloseInput{
		ClosePrice: dec("1.1200"),
		CloseTime:  day("2024-01-20"),
	})
	require.NoError(t, err)
	require.True(t, closed.Profit.Valid)
	// (1.1200 - 1.1000) x 1 x 100000
	assert.True(t, closed.Profit.Decimal.Equal(dec("2000")), "got %s", closed.Profit.Decimal)

	got, err := st.ForexAccount(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("12000")), "got %s", got.Balance)
	assert.True(t, got.PeakEquity.Equal(dec("12000")))
}

func TestForexCloseRejectsClosedTrade(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	trade, err := svc.CreateForexTrade(ctx, 1, ForexTradeInput{
		Symbol: "EURUSD", Side: "BUY", Lots: dec("1"), OpenPrice: dec("1.1"),
	})
	require.NoError(t, err)
	svc.Wait()

	_, err = svc.CloseForexTrade(ctx, 1, trade.ID, ForexCloseInput{ClosePrice: dec("1.12")})
	require.NoError(t, err)

	_, err = svc.CloseForexTrade(ctx, 1, trade.ID, ForexCloseInput{ClosePrice: dec("1.13")})
	assert.True(t, ledger.IsValidation(err), "got %v", err)
}

func TestResetForexAccount(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	trade, err := svc.CreateForexTrade(ctx, 1, ForexTradeInput{
		Symbol: "EURUSD", Side: "BUY", Lots: dec("1"), OpenPrice: dec("1.1"),
	})
	require.NoError(t, err)
	svc.Wait()
	_, err = svc.CloseForexTrade(ctx, 1, trade.ID, ForexCloseInput{ClosePrice: dec("1.12")})
	require.NoError(t, err)

	acct, err := svc.ResetForexAccount(ctx, 1, dec("5000"), day("2024-06-01"), 200, nil)
	require.NoError(t, err)

	assert.True(t, acct.Balance.Equal(dec("5000")), "got %s", acct.Balance)
	assert.True(t, acct.Equity.Equal(dec("5000")))
	assert.Equal(t, int64(200), acct.Leverage)
	assert.True(t, acct.MaxDrawdown.IsZero())

	trades, err := st.ListForexTrades(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, trades, "reset wipes the trade ledger")
}

func TestCreateForexTradeValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateForexTrade(ctx, 1, ForexTradeInput{
		Symbol: "EUR", Side: "BUY", Lots: dec("1"), OpenPrice: dec("1.1"),
	})
	assert.True(t, ledger.IsValidation(err), "bad symbol: %v", err)

	_, err = svc.CreateForexTrade(ctx, 1, ForexTradeInput{
		Symbol: "EURUSD", Side: "HOLD", Lots: dec("1"), OpenPrice: dec("1.1"),
	})
	assert.True(t, ledger.IsValidation(err), "bad side: %v", err)

	_, err = svc.CreateForexTrade(ctx, 1, ForexTradeInput{
		Symbol: "EURUSD", Side: "SELL", Lots: decimal.Zero, OpenPrice: dec("1.1"),
	})
	assert.True(t, ledger.IsValidation(err), "zero lots: %v", err)
}
