// Package fees computes stock transaction costs: a tiered commission with a
// floor, stamp duty on the sell side only, and a transfer levy for the
// Shanghai sub-market. Pure functions, decimal arithmetic, amounts rounded to
// 2 decimals.
package fees

import (
	"strings"

	"github.com/apple-taste/trade-view/internal/ledger"

	"github.com/shopspring/decimal"
)

// Schedule carries the rates applied by a Calculator.
type Schedule struct {
	CommissionRate    decimal.Decimal
	MinCommission     decimal.Decimal
	StampTaxRate      decimal.Decimal
	TransferFeeRate   decimal.Decimal
	TransferFeePrefix string
}

func decimalFromFloat(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// DefaultSchedule mirrors the broker's published tariff: 0.03% commission
// floored at 5.00, 0.1% stamp duty on sells, 0.02% transfer fee for Shanghai
// codes (prefix "6").
func DefaultSchedule() Schedule {
	return Schedule{
		CommissionRate:    decimal.NewFromFloat(0.0003),
		MinCommission:     decimal.NewFromFloat(5.0),
		StampTaxRate:      decimal.NewFromFloat(0.001),
		TransferFeeRate:   decimal.NewFromFloat(0.0002),
		TransferFeePrefix: "6",
	}
}

// Calculator applies one fee schedule. The zero value is unusable; construct
// via NewCalculator.
type Calculator struct {
	sched Schedule
}

func NewCalculator(sched Schedule) *Calculator {
	return &Calculator{sched: sched}
}

// BuyFee returns the commission charged on an entry.
func (c *Calculator) BuyFee(price decimal.Decimal, shares int64) (decimal.Decimal, error) {
	if err := checkArgs(price, shares); err != nil {
		return decimal.Zero, err
	}
	amount := price.Mul(decimal.NewFromInt(shares))
	return c.commission(amount).Round(2), nil
}

// SellFee returns commission + stamp duty + conditional transfer fee on an
// exit. code selects the sub-market surcharge.
func (c *Calculator) SellFee(price decimal.Decimal, shares int64, code string) (decimal.Decimal, error) {
	if err := checkArgs(price, shares); err != nil {
		return decimal.Zero, err
	}
	amount := price.Mul(decimal.NewFromInt(shares))
	total := c.commission(amount)
	total = total.Add(amount.Mul(c.sched.StampTaxRate))
	if c.sched.TransferFeePrefix != "" && strings.HasPrefix(code, c.sched.TransferFeePrefix) {
		total = total.Add(amount.Mul(c.sched.TransferFeeRate))
	}
	return total.Round(2), nil
}

// RoundTripFee returns the combined entry + exit cost.
func (c *Calculator) RoundTripFee(buyPrice, sellPrice decimal.Decimal, shares int64, code string) (decimal.Decimal, error) {
	buy, err := c.BuyFee(buyPrice, shares)
	if err != nil {
		return decimal.Zero, err
	}
	sell, err := c.SellFee(sellPrice, shares, code)
	if err != nil {
		return decimal.Zero, err
	}
	return buy.Add(sell).Round(2), nil
}

func (c *Calculator) commission(amount decimal.Decimal) decimal.Decimal {
	comm := amount.Mul(c.sched.CommissionRate)
	if comm.LessThan(c.sched.MinCommission) {
		return c.sched.MinCommission
	}
	return comm
}

func checkArgs(price decimal.Decimal, shares int64) error {
	if price.Sign() <= 0 {
		return ledger.Validationf("fee: price must be positive, got %s", price)
	}
	if shares <= 0 {
		return ledger.Validationf("fee: shares must be positive, got %d", shares)
	}
	return nil
}
