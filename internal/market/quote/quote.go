// Package quote supplies live mid-prices for forex pairs. The only
// implementation talks to ExchangeRate-API; callers treat failures as
// advisory and decide themselves whether to soft-fail.
package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// Provider returns the current mid-price for a six-letter pair like "EURUSD".
type Provider interface {
	MidPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// NormalizeSymbol canonicalizes user input ("eur/usd" -> "EURUSD") and rejects
// anything that is not a six-letter pair.
func NormalizeSymbol(symbol string) (string, error) {
	sym := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
	if len(sym) != 6 {
		return "", ledger.Validationf("unsupported symbol format: %q", symbol)
	}
	for _, r := range sym {
		if r < 'A' || r > 'Z' {
			return "", ledger.Validationf("unsupported symbol format: %q", symbol)
		}
	}
	return sym, nil
}

// ERAPI fetches rates from open.er-api.com. One upstream call returns every
// rate for a base currency; the cache plus singleflight keep bursts of
// per-position lookups down to one request per base within the TTL.
type ERAPI struct {
	baseURL string
	client  *http.Client
	cache   *Cache
	group   singleflight.Group
}

func NewERAPI(baseURL string, timeout time.Duration, cache *Cache) *ERAPI {
	if baseURL == "" {
		baseURL = "https://open.er-api.com/v6/latest"
	}
	return &ERAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
	}
}

func (p *ERAPI) MidPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	base, counter := sym[:3], sym[3:]

	if mid, ok := p.cache.Get(sym); ok {
		return mid, nil
	}

	v, err, _ := p.group.Do(sym, func() (interface{}, error) {
		if mid, ok := p.cache.Get(sym); ok {
			return mid, nil
		}
		mid, err := p.fetch(ctx, base, counter)
		if err != nil {
			return nil, err
		}
		p.cache.Put(sym, mid)
		return mid, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (p *ERAPI) fetch(ctx context.Context, base, counter string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s", p.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote fetch %s: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("quote fetch %s: HTTP %d", base, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote fetch %s: %w", base, err)
	}
	rate := gjson.GetBytes(body, "rates."+counter)
	if !rate.Exists() {
		return decimal.Zero, fmt.Errorf("quote fetch %s: no rate for %s", base, counter)
	}
	mid := decimal.NewFromFloat(rate.Float())
	if !mid.IsPositive() {
		return decimal.Zero, fmt.Errorf("quote fetch %s: non-positive rate for %s", base, counter)
	}
	return mid, nil
}
