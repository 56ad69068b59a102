package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	for in, want := range map[string]string{
		"eurusd":   "EURUSD",
		" EUR/USD": "EURUSD",
		"xauusd":   "XAUUSD",
	} {
		got, err := NormalizeSymbol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "EUR", "EURUSDX", "EUR123", "EUR-USD"} {
		_, err := NormalizeSymbol(in)
		require.Error(t, err, in)
		assert.True(t, ledger.IsValidation(err))
	}
}

func TestERAPIMidPrice(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		assert.Equal(t, "/EUR", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":"success","rates":{"USD":1.0850,"JPY":163.2}}`))
	}))
	defer srv.Close()

	p := NewERAPI(srv.URL, time.Second, NewCache(2*time.Second))

	mid, err := p.MidPrice(context.Background(), "EUR/USD")
	require.NoError(t, err)
	assert.True(t, mid.Equal(decimal.NewFromFloat(1.0850)), "got %s", mid)

	// second lookup within the TTL is served from the cache
	_, err = p.MidPrice(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestERAPICacheExpiry(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		_, _ = w.Write([]byte(`{"rates":{"USD":1.1}}`))
	}))
	defer srv.Close()

	clock := time.Now()
	cache := NewCache(2 * time.Second).WithClock(func() time.Time { return clock })
	p := NewERAPI(srv.URL, time.Second, cache)

	_, err := p.MidPrice(context.Background(), "EURUSD")
	require.NoError(t, err)

	clock = clock.Add(3 * time.Second)
	_, err = p.MidPrice(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestERAPIErrors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		p := NewERAPI(srv.URL, time.Second, NewCache(time.Second))
		_, err := p.MidPrice(context.Background(), "EURUSD")
		assert.Error(t, err)
	})

	t.Run("missing counter currency", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"rates":{"JPY":163.2}}`))
		}))
		defer srv.Close()
		p := NewERAPI(srv.URL, time.Second, NewCache(time.Second))
		_, err := p.MidPrice(context.Background(), "EURUSD")
		assert.Error(t, err)
	})
}
