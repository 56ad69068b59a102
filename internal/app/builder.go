package app

import (
	"fmt"
	"time"

	"github.com/apple-taste/trade-view/internal/config"
	"github.com/apple-taste/trade-view/internal/journal"
	"github.com/apple-taste/trade-view/internal/ledger/fees"
	"github.com/apple-taste/trade-view/internal/ledger/forex"
	"github.com/apple-taste/trade-view/internal/ledger/replay"
	"github.com/apple-taste/trade-view/internal/market/quote"
	"github.com/apple-taste/trade-view/internal/store/gormstore"
	journalhttp "github.com/apple-taste/trade-view/internal/transport/http"

	"github.com/shopspring/decimal"
)

// build 按依赖顺序装配全部组件: 存储→费率→行情→重算引擎→编排层→HTTP。
func build(cfg *config.Config) (*App, error) {
	store, err := gormstore.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store failed: %w", err)
	}

	reg, err := fees.NewRegistry(cfg.Ledger.FeeSchedulePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load fee schedule failed: %w", err)
	}

	cache := quote.NewCache(secondsToDuration(cfg.Quote.CacheTTLSecs))
	quotes := quote.NewERAPI(cfg.Quote.BaseURL, secondsToDuration(cfg.Quote.TimeoutSeconds), cache)

	engine := replay.NewEngine(store, reg, decimal.NewFromFloat(cfg.Ledger.DefaultInitialCapital))
	reconciler := forex.NewReconciler(store, quotes)
	svc := journal.NewService(store, reg, engine, reconciler, quotes)

	router := journalhttp.NewRouter(svc, cfg.Ledger.DefaultUserID)
	httpSrv := journalhttp.NewServer(cfg.App.HTTPAddr, router)

	return &App{cfg: cfg, store: store, journal: svc, httpSrv: httpSrv}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
