// Package journal orchestrates trade mutations and the derived-state engines:
// every write goes through here, gets validated, persisted, and followed by a
// replay or reconciliation of the affected scope.
package journal

import (
	"fmt"
	"time"

	"github.com/apple-taste/trade-view/internal/ledger/fees"
	"github.com/apple-taste/trade-view/internal/ledger/forex"
	"github.com/apple-taste/trade-view/internal/ledger/replay"
	"github.com/apple-taste/trade-view/internal/ledger/splitter"
	"github.com/apple-taste/trade-view/internal/market/quote"
	"github.com/apple-taste/trade-view/internal/store/gormstore"
)

type Service struct {
	store  *gormstore.Store
	fees   *fees.Registry
	split  *splitter.Splitter
	stock  *replay.Engine
	forex  *forex.Reconciler
	quotes quote.Provider

	locks *scopeLocks
	tasks taskRunner
}

func NewService(store *gormstore.Store, reg *fees.Registry, stock *replay.Engine, rec *forex.Reconciler, quotes quote.Provider) *Service {
	return &Service{
		store:  store,
		fees:   reg,
		split:  splitter.New(reg),
		stock:  stock,
		forex:  rec,
		quotes: quotes,
		locks:  newScopeLocks(),
	}
}

// Wait joins all background replays scheduled so far. The capital curve is
// only advisory-fresh between mutations; callers that need hard freshness
// wait here first.
func (s *Service) Wait() {
	s.tasks.Wait()
}

func stockScope(strategyID int64) string {
	return fmt.Sprintf("stock/%d", strategyID)
}

func forexScope(userID int64) string {
	return fmt.Sprintf("forex/%d", userID)
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
