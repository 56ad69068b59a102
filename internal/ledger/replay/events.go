package replay

import (
	"sort"
	"time"

	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"
)

type eventKind int

const (
	eventOpen eventKind = iota
	eventClose
)

type event struct {
	at    time.Time
	kind  eventKind
	trade *model.StockTrade
}

// buildEvents turns trades into the replay event stream: an open event per
// trade opened on/after fromDay, a close event per closed trade whose close
// lands on/after fromDay. Close time falls back to update time, then open
// time, and never precedes the open.
func buildEvents(trades []model.StockTrade, fromDay time.Time) []event {
	from := dateutil.DayOf(fromDay)
	events := make([]event, 0, 2*len(trades))
	for i := range trades {
		t := &trades[i]
		if !dateutil.DayOf(t.OpenTime).Before(from) {
			events = append(events, event{at: t.OpenTime, kind: eventOpen, trade: t})
		}
		if t.Status != model.StatusClosed || !t.ExitPrice.Valid {
			continue
		}
		at := closeInstant(t)
		if !dateutil.DayOf(at).Before(from) {
			events = append(events, event{at: at, kind: eventClose, trade: t})
		}
	}
	// 同日多笔按时间先后, 开仓先于同一时刻的平仓
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].kind < events[j].kind
		}
		return events[i].at.Before(events[j].at)
	})
	return events
}

func closeInstant(t *model.StockTrade) time.Time {
	at := t.OpenTime
	switch {
	case t.CloseTime != nil:
		at = *t.CloseTime
	case !t.UpdatedAt.IsZero():
		at = t.UpdatedAt
	}
	if at.Before(t.OpenTime) {
		at = t.OpenTime
	}
	return at
}
