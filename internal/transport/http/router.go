package journalhttp

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/apple-taste/trade-view/internal/journal"
	"github.com/apple-taste/trade-view/internal/ledger"
	"github.com/apple-taste/trade-view/internal/ledger/splitter"
	"github.com/apple-taste/trade-view/internal/logger"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/report"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Router 暴露交易日志与资金曲线接口。单用户部署, 用户ID来自配置。
type Router struct {
	svc    *journal.Service
	userID int64
}

func NewRouter(svc *journal.Service, userID int64) *Router {
	return &Router{svc: svc, userID: userID}
}

// Register 将 /api/journal 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/strategies", r.handleListStrategies)
	group.POST("/strategies", r.handleCreateStrategy)

	stock := group.Group("/stock")
	stock.GET("/trades", r.handleListStockTrades)
	stock.POST("/trades", r.handleCreateStockTrade)
	stock.PUT("/trades/:id", r.handleUpdateStockTrade)
	stock.DELETE("/trades/:id", r.handleDeleteStockTrade)
	stock.DELETE("/trades", r.handleClearStockTrades)
	stock.POST("/trades/:id/close", r.handleSplitClose)
	stock.GET("/capital-history", r.handleStockCapitalHistory)
	stock.POST("/recalculate", r.handleRecalculate)
	stock.POST("/anchor", r.handleResetAnchor)
	stock.GET("/report", r.handleStockReport)

	forexGrp := group.Group("/forex")
	forexGrp.GET("/account", r.handleForexAccount)
	// 读取账户本身就会触发一次对账, 这里只是给前端一个显式入口
	forexGrp.POST("/reconcile", r.handleForexAccount)
	forexGrp.POST("/account/initial", r.handleForexInitial)
	forexGrp.POST("/account/reset", r.handleForexReset)
	forexGrp.GET("/trades", r.handleListForexTrades)
	forexGrp.POST("/trades", r.handleCreateForexTrade)
	forexGrp.PUT("/trades/:id", r.handleUpdateForexTrade)
	forexGrp.POST("/trades/:id/close", r.handleCloseForexTrade)
	forexGrp.DELETE("/trades/:id", r.handleDeleteForexTrade)
	forexGrp.DELETE("/trades", r.handleClearForexTrades)
	forexGrp.GET("/positions", r.handleForexPositions)
	forexGrp.GET("/capital-history", r.handleForexCapitalHistory)
	forexGrp.GET("/report", r.handleForexReport)

	group.GET("/quotes", r.handleQuote)
}

// writeError 统一错误映射: 校验 400, 未找到 404, 其余 500。
func writeError(c *gin.Context, err error) {
	switch {
	case ledger.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在或已被删除"})
	default:
		logger.Errorf("[api] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) int64 {
	v, _ := strconv.ParseInt(c.Query(name), 10, 64)
	return v
}

func queryInt64Ptr(c *gin.Context, name string) *int64 {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryDay(c *gin.Context, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	d, err := dateutil.ParseDay(raw)
	if err != nil {
		return nil
	}
	return &d
}

func (r *Router) handleListStrategies(c *gin.Context) {
	out, err := r.svc.Strategies(c.Request.Context(), r.userID, c.Query("market"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleCreateStrategy(c *gin.Context) {
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	capital := decimal.NullDecimal{}
	if req.InitialCapital != nil {
		capital = decimal.NewNullDecimal(*req.InitialCapital)
	}
	var day *time.Time
	if req.InitialDate != "" {
		d, err := dateutil.ParseDay(req.InitialDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "日期格式错误, 请使用 YYYY-MM-DD"})
			return
		}
		day = &d
	}
	st, err := r.svc.CreateStrategy(c.Request.Context(), r.userID, req.Name, req.Market, capital, day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (r *Router) handleListStockTrades(c *gin.Context) {
	out, err := r.svc.StockTrades(c.Request.Context(), r.userID, queryInt64(c, "strategy_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleCreateStockTrade(c *gin.Context) {
	var req createStockTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := journal.StockTradeInput{
		StrategyID: req.StrategyID,
		Code:       req.Code,
		Name:       req.Name,
		Shares:     req.Shares,
		EntryPrice: req.EntryPrice,
		Tags:       req.Tags,
		Notes:      req.Notes,
	}
	if req.OpenTime != nil {
		in.OpenTime = *req.OpenTime
	}
	if req.EntryFee != nil {
		in.EntryFee = decimal.NewNullDecimal(*req.EntryFee)
	}
	if req.StopLoss != nil {
		in.StopLoss = decimal.NewNullDecimal(*req.StopLoss)
	}
	if req.TakeProfit != nil {
		in.TakeProfit = decimal.NewNullDecimal(*req.TakeProfit)
	}
	trade, err := r.svc.CreateStockTrade(c.Request.Context(), r.userID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (r *Router) handleUpdateStockTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateStockTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := r.svc.UpdateStockTrade(c.Request.Context(), r.userID, id, journal.StockTradeUpdate{
		Code:       req.Code,
		Name:       req.Name,
		OpenTime:   req.OpenTime,
		CloseTime:  req.CloseTime,
		Shares:     req.Shares,
		EntryPrice: req.EntryPrice,
		EntryFee:   req.EntryFee,
		ExitPrice:  req.ExitPrice,
		ExitFee:    req.ExitFee,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Tags:       req.Tags,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (r *Router) handleDeleteStockTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := r.svc.DeleteStockTrade(c.Request.Context(), r.userID, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) handleClearStockTrades(c *gin.Context) {
	n, err := r.svc.ClearStockTrades(c.Request.Context(), r.userID, queryInt64(c, "strategy_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (r *Router) handleSplitClose(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req splitCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := splitter.Request{Shares: req.Shares, ExitPrice: req.ExitPrice}
	if req.ExitTime != nil {
		in.ExitTime = *req.ExitTime
	}
	if req.ExitFee != nil {
		in.ExitFee = decimal.NewNullDecimal(*req.ExitFee)
	}
	res, err := r.svc.SplitClose(c.Request.Context(), r.userID, id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"closed":    res.Closed,
		"remaining": res.Remaining,
	})
}

func (r *Router) handleStockCapitalHistory(c *gin.Context) {
	out, err := r.svc.CapitalCurve(c.Request.Context(), r.userID, queryInt64(c, "strategy_id"),
		queryDay(c, "start_date"), queryDay(c, "end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleRecalculate(c *gin.Context) {
	var req recalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var start *time.Time
	if req.StartDate != "" {
		d, err := dateutil.ParseDay(req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "日期格式错误, 请使用 YYYY-MM-DD"})
			return
		}
		start = &d
	}
	if err := r.svc.ReplayStock(c.Request.Context(), r.userID, req.StrategyID, start); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "资金曲线已重新计算"})
}

func (r *Router) handleResetAnchor(c *gin.Context) {
	var req resetAnchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, err := dateutil.ParseDay(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "日期格式错误, 请使用 YYYY-MM-DD"})
		return
	}
	if err := r.svc.ResetStockAnchor(c.Request.Context(), r.userID, req.StrategyID, req.Capital, day); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "初始资金设置成功, 资金曲线已重新计算"})
}

func (r *Router) handleStockReport(c *gin.Context) {
	snaps, err := r.svc.CapitalCurve(c.Request.Context(), r.userID, queryInt64(c, "strategy_id"),
		queryDay(c, "start_date"), queryDay(c, "end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderEquityCurve(c.Writer, "资金曲线", snaps); err != nil {
		writeError(c, err)
	}
}

func (r *Router) handleForexAccount(c *gin.Context) {
	acct, err := r.svc.ForexAccountView(c.Request.Context(), r.userID, queryInt64Ptr(c, "strategy_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (r *Router) handleForexInitial(c *gin.Context) {
	var req forexInitialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var day *time.Time
	if req.Date != "" {
		d, err := dateutil.ParseDay(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "日期格式错误, 请使用 YYYY-MM-DD"})
			return
		}
		day = &d
	}
	acct, err := r.svc.SetForexInitial(c.Request.Context(), r.userID, req.Balance, day, req.StrategyID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (r *Router) handleForexReset(c *gin.Context) {
	var req forexResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var day time.Time
	if req.Date != "" {
		d, err := dateutil.ParseDay(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "日期格式错误, 请使用 YYYY-MM-DD"})
			return
		}
		day = d
	}
	acct, err := r.svc.ResetForexAccount(c.Request.Context(), r.userID, req.Balance, day, req.Leverage, req.StrategyID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (r *Router) handleListForexTrades(c *gin.Context) {
	out, err := r.svc.ForexTrades(c.Request.Context(), r.userID, queryInt64Ptr(c, "strategy_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleCreateForexTrade(c *gin.Context) {
	var req createForexTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := journal.ForexTradeInput{
		StrategyID: req.StrategyID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Lots:       req.Lots,
		OpenPrice:  req.OpenPrice,
		Notes:      req.Notes,
	}
	if req.OpenTime != nil {
		in.OpenTime = *req.OpenTime
	}
	if req.StopLoss != nil {
		in.StopLoss = decimal.NewNullDecimal(*req.StopLoss)
	}
	if req.TakeProfit != nil {
		in.TakeProfit = decimal.NewNullDecimal(*req.TakeProfit)
	}
	if req.Commission != nil {
		in.Commission = *req.Commission
	}
	if req.Swap != nil {
		in.Swap = *req.Swap
	}
	trade, err := r.svc.CreateForexTrade(c.Request.Context(), r.userID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (r *Router) handleUpdateForexTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateForexTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := r.svc.UpdateForexTrade(c.Request.Context(), r.userID, id, req.StopLoss, req.TakeProfit, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (r *Router) handleCloseForexTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req closeForexTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := journal.ForexCloseInput{
		ClosePrice: req.ClosePrice,
		Commission: req.Commission,
		Swap:       req.Swap,
	}
	if req.CloseTime != nil {
		in.CloseTime = *req.CloseTime
	}
	trade, err := r.svc.CloseForexTrade(c.Request.Context(), r.userID, id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (r *Router) handleDeleteForexTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := r.svc.DeleteForexTrade(c.Request.Context(), r.userID, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) handleClearForexTrades(c *gin.Context) {
	n, err := r.svc.ClearForexTrades(c.Request.Context(), r.userID, queryInt64Ptr(c, "strategy_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (r *Router) handleForexPositions(c *gin.Context) {
	out, err := r.svc.ForexPositions(c.Request.Context(), r.userID, queryInt64Ptr(c, "strategy_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleForexCapitalHistory(c *gin.Context) {
	points, err := r.svc.ForexCapitalCurve(c.Request.Context(), r.userID, queryInt64Ptr(c, "strategy_id"),
		queryDay(c, "start_date"), queryDay(c, "end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(points))
	for _, p := range points {
		out = append(out, gin.H{"date": dateutil.FormatDay(p.Day), "balance": p.Balance})
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleForexReport(c *gin.Context) {
	points, err := r.svc.ForexCapitalCurve(c.Request.Context(), r.userID, queryInt64Ptr(c, "strategy_id"),
		queryDay(c, "start_date"), queryDay(c, "end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderForexCurve(c.Writer, "外汇资金曲线", points); err != nil {
		writeError(c, err)
	}
}

func (r *Router) handleQuote(c *gin.Context) {
	symbol := c.Query("symbol")
	mid, err := r.svc.Quote(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "mid": mid})
}
