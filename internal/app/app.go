package app

import (
	"context"
	"fmt"

	"github.com/apple-taste/trade-view/internal/config"
	"github.com/apple-taste/trade-view/internal/journal"
	"github.com/apple-taste/trade-view/internal/logger"
	"github.com/apple-taste/trade-view/internal/store/gormstore"
	journalhttp "github.com/apple-taste/trade-view/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排: 加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg     *config.Config
	store   *gormstore.Store
	journal *journal.Service
	httpSrv *journalhttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run 启动 HTTP 服务并阻塞到 ctx 取消; 退出前等待后台重算收尾。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("trade-view 启动（环境=%s, 数据文件=%s）", a.cfg.App.Env, a.cfg.Store.Path)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()

	a.journal.Wait()
	if cerr := a.store.Close(); cerr != nil {
		logger.Warnf("关闭数据库失败: %v", cerr)
	}
	return err
}
