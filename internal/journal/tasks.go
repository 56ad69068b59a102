package journal

import (
	"context"
	"sync"

	"github.com/apple-taste/trade-view/internal/logger"
)

// taskRunner runs replays detached from the triggering request. Failures are
// logged and swallowed, they never surface as an error of the mutation that
// scheduled them. Wait joins all in-flight tasks, used by freshness-critical
// readers and by shutdown.
type taskRunner struct {
	wg sync.WaitGroup
}

func (r *taskRunner) Go(name string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				logger.Errorf("后台任务 %s panic: %v", name, p)
			}
		}()
		if err := fn(context.Background()); err != nil {
			logger.Errorf("后台任务 %s 失败: %v", name, err)
		}
	}()
}

func (r *taskRunner) Wait() {
	r.wg.Wait()
}
