package domains

import (
	"context"

	"sweeping/ordersync/internal/business/order/sweep"
	"sweeping/ordersync/internal/business/order/sweep/services"
	"sweeping/ordersync/internal/framework"
	"sweeping/ordersync/pkg/lmstfy"
)

// Deps 业务处理器依赖集合（Worker 启动时装配）
type Deps struct {
	SweepService  *services.SweepService
	LmstfyClient  *lmstfy.Client
	CallbackQueue string
	NotifyChannel string
}

// HandlerFactory Handler 构造函数类型
type HandlerFactory func(
	ctx context.Context,
	baseHandler *framework.BaseHandler,
	deps *Deps,
) (framework.BusinessHandler, error)

// HandlerMap 路由表（ActionType → Handler 映射）
var HandlerMap = map[string]HandlerFactory{
	"order_sweep": newSweepHandler,

	// 未来扩展示例：
	// "order_export": export.NewExportHandler,
}

func newSweepHandler(ctx context.Context, baseHandler *framework.BaseHandler, deps *Deps) (framework.BusinessHandler, error) {
	return sweep.NewSweepHandler(ctx, baseHandler, deps.SweepService,
		deps.LmstfyClient, deps.CallbackQueue, deps.NotifyChannel)
}
