package sweep

import (
	"context"
	"encoding/json"

	"sweeping/ordersync/internal/business/order/sweep/services"
	"sweeping/ordersync/internal/framework"
	"sweeping/ordersync/pkg/lmstfy"
)

// SweepHandler 订单清洗处理器
type SweepHandler struct {
	framework.BaseHandler

	payload       *SweepPayload
	sweepService  *services.SweepService
	lmstfyClient  *lmstfy.Client
	callbackQueue string
	notifyChannel string
	sweepResult   *services.SweepResult
}

// NewSweepHandler 创建订单清洗处理器
func NewSweepHandler(
	ctx context.Context,
	baseHandler *framework.BaseHandler,
	sweepService *services.SweepService,
	lmstfyClient *lmstfy.Client,
	callbackQueue string,
	notifyChannel string,
) (framework.BusinessHandler, error) {
	bizPayload := baseHandler.GetBizPayload()

	payloadBytes, err := json.Marshal(bizPayload)
	if err != nil {
		return nil, err
	}

	var payload SweepPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, err
	}

	handler := &SweepHandler{
		BaseHandler:   *baseHandler,
		payload:       &payload,
		sweepService:  sweepService,
		lmstfyClient:  lmstfyClient,
		callbackQueue: callbackQueue,
		notifyChannel: notifyChannel,
	}

	handler.SetResulter(NewSweepResulter())

	return handler, nil
}

// Handle 处理入口
// 函数链失败时错误随响应一并返回，由上层按可重试标记判定队列动作
func (h *SweepHandler) Handle(ctx context.Context) ([]byte, error) {
	processFuncs := []framework.ProcessorFunc{
		h.PreProcess,
		h.Process,
		h.PostProcess,
	}

	preProcessor := framework.NewPreProcessor(processFuncs)
	if err := preProcessor.Run(ctx); err != nil {
		data, _ := h.WrapErrorResponse(ctx, err)
		return data, err
	}

	output := h.GetOutput()
	return h.WrapResponse(ctx, output)
}
