package sweep

import (
	"context"
	"time"

	"sweeping/ordersync/internal/entity"
	"sweeping/ordersync/pkg/errorutil"
)

// PreProcess 预处理：校验业务数据
func (h *SweepHandler) PreProcess(ctx context.Context) error {
	if h.payload.TaskID == "" {
		return errorutil.NonRetriable("task_id is required")
	}

	if h.payload.PIC == "" {
		return errorutil.NonRetriable("pic is required")
	}

	if h.payload.Filename == "" {
		return errorutil.NonRetriable("filename is required")
	}

	if h.payload.FilePath == "" {
		return errorutil.NonRetriable("file_path is required")
	}

	return nil
}

// Process 核心处理：执行清洗流水线
// 不可重试错误（校验失败）直接把任务置 FAILED；
// 可重试错误保持 PROCESSING，等待队列按 TTR 重投
func (h *SweepHandler) Process(ctx context.Context) error {
	result, err := h.sweepService.Run(ctx, h.payload.TaskID, h.payload.PIC, h.payload.Filename, h.payload.FilePath)
	if err != nil {
		if !errorutil.IsRetryable(err) {
			h.sweepService.Fail(ctx, h.payload.TaskID, err)
			h.sweepService.Notify(ctx, h.notifyChannel, h.payload.TaskID, h.payload.PIC, "", entity.TaskStatusFailed)
		}
		return err
	}

	h.sweepResult = result

	return nil
}

// PostProcess 后处理：组装输出、发布完成通知与回调
func (h *SweepHandler) PostProcess(ctx context.Context) error {
	err := h.GetResulter().Set(ctx, &SweepResultData{
		TaskID:         h.sweepResult.TaskID,
		Marketplace:    h.sweepResult.Marketplace,
		Brand:          h.sweepResult.Brand,
		Batch:          h.sweepResult.Batch,
		TotalOrders:    h.sweepResult.TotalOrders,
		NewOrders:      h.sweepResult.NewOrders,
		ReplacedOrders: h.sweepResult.ReplacedOrders,
		FailedRows:     h.sweepResult.FailedRows,
		DegradedChunks: h.sweepResult.DegradedChunks,
		OrderlistPath:  h.sweepResult.OrderlistPath,
		OrderlistLines: h.sweepResult.OrderlistLines,
		Warnings:       h.sweepResult.Warnings,
		ProcessedAt:    time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	output := h.GetResulter().Get(ctx)
	h.SetOutput(output)

	h.sweepService.Notify(ctx, h.notifyChannel, h.payload.TaskID, h.payload.PIC,
		h.sweepResult.Marketplace, entity.TaskStatusCompleted)

	return h.sendCallback(ctx)
}

// sendCallback 将清洗结果投递到回调队列（未配置则跳过）
func (h *SweepHandler) sendCallback(ctx context.Context) error {
	if h.lmstfyClient == nil || h.callbackQueue == "" {
		return nil
	}

	data, err := h.WrapResponse(ctx, h.GetOutput())
	if err != nil {
		return err
	}

	return h.lmstfyClient.Publish(h.callbackQueue, data, 3600, 0)
}
