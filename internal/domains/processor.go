package domains

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"
	"github.com/google/uuid"

	"sweeping/ordersync/internal/framework"
	"sweeping/ordersync/pkg/errorutil"
	"sweeping/ordersync/pkg/lmstfyx"
	"sweeping/ordersync/pkg/logger"
)

// 可重试错误的重投延迟（秒）
const retryDelaySec = 30

// GetProcess 返回核心处理函数（注入到 Processor）
func GetProcess(log logger.Logger, deps *Deps) lmstfyx.Proc {
	return func(ctx context.Context, lmstfyJob *client.Job) *lmstfyx.JobResp {
		startTime := time.Now()

		// 1. 解析 Job
		baseHandler, meta, err := parseJob(ctx, lmstfyJob, log)
		if err != nil {
			log.Errorf(ctx, "[GetProcess] parseJob failed: %v", err)
			return &lmstfyx.JobResp{
				Action: lmstfyx.JobRespStatusBury,
				Data:   nil,
			}
		}

		// 2. 注入 TraceID / 任务 ID 到 Context
		ctx = context.WithValue(ctx, logger.CtxKeyTraceID, meta.RequestID)
		ctx = context.WithValue(ctx, logger.CtxKeyTaskID, meta.ID)

		log.Infof(ctx, "[GetProcess] Processing job: action_type=%s, request_id=%s, id=%s",
			meta.ActionType, meta.RequestID, meta.ID)

		// 3. 从 HandlerMap 获取 Handler
		handlerFunc, ok := HandlerMap[meta.ActionType]
		if !ok {
			log.Errorf(ctx, "[GetProcess] handler not found for action_type: %s", meta.ActionType)
			return &lmstfyx.JobResp{
				Action: lmstfyx.JobRespStatusBury,
				Data:   nil,
			}
		}

		// 4. 调用 Handler（捕获 panic）
		var resp *lmstfyx.JobResp
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf(ctx, "[GetProcess] handler panic: %v", r)
					if deps.SweepService != nil && meta.ID != "" {
						deps.SweepService.Fail(ctx, meta.ID, fmt.Errorf("handler panic: %v", r))
					}
					resp = &lmstfyx.JobResp{
						Action: lmstfyx.JobRespStatusBury,
						Data:   nil,
					}
				}
			}()

			handler, err := handlerFunc(ctx, baseHandler, deps)
			if err != nil {
				log.Errorf(ctx, "[GetProcess] handler creation failed: %v", err)
				if deps.SweepService != nil && meta.ID != "" {
					deps.SweepService.Fail(ctx, meta.ID, err)
				}
				resp = &lmstfyx.JobResp{
					Action: lmstfyx.JobRespStatusBury,
					Data:   nil,
				}
				return
			}

			respData, handleErr := handler.Handle(ctx)
			resp = doJobReport(ctx, respData, handleErr, lmstfyJob, log)

			// 可重试错误耗尽重试额度被 Bury 时任务也必须到达终态，
			// 不可重试错误的 FAILED 已在 Handler 内部落库
			if resp.Action == lmstfyx.JobRespStatusBury && handleErr != nil && errorutil.IsRetryable(handleErr) {
				if deps.SweepService != nil && meta.ID != "" {
					deps.SweepService.Fail(ctx, meta.ID, handleErr)
				}
			}
		}()

		// 5. 记录处理时长
		duration := time.Since(startTime)
		log.Infof(ctx, "[GetProcess] Processing complete: action=%d, duration=%v", resp.Action, duration)

		return resp
	}
}

// parseJob 解析 Job，构建 BaseHandler
func parseJob(ctx context.Context, lmstfyJob *client.Job, log logger.Logger) (*framework.BaseHandler, *framework.JobMeta, error) {
	// 1. 反序列化 Job
	var standardJob framework.Job
	if err := json.Unmarshal(lmstfyJob.Data, &standardJob); err != nil {
		return nil, nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	// 2. 校验必填字段
	if standardJob.Payload == nil || standardJob.Payload.Data == nil {
		return nil, nil, fmt.Errorf("invalid job structure: payload.data is nil")
	}

	data := standardJob.Payload.Data

	// 3. 提取元数据
	meta := &framework.JobMeta{
		RequestID:  data.RequestID,
		ActionType: data.ActionType,
		PIC:        data.PIC,
		ID:         data.ID,
	}

	// RequestID 为空则生成一个
	if meta.RequestID == "" {
		meta.RequestID = uuid.New().String()
	}

	baseHandler := &framework.BaseHandler{}
	baseHandler.SetMeta(meta)
	baseHandler.SetBizPayload(data.Data)

	log.Debugf(ctx, "[parseJob] Parsed: action_type=%s, request_id=%s, id=%s",
		meta.ActionType, meta.RequestID, meta.ID)

	return baseHandler, meta, nil
}

// doJobReport 根据处理错误的可重试标记判定队列动作
//   - 成功 → Success（ACK）
//   - 可重试错误 → Release（延迟重投）
//   - 不可重试错误 → Bury
func doJobReport(ctx context.Context, respData []byte, handleErr error, lmstfyJob *client.Job, log logger.Logger) *lmstfyx.JobResp {
	if handleErr == nil {
		return &lmstfyx.JobResp{
			Action: lmstfyx.JobRespStatusSuccess,
			Data:   respData,
		}
	}

	if errorutil.IsRetryable(handleErr) {
		if lmstfyJob.RemainTries > 0 {
			log.Warnf(ctx, "[doJobReport] retryable error, release job (remain_tries=%d): %v",
				lmstfyJob.RemainTries, handleErr)
			return &lmstfyx.JobResp{
				Action:  lmstfyx.JobRespStatusRelease,
				Data:    respData,
				RetryIn: retryDelaySec,
			}
		}
		log.Errorf(ctx, "[doJobReport] retryable error but no tries left, bury: %v", handleErr)
	} else {
		log.Errorf(ctx, "[doJobReport] non-retryable error, bury: %v", handleErr)
	}

	return &lmstfyx.JobResp{
		Action: lmstfyx.JobRespStatusBury,
		Data:   respData,
	}
}
