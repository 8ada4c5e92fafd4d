package services

import (
	"context"
	"time"

	"sweeping/ordersync/internal/entity"
	"sweeping/ordersync/internal/marketplace"
	"sweeping/ordersync/pkg/infra/flexo"
	"sweeping/ordersync/pkg/logger"
)

// ReconcileResult 单个订单号的对接比对结果
type ReconcileResult struct {
	InterfaceStatus  string
	OrderNumberFlexo string
	OrderStatusFlexo string
	ItemIDFlexo      string
}

// ReconcileOutcome 一次对接比对的整体结果
type ReconcileOutcome struct {
	Results        map[string]*ReconcileResult // 订单号 → 结果（覆盖全部输入订单号）
	DegradedChunks int                         // 超时降级的 chunk 数
}

// Reconciler 对接比对器：分块查询外部履约系统并判定对接状态
// 外部连接不可用或单 chunk 超时都降级为未对接，绝不阻塞整条流水线
type Reconciler struct {
	querier      flexo.Querier
	chunkSize    int
	chunkTimeout time.Duration
	logger       logger.Logger
}

// NewReconciler 创建比对器实例；querier 为 nil 表示外部连接在启动时就不可用
func NewReconciler(querier flexo.Querier, chunkSize int, chunkTimeout time.Duration, log logger.Logger) *Reconciler {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if chunkTimeout <= 0 {
		chunkTimeout = 30 * time.Second
	}
	return &Reconciler{
		querier:      querier,
		chunkSize:    chunkSize,
		chunkTimeout: chunkTimeout,
		logger:       log,
	}
}

// chunkReply 单个 chunk 查询的返回（goroutine → 看门狗）
type chunkReply struct {
	rows map[string]*flexo.Order
	err  error
}

// Reconcile 比对一批订单号
// 每个 chunk 在独立 goroutine 中查询，看门狗超时后放弃该 chunk；
// 迟到的结果写入该 chunk 自己的缓冲通道后无人读取，自然丢弃
func (r *Reconciler) Reconcile(ctx context.Context, schema *marketplace.Schema, orderNos []string) *ReconcileOutcome {
	outcome := &ReconcileOutcome{
		Results: make(map[string]*ReconcileResult, len(orderNos)),
	}

	// 默认全部未对接，查到的再覆盖
	for _, orderNo := range orderNos {
		outcome.Results[orderNo] = &ReconcileResult{
			InterfaceStatus: entity.InterfaceStatusNotYet,
		}
	}

	if len(orderNos) == 0 {
		return outcome
	}

	chunks := splitChunks(orderNos, r.chunkSize)

	if r.querier == nil {
		// 外部连接不可用：整批降级，任务继续
		outcome.DegradedChunks = len(chunks)
		r.logger.Warnf(ctx, "[Reconciler] External system unavailable, %d chunks degraded to not-yet-interfaced", len(chunks))
		return outcome
	}

	for i, chunk := range chunks {
		replyCh := make(chan chunkReply, 1)

		go func(chunk []string) {
			rows, err := r.querier.FetchChunk(ctx, schema.FlexoKeyColumn, chunk)
			replyCh <- chunkReply{rows: rows, err: err}
		}(chunk)

		select {
		case reply := <-replyCh:
			if reply.err != nil {
				outcome.DegradedChunks++
				r.logger.Warnf(ctx, "[Reconciler] Chunk %d/%d query failed, degraded: %v", i+1, len(chunks), reply.err)
				continue
			}
			r.applyChunk(ctx, outcome, reply.rows)
		case <-time.After(r.chunkTimeout):
			outcome.DegradedChunks++
			r.logger.Warnf(ctx, "[Reconciler] Chunk %d/%d timed out after %s, degraded", i+1, len(chunks), r.chunkTimeout)
		case <-ctx.Done():
			// 整个任务被取消：余下 chunk 全部降级
			outcome.DegradedChunks += len(chunks) - i
			r.logger.Warnf(ctx, "[Reconciler] Context cancelled, remaining %d chunks degraded", len(chunks)-i)
			return outcome
		}
	}

	interfaced := 0
	for _, res := range outcome.Results {
		if res.InterfaceStatus == entity.InterfaceStatusInterface {
			interfaced++
		}
	}
	r.logger.Infof(ctx, "[Reconciler] Reconciled %d orders: %d interfaced, %d chunks degraded",
		len(orderNos), interfaced, outcome.DegradedChunks)

	return outcome
}

// applyChunk 将一个 chunk 的查询结果合入比对结果
func (r *Reconciler) applyChunk(ctx context.Context, outcome *ReconcileOutcome, rows map[string]*flexo.Order) {
	for orderNo, row := range rows {
		res, ok := outcome.Results[orderNo]
		if !ok {
			continue
		}
		res.InterfaceStatus = entity.InterfaceStatusInterface
		res.OrderNumberFlexo = row.FlexoOrderNo
		res.OrderStatusFlexo = row.OrderStatus
		res.ItemIDFlexo = row.ItemIDs
	}
}

// splitChunks 将订单号切分为定长 chunk
func splitChunks(orderNos []string, size int) [][]string {
	chunks := make([][]string, 0, (len(orderNos)+size-1)/size)
	for start := 0; start < len(orderNos); start += size {
		end := start + size
		if end > len(orderNos) {
			end = len(orderNos)
		}
		chunks = append(chunks, orderNos[start:end])
	}
	return chunks
}
