package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"sweeping/ordersync/internal/entity"
	"sweeping/ordersync/pkg/errorutil"
	"sweeping/ordersync/pkg/infra/mysql"
	infraredis "sweeping/ordersync/pkg/infra/redis"
	"sweeping/ordersync/pkg/logger"
)

// SweepResult 一次清洗任务的最终结果
type SweepResult struct {
	TaskID         string
	Marketplace    string
	Brand          string
	Batch          string
	TotalOrders    int
	NewOrders      int
	ReplacedOrders int
	FailedRows     int
	DegradedChunks int
	OrderlistPath  string
	OrderlistLines int
	Warnings       []string
	StageTimings   map[string]int64 // 各阶段耗时（毫秒）
}

// SweepService 订单清洗服务：摄取 → 归一化 → 对接比对 → 入库 → Orderlist 交接
type SweepService struct {
	ingestor   *Ingestor
	normalizer *Normalizer
	reconciler *Reconciler
	writer     *OrderlistWriter
	orderDAO   *mysql.OrderDAO
	taskDAO    *mysql.TaskDAO
	cache      *infraredis.TaskCache
	logger     logger.Logger
}

// NewSweepService 创建清洗服务实例
func NewSweepService(
	ingestor *Ingestor,
	normalizer *Normalizer,
	reconciler *Reconciler,
	writer *OrderlistWriter,
	orderDAO *mysql.OrderDAO,
	taskDAO *mysql.TaskDAO,
	cache *infraredis.TaskCache,
	log logger.Logger,
) *SweepService {
	return &SweepService{
		ingestor:   ingestor,
		normalizer: normalizer,
		reconciler: reconciler,
		writer:     writer,
		orderDAO:   orderDAO,
		taskDAO:    taskDAO,
		cache:      cache,
		logger:     log,
	}
}

// Run 执行一次清洗任务
// 校验类失败返回不可重试错误（任务置 FAILED 由调用方负责），
// 外部比对降级不算失败，任务照常完成
func (s *SweepService) Run(ctx context.Context, taskID, pic, filename, filePath string) (*SweepResult, error) {
	result := &SweepResult{
		TaskID:       taskID,
		StageTimings: make(map[string]int64),
	}
	uploadTime := time.Now()

	// 1. 任务进入处理中
	if err := s.taskDAO.MarkProcessing(ctx, taskID); err != nil {
		return nil, errorutil.Retriable(fmt.Sprintf("mark task processing failed: %v", err))
	}
	s.cacheSnapshot(ctx, taskID, entity.TaskStatusProcessing, result, "")

	// 2. 读取并摄取表格
	stageStart := time.Now()
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errorutil.NonRetriable(fmt.Sprintf("read upload file failed: %v", err))
	}

	meta, sheet, cols, err := s.ingestor.Ingest(ctx, fileData, filename)
	if err != nil {
		return nil, errorutil.NonRetriable(err.Error())
	}
	result.Marketplace = meta.Channel
	result.Brand = meta.Brand
	result.Batch = meta.Batch
	result.StageTimings["ingest"] = time.Since(stageStart).Milliseconds()
	ctx = context.WithValue(ctx, logger.CtxKeyMarketplace, meta.Channel)

	// 3. 归一化（同单多行合并）
	stageStart = time.Now()
	orders := s.normalizer.Normalize(ctx, meta, sheet, cols, uploadTime)
	if len(orders) == 0 {
		return nil, errorutil.NonRetriable("no valid order rows found in spreadsheet")
	}
	result.TotalOrders = len(orders)
	result.StageTimings["normalize"] = time.Since(stageStart).Milliseconds()

	if err := s.taskDAO.UpdateTotals(ctx, taskID, len(orders)); err != nil {
		s.logger.Warnf(ctx, "[Sweep] Update task totals failed: %v", err)
	}
	s.cacheSnapshot(ctx, taskID, entity.TaskStatusProcessing, result, "")

	// 4. 对接比对
	stageStart = time.Now()
	orderNos := make([]string, 0, len(orders))
	for _, o := range orders {
		orderNos = append(orderNos, o.OrderNumber)
	}
	outcome := s.reconciler.Reconcile(ctx, meta.Schema, orderNos)
	result.DegradedChunks = outcome.DegradedChunks
	result.StageTimings["reconcile"] = time.Since(stageStart).Milliseconds()

	// 5. 入库
	stageStart = time.Now()
	entities := s.buildEntities(ctx, taskID, pic, meta, orders, outcome, uploadTime)
	upsert, err := s.orderDAO.Upsert(ctx, entities)
	if err != nil {
		return nil, errorutil.Retriable(fmt.Sprintf("upsert orders failed: %v", err))
	}
	result.NewOrders = upsert.New
	result.ReplacedOrders = upsert.Replaced
	result.FailedRows = upsert.Failed
	result.StageTimings["upsert"] = time.Since(stageStart).Milliseconds()

	// 6. Orderlist 交接（告警不阻塞任务完成）
	stageStart = time.Now()
	notInterfaced, err := s.orderDAO.ListNotInterfaced(ctx, taskID)
	if err != nil {
		s.logger.Warnf(ctx, "[Sweep] List not-interfaced orders failed, skip orderlist: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("orderlist skipped: %v", err))
	} else {
		report, werr := s.writer.Write(ctx, pic, meta.Schema, meta.Brand, taskID, notInterfaced)
		if werr != nil {
			s.logger.Warnf(ctx, "[Sweep] Orderlist write failed: %v", werr)
			result.Warnings = append(result.Warnings, fmt.Sprintf("orderlist write failed: %v", werr))
		} else {
			result.OrderlistPath = report.Path
			result.OrderlistLines = report.Lines
			if report.Warning != "" {
				result.Warnings = append(result.Warnings, report.Warning)
			}
		}
	}
	result.StageTimings["orderlist"] = time.Since(stageStart).Milliseconds()

	// 7. 任务完成
	if err := s.taskDAO.MarkCompleted(ctx, taskID, upsert, outcome.DegradedChunks, result.StageTimings); err != nil {
		return nil, errorutil.Retriable(fmt.Sprintf("mark task completed failed: %v", err))
	}
	s.cacheSnapshot(ctx, taskID, entity.TaskStatusCompleted, result, "")

	s.logger.Infof(ctx, "[Sweep] Task %s completed: total=%d, new=%d, replaced=%d, failed=%d, degraded=%d",
		taskID, result.TotalOrders, result.NewOrders, result.ReplacedOrders, result.FailedRows, result.DegradedChunks)

	return result, nil
}

// Fail 任务失败收尾：落库 + 刷新缓存快照
func (s *SweepService) Fail(ctx context.Context, taskID string, cause error) {
	if err := s.taskDAO.MarkFailed(ctx, taskID, cause.Error()); err != nil {
		s.logger.Errorf(ctx, "[Sweep] Mark task %s failed error: %v", taskID, err)
	}
	s.cacheSnapshot(ctx, taskID, entity.TaskStatusFailed, &SweepResult{TaskID: taskID}, cause.Error())
}

// Notify 发布任务完成通知（pubsub，尽力而为）
func (s *SweepService) Notify(ctx context.Context, channel, taskID, pic, mkt, status string) {
	if s.cache == nil || channel == "" {
		return
	}
	err := s.cache.PublishSweepComplete(ctx, channel, &infraredis.SweepNotification{
		TaskID:      taskID,
		PIC:         pic,
		Marketplace: mkt,
		Status:      status,
		Timestamp:   time.Now().Unix(),
	})
	if err != nil {
		s.logger.Warnf(ctx, "[Sweep] Publish sweep notification failed: %v", err)
	}
}

// buildEntities 归一化订单 + 比对结果 → 入库实体
// 已对接但两侧 SKU 集合不一致的订单打上备注，便于人工核对
func (s *SweepService) buildEntities(ctx context.Context, taskID, pic string, meta *UploadMeta,
	orders []*CanonicalOrder, outcome *ReconcileOutcome, uploadTime time.Time) []*entity.UploadedOrder {

	entities := make([]*entity.UploadedOrder, 0, len(orders))
	mismatches := 0

	for _, o := range orders {
		itemID := JoinSKUs(o.SKUs)
		rec := outcome.Results[o.OrderNumber]

		row := &entity.UploadedOrder{
			Marketplace:      meta.Channel,
			Brand:            meta.Brand,
			OrderNumber:      o.OrderNumber,
			OrderStatus:      o.OrderStatus,
			AWB:              o.AWB,
			Transporter:      o.Transporter,
			OrderDate:        o.OrderDate,
			SLA:              o.SLA,
			Batch:            meta.Batch,
			PIC:              pic,
			UploadDate:       uploadTime,
			ItemID:           itemID,
			InterfaceStatus:  rec.InterfaceStatus,
			OrderNumberFlexo: rec.OrderNumberFlexo,
			OrderStatusFlexo: rec.OrderStatusFlexo,
			ItemIDFlexo:      rec.ItemIDFlexo,
			TaskID:           taskID,
		}

		if rec.InterfaceStatus == entity.InterfaceStatusInterface && rec.ItemIDFlexo != "" &&
			NormalizeSKUList(itemID) != NormalizeSKUList(rec.ItemIDFlexo) {
			row.Remark = "ITEM MISMATCH"
			mismatches++
		}

		entities = append(entities, row)
	}

	if mismatches > 0 {
		s.logger.Warnf(ctx, "[Sweep] %d orders have mismatched item lists against external system", mismatches)
	}

	return entities
}

// cacheSnapshot 刷新任务状态快照（尽力而为，缓存故障不影响主流程）
func (s *SweepService) cacheSnapshot(ctx context.Context, taskID, status string, r *SweepResult, errMsg string) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(ctx, &infraredis.TaskStatus{
		TaskID:          taskID,
		Status:          status,
		Marketplace:     r.Marketplace,
		Brand:           r.Brand,
		TotalOrders:     r.TotalOrders,
		ProcessedOrders: r.NewOrders + r.ReplacedOrders,
		NewOrders:       r.NewOrders,
		ReplacedOrders:  r.ReplacedOrders,
		FailedRows:      r.FailedRows,
		DegradedChunks:  r.DegradedChunks,
		StageTimings:    r.StageTimings,
		ErrorMessage:    errMsg,
	})
	if err != nil {
		s.logger.Warnf(ctx, "[Sweep] Cache task snapshot failed: %v", err)
	}
}
