package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"sweeping/ordersync/internal/entity"
)

// TaskDAO 上传任务数据访问对象
type TaskDAO struct {
	db *gorm.DB
}

// NewTaskDAO 创建 TaskDAO 实例（与 OrderDAO 共用连接）
func NewTaskDAO(db *gorm.DB) *TaskDAO {
	return &TaskDAO{db: db}
}

// Create 创建任务（提交时同步调用，状态 PENDING）
func (dao *TaskDAO) Create(ctx context.Context, task *entity.UploadTask) error {
	task.Status = entity.TaskStatusPending
	if err := dao.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create upload task failed: %w", err)
	}
	return nil
}

// Get 查询任务
func (dao *TaskDAO) Get(ctx context.Context, taskID string) (*entity.UploadTask, error) {
	var task entity.UploadTask
	if err := dao.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		return nil, fmt.Errorf("get upload task failed: %w", err)
	}
	return &task, nil
}

// MarkProcessing 任务进入后台处理
func (dao *TaskDAO) MarkProcessing(ctx context.Context, taskID string) error {
	return dao.update(ctx, taskID, map[string]interface{}{
		"status":     entity.TaskStatusProcessing,
		"updated_at": time.Now(),
	})
}

// UpdateTotals 写入解析出的订单总数（归一化完成后）
func (dao *TaskDAO) UpdateTotals(ctx context.Context, taskID string, total int) error {
	return dao.update(ctx, taskID, map[string]interface{}{
		"total_orders": total,
		"updated_at":   time.Now(),
	})
}

// MarkCompleted 任务完成（入库提交且计数齐备后才可调用）
func (dao *TaskDAO) MarkCompleted(ctx context.Context, taskID string, counts *UpsertResult, degradedChunks int, timings map[string]int64) error {
	timingsJSON, err := json.Marshal(timings)
	if err != nil {
		return fmt.Errorf("marshal stage timings failed: %w", err)
	}

	now := time.Now()
	return dao.update(ctx, taskID, map[string]interface{}{
		"status":           entity.TaskStatusCompleted,
		"processed_orders": counts.New + counts.Replaced,
		"new_orders":       counts.New,
		"replaced_orders":  counts.Replaced,
		"failed_rows":      counts.Failed,
		"degraded_chunks":  degradedChunks,
		"stage_timings":    timingsJSON,
		"completed_at":     &now,
		"updated_at":       now,
	})
}

// MarkFailed 任务失败（校验错误或未预期的异常）
func (dao *TaskDAO) MarkFailed(ctx context.Context, taskID string, errMsg string) error {
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	now := time.Now()
	return dao.update(ctx, taskID, map[string]interface{}{
		"status":        entity.TaskStatusFailed,
		"error_message": errMsg,
		"completed_at":  &now,
		"updated_at":    now,
	})
}

// update 统一更新入口
func (dao *TaskDAO) update(ctx context.Context, taskID string, updates map[string]interface{}) error {
	res := dao.db.WithContext(ctx).
		Model(&entity.UploadTask{}).
		Where("id = ?", taskID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update upload task failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("upload task not found: %s", taskID)
	}
	return nil
}
