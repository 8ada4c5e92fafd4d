package tasksvc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sweeping/ordersync/internal/business/order/sweep/services"
	"sweeping/ordersync/internal/entity"
	"sweeping/ordersync/internal/framework"
	"sweeping/ordersync/pkg/errorutil"
	"sweeping/ordersync/pkg/infra/mysql"
	infraredis "sweeping/ordersync/pkg/infra/redis"
	"sweeping/ordersync/pkg/lmstfy"
	"sweeping/ordersync/pkg/logger"
)

// TaskService 上传任务服务：接收上传、创建任务、投递清洗 Job、查询状态
type TaskService struct {
	taskDAO       *mysql.TaskDAO
	cache         *infraredis.TaskCache
	lmstfyClient  *lmstfy.Client
	queue         string
	workspaceRoot string
	logger        logger.Logger
}

// NewTaskService 创建任务服务实例
func NewTaskService(
	taskDAO *mysql.TaskDAO,
	cache *infraredis.TaskCache,
	lmstfyClient *lmstfy.Client,
	queue string,
	workspaceRoot string,
	log logger.Logger,
) *TaskService {
	return &TaskService{
		taskDAO:       taskDAO,
		cache:         cache,
		lmstfyClient:  lmstfyClient,
		queue:         queue,
		workspaceRoot: workspaceRoot,
		logger:        log,
	}
}

// Submit 接收一次上传：文件名校验 → 暂存文件 → 同步建任务 → 投递清洗 Job
// 文件名不合法在入队前直接拒绝；任务创建成功后入队失败则任务置 FAILED
func (s *TaskService) Submit(ctx context.Context, pic, filename string, fileData []byte) (*entity.UploadTask, error) {
	if pic == "" {
		return nil, errorutil.NonRetriable("pic is required")
	}

	// 1. 入队前先校验文件名（坏文件名直接拒绝，不产生任务）
	meta, err := services.ParseFilename(filename)
	if err != nil {
		return nil, errorutil.NonRetriable(err.Error())
	}

	// 2. 暂存上传文件（带 PIC 与时间戳，避免并发上传同名互踩）
	filePath, err := s.storeUpload(pic, filename, fileData)
	if err != nil {
		return nil, errorutil.Retriable(fmt.Sprintf("store upload file failed: %v", err))
	}

	// 3. 同步创建任务（PENDING）
	task := &entity.UploadTask{
		ID:          uuid.New().String(),
		PIC:         pic,
		Marketplace: meta.Channel,
		Brand:       meta.Brand,
		Batch:       meta.Batch,
		Filename:    filepath.Base(filename),
	}
	if err := s.taskDAO.Create(ctx, task); err != nil {
		return nil, errorutil.Retriable(fmt.Sprintf("create task failed: %v", err))
	}
	s.cacheSnapshot(ctx, task)

	// 4. 投递清洗 Job
	if err := s.publishSweepJob(ctx, task, filename, filePath); err != nil {
		s.logger.Errorf(ctx, "[TaskService] Publish sweep job failed for task %s: %v", task.ID, err)
		if ferr := s.taskDAO.MarkFailed(ctx, task.ID, "enqueue sweep job failed: "+err.Error()); ferr != nil {
			s.logger.Errorf(ctx, "[TaskService] Mark task %s failed error: %v", task.ID, ferr)
		}
		return nil, errorutil.Retriable(fmt.Sprintf("enqueue sweep job failed: %v", err))
	}

	s.logger.Infof(ctx, "[TaskService] Task %s submitted: pic=%s, marketplace=%s, brand=%s, batch=%s",
		task.ID, pic, meta.Channel, meta.Brand, meta.Batch)

	return task, nil
}

// Status 查询任务状态：先查 Redis 快照，未命中回源 MySQL
func (s *TaskService) Status(ctx context.Context, taskID string) (*infraredis.TaskStatus, error) {
	if s.cache != nil {
		st, err := s.cache.Get(ctx, taskID)
		if err != nil {
			s.logger.Warnf(ctx, "[TaskService] Cache lookup failed for task %s: %v", taskID, err)
		}
		if st != nil {
			return st, nil
		}
	}

	task, err := s.taskDAO.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	var timings map[string]int64
	if len(task.StageTimings) > 0 {
		if uerr := json.Unmarshal(task.StageTimings, &timings); uerr != nil {
			s.logger.Warnf(ctx, "[TaskService] Unmarshal stage timings failed for task %s: %v", taskID, uerr)
		}
	}

	return &infraredis.TaskStatus{
		TaskID:          task.ID,
		Status:          task.Status,
		Marketplace:     task.Marketplace,
		Brand:           task.Brand,
		TotalOrders:     task.TotalOrders,
		ProcessedOrders: task.ProcessedOrders,
		NewOrders:       task.NewOrders,
		ReplacedOrders:  task.ReplacedOrders,
		FailedRows:      task.FailedRows,
		DegradedChunks:  task.DegradedChunks,
		StageTimings:    timings,
		ErrorMessage:    task.ErrorMessage,
		UpdatedAt:       task.UpdatedAt.Unix(),
	}, nil
}

// storeUpload 将上传文件写入工作区暂存目录
// 暂存名格式：<原名>_User<pic>_<时间戳>.<扩展名>
func (s *TaskService) storeUpload(pic, filename string, fileData []byte) (string, error) {
	dir := filepath.Join(s.workspaceRoot, "User_"+pic, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	storedName := fmt.Sprintf("%s_User%s_%d%s", name, pic, time.Now().UnixNano(), ext)

	path := filepath.Join(dir, storedName)
	if err := os.WriteFile(path, fileData, 0o644); err != nil {
		return "", err
	}

	return path, nil
}

// publishSweepJob 组装标准 Job 结构并投递到清洗队列
func (s *TaskService) publishSweepJob(ctx context.Context, task *entity.UploadTask, filename, filePath string) error {
	job := &framework.Job{
		Payload: &framework.JobPayload{
			Data: &framework.JobPayloadData{
				RequestID:  uuid.New().String(),
				ActionType: "order_sweep",
				PIC:        task.PIC,
				ID:         task.ID,
				Data: map[string]interface{}{
					"task_id":   task.ID,
					"pic":       task.PIC,
					"filename":  filepath.Base(filename),
					"file_path": filePath,
				},
			},
		},
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal sweep job failed: %w", err)
	}

	return s.lmstfyClient.Publish(s.queue, data, 3600, 0)
}

// cacheSnapshot 刷新任务状态快照（尽力而为）
func (s *TaskService) cacheSnapshot(ctx context.Context, task *entity.UploadTask) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(ctx, &infraredis.TaskStatus{
		TaskID:      task.ID,
		Status:      task.Status,
		Marketplace: task.Marketplace,
		Brand:       task.Brand,
	})
	if err != nil {
		s.logger.Warnf(ctx, "[TaskService] Cache task snapshot failed: %v", err)
	}
}
