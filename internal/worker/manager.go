package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"sweeping/ordersync/internal/business/order/sweep/services"
	"sweeping/ordersync/internal/domains"
	"sweeping/ordersync/internal/framework"
	"sweeping/ordersync/pkg/config"
	"sweeping/ordersync/pkg/infra/flexo"
	"sweeping/ordersync/pkg/infra/mysql"
	infraredis "sweeping/ordersync/pkg/infra/redis"
	"sweeping/ordersync/pkg/lmstfy"
	"sweeping/ordersync/pkg/logger"
)

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx             context.Context
	cfg             *config.Config
	lmstfyClient    *lmstfy.Client
	orderDAO        *mysql.OrderDAO
	flexoDAO        *flexo.DAO
	taskCache       *infraredis.TaskCache
	orderlistWriter *services.OrderlistWriter
	deps            *domains.Deps
	workers         []Worker
	closing         *atomic.Bool
	shutdownCh      chan struct{}
	cleanupStopCh   chan struct{}
	wg              sync.WaitGroup
	logger          logger.Logger
}

// NewManagerInstance 创建 Manager，装配全部基础设施依赖
// Flexo 与 Redis 连接失败都只降级不阻止启动：比对降级为未对接，状态查询回源 MySQL
func NewManagerInstance(cfg *config.Config, log logger.Logger) (Manager, error) {
	ctx := context.Background()

	// 1. 初始化 lmstfy 客户端
	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create lmstfy client: %w", err)
	}

	// 2. 本地订单库（必需）
	orderDAO, err := mysql.NewOrderDAO(cfg.MySQL.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	taskDAO := mysql.NewTaskDAO(orderDAO.DB())

	// 3. 外部履约系统（可降级）
	var flexoDAO *flexo.DAO
	var querier flexo.Querier
	if cfg.Flexo.DSN != "" {
		flexoDAO, err = flexo.NewDAO(cfg.Flexo.DSN)
		if err != nil {
			log.Warnf(ctx, "[Manager] Flexo unavailable, reconcile degraded: %v", err)
		} else {
			querier = flexoDAO
		}
	} else {
		log.Warnf(ctx, "[Manager] Flexo DSN not configured, reconcile degraded")
	}

	// 4. 任务状态缓存（可降级）
	var taskCache *infraredis.TaskCache
	if cfg.Redis.Addr != "" {
		taskCache, err = infraredis.NewTaskCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TaskTTL)
		if err != nil {
			log.Warnf(ctx, "[Manager] Redis unavailable, task snapshots disabled: %v", err)
			taskCache = nil
		}
	}

	// 5. 装配清洗服务
	orderlistWriter := services.NewOrderlistWriter(cfg.Sweep.WorkspaceRoot, cfg.Sweep.ShopKeys, log)
	sweepService := services.NewSweepService(
		services.NewIngestor(log),
		services.NewNormalizer(log),
		services.NewReconciler(querier, cfg.Flexo.ChunkSize, cfg.Flexo.ChunkTimeout, log),
		orderlistWriter,
		orderDAO,
		taskDAO,
		taskCache,
		log,
	)

	var callbackQueue string
	if len(cfg.Workers) > 0 {
		callbackQueue = cfg.Workers[0].CallbackQueue
	}

	deps := &domains.Deps{
		SweepService:  sweepService,
		LmstfyClient:  lmstfyClient,
		CallbackQueue: callbackQueue,
		NotifyChannel: cfg.Sweep.NotifyChannel,
	}

	log.Infof(ctx, "[Manager] Initialized: callback_queue=%s, notify_channel=%s",
		callbackQueue, cfg.Sweep.NotifyChannel)

	return &ManagerInstance{
		ctx:             ctx,
		cfg:             cfg,
		lmstfyClient:    lmstfyClient,
		orderDAO:        orderDAO,
		flexoDAO:        flexoDAO,
		taskCache:       taskCache,
		orderlistWriter: orderlistWriter,
		deps:            deps,
		closing:         atomic.NewBool(false),
		shutdownCh:      make(chan struct{}),
		cleanupStopCh:   make(chan struct{}),
		workers:         make([]Worker, 0),
		logger:          log,
	}, nil
}

// Start 启动 Manager
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting...")

	// 1. 加载所有 Worker
	if err := m.loadWorkers(); err != nil {
		return fmt.Errorf("failed to load workers: %w", err)
	}

	m.logger.Infof(m.ctx, "[Manager] All workers loaded, count: %d", len(m.workers))

	// 2. 启动所有 Worker（每个 Worker 在独立 goroutine）
	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Start()
		}()
		m.logger.Infof(m.ctx, "[Manager] Worker started: %s", w.GetName())
	}

	// 3. 启动工作区定期清理
	m.wg.Add(1)
	go m.cleanupLoop()

	m.logger.Infof(m.ctx, "[Manager] Start success")

	// 4. 阻塞等待退出信号
	<-m.shutdownCh

	return nil
}

// cleanupLoop 定期清理工作区中超龄的交接文件与上传暂存
func (m *ManagerInstance) cleanupLoop() {
	defer m.wg.Done()

	interval := m.cfg.Sweep.CleanupAge / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.orderlistWriter.Cleanup(m.ctx, m.cfg.Sweep.CleanupAge); err != nil {
				m.logger.Warnf(m.ctx, "[Manager] Workspace cleanup failed: %v", err)
			}
		case <-m.cleanupStopCh:
			return
		}
	}
}

// Shutdown 优雅退出
func (m *ManagerInstance) Shutdown() {
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	// 原子操作，保证并发安全
	if m.closing.CAS(false, true) {
		// 1. 停止清理循环，所有 Worker 安全退出
		close(m.cleanupStopCh)
		for _, worker := range m.workers {
			m.logger.Infof(m.ctx, "[Manager] Shutting down worker: %s", worker.GetName())
			worker.Shutdown()
		}

		// 2. 等待所有 Worker 退出
		m.wg.Wait()

		// 3. 释放基础设施连接
		if m.taskCache != nil {
			if err := m.taskCache.Close(); err != nil {
				m.logger.Warnf(m.ctx, "[Manager] Close redis failed: %v", err)
			}
		}
		if m.flexoDAO != nil {
			if err := m.flexoDAO.Close(); err != nil {
				m.logger.Warnf(m.ctx, "[Manager] Close flexo failed: %v", err)
			}
		}
		if err := m.orderDAO.Close(); err != nil {
			m.logger.Warnf(m.ctx, "[Manager] Close mysql failed: %v", err)
		}

		// 4. 关闭信号通道
		close(m.shutdownCh)

		m.logger.Infof(m.ctx, "[Manager] Shutdown complete")
	}
}

// loadWorkers 加载所有 Worker
func (m *ManagerInstance) loadWorkers() error {
	// 遍历配置中的所有 Worker
	for _, workerCfg := range m.cfg.Workers {
		// 创建 Subscriber 配置
		subCfg := &framework.SubscriberConfig{
			QueueName:    workerCfg.QueueName,
			Concurrency:  workerCfg.Subscriber.Threads,
			Rate:         workerCfg.Subscriber.Rate,
			Timeout:      workerCfg.Subscriber.Timeout,
			TTR:          workerCfg.Subscriber.TTR,
			ErrorBackoff: workerCfg.Subscriber.ErrorBackoff,
		}

		// 创建 Processor 配置
		procCfg := &framework.ProcessorConfig{
			Concurrency: workerCfg.Processor.Threads,
			BufferSize:  workerCfg.Processor.BufferSize,
			Timeout:     workerCfg.Processor.Timeout,
		}

		// 获取 GetProcess 函数
		getProcess := domains.GetProcess(m.logger, m.deps)

		// 创建 Worker 实例
		worker, err := NewWorkerInstance(
			m.ctx,
			workerCfg.Name,
			subCfg,
			procCfg,
			m.lmstfyClient, // MessageSource
			getProcess,     // lmstfyx.Proc
			m.logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create worker %s: %w", workerCfg.Name, err)
		}

		m.workers = append(m.workers, worker)
	}

	return nil
}
