package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"sweeping/ordersync/internal/business/order/sweep/services"
	"sweeping/ordersync/internal/entity"
	"sweeping/ordersync/pkg/config"
	"sweeping/ordersync/pkg/infra/flexo"
	"sweeping/ordersync/pkg/infra/mysql"
	infraredis "sweeping/ordersync/pkg/infra/redis"
	"sweeping/ordersync/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/worker.yaml", "配置文件路径")
	filePath   = flag.String("file", "", "上传表格路径（文件名须符合 BRAND-CHANNEL[-DATE]-BATCH.xlsx|csv）")
	pic        = flag.String("pic", "fasttest", "上传人")
	skipDB     = flag.Bool("skip-db", false, "跳过数据库操作（仅测试摄取与归一化）")
)

func main() {
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("  FastTest - ORDERSYNC Worker 快速测试工具")
	fmt.Println("========================================")

	if *filePath == "" {
		fmt.Println("❌ -file is required")
		os.Exit(1)
	}

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Config loaded: %s\n", cfg.App.Name)

	log, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		fmt.Printf("❌ Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	startTime := time.Now()

	if *skipDB {
		err = runSkipDB(log, *filePath)
	} else {
		err = runFull(cfg, log, *filePath, *pic)
	}

	duration := time.Since(startTime)

	if err != nil {
		fmt.Printf("❌ FAILED: %v\n", err)
		fmt.Printf("⏱️  Duration: %v\n", duration)
		os.Exit(1)
	}

	fmt.Printf("✅ PASSED\n")
	fmt.Printf("⏱️  Duration: %v\n", duration)
}

// runSkipDB 只跑摄取 + 归一化，不碰任何外部系统
func runSkipDB(log logger.Logger, path string) error {
	ctx := context.Background()
	fmt.Println("⚠️  Skip-DB mode: Database, Flexo and Redis operations disabled")

	fileData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file failed: %w", err)
	}

	ingestor := services.NewIngestor(log)
	meta, sheet, cols, err := ingestor.Ingest(ctx, fileData, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	normalizer := services.NewNormalizer(log)
	orders := normalizer.Normalize(ctx, meta, sheet, cols, time.Now())

	fmt.Printf("  Marketplace: %s, Brand: %s, Batch: %s\n", meta.Channel, meta.Brand, meta.Batch)
	fmt.Printf("  Rows: %d, Orders: %d\n", len(sheet.Rows), len(orders))
	for i, o := range orders {
		if i >= 5 {
			fmt.Printf("  ... and %d more\n", len(orders)-5)
			break
		}
		fmt.Printf("    - %s status=%s awb=%s items=%s\n",
			o.OrderNumber, o.OrderStatus, o.AWB, services.JoinSKUs(o.SKUs))
	}

	return nil
}

// runFull 完整流程：建任务 → 清洗流水线（比对按配置可用性自动降级）
func runFull(cfg *config.Config, log logger.Logger, path, pic string) error {
	ctx := context.Background()

	orderDAO, err := mysql.NewOrderDAO(cfg.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("create OrderDAO failed: %w", err)
	}
	defer orderDAO.Close()
	taskDAO := mysql.NewTaskDAO(orderDAO.DB())

	var querier flexo.Querier
	if cfg.Flexo.DSN != "" {
		flexoDAO, ferr := flexo.NewDAO(cfg.Flexo.DSN)
		if ferr != nil {
			fmt.Printf("⚠️  Flexo unavailable, reconcile degraded: %v\n", ferr)
		} else {
			defer flexoDAO.Close()
			querier = flexoDAO
		}
	}

	var taskCache *infraredis.TaskCache
	if cfg.Redis.Addr != "" {
		taskCache, err = infraredis.NewTaskCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TaskTTL)
		if err != nil {
			fmt.Printf("⚠️  Redis unavailable, task snapshots disabled: %v\n", err)
			taskCache = nil
		} else {
			defer taskCache.Close()
		}
	}

	sweepService := services.NewSweepService(
		services.NewIngestor(log),
		services.NewNormalizer(log),
		services.NewReconciler(querier, cfg.Flexo.ChunkSize, cfg.Flexo.ChunkTimeout, log),
		services.NewOrderlistWriter(cfg.Sweep.WorkspaceRoot, cfg.Sweep.ShopKeys, log),
		orderDAO,
		taskDAO,
		taskCache,
		log,
	)

	filename := filepath.Base(path)
	meta, err := services.ParseFilename(filename)
	if err != nil {
		return fmt.Errorf("invalid filename: %w", err)
	}

	task := &entity.UploadTask{
		ID:          uuid.New().String(),
		PIC:         pic,
		Marketplace: meta.Channel,
		Brand:       meta.Brand,
		Batch:       meta.Batch,
		Filename:    filename,
	}
	if err := taskDAO.Create(ctx, task); err != nil {
		return fmt.Errorf("create task failed: %w", err)
	}
	fmt.Printf("✅ Task created: %s\n", task.ID)

	result, err := sweepService.Run(ctx, task.ID, pic, filename, path)
	if err != nil {
		sweepService.Fail(ctx, task.ID, err)
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Printf("  Total: %d, New: %d, Replaced: %d, Failed: %d, Degraded chunks: %d\n",
		result.TotalOrders, result.NewOrders, result.ReplacedOrders, result.FailedRows, result.DegradedChunks)
	if result.OrderlistPath != "" {
		fmt.Printf("  Orderlist: %s (%d lines)\n", result.OrderlistPath, result.OrderlistLines)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  ⚠️  %s\n", w)
	}
	for stage, ms := range result.StageTimings {
		fmt.Printf("  ⏱️  %s: %dms\n", stage, ms)
	}

	return nil
}
