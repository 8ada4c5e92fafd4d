package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"sweeping/ordersync/internal/business/tasksvc"
	"sweeping/ordersync/internal/entity"
	"sweeping/ordersync/pkg/config"
	"sweeping/ordersync/pkg/infra/mysql"
	infraredis "sweeping/ordersync/pkg/infra/redis"
	"sweeping/ordersync/pkg/lmstfy"
	"sweeping/ordersync/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/worker.yaml", "配置文件路径")
	filePath   = flag.String("file", "", "上传表格路径（文件名须符合 BRAND-CHANNEL[-DATE]-BATCH.xlsx|csv）")
	pic        = flag.String("pic", "", "上传人")
	wait       = flag.Bool("wait", false, "阻塞轮询直到任务到达终态")
)

// 上传提交入口：建任务并投递清洗 Job，Worker 在后台消费
func main() {
	flag.Parse()

	if *filePath == "" || *pic == "" {
		log.Fatal("-file and -pic are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	// 装配提交依赖
	orderDAO, err := mysql.NewOrderDAO(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to mysql: %v", err)
	}
	defer orderDAO.Close()
	taskDAO := mysql.NewTaskDAO(orderDAO.DB())

	var taskCache *infraredis.TaskCache
	if cfg.Redis.Addr != "" {
		taskCache, err = infraredis.NewTaskCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TaskTTL)
		if err != nil {
			log.Printf("Redis unavailable, status falls back to mysql: %v", err)
			taskCache = nil
		} else {
			defer taskCache.Close()
		}
	}

	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		log.Fatalf("Failed to create lmstfy client: %v", err)
	}

	var queue string
	if len(cfg.Workers) > 0 {
		queue = cfg.Workers[0].QueueName
	}

	svc := tasksvc.NewTaskService(taskDAO, taskCache, lmstfyClient, queue, cfg.Sweep.WorkspaceRoot, zapLogger)

	fileData, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read file: %v", err)
	}

	task, err := svc.Submit(ctx, *pic, filepath.Base(*filePath), fileData)
	if err != nil {
		log.Fatalf("Submit failed: %v", err)
	}

	fmt.Printf("Task submitted: %s (marketplace=%s, brand=%s, batch=%s)\n",
		task.ID, task.Marketplace, task.Brand, task.Batch)

	if !*wait {
		return
	}

	// 轮询任务状态直到终态
	for {
		time.Sleep(2 * time.Second)

		st, err := svc.Status(ctx, task.ID)
		if err != nil {
			log.Printf("Status lookup failed: %v", err)
			continue
		}

		fmt.Printf("Status: %s (total=%d, new=%d, replaced=%d, degraded=%d)\n",
			st.Status, st.TotalOrders, st.NewOrders, st.ReplacedOrders, st.DegradedChunks)

		if st.Status == entity.TaskStatusCompleted || st.Status == entity.TaskStatusFailed {
			if st.ErrorMessage != "" {
				fmt.Printf("Error: %s\n", st.ErrorMessage)
			}
			for stage, ms := range st.StageTimings {
				fmt.Printf("  %s: %dms\n", stage, ms)
			}
			return
		}
	}
}
