package entity

import (
	"time"

	"gorm.io/datatypes"
)

// UploadTask 上传任务实体（一次表格上传的状态机记录）
type UploadTask struct {
	ID          string `gorm:"column:id;primaryKey;type:varchar(64)"`
	PIC         string `gorm:"column:pic;type:varchar(64);not null;index:idx_pic"`
	Marketplace string `gorm:"column:marketplace;type:varchar(32)"`
	Brand       string `gorm:"column:brand;type:varchar(32)"`
	Batch       string `gorm:"column:batch;type:varchar(16)"`
	Filename    string `gorm:"column:filename;type:varchar(255);not null"`

	// 状态机：PENDING → PROCESSING → COMPLETED | FAILED
	Status       string `gorm:"column:status;type:varchar(16);not null;default:'PENDING';index:idx_status"`
	ErrorMessage string `gorm:"column:error_message;type:varchar(1024)"`

	// 进度计数
	TotalOrders     int `gorm:"column:total_orders;not null;default:0"`
	ProcessedOrders int `gorm:"column:processed_orders;not null;default:0"`
	NewOrders       int `gorm:"column:new_orders;not null;default:0"`
	ReplacedOrders  int `gorm:"column:replaced_orders;not null;default:0"`
	FailedRows      int `gorm:"column:failed_rows;not null;default:0"`
	DegradedChunks  int `gorm:"column:degraded_chunks;not null;default:0"`

	// 各阶段耗时（毫秒），JSON：{"ingest":12,"reconcile":30450,...}
	StageTimings datatypes.JSON `gorm:"column:stage_timings;type:json"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null;index:idx_created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

// TableName 指定表名
func (UploadTask) TableName() string {
	return "upload_tasks"
}

// 任务状态常量
const (
	TaskStatusPending    = "PENDING"
	TaskStatusProcessing = "PROCESSING"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusFailed     = "FAILED"
)

// Terminal 是否已到达终态
func (t *UploadTask) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
