package entity

import (
	"time"
)

// UploadedOrder 上传订单实体（归一化后的单条订单记录）
type UploadedOrder struct {
	// 基础字段
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Marketplace string `gorm:"column:marketplace;type:varchar(32);not null;index:idx_marketplace_brand"`
	Brand       string `gorm:"column:brand;type:varchar(32);not null;index:idx_marketplace_brand"`
	OrderNumber string `gorm:"column:order_number;type:varchar(128);not null;uniqueIndex:uk_order_number"`

	// 表格数据
	OrderStatus string     `gorm:"column:order_status;type:varchar(64)"`
	AWB         string     `gorm:"column:awb;type:varchar(128)"`
	Transporter string     `gorm:"column:transporter;type:varchar(64)"`
	OrderDate   time.Time  `gorm:"column:order_date"`
	SLA         *time.Time `gorm:"column:sla"`
	Batch       string     `gorm:"column:batch;type:varchar(16)"`
	PIC         string     `gorm:"column:pic;type:varchar(64);not null"`
	UploadDate  time.Time  `gorm:"column:upload_date;not null;index:idx_upload_date"`
	Remark      string     `gorm:"column:remark;type:varchar(255)"`
	ItemID      string     `gorm:"column:item_id;type:varchar(1024)"`

	// Flexo 对账结果
	InterfaceStatus  string `gorm:"column:interface_status;type:varchar(32);not null;default:'Not Yet Interface';index:idx_interface_status"`
	OrderNumberFlexo string `gorm:"column:order_number_flexo;type:varchar(128)"`
	OrderStatusFlexo string `gorm:"column:order_status_flexo;type:varchar(64)"`
	ItemIDFlexo      string `gorm:"column:item_id_flexo;type:varchar(1024)"`

	// 归属的上传任务
	TaskID string `gorm:"column:task_id;type:varchar(64);not null;index:idx_task_id"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (UploadedOrder) TableName() string {
	return "uploaded_orders"
}

// 对接状态常量（下游 Flexo 是否已确认收单）
const (
	InterfaceStatusInterface = "Interface"
	InterfaceStatusNotYet    = "Not Yet Interface"
)
