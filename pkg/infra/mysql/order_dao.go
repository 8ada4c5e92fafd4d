package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"sweeping/ordersync/internal/entity"
)

// 单次 IN 查询 / 批量插入的切片上限
const batchSize = 500

// UpsertResult 入库结果计数
type UpsertResult struct {
	New      int // 新插入
	Replaced int // 覆盖更新
	Failed   int // 单行回退后仍失败的行数
}

// OrderDAO 订单数据访问对象
type OrderDAO struct {
	db *gorm.DB
}

// NewOrderDAO 创建 OrderDAO 实例
func NewOrderDAO(dsn string) (*OrderDAO, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &OrderDAO{db: db}, nil
}

// NewOrderDAOWithDB 使用已有连接创建（测试用）
func NewOrderDAOWithDB(db *gorm.DB) *OrderDAO {
	return &OrderDAO{db: db}
}

// Upsert 将一次上传的归一化订单写入订单表
// 先按已存在的订单号切分 insert-set / update-set：
//   - insert-set 整批单事务插入；撞唯一键（并发上传同一订单号）时回退为逐行插入，
//     失败行只计数不中断
//   - update-set 覆盖全部可变字段，订单号不变
func (dao *OrderDAO) Upsert(ctx context.Context, orders []*entity.UploadedOrder) (*UpsertResult, error) {
	result := &UpsertResult{}
	if len(orders) == 0 {
		return result, nil
	}

	orderNos := make([]string, 0, len(orders))
	for _, o := range orders {
		orderNos = append(orderNos, o.OrderNumber)
	}

	existing, err := dao.listExisting(ctx, orderNos)
	if err != nil {
		return nil, err
	}

	inserts := make([]*entity.UploadedOrder, 0, len(orders))
	updates := make([]*entity.UploadedOrder, 0)
	for _, o := range orders {
		if id, ok := existing[o.OrderNumber]; ok {
			o.ID = id
			updates = append(updates, o)
		} else {
			inserts = append(inserts, o)
		}
	}

	// 1. 批量插入 insert-set
	if len(inserts) > 0 {
		err := dao.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(inserts, batchSize).Error
		})
		switch {
		case err == nil:
			result.New = len(inserts)
		case IsDuplicateKeyErr(err):
			// 并发上传撞唯一键：回退逐行插入
			inserted, failed := dao.insertEach(ctx, inserts)
			result.New = inserted
			result.Failed = failed
		default:
			return nil, fmt.Errorf("bulk insert failed: %w", err)
		}
	}

	// 2. 覆盖更新 update-set
	for _, o := range updates {
		if err := dao.updateByOrderNumber(ctx, o); err != nil {
			result.Failed++
			continue
		}
		result.Replaced++
	}

	return result, nil
}

// listExisting 查询已存在的订单号 → 主键映射
func (dao *OrderDAO) listExisting(ctx context.Context, orderNos []string) (map[string]uint, error) {
	existing := make(map[string]uint, len(orderNos))

	for start := 0; start < len(orderNos); start += batchSize {
		end := start + batchSize
		if end > len(orderNos) {
			end = len(orderNos)
		}

		var rows []struct {
			ID          uint
			OrderNumber string
		}
		err := dao.db.WithContext(ctx).
			Model(&entity.UploadedOrder{}).
			Select("id", "order_number").
			Where("order_number IN ?", orderNos[start:end]).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("list existing orders failed: %w", err)
		}

		for _, row := range rows {
			existing[row.OrderNumber] = row.ID
		}
	}

	return existing, nil
}

// insertEach 逐行插入（批量插入撞唯一键后的回退路径）
// 返回成功 / 失败行数；重复键的行转为覆盖更新
func (dao *OrderDAO) insertEach(ctx context.Context, orders []*entity.UploadedOrder) (inserted, failed int) {
	for _, o := range orders {
		err := dao.db.WithContext(ctx).Create(o).Error
		if err == nil {
			inserted++
			continue
		}
		if IsDuplicateKeyErr(err) {
			// 另一个上传刚插入了同一订单号：后写者覆盖
			if uerr := dao.updateByOrderNumber(ctx, o); uerr == nil {
				inserted++
				continue
			}
		}
		failed++
	}
	return inserted, failed
}

// updateByOrderNumber 按订单号覆盖可变字段（业务键不变）
func (dao *OrderDAO) updateByOrderNumber(ctx context.Context, o *entity.UploadedOrder) error {
	updates := map[string]interface{}{
		"marketplace":        o.Marketplace,
		"brand":              o.Brand,
		"order_status":       o.OrderStatus,
		"awb":                o.AWB,
		"transporter":        o.Transporter,
		"order_date":         o.OrderDate,
		"sla":                o.SLA,
		"batch":              o.Batch,
		"pic":                o.PIC,
		"upload_date":        o.UploadDate,
		"remark":             o.Remark,
		"item_id":            o.ItemID,
		"interface_status":   o.InterfaceStatus,
		"order_number_flexo": o.OrderNumberFlexo,
		"order_status_flexo": o.OrderStatusFlexo,
		"item_id_flexo":      o.ItemIDFlexo,
		"task_id":            o.TaskID,
		"updated_at":         time.Now(),
	}

	res := dao.db.WithContext(ctx).
		Model(&entity.UploadedOrder{}).
		Where("order_number = ?", o.OrderNumber).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update order %s failed: %w", o.OrderNumber, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order not found: %s", o.OrderNumber)
	}

	return nil
}

// ListNotInterfaced 查询一次上传中仍未对接的订单号（Orderlist 用）
func (dao *OrderDAO) ListNotInterfaced(ctx context.Context, taskID string) ([]string, error) {
	var orderNos []string
	err := dao.db.WithContext(ctx).
		Model(&entity.UploadedOrder{}).
		Where("task_id = ? AND interface_status <> ?", taskID, entity.InterfaceStatusInterface).
		Order("id").
		Pluck("order_number", &orderNos).Error
	if err != nil {
		return nil, fmt.Errorf("list not interfaced orders failed: %w", err)
	}
	return orderNos, nil
}

// IsDuplicateKeyErr 判断是否为唯一键冲突（MySQL 1062）
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *gomysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// DB 暴露底层连接（TaskDAO 共用）
func (dao *OrderDAO) DB() *gorm.DB {
	return dao.db
}

// Close 关闭数据库连接
func (dao *OrderDAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
