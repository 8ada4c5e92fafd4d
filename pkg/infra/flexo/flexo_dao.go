package flexo

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"

	"sweeping/ordersync/internal/marketplace"
)

// Order Flexo 侧的订单查询结果（单个订单号）
type Order struct {
	OrderNumber  string `gorm:"column:order_number"`   // 上传侧订单号（关联键列的值）
	FlexoOrderNo string `gorm:"column:flexo_order_no"` // Flexo 系统单号
	OrderStatus  string `gorm:"column:order_status"`
	ItemIDs      string `gorm:"column:item_ids"` // 逗号拼接的 SKU 列表
	Shipped      bool   `gorm:"column:shipped"`  // 出库表已有记录
}

// Querier 外部履约系统查询接口（reconciler 依赖）
type Querier interface {
	// FetchChunk 按关联键查询一批订单号（单个 chunk）
	FetchChunk(ctx context.Context, keyColumn string, orderNos []string) (map[string]*Order, error)
}

// DAO Flexo 数据访问对象（SQL Server）
type DAO struct {
	db *gorm.DB
}

// NewDAO 创建 Flexo DAO 实例
func NewDAO(dsn string) (*DAO, error) {
	db, err := gorm.Open(sqlserver.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to flexo: %w", err)
	}

	return &DAO{db: db}, nil
}

// NewDAOWithDB 使用已有连接创建（测试用）
func NewDAOWithDB(db *gorm.DB) *DAO {
	return &DAO{db: db}
}

// FetchChunk 查询一个 chunk：订单表 + 明细表（SKU 聚合）+ 出库表三表联查
// keyColumn 只接受渠道注册表中的两个关联键，防止拼接注入
func (dao *DAO) FetchChunk(ctx context.Context, keyColumn string, orderNos []string) (map[string]*Order, error) {
	if keyColumn != marketplace.FlexoKeyExtRef && keyColumn != marketplace.FlexoKeyRef {
		return nil, fmt.Errorf("unsupported flexo key column: %s", keyColumn)
	}
	if len(orderNos) == 0 {
		return map[string]*Order{}, nil
	}

	query := fmt.Sprintf(`
		SELECT so.%s        AS order_number,
		       so.SystemRefId AS flexo_order_no,
		       so.OrderStatus AS order_status,
		       ISNULL(items.item_ids, '') AS item_ids,
		       CASE WHEN ob.RefNo IS NOT NULL THEN 1 ELSE 0 END AS shipped
		FROM SalesOrder so
		LEFT JOIN (
			SELECT RefNo, STRING_AGG(ItemId, ',') AS item_ids
			FROM SalesOrderItem
			GROUP BY RefNo
		) items ON items.RefNo = so.RefNo
		LEFT JOIN OutboundShipment ob ON ob.RefNo = so.RefNo
		WHERE so.%s IN ?`, keyColumn, keyColumn)

	var rows []*Order
	if err := dao.db.WithContext(ctx).Raw(query, orderNos).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("flexo chunk query failed: %w", err)
	}

	result := make(map[string]*Order, len(rows))
	for _, row := range rows {
		result[row.OrderNumber] = row
	}

	return result, nil
}

// Close 关闭数据库连接
func (dao *DAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
