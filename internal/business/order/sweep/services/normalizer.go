package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"sweeping/ordersync/pkg/logger"
)

// CanonicalOrder 归一化后的订单（每个订单号一条，入库前的中间形态）
type CanonicalOrder struct {
	OrderNumber string
	OrderStatus string
	AWB         string
	Transporter string
	OrderDate   time.Time
	SLA         *time.Time
	SKUs        []string // 去重后按首次出现顺序
}

// 常见的表格日期格式（按出现频率排序）
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02-01-2006 15:04",
	"02-01-2006",
}

// Normalizer 订单归一化器：多行同单合并为单订单记录
type Normalizer struct {
	logger logger.Logger
}

// NewNormalizer 创建归一化器实例
func NewNormalizer(log logger.Logger) *Normalizer {
	return &Normalizer{logger: log}
}

// Normalize 将表格行归一化为订单列表
// 同一订单号的多行（多 SKU）合并为一条：标量字段取首行非空值，
// SKU 去重后按首次出现顺序收集；订单号 trim 后为空的行跳过
func (n *Normalizer) Normalize(ctx context.Context, meta *UploadMeta, sheet *Sheet, cols *ColumnMap, uploadTime time.Time) []*CanonicalOrder {
	byOrderNo := make(map[string]*CanonicalOrder)
	orderSeq := make([]string, 0, len(sheet.Rows))
	skipped := 0

	for _, row := range sheet.Rows {
		orderNo := strings.TrimSpace(cell(row, cols.OrderNo))
		if orderNo == "" {
			skipped++
			continue
		}

		order, seen := byOrderNo[orderNo]
		if !seen {
			order = &CanonicalOrder{OrderNumber: orderNo}
			byOrderNo[orderNo] = order
			orderSeq = append(orderSeq, orderNo)
		}

		// 1. 标量字段首行非空优先
		fillIfEmpty(&order.OrderStatus, cell(row, cols.Status))
		fillIfEmpty(&order.AWB, cell(row, cols.AWB))
		fillIfEmpty(&order.Transporter, cell(row, cols.Transporter))

		if order.OrderDate.IsZero() {
			if t, ok := parseDate(cell(row, cols.Date)); ok {
				order.OrderDate = t
			}
		}
		if order.SLA == nil {
			if t, ok := parseDate(cell(row, cols.SLA)); ok {
				order.SLA = &t
			}
		}

		// 2. SKU 去重收集
		if sku := strings.TrimSpace(cell(row, cols.SKU)); sku != "" {
			if !containsSKU(order.SKUs, sku) {
				order.SKUs = append(order.SKUs, sku)
			}
		}
	}

	// 3. 无日期列的渠道回填订单日期
	orders := make([]*CanonicalOrder, 0, len(orderSeq))
	for _, orderNo := range orderSeq {
		order := byOrderNo[orderNo]
		if order.OrderDate.IsZero() {
			order.OrderDate = fallbackOrderDate(meta, uploadTime)
		}
		orders = append(orders, order)
	}

	if skipped > 0 {
		n.logger.Warnf(ctx, "[Normalizer] Skipped %d rows with empty order number", skipped)
	}
	n.logger.Infof(ctx, "[Normalizer] Normalized %d rows into %d orders", len(sheet.Rows), len(orders))

	return orders
}

// fallbackOrderDate 回填订单日期：文件名带日期段时取上传月份的该日，否则取上传时间
func fallbackOrderDate(meta *UploadMeta, uploadTime time.Time) time.Time {
	if meta.DateDay > 0 {
		return time.Date(uploadTime.Year(), uploadTime.Month(), meta.DateDay,
			0, 0, 0, 0, uploadTime.Location())
	}
	return uploadTime
}

// parseDate 尝试按常见格式解析日期单元格
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// JoinSKUs 将 SKU 列表按首次出现顺序逗号拼接
func JoinSKUs(skus []string) string {
	return strings.Join(skus, ",")
}

// NormalizeSKUList 规范化逗号拼接的 SKU 串用于比对：trim、去重、排序
// 两侧系统的 SKU 顺序不保证一致，比对前先归一
func NormalizeSKUList(s string) string {
	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func fillIfEmpty(dst *string, val string) {
	if *dst == "" {
		if val = strings.TrimSpace(val); val != "" {
			*dst = val
		}
	}
}

func containsSKU(skus []string, sku string) bool {
	for _, s := range skus {
		if s == sku {
			return true
		}
	}
	return false
}
