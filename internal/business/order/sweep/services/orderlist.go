package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sweeping/ordersync/internal/marketplace"
	"sweeping/ordersync/pkg/logger"
)

// OrderlistReport Orderlist 写出结果
type OrderlistReport struct {
	Path     string
	Lines    int
	Restored bool   // 校验失败后从备份恢复
	Warning  string // 非致命告警（恢复、店铺 key 缺失等）
}

// OrderlistWriter Orderlist 交接文件写出器
// 目录布局：<root>/User_<pic>/<Marketplace>/Orderlist_<taskID>.txt
// 写出流程：临时文件 + fsync + 原子 rename，发布后校验行数，不符则从备份恢复
type OrderlistWriter struct {
	root     string
	shopKeys map[string]map[string]string // marketplace(小写) → brand(大写) → 店铺 key
	logger   logger.Logger
}

// NewOrderlistWriter 创建写出器实例
func NewOrderlistWriter(root string, shopKeys map[string]map[string]string, log logger.Logger) *OrderlistWriter {
	return &OrderlistWriter{
		root:     root,
		shopKeys: shopKeys,
		logger:   log,
	}
}

// Write 写出一次上传的未对接订单号清单
// 行格式：带店铺 key 的渠道写 "订单号,店铺key"，其余只写订单号；
// 发布成功后文件置只读并刷新备份
func (w *OrderlistWriter) Write(ctx context.Context, pic string, schema *marketplace.Schema, brand, taskID string, orderNos []string) (*OrderlistReport, error) {
	dir := filepath.Join(w.root, "User_"+pic, schema.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create orderlist dir failed: %w", err)
	}

	finalPath := filepath.Join(dir, fmt.Sprintf("Orderlist_%s.txt", taskID))
	bakPath := finalPath + ".bak"
	report := &OrderlistReport{Path: finalPath, Lines: len(orderNos)}

	lines, keyWarning := w.buildLines(schema, brand, orderNos)
	if keyWarning != "" {
		report.Warning = keyWarning
		w.logger.Warnf(ctx, "[Orderlist] %s", keyWarning)
	}

	// 1. 临时文件 + fsync + 原子 rename 发布
	if err := w.publish(finalPath, lines); err != nil {
		return nil, err
	}

	// 2. 发布后校验行数，不符则从最近一次备份恢复
	actual, err := countLines(finalPath)
	if err != nil {
		return nil, fmt.Errorf("verify orderlist failed: %w", err)
	}
	if actual != len(orderNos) {
		warning := fmt.Sprintf("orderlist line count mismatch: expected %d, got %d", len(orderNos), actual)
		if restoreErr := w.restore(bakPath, finalPath); restoreErr == nil {
			report.Restored = true
			warning += ", restored from backup"
		} else {
			warning += fmt.Sprintf(", restore failed: %v", restoreErr)
		}
		report.Warning = joinWarnings(report.Warning, warning)
		w.logger.Warnf(ctx, "[Orderlist] %s", warning)
		return report, nil
	}

	// 3. 校验通过：置只读并刷新备份
	if err := os.Chmod(finalPath, 0o444); err != nil {
		w.logger.Warnf(ctx, "[Orderlist] Set read-only failed for %s: %v", finalPath, err)
	}
	if err := copyFile(finalPath, bakPath); err != nil {
		w.logger.Warnf(ctx, "[Orderlist] Refresh backup failed for %s: %v", finalPath, err)
	}

	w.logger.Infof(ctx, "[Orderlist] Published %s: %d lines", finalPath, len(orderNos))
	return report, nil
}

// MakeWritable 解除交接文件的只读保护（下游消费完毕后调用）
func (w *OrderlistWriter) MakeWritable(path string) error {
	return os.Chmod(path, 0o644)
}

// buildLines 构建文件行；带店铺 key 的渠道缺 key 时降级为裸订单号并返回告警
func (w *OrderlistWriter) buildLines(schema *marketplace.Schema, brand string, orderNos []string) ([]string, string) {
	if !schema.ShopKeyLine {
		return orderNos, ""
	}

	key := w.lookupShopKey(schema.Name, brand)
	if key == "" {
		lines := make([]string, len(orderNos))
		copy(lines, orderNos)
		return lines, fmt.Sprintf("shop key not configured for %s/%s, writing bare order numbers", schema.Name, brand)
	}

	lines := make([]string, 0, len(orderNos))
	for _, orderNo := range orderNos {
		lines = append(lines, orderNo+","+key)
	}
	return lines, ""
}

func (w *OrderlistWriter) lookupShopKey(mkt, brand string) string {
	byBrand, ok := w.shopKeys[strings.ToLower(mkt)]
	if !ok {
		return ""
	}
	return byBrand[strings.ToUpper(brand)]
}

// publish 临时文件写入 + fsync 后原子 rename 到最终路径
func (w *OrderlistWriter) publish(finalPath string, lines []string) error {
	tmpPath := finalPath + ".tmp"

	// 目标已存在且只读时先解除，否则 rename 在部分文件系统上失败
	if info, err := os.Stat(finalPath); err == nil && info.Mode().Perm()&0o200 == 0 {
		_ = os.Chmod(finalPath, 0o644)
	}

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp orderlist failed: %w", err)
	}

	var content strings.Builder
	for _, line := range lines {
		content.WriteString(line)
		content.WriteString("\n")
	}

	if _, err := f.WriteString(content.String()); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp orderlist failed: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp orderlist failed: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp orderlist failed: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish orderlist failed: %w", err)
	}

	return nil
}

// restore 从备份覆盖最终文件
func (w *OrderlistWriter) restore(bakPath, finalPath string) error {
	if _, err := os.Stat(bakPath); err != nil {
		return fmt.Errorf("no backup available: %w", err)
	}
	_ = os.Chmod(finalPath, 0o644)
	return copyFile(bakPath, finalPath)
}

// Cleanup 清理超龄的交接文件、备份与上传暂存（定期维护）
func (w *OrderlistWriter) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		expirable := strings.HasPrefix(name, "Orderlist_") || strings.HasSuffix(name, ".bak") ||
			strings.HasSuffix(name, ".tmp") || strings.Contains(name, "_User")
		if !expirable || !info.ModTime().Before(cutoff) {
			return nil
		}
		_ = os.Chmod(path, 0o644)
		if rmErr := os.Remove(path); rmErr != nil {
			w.logger.Warnf(ctx, "[Orderlist] Cleanup remove %s failed: %v", path, rmErr)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleanup walk failed: %w", err)
	}

	if removed > 0 {
		w.logger.Infof(ctx, "[Orderlist] Cleanup removed %d expired files", removed)
	}
	return removed, nil
}

func countLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	count := strings.Count(string(data), "\n")
	if !strings.HasSuffix(string(data), "\n") {
		count++
	}
	return count, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	// 备份可能还是上一轮留下的只读文件
	_ = os.Chmod(dst, 0o644)
	return os.WriteFile(dst, data, 0o644)
}

func joinWarnings(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "; " + b
}
