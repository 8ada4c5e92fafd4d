package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sweeping/ordersync/pkg/logger"
)

// buildXLSX 构造内存 xlsx（首行表头）
func buildXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// TestParseFilename 文件名解析与校验
func TestParseFilename(t *testing.T) {
	t.Run("accepts full form with date token", func(t *testing.T) {
		meta, err := ParseFilename("AURA-SHOPEE-5-1.xlsx")
		require.NoError(t, err)
		assert.Equal(t, "AURA", meta.Brand)
		assert.Equal(t, "Shopee", meta.Channel)
		assert.Equal(t, 5, meta.DateDay)
		assert.Equal(t, "1", meta.Batch)
		assert.Equal(t, "xlsx", meta.Ext)
	})

	t.Run("accepts form without date token", func(t *testing.T) {
		meta, err := ParseFilename("nova-lazada-12.csv")
		require.NoError(t, err)
		assert.Equal(t, "NOVA", meta.Brand)
		assert.Equal(t, "Lazada", meta.Channel)
		assert.Equal(t, 0, meta.DateDay)
		assert.Equal(t, "12", meta.Batch)
		assert.Equal(t, "csv", meta.Ext)
	})

	t.Run("strips directory prefix", func(t *testing.T) {
		meta, err := ParseFilename("/tmp/uploads/AURA-GINEE-3.xlsx")
		require.NoError(t, err)
		assert.Equal(t, "Ginee", meta.Channel)
	})

	t.Run("rejects malformed names", func(t *testing.T) {
		for _, name := range []string{
			"AURA.xlsx",              // 缺段
			"AURA-SHOPEE-1.pdf",      // 扩展名不支持
			"AURA-AMAZON-1.xlsx",     // 渠道未注册
			"AURA-SHOPEE-32-1.xlsx",  // 日期越界
			"AURA-SHOPEE-1-1234.csv", // 批次超长
			"AURA_SHOPEE_1.xlsx",     // 分隔符错误
		} {
			_, err := ParseFilename(name)
			var verr *ValidationError
			require.Error(t, err, "name %q should be rejected", name)
			assert.ErrorAs(t, err, &verr, "name %q should yield a validation error", name)
		}
	})
}

// TestIngest 表格摄取
func TestIngest(t *testing.T) {
	ctx := context.Background()
	ing := NewIngestor(logger.NewNop())

	t.Run("parses xlsx and resolves aliased headers", func(t *testing.T) {
		data := buildXLSX(t, [][]interface{}{
			{"No. Pesanan", "Status Pesanan", "Waktu Pesanan Dibuat", "No. Resi", "Nomor Referensi SKU"},
			{"S-100", "Perlu Dikirim", "2026-08-01 10:00:00", "JX123", "SKU-A"},
			{"S-100", "Perlu Dikirim", "2026-08-01 10:00:00", "JX123", "SKU-B"},
			{"S-101", "Selesai", "2026-08-02 11:30:00", "JX124", "SKU-A"},
		})

		meta, sheet, cols, err := ing.Ingest(ctx, data, "AURA-SHOPEE-5-1.xlsx")
		require.NoError(t, err)
		assert.Equal(t, "Shopee", meta.Channel)
		assert.Len(t, sheet.Rows, 3)
		assert.Equal(t, 0, cols.OrderNo)
		assert.Equal(t, 1, cols.Status)
		assert.Equal(t, 2, cols.Date)
		assert.Equal(t, 3, cols.AWB)
		assert.Equal(t, 4, cols.SKU)
		assert.Equal(t, -1, cols.Transporter)
	})

	t.Run("parses csv with ragged rows", func(t *testing.T) {
		csvData := []byte("Order Number,Status,Created at,Tracking Code\n" +
			"Z-1,shipped,2026-08-10,TRK1\n" +
			"Z-2,pending\n")

		_, sheet, cols, err := ing.Ingest(ctx, csvData, "AURA-ZALORA-2.csv")
		require.NoError(t, err)
		assert.Len(t, sheet.Rows, 2)
		assert.Equal(t, 0, cols.OrderNo)
		assert.Equal(t, 3, cols.AWB)
	})

	t.Run("reports missing and available columns", func(t *testing.T) {
		data := buildXLSX(t, [][]interface{}{
			{"Kolom Aneh", "Status Pesanan"},
			{"x", "y"},
		})

		_, _, _, err := ing.Ingest(ctx, data, "AURA-SHOPEE-1.xlsx")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.NotEmpty(t, verr.Missing)
		assert.Contains(t, verr.Available, "Kolom Aneh")
		assert.Contains(t, err.Error(), "missing columns")
	})

	t.Run("date column not required for ginee", func(t *testing.T) {
		data := buildXLSX(t, [][]interface{}{
			{"Order Id", "Order Status", "Logistics Tracking Number", "SKU"},
			{"G-1", "paid", "AWB1", "SKU-1"},
		})

		_, _, cols, err := ing.Ingest(ctx, data, "AURA-GINEE-7-1.xlsx")
		require.NoError(t, err)
		assert.Equal(t, -1, cols.Date)
	})

	t.Run("rejects empty spreadsheet", func(t *testing.T) {
		f := excelize.NewFile()
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)

		_, _, _, err = ing.Ingest(ctx, buf.Bytes(), "AURA-SHOPEE-1.xlsx")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

// TestIngestLargeSheet 大表摄取（多行同单）
func TestIngestLargeSheet(t *testing.T) {
	ctx := context.Background()
	ing := NewIngestor(logger.NewNop())

	rows := [][]interface{}{
		{"Order ID", "Order Status", "Created Time", "Tracking ID", "Seller SKU"},
	}
	for i := 0; i < 250; i++ {
		rows = append(rows, []interface{}{
			fmt.Sprintf("TT-%03d", i), "AWAITING_SHIPMENT", "2026-08-15 08:00:00", fmt.Sprintf("JNE%03d", i), "SKU-X",
		})
	}

	_, sheet, _, err := ing.Ingest(ctx, buildXLSX(t, rows), "AURA-TIKTOK-15-2.xlsx")
	require.NoError(t, err)
	assert.Len(t, sheet.Rows, 250)
}
