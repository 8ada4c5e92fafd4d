package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sweeping/ordersync/internal/marketplace"
	"sweeping/ordersync/pkg/logger"
)

// 文件名格式：BRAND-CHANNEL[-DATE]-BATCH.ext
// BRAND/CHANNEL 纯字母 ≤20，DATE 1-31 可省略，BATCH 数字 ≤3 位
var filenameRe = regexp.MustCompile(`^([A-Za-z]{1,20})-([A-Za-z]{1,20})(?:-(\d{1,2}))?-(\d{1,3})\.([A-Za-z0-9]+)$`)

// UploadMeta 文件名解析结果
type UploadMeta struct {
	Brand   string
	Channel string // 渠道规范名
	DateDay int    // 文件名中的日期段（1-31），0 表示未携带
	Batch   string
	Ext     string // xlsx / csv
	Schema  *marketplace.Schema
}

// ValidationError 输入校验错误（不可重试，任务直接置 FAILED）
type ValidationError struct {
	Reason    string
	Missing   []string // 缺失的必需列
	Available []string // 文件中实际存在的表头
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	if len(e.Missing) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: missing columns [%s], available columns [%s]",
		e.Reason, strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// Sheet 解析后的表格数据
type Sheet struct {
	Headers []string
	Rows    [][]string
}

// ColumnMap 表头解析结果（列下标，-1 表示该列不存在）
type ColumnMap struct {
	OrderNo     int
	Status      int
	Date        int
	AWB         int
	Transporter int
	SLA         int
	SKU         int
}

// Ingestor 表格摄取器：文件名校验 + 表格解析 + 表头定位
type Ingestor struct {
	logger logger.Logger
}

// NewIngestor 创建摄取器实例
func NewIngestor(log logger.Logger) *Ingestor {
	return &Ingestor{logger: log}
}

// ParseFilename 解析并校验上传文件名
func ParseFilename(filename string) (*UploadMeta, error) {
	base := filepath.Base(filename)

	m := filenameRe.FindStringSubmatch(base)
	if m == nil {
		return nil, &ValidationError{Reason: fmt.Sprintf(
			"invalid filename %q, expected BRAND-CHANNEL[-DATE]-BATCH.xlsx|csv", base)}
	}

	brand, channel, dateStr, batch, ext := m[1], m[2], m[3], m[4], strings.ToLower(m[5])

	if ext != "xlsx" && ext != "csv" {
		return nil, &ValidationError{Reason: fmt.Sprintf("unsupported extension %q", ext)}
	}

	dateDay := 0
	if dateStr != "" {
		dateDay, _ = strconv.Atoi(dateStr)
		if dateDay < 1 || dateDay > 31 {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid date token %q in filename", dateStr)}
		}
	}

	schema, ok := marketplace.Lookup(channel)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf(
			"unsupported marketplace %q, supported: %s", channel, strings.Join(marketplace.Names(), ", "))}
	}

	return &UploadMeta{
		Brand:   strings.ToUpper(brand),
		Channel: schema.Name,
		DateDay: dateDay,
		Batch:   batch,
		Ext:     ext,
		Schema:  schema,
	}, nil
}

// Ingest 摄取一个上传文件：文件名校验 → 表格解析 → 表头定位
// 任何校验失败都在外部调用和落库之前返回 ValidationError
func (ing *Ingestor) Ingest(ctx context.Context, fileData []byte, filename string) (*UploadMeta, *Sheet, *ColumnMap, error) {
	meta, err := ParseFilename(filename)
	if err != nil {
		return nil, nil, nil, err
	}

	var sheet *Sheet
	switch meta.Ext {
	case "xlsx":
		sheet, err = parseXLSX(fileData)
	case "csv":
		sheet, err = parseCSV(fileData)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	if len(sheet.Headers) == 0 {
		return nil, nil, nil, &ValidationError{Reason: "empty spreadsheet: no header row"}
	}

	cols, err := resolveColumns(meta.Schema, sheet.Headers)
	if err != nil {
		return nil, nil, nil, err
	}

	ing.logger.Infof(ctx, "[Ingestor] Parsed %s: marketplace=%s, brand=%s, batch=%s, rows=%d",
		filename, meta.Channel, meta.Brand, meta.Batch, len(sheet.Rows))

	return meta, sheet, cols, nil
}

// parseXLSX 解析 xlsx（取第一个工作表）
func parseXLSX(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("cannot open xlsx: %v", err)}
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("cannot read sheet %q: %v", sheetName, err)}
	}

	if len(rows) == 0 {
		return &Sheet{}, nil
	}

	return &Sheet{Headers: rows[0], Rows: rows[1:]}, nil
}

// parseCSV 解析 csv（容忍行字段数不一致）
func parseCSV(data []byte) (*Sheet, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("cannot parse csv: %v", err)}
	}

	if len(records) == 0 {
		return &Sheet{}, nil
	}

	return &Sheet{Headers: records[0], Rows: records[1:]}, nil
}

// resolveColumns 按渠道别名表定位各列
// 必需列：订单号、订单状态、运单号，以及带日期列渠道的日期列；缺失即校验失败
func resolveColumns(schema *marketplace.Schema, headers []string) (*ColumnMap, error) {
	cols := &ColumnMap{
		OrderNo:     findColumn(headers, schema.OrderNoAliases),
		Status:      findColumn(headers, schema.StatusAliases),
		Date:        findColumn(headers, schema.DateAliases),
		AWB:         findColumn(headers, schema.AWBAliases),
		Transporter: findColumn(headers, schema.TransporterAliases),
		SLA:         findColumn(headers, schema.SLAAliases),
		SKU:         findColumn(headers, schema.SKUAliases),
	}

	var missing []string
	if cols.OrderNo < 0 {
		missing = append(missing, "order number ("+strings.Join(schema.OrderNoAliases, "/")+")")
	}
	if cols.Status < 0 {
		missing = append(missing, "order status ("+strings.Join(schema.StatusAliases, "/")+")")
	}
	if schema.HasDateColumn() && cols.Date < 0 {
		missing = append(missing, "order date ("+strings.Join(schema.DateAliases, "/")+")")
	}
	if cols.AWB < 0 {
		missing = append(missing, "awb ("+strings.Join(schema.AWBAliases, "/")+")")
	}

	if len(missing) > 0 {
		available := make([]string, 0, len(headers))
		for _, h := range headers {
			if h = strings.TrimSpace(h); h != "" {
				available = append(available, h)
			}
		}
		return nil, &ValidationError{
			Reason:    fmt.Sprintf("required columns not found for %s", schema.Name),
			Missing:   missing,
			Available: available,
		}
	}

	return cols, nil
}

// findColumn 在表头中查找别名（trim 后不区分大小写），未找到返回 -1
func findColumn(headers []string, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return i
			}
		}
	}
	return -1
}
