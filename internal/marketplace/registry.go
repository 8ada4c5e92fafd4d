package marketplace

import (
	"fmt"
	"strings"
)

// Flexo 侧可用的业务关联键（每个渠道固定使用其中一个）
const (
	FlexoKeyExtRef = "ExtRefNo"
	FlexoKeyRef    = "RefNo"
)

// Schema 渠道描述符：表头别名、Flexo 关联键、Orderlist 行格式、工作目录
type Schema struct {
	Name   string // 渠道规范名（与文件名中的 CHANNEL 段匹配，不区分大小写）
	Folder string // 工作区子目录名（下游 .NET 程序按目录识别渠道）

	// 表头别名（按出现顺序匹配，不区分大小写，trim 后比较）
	OrderNoAliases     []string
	StatusAliases      []string
	DateAliases        []string // 为空表示该渠道导出不含日期列
	AWBAliases         []string
	TransporterAliases []string
	SLAAliases         []string
	SKUAliases         []string

	FlexoKeyColumn string // Flexo 查询使用的关联键列名
	ShopKeyLine    bool   // Orderlist 行是否为 orderNumber,shopKey 格式
}

// HasDateColumn 渠道导出是否带日期列
func (s *Schema) HasDateColumn() bool {
	return len(s.DateAliases) > 0
}

// registry 渠道注册表（9 个支持渠道，启动时 Validate 一次）
var registry = map[string]*Schema{
	"shopee": {
		Name: "Shopee", Folder: "Shopee",
		OrderNoAliases:     []string{"No. Pesanan", "Order ID", "Order Number"},
		StatusAliases:      []string{"Status Pesanan", "Order Status", "Status"},
		DateAliases:        []string{"Waktu Pesanan Dibuat", "Order Creation Date", "Order Date"},
		AWBAliases:         []string{"No. Resi", "Tracking Number", "AWB"},
		TransporterAliases: []string{"Opsi Pengiriman", "Shipping Option", "Transporter"},
		SLAAliases:         []string{"Pesanan Harus Dikirimkan Sebelum", "Ship By Date", "SLA"},
		SKUAliases:         []string{"Nomor Referensi SKU", "SKU Reference No.", "SKU"},
		FlexoKeyColumn:     FlexoKeyExtRef,
	},
	"lazada": {
		Name: "Lazada", Folder: "Lazada",
		OrderNoAliases:     []string{"orderNumber", "Order Number"},
		StatusAliases:      []string{"status", "Status"},
		DateAliases:        []string{"createTime", "Created at", "Order Date"},
		AWBAliases:         []string{"trackingCode", "Tracking Code", "AWB"},
		TransporterAliases: []string{"shippingProvider", "Shipping Provider"},
		SLAAliases:         []string{"ttsSla", "SLA"},
		SKUAliases:         []string{"sellerSku", "Seller SKU", "SKU"},
		FlexoKeyColumn:     FlexoKeyExtRef,
	},
	"blibli": {
		Name: "Blibli", Folder: "Blibli",
		OrderNoAliases:     []string{"No. Order", "Order No", "Order Number"},
		StatusAliases:      []string{"Order Status", "Status"},
		DateAliases:        []string{"Tanggal Order", "Order Date"},
		AWBAliases:         []string{"No. Awb", "AWB"},
		TransporterAliases: []string{"Servis Logistik", "Logistics Service"},
		SLAAliases:         []string{"Batas Kirim", "SLA"},
		SKUAliases:         []string{"Merchant SKU", "SKU"},
		FlexoKeyColumn:     FlexoKeyRef,
	},
	"desty": {
		Name: "Desty", Folder: "Desty",
		OrderNoAliases:     []string{"Nomor Pesanan Channel", "Channel Order No", "Order Number"},
		StatusAliases:      []string{"Status Pesanan", "Order Status", "Status"},
		DateAliases:        []string{"Waktu Dibuat", "Created Time", "Order Date"},
		AWBAliases:         []string{"Nomor Resi", "AWB"},
		TransporterAliases: []string{"Kurir", "Courier"},
		SLAAliases:         []string{"Batas Waktu Pengiriman", "SLA"},
		SKUAliases:         []string{"SKU Channel", "SKU"},
		FlexoKeyColumn:     FlexoKeyExtRef,
		ShopKeyLine:        true,
	},
	"ginee": {
		Name: "Ginee", Folder: "Ginee",
		OrderNoAliases:     []string{"Order Id", "Order ID", "Order Number"},
		StatusAliases:      []string{"Order Status", "Status"},
		DateAliases:        nil, // Ginee 导出无日期列，取文件名中的日期段
		AWBAliases:         []string{"Logistics Tracking Number", "AWB"},
		TransporterAliases: []string{"Courier", "Logistics Provider"},
		SLAAliases:         []string{"Ship Before", "SLA"},
		SKUAliases:         []string{"SKU", "MSKU"},
		FlexoKeyColumn:     FlexoKeyExtRef,
		ShopKeyLine:        true,
	},
	"tiktok": {
		Name: "Tiktok", Folder: "Tiktok",
		OrderNoAliases:     []string{"Order ID", "Order Number"},
		StatusAliases:      []string{"Order Status", "Status"},
		DateAliases:        []string{"Created Time", "Order Date"},
		AWBAliases:         []string{"Tracking ID", "AWB"},
		TransporterAliases: []string{"Shipping Provider Name", "Shipping Provider"},
		SLAAliases:         []string{"RTS SLA", "SLA"},
		SKUAliases:         []string{"Seller SKU", "SKU"},
		FlexoKeyColumn:     FlexoKeyExtRef,
	},
	"zalora": {
		Name: "Zalora", Folder: "Zalora",
		OrderNoAliases:     []string{"Order Number", "Order No"},
		StatusAliases:      []string{"Status"},
		DateAliases:        []string{"Created at", "Order Date"},
		AWBAliases:         []string{"Tracking Code", "AWB"},
		TransporterAliases: []string{"Shipping Provider"},
		SLAAliases:         []string{"Promised Shipping Time", "SLA"},
		SKUAliases:         []string{"Seller SKU", "SKU"},
		FlexoKeyColumn:     FlexoKeyRef,
	},
	"tokopedia": {
		Name: "Tokopedia", Folder: "Tokopedia",
		OrderNoAliases:     []string{"Nomor Invoice", "Invoice Number", "Order Number"},
		StatusAliases:      []string{"Status Terakhir", "Order Status", "Status"},
		DateAliases:        []string{"Tanggal Pembayaran", "Payment Date", "Order Date"},
		AWBAliases:         []string{"No Resi / Kode Booking", "AWB"},
		TransporterAliases: []string{"Kurir", "Courier"},
		SLAAliases:         []string{"Batas Respon", "SLA"},
		SKUAliases:         []string{"Nomor SKU", "SKU"},
		FlexoKeyColumn:     FlexoKeyExtRef,
	},
	"jdid": {
		Name: "JDID", Folder: "JDID",
		OrderNoAliases:     []string{"Order Number", "Order No"},
		StatusAliases:      []string{"Order Status", "Status"},
		DateAliases:        []string{"Order Time", "Order Date"},
		AWBAliases:         []string{"Waybill Number", "AWB"},
		TransporterAliases: []string{"Carrier"},
		SLAAliases:         []string{"Promise Ship Time", "SLA"},
		SKUAliases:         []string{"SKU Code", "SKU"},
		FlexoKeyColumn:     FlexoKeyExtRef,
	},
}

// Lookup 按渠道名查找描述符（不区分大小写）
func Lookup(channel string) (*Schema, bool) {
	s, ok := registry[strings.ToLower(strings.TrimSpace(channel))]
	return s, ok
}

// Names 返回所有支持渠道的规范名
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, s := range registry {
		names = append(names, s.Name)
	}
	return names
}

// Validate 校验注册表完整性（worker 启动时调用一次，失败则拒绝启动）
func Validate() error {
	for key, s := range registry {
		if s.Name == "" || s.Folder == "" {
			return fmt.Errorf("marketplace %q: name/folder is required", key)
		}
		if len(s.OrderNoAliases) == 0 {
			return fmt.Errorf("marketplace %q: order number aliases are required", key)
		}
		if len(s.StatusAliases) == 0 {
			return fmt.Errorf("marketplace %q: status aliases are required", key)
		}
		if len(s.AWBAliases) == 0 {
			return fmt.Errorf("marketplace %q: awb aliases are required", key)
		}
		if s.FlexoKeyColumn != FlexoKeyExtRef && s.FlexoKeyColumn != FlexoKeyRef {
			return fmt.Errorf("marketplace %q: unknown flexo key column %q", key, s.FlexoKeyColumn)
		}
	}
	return nil
}
