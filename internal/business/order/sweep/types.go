package sweep

// SweepPayload Job 消息中的业务数据
type SweepPayload struct {
	TaskID   string `json:"task_id"`
	PIC      string `json:"pic"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

// SweepResultData 业务处理结果
type SweepResultData struct {
	TaskID         string
	Marketplace    string
	Brand          string
	Batch          string
	TotalOrders    int
	NewOrders      int
	ReplacedOrders int
	FailedRows     int
	DegradedChunks int
	OrderlistPath  string
	OrderlistLines int
	Warnings       []string
	ProcessedAt    int64
}

// SweepOutput 最终输出结构
type SweepOutput struct {
	TaskID         string   `json:"task_id"`
	Marketplace    string   `json:"marketplace"`
	Brand          string   `json:"brand"`
	Batch          string   `json:"batch"`
	TotalOrders    int      `json:"total_orders"`
	NewOrders      int      `json:"new_orders"`
	ReplacedOrders int      `json:"replaced_orders"`
	FailedRows     int      `json:"failed_rows"`
	DegradedChunks int      `json:"degraded_chunks"`
	OrderlistPath  string   `json:"orderlist_path,omitempty"`
	OrderlistLines int      `json:"orderlist_lines"`
	Warnings       []string `json:"warnings,omitempty"`
	ProcessedAt    int64    `json:"processed_at"`
}
