package sweep

import "context"

// SweepResulter 清洗结果处理器
type SweepResulter struct {
	srcData interface{}
	dstData interface{}
}

// NewSweepResulter 创建清洗结果处理器
func NewSweepResulter() *SweepResulter {
	return &SweepResulter{}
}

// Set 设置业务结果数据
func (r *SweepResulter) Set(ctx context.Context, data interface{}) error {
	r.srcData = data

	resultData := data.(*SweepResultData)

	r.dstData = &SweepOutput{
		TaskID:         resultData.TaskID,
		Marketplace:    resultData.Marketplace,
		Brand:          resultData.Brand,
		Batch:          resultData.Batch,
		TotalOrders:    resultData.TotalOrders,
		NewOrders:      resultData.NewOrders,
		ReplacedOrders: resultData.ReplacedOrders,
		FailedRows:     resultData.FailedRows,
		DegradedChunks: resultData.DegradedChunks,
		OrderlistPath:  resultData.OrderlistPath,
		OrderlistLines: resultData.OrderlistLines,
		Warnings:       resultData.Warnings,
		ProcessedAt:    resultData.ProcessedAt,
	}

	return nil
}

// Get 获取格式化后的输出
func (r *SweepResulter) Get(ctx context.Context) interface{} {
	return r.dstData
}
