package framework

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseJob 标准 Job 结构解析
func TestParseJob(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts meta and biz payload", func(t *testing.T) {
		raw := []byte(`{"payload":{"data":{"request_id":"req-1","action_type":"order_sweep","pic":"budi","id":"task-1","data":{"task_id":"task-1","file_path":"/tmp/a.xlsx"}}}}`)

		var b BaseHandler
		require.NoError(t, b.ParseJob(ctx, raw))

		meta := b.GetMeta()
		assert.Equal(t, "req-1", meta.RequestID)
		assert.Equal(t, "order_sweep", meta.ActionType)
		assert.Equal(t, "budi", meta.PIC)
		assert.Equal(t, "task-1", meta.ID)

		payload, ok := b.GetBizPayload().(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "task-1", payload["task_id"])
	})

	t.Run("rejects invalid structure", func(t *testing.T) {
		var b BaseHandler
		assert.Error(t, b.ParseJob(ctx, []byte(`{"payload":null}`)))
		assert.Error(t, b.ParseJob(ctx, []byte(`not json`)))
	})
}

// TestWrapResponse 标准响应包装
func TestWrapResponse(t *testing.T) {
	ctx := context.Background()

	var b BaseHandler
	b.SetMeta(&JobMeta{RequestID: "req-1", ActionType: "order_sweep"})

	data, err := b.WrapResponse(ctx, map[string]int{"total_orders": 3})
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.True(t, resp.Processed)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Result)
	assert.Equal(t, "req-1", resp.Meta.RequestID)
}

// TestPreProcessorChain 函数链短路
func TestPreProcessorChain(t *testing.T) {
	ctx := context.Background()
	var trace []string

	step := func(name string, fail bool) ProcessorFunc {
		return func(ctx context.Context) error {
			trace = append(trace, name)
			if fail {
				return assert.AnError
			}
			return nil
		}
	}

	p := NewPreProcessor([]ProcessorFunc{step("pre", false), step("process", true), step("post", false)})
	err := p.Run(ctx)

	require.Error(t, err)
	assert.Equal(t, []string{"pre", "process"}, trace)
	assert.Contains(t, err.Error(), "processor[1]")
}
