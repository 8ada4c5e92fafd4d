package domains

import (
	"context"
	"testing"

	"github.com/bitleak/lmstfy/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweeping/ordersync/pkg/errorutil"
	"sweeping/ordersync/pkg/lmstfyx"
	"sweeping/ordersync/pkg/logger"
)

// TestGetProcessRouting Job 解析与路由失败都返回 Bury
func TestGetProcessRouting(t *testing.T) {
	ctx := context.Background()
	proc := GetProcess(logger.NewNop(), &Deps{})

	t.Run("malformed job is buried", func(t *testing.T) {
		resp := proc(ctx, &client.Job{ID: "j1", Data: []byte(`not json`)})
		assert.Equal(t, lmstfyx.JobRespStatusBury, resp.Action)
	})

	t.Run("missing payload is buried", func(t *testing.T) {
		resp := proc(ctx, &client.Job{ID: "j2", Data: []byte(`{"payload":{}}`)})
		assert.Equal(t, lmstfyx.JobRespStatusBury, resp.Action)
	})

	t.Run("unknown action type is buried", func(t *testing.T) {
		raw := []byte(`{"payload":{"data":{"request_id":"r1","action_type":"order_export","id":"t1","data":{}}}}`)
		resp := proc(ctx, &client.Job{ID: "j3", Data: raw})
		assert.Equal(t, lmstfyx.JobRespStatusBury, resp.Action)
	})
}

// TestHandlerMapWiring 清洗动作已注册
func TestHandlerMapWiring(t *testing.T) {
	_, ok := HandlerMap["order_sweep"]
	require.True(t, ok)
}

// TestDoJobReport 错误的可重试标记驱动队列动作
func TestDoJobReport(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()

	t.Run("success acks", func(t *testing.T) {
		resp := doJobReport(ctx, []byte(`{}`), nil, &client.Job{ID: "j1"}, log)
		assert.Equal(t, lmstfyx.JobRespStatusSuccess, resp.Action)
	})

	t.Run("retryable error with tries left releases", func(t *testing.T) {
		job := &client.Job{ID: "j2", RemainTries: 2}
		resp := doJobReport(ctx, nil, errorutil.Retriable("mysql down"), job, log)
		assert.Equal(t, lmstfyx.JobRespStatusRelease, resp.Action)
		assert.Equal(t, uint32(retryDelaySec), resp.RetryIn)
	})

	t.Run("retryable error without tries left buries", func(t *testing.T) {
		job := &client.Job{ID: "j3", RemainTries: 0}
		resp := doJobReport(ctx, nil, errorutil.Retriable("mysql down"), job, log)
		assert.Equal(t, lmstfyx.JobRespStatusBury, resp.Action)
	})

	t.Run("non-retryable error buries", func(t *testing.T) {
		job := &client.Job{ID: "j4", RemainTries: 2}
		resp := doJobReport(ctx, nil, errorutil.NonRetriable("bad filename"), job, log)
		assert.Equal(t, lmstfyx.JobRespStatusBury, resp.Action)
	})
}
