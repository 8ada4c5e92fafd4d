package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"sweeping/ordersync/internal/entity"
	"sweeping/ordersync/internal/marketplace"
	"sweeping/ordersync/pkg/infra/flexo"
	"sweeping/ordersync/pkg/logger"
)

// fakeQuerier 可控的外部查询桩：按订单号命中、可注入延迟与错误
type fakeQuerier struct {
	orders map[string]*flexo.Order
	delay  time.Duration
	err    error
	calls  atomic.Int32
}

func (f *fakeQuerier) FetchChunk(ctx context.Context, keyColumn string, orderNos []string) (map[string]*flexo.Order, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[string]*flexo.Order)
	for _, no := range orderNos {
		if o, ok := f.orders[no]; ok {
			result[no] = o
		}
	}
	return result, nil
}

func shopeeSchema(t *testing.T) *marketplace.Schema {
	t.Helper()
	schema, ok := marketplace.Lookup("shopee")
	require.True(t, ok)
	return schema
}

// TestReconcile 对接比对
func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("marks found orders interfaced and carries external fields", func(t *testing.T) {
		q := &fakeQuerier{orders: map[string]*flexo.Order{
			"S-100": {OrderNumber: "S-100", FlexoOrderNo: "FX-100", OrderStatus: "PICKED", ItemIDs: "SKU-A,SKU-B"},
		}}
		r := NewReconciler(q, 100, time.Second, logger.NewNop())

		outcome := r.Reconcile(ctx, shopeeSchema(t), []string{"S-100", "S-101"})
		require.Len(t, outcome.Results, 2)
		assert.Zero(t, outcome.DegradedChunks)

		found := outcome.Results["S-100"]
		assert.Equal(t, entity.InterfaceStatusInterface, found.InterfaceStatus)
		assert.Equal(t, "FX-100", found.OrderNumberFlexo)
		assert.Equal(t, "PICKED", found.OrderStatusFlexo)
		assert.Equal(t, "SKU-A,SKU-B", found.ItemIDFlexo)

		missing := outcome.Results["S-101"]
		assert.Equal(t, entity.InterfaceStatusNotYet, missing.InterfaceStatus)
		assert.Empty(t, missing.OrderNumberFlexo)
	})

	t.Run("splits input into chunks", func(t *testing.T) {
		q := &fakeQuerier{orders: map[string]*flexo.Order{}}
		r := NewReconciler(q, 10, time.Second, logger.NewNop())

		orderNos := make([]string, 25)
		for i := range orderNos {
			orderNos[i] = fmt.Sprintf("S-%03d", i)
		}

		outcome := r.Reconcile(ctx, shopeeSchema(t), orderNos)
		assert.Len(t, outcome.Results, 25)
		assert.Equal(t, int32(3), q.calls.Load())
		assert.Zero(t, outcome.DegradedChunks)
	})

	t.Run("degrades timed out chunk and keeps going", func(t *testing.T) {
		q := &fakeQuerier{
			orders: map[string]*flexo.Order{"S-000": {OrderNumber: "S-000", FlexoOrderNo: "FX-0"}},
			delay:  200 * time.Millisecond,
		}
		r := NewReconciler(q, 1, 20*time.Millisecond, logger.NewNop())

		start := time.Now()
		outcome := r.Reconcile(ctx, shopeeSchema(t), []string{"S-000", "S-001"})
		elapsed := time.Since(start)

		// 两个 chunk 都超时降级，迟到结果被丢弃
		assert.Equal(t, 2, outcome.DegradedChunks)
		assert.Equal(t, entity.InterfaceStatusNotYet, outcome.Results["S-000"].InterfaceStatus)
		assert.Equal(t, entity.InterfaceStatusNotYet, outcome.Results["S-001"].InterfaceStatus)
		assert.Less(t, elapsed, 200*time.Millisecond, "watchdog must not wait for the slow query")
	})

	t.Run("degrades failed chunk", func(t *testing.T) {
		q := &fakeQuerier{err: errors.New("login failed for user")}
		r := NewReconciler(q, 100, time.Second, logger.NewNop())

		outcome := r.Reconcile(ctx, shopeeSchema(t), []string{"S-1", "S-2"})
		assert.Equal(t, 1, outcome.DegradedChunks)
		for _, res := range outcome.Results {
			assert.Equal(t, entity.InterfaceStatusNotYet, res.InterfaceStatus)
		}
	})

	t.Run("nil querier degrades every chunk", func(t *testing.T) {
		r := NewReconciler(nil, 1, time.Second, logger.NewNop())

		outcome := r.Reconcile(ctx, shopeeSchema(t), []string{"S-1", "S-2", "S-3"})
		assert.Equal(t, 3, outcome.DegradedChunks)
		for _, res := range outcome.Results {
			assert.Equal(t, entity.InterfaceStatusNotYet, res.InterfaceStatus)
		}
	})

	t.Run("cancelled context degrades remaining chunks", func(t *testing.T) {
		q := &fakeQuerier{delay: 100 * time.Millisecond}
		r := NewReconciler(q, 1, time.Second, logger.NewNop())

		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		outcome := r.Reconcile(cancelCtx, shopeeSchema(t), []string{"S-1", "S-2"})
		assert.Equal(t, 2, outcome.DegradedChunks)
	})

	t.Run("empty input yields empty outcome", func(t *testing.T) {
		r := NewReconciler(nil, 100, time.Second, logger.NewNop())
		outcome := r.Reconcile(ctx, shopeeSchema(t), nil)
		assert.Empty(t, outcome.Results)
		assert.Zero(t, outcome.DegradedChunks)
	})
}
