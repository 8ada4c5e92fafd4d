package tasksvc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweeping/ordersync/pkg/errorutil"
	"sweeping/ordersync/pkg/logger"
)

// TestSubmitRejectsBeforeEnqueue 非法输入在建任务与入队之前就被拒绝
func TestSubmitRejectsBeforeEnqueue(t *testing.T) {
	ctx := context.Background()
	// 依赖全空：校验失败路径不允许触碰任何下游
	svc := NewTaskService(nil, nil, nil, "sweep_jobs", t.TempDir(), logger.NewNop())

	t.Run("missing pic", func(t *testing.T) {
		_, err := svc.Submit(ctx, "", "AURA-SHOPEE-1.xlsx", []byte("x"))
		require.Error(t, err)
		assert.False(t, errorutil.IsRetryable(err))
	})

	t.Run("bad filename", func(t *testing.T) {
		for _, name := range []string{"orders.xlsx", "AURA-AMAZON-1.xlsx", "AURA-SHOPEE-1.pdf"} {
			_, err := svc.Submit(ctx, "budi", name, []byte("x"))
			require.Error(t, err, "filename %q should be rejected", name)
			assert.False(t, errorutil.IsRetryable(err))
		}
	})
}

// TestStoreUpload 上传文件暂存命名与目录布局
func TestStoreUpload(t *testing.T) {
	root := t.TempDir()
	svc := NewTaskService(nil, nil, nil, "sweep_jobs", root, logger.NewNop())

	path, err := svc.storeUpload("budi", "AURA-SHOPEE-5-1.xlsx", []byte("content"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "User_budi", "uploads"), filepath.Dir(path))
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "AURA-SHOPEE-5-1_Userbudi_"), "got %q", base)
	assert.True(t, strings.HasSuffix(base, ".xlsx"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	// 同名文件重复上传互不覆盖
	path2, err := svc.storeUpload("budi", "AURA-SHOPEE-5-1.xlsx", []byte("content2"))
	require.NoError(t, err)
	assert.NotEqual(t, path, path2)
}
