package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweeping/ordersync/internal/marketplace"
	"sweeping/ordersync/pkg/logger"
)

func gineeSchema(t *testing.T) *marketplace.Schema {
	t.Helper()
	schema, ok := marketplace.Lookup("ginee")
	require.True(t, ok)
	return schema
}

// TestOrderlistWrite Orderlist 写出与发布
func TestOrderlistWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("writes one order number per line under user workspace", func(t *testing.T) {
		root := t.TempDir()
		w := NewOrderlistWriter(root, nil, logger.NewNop())

		report, err := w.Write(ctx, "budi", shopeeSchema(t), "AURA", "task-1", []string{"S-1", "S-2", "S-3"})
		require.NoError(t, err)
		assert.Equal(t, 3, report.Lines)
		assert.False(t, report.Restored)
		assert.Equal(t, filepath.Join(root, "User_budi", "Shopee", "Orderlist_task-1.txt"), report.Path)

		data, err := os.ReadFile(report.Path)
		require.NoError(t, err)
		assert.Equal(t, "S-1\nS-2\nS-3\n", string(data))
	})

	t.Run("published file is read-only with a backup beside it", func(t *testing.T) {
		root := t.TempDir()
		w := NewOrderlistWriter(root, nil, logger.NewNop())

		report, err := w.Write(ctx, "budi", shopeeSchema(t), "AURA", "task-2", []string{"S-1"})
		require.NoError(t, err)

		info, err := os.Stat(report.Path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o444), info.Mode().Perm())

		_, err = os.Stat(report.Path + ".bak")
		assert.NoError(t, err)

		// 解除只读后可覆盖
		require.NoError(t, w.MakeWritable(report.Path))
		info, err = os.Stat(report.Path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	})

	t.Run("rewrite of same task replaces the read-only file", func(t *testing.T) {
		root := t.TempDir()
		w := NewOrderlistWriter(root, nil, logger.NewNop())

		_, err := w.Write(ctx, "budi", shopeeSchema(t), "AURA", "task-3", []string{"S-1", "S-2"})
		require.NoError(t, err)

		report, err := w.Write(ctx, "budi", shopeeSchema(t), "AURA", "task-3", []string{"S-9"})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Lines)

		data, err := os.ReadFile(report.Path)
		require.NoError(t, err)
		assert.Equal(t, "S-9\n", string(data))
	})

	t.Run("shop key channels append the key to every line", func(t *testing.T) {
		root := t.TempDir()
		shopKeys := map[string]map[string]string{
			"ginee": {"AURA": "GN-AURA-01"},
		}
		w := NewOrderlistWriter(root, shopKeys, logger.NewNop())

		report, err := w.Write(ctx, "siti", gineeSchema(t), "AURA", "task-4", []string{"G-1", "G-2"})
		require.NoError(t, err)
		assert.Empty(t, report.Warning)

		data, err := os.ReadFile(report.Path)
		require.NoError(t, err)
		assert.Equal(t, "G-1,GN-AURA-01\nG-2,GN-AURA-01\n", string(data))
	})

	t.Run("missing shop key degrades to bare numbers with warning", func(t *testing.T) {
		root := t.TempDir()
		w := NewOrderlistWriter(root, nil, logger.NewNop())

		report, err := w.Write(ctx, "siti", gineeSchema(t), "NOVA", "task-5", []string{"G-9"})
		require.NoError(t, err)
		assert.Contains(t, report.Warning, "shop key not configured")

		data, err := os.ReadFile(report.Path)
		require.NoError(t, err)
		assert.Equal(t, "G-9\n", string(data))
	})

	t.Run("empty order list publishes an empty file", func(t *testing.T) {
		root := t.TempDir()
		w := NewOrderlistWriter(root, nil, logger.NewNop())

		report, err := w.Write(ctx, "budi", shopeeSchema(t), "AURA", "task-6", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Lines)

		data, err := os.ReadFile(report.Path)
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

// TestOrderlistCleanup 超龄文件清理
func TestOrderlistCleanup(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	w := NewOrderlistWriter(root, nil, logger.NewNop())

	report, err := w.Write(ctx, "budi", shopeeSchema(t), "AURA", "task-old", []string{"S-1"})
	require.NoError(t, err)

	// 文件回拨到两天前
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(report.Path, old, old))
	require.NoError(t, os.Chtimes(report.Path+".bak", old, old))

	fresh, err := w.Write(ctx, "budi", shopeeSchema(t), "AURA", "task-new", []string{"S-2"})
	require.NoError(t, err)

	removed, err := w.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = os.Stat(report.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh.Path)
	assert.NoError(t, err)
}

// TestCountLines 行数统计（发布后校验用）
func TestCountLines(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"a\n", 1},
		{"a\nb\n", 2},
		{"a\nb", 2}, // 末行无换行
	}
	for _, tc := range cases {
		path := filepath.Join(dir, strings.ReplaceAll(tc.content, "\n", "_")+"f.txt")
		require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))
		got, err := countLines(path)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "content %q", tc.content)
	}
}
