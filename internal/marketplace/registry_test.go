package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLookup 渠道查找（大小写不敏感）
func TestLookup(t *testing.T) {
	t.Run("finds registered marketplace case-insensitively", func(t *testing.T) {
		for _, name := range []string{"shopee", "SHOPEE", "Shopee"} {
			schema, ok := Lookup(name)
			require.True(t, ok, "lookup %q should succeed", name)
			assert.Equal(t, "Shopee", schema.Name)
		}
	})

	t.Run("rejects unknown marketplace", func(t *testing.T) {
		_, ok := Lookup("amazon")
		assert.False(t, ok)
	})
}

// TestRegistryShape 渠道注册表的结构约定
func TestRegistryShape(t *testing.T) {
	t.Run("all nine channels registered", func(t *testing.T) {
		names := Names()
		assert.Len(t, names, 9)
		for _, want := range []string{"Shopee", "Lazada", "Blibli", "Desty", "Ginee", "Tiktok", "Zalora", "Tokopedia", "JDID"} {
			assert.Contains(t, names, want)
		}
	})

	t.Run("ginee has no date column", func(t *testing.T) {
		schema, ok := Lookup("ginee")
		require.True(t, ok)
		assert.False(t, schema.HasDateColumn())
	})

	t.Run("only ginee and desty use shop key lines", func(t *testing.T) {
		for _, name := range Names() {
			schema, ok := Lookup(name)
			require.True(t, ok)
			if name == "Ginee" || name == "Desty" {
				assert.True(t, schema.ShopKeyLine, "%s should use shop key lines", name)
			} else {
				assert.False(t, schema.ShopKeyLine, "%s should not use shop key lines", name)
			}
		}
	})

	t.Run("blibli and zalora join on RefNo", func(t *testing.T) {
		for _, name := range Names() {
			schema, ok := Lookup(name)
			require.True(t, ok)
			if name == "Blibli" || name == "Zalora" {
				assert.Equal(t, FlexoKeyRef, schema.FlexoKeyColumn)
			} else {
				assert.Equal(t, FlexoKeyExtRef, schema.FlexoKeyColumn)
			}
		}
	})
}

// TestValidate 注册表自检
func TestValidate(t *testing.T) {
	assert.NoError(t, Validate())
}
