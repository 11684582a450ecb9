package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		v, err := Generate("audit")
		require.NoError(t, err)
		assert.False(t, seen[v], "duplicate id %s", v)
		seen[v] = true
	}
}

func TestGenerate_Prefix(t *testing.T) {
	for _, prefix := range []string{"audit", "sse", "import"} {
		t.Run(prefix, func(t *testing.T) {
			v, err := Generate(prefix)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(v, prefix+"-"))
			assert.Len(t, v, len(prefix)+1+21)
		})
	}
}

func TestShort(t *testing.T) {
	v, err := Short("job", 8)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(v, "job-"))
	suffix := strings.TrimPrefix(v, "job-")
	assert.Len(t, suffix, 8)
	for _, r := range suffix {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.True(t, strings.HasPrefix(MustGenerate("sse"), "sse-"))
	})
}
