package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// repoRoot walks up from the test's working directory to find the module root.
func repoRoot(t testing.TB) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	root := wd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root
		}
		parent := filepath.Dir(root)
		if parent == root {
			t.Fatalf("could not find repo root from %s", wd)
		}
		root = parent
	}
}

func TestContentScripts_BurnTick(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(filepath.Join(repoRoot(t), "content", "scripts"), 0))
	require.True(t, mgr.HasHook("burn_tick"))

	got, err := mgr.CallTick("burn_tick", 900, 1000, 2)
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	got, err = mgr.CallTick("burn_tick", 5, 1000, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, got, "never more than the bearer has left")
}

func TestPropertyContentScripts_BurnTickBounded(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(filepath.Join(repoRoot(t), "content", "scripts"), 0))
	rapid.Check(t, func(rt *rapid.T) {
		maxHP := rapid.IntRange(1, 100000).Draw(rt, "maxHP")
		hp := rapid.IntRange(0, maxHP).Draw(rt, "hp")
		stacks := rapid.IntRange(1, 5).Draw(rt, "stacks")
		got, err := mgr.CallTick("burn_tick", hp, maxHP, stacks)
		require.NoError(rt, err)
		assert.GreaterOrEqual(rt, got, 0)
		assert.LessOrEqual(rt, got, hp)
	})
}
