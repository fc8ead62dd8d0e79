package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	store.SetClock(func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	})
	return store
}

func TestGetOrGenerateCachesByFingerprint(t *testing.T) {
	store := newTestStore(t)

	calls := 0
	generator := func() (Generated, error) {
		calls++
		return Generated{MiniSummary: `{"summary":"Add onboarding flow"}`, Model: "gpt-4o-mini"}, nil
	}

	input := map[string]string{"title": "Add onboarding flow", "sha": "abc123"}

	first, err := store.GetOrGenerate("commit:abc123", input, generator)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, `{"summary":"Add onboarding flow"}`, first.MiniSummary)
	assert.Equal(t, "gpt-4o-mini", first.Model)
	assert.Equal(t, "2026-03-10T12:00:00Z", first.Timestamp)

	second, err := store.GetOrGenerate("commit:abc123", input, generator)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "unchanged input must not invoke the generator again")
	assert.Equal(t, first, second)
}

func TestGetOrGenerateRegeneratesWhenInputChanges(t *testing.T) {
	store := newTestStore(t)

	calls := 0
	generator := func() (Generated, error) {
		calls++
		return Generated{MiniSummary: "summary v" + string(rune('0'+calls))}, nil
	}

	_, err := store.GetOrGenerate("pr:42", map[string]string{"title": "old"}, generator)
	require.NoError(t, err)

	entry, err := store.GetOrGenerate("pr:42", map[string]string{"title": "new"}, generator)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "summary v2", entry.MiniSummary)

	// The new entry replaced the old one on disk.
	again, err := store.GetOrGenerate("pr:42", map[string]string{"title": "new"}, generator)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "summary v2", again.MiniSummary)
}

func TestGetOrGenerateFingerprintIgnoresKeyOrder(t *testing.T) {
	a, err := Fingerprint(map[string]any{"title": "x", "sha": "y", "files": []string{"a.go"}})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]any{"files": []string{"a.go"}, "sha": "y", "title": "x"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Fingerprint(map[string]any{"title": "x", "sha": "z", "files": []string{"a.go"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGetOrGenerateEmptySummaryFails(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOrGenerate("commit:bad", "input", func() (Generated, error) {
		return Generated{}, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty mini-summary")
}

func TestGetOrGenerateCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	var warned bool
	SetWarnLogger(func(format string, args ...any) { warned = true })
	defer SetWarnLogger(nil)

	path := filepath.Join(dir, ".whatsnew", "cache", "commit:abc.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	calls := 0
	entry, err := store.GetOrGenerate("commit:abc", "input", func() (Generated, error) {
		calls++
		return Generated{MiniSummary: "regenerated"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "regenerated", entry.MiniSummary)
	assert.True(t, warned)

	// The corrupt file was overwritten with a valid entry.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "regenerated")
}

func TestInvalidate(t *testing.T) {
	store := newTestStore(t)

	calls := 0
	generator := func() (Generated, error) {
		calls++
		return Generated{MiniSummary: "s"}, nil
	}

	_, err := store.GetOrGenerate("commit:abc", "input", generator)
	require.NoError(t, err)

	require.NoError(t, store.Invalidate("commit:abc"))

	_, err = store.GetOrGenerate("commit:abc", "input", generator)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "invalidation must force regeneration")

	// Removing an absent entry is a no-op.
	require.NoError(t, store.Invalidate("commit:never-existed"))
}

func TestPathForKeyFlattensSeparators(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.GetOrGenerate("pr:../escape", "input", func() (Generated, error) {
		return Generated{MiniSummary: "s"}, nil
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, ".whatsnew", "cache"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pr:.._escape.json", entries[0].Name())
}
