package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, ws, body string) {
	t.Helper()
	dir := filepath.Join(ws, ".agentpipe")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
}

func logFile(ws string, cat Category) string {
	date := time.Now().Format("2006-01-02")
	return filepath.Join(ws, ".agentpipe", "logs", date+"_"+string(cat)+".log")
}

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  level: debug
`)
	require.NoError(t, Initialize(ws))
	t.Cleanup(CloseAll)

	for _, cat := range AllCategories {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	for _, cat := range AllCategories {
		data, err := os.ReadFile(logFile(ws, cat))
		require.NoError(t, err, "category %s", cat)
		assert.Contains(t, string(data), "hello from "+string(cat))
	}
}

func TestProductionModeWritesNothing(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Initialize(ws))
	t.Cleanup(CloseAll)

	assert.False(t, IsDebugMode())
	Get(CategoryRunner).Error("should be dropped")

	_, err := os.Stat(filepath.Join(ws, ".agentpipe", "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestCategoryFilter(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Configure(ws, Settings{
		DebugMode:  true,
		Categories: map[string]bool{"stream": false},
	}))
	t.Cleanup(CloseAll)

	assert.False(t, IsCategoryEnabled(CategoryStream))
	assert.True(t, IsCategoryEnabled(CategoryProcess))
	assert.True(t, IsCategoryEnabled(CategoryCoerce), "unlisted categories default to enabled")
}

func TestLevelFiltering(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Configure(ws, Settings{DebugMode: true, Level: "warn"}))
	t.Cleanup(CloseAll)

	Get(CategoryCoerce).Info("quiet info")
	Get(CategoryCoerce).Warn("loud warning")
	CloseAll()

	data, err := os.ReadFile(logFile(ws, CategoryCoerce))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet info")
	assert.Contains(t, string(data), "loud warning")
}

func TestJSONFormat(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Configure(ws, Settings{DebugMode: true, JSONFormat: true}))
	t.Cleanup(CloseAll)

	Get(CategorySegment).With("segment", 3).Info("emitted")
	CloseAll()

	data, err := os.ReadFile(logFile(ws, CategorySegment))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, "{"), line)
	assert.Contains(t, line, `"segment":3`)
}

func TestConcurrentGet(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, Configure(ws, Settings{DebugMode: true}))
	t.Cleanup(CloseAll)

	var wg sync.WaitGroup
	got := make([]*Logger, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Get(CategoryStream)
		}(i)
	}
	wg.Wait()

	for _, l := range got[1:] {
		assert.Same(t, got[0], l)
	}
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	assert.Error(t, Initialize(""))
}

func TestTimer(t *testing.T) {
	timer := StartTimer(CategoryRunner, "op")
	assert.GreaterOrEqual(t, int64(timer.Stop()), int64(0))
	assert.GreaterOrEqual(t, int64(StartTimer(CategoryRunner, "op").StopWithThreshold(time.Hour)), int64(0))
}
