package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	tables := Default()

	assert.Equal(t, 1, tables.CategoryPriority(CategoryDataSource))
	assert.Equal(t, 4, tables.CategoryPriority(CategoryStorage))
	assert.Equal(t, 5, tables.CategoryPriority("no_such_category"))

	assert.Equal(t, "data.primary", tables.LegacyFieldMap["results"])
	assert.Equal(t, "paths", tables.LegacyFieldMap["paths"])

	assert.True(t, tables.TransformerEnabled("wrap_single"))
	assert.False(t, tables.TransformerEnabled("exec_arbitrary_code"))

	assert.Equal(t, 5*time.Second, tables.Events.HeartbeatInterval)
}

func TestParseMergesOverDefaults(t *testing.T) {
	yamlData := []byte(`
legacy_field_map:
  search_hits: data.primary
router:
  max_chat_length: 120
events:
  heartbeat_interval: 2s
`)
	tables, err := Parse(yamlData)
	require.NoError(t, err)

	// New alias merged, defaults preserved.
	assert.Equal(t, "data.primary", tables.LegacyFieldMap["search_hits"])
	assert.Equal(t, "data.primary", tables.LegacyFieldMap["results"])

	assert.Equal(t, 120, tables.Router.MaxChatLength)
	assert.NotEmpty(t, tables.Router.Patterns)
	assert.Equal(t, 2*time.Second, tables.Events.HeartbeatInterval)
	assert.Equal(t, 256, tables.Events.SinkBuffer)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("categories: [not a map"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stopwords: [foo, bar]\n"), 0o600))

	tables, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, tables.Stopwords)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
