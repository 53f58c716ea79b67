package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMainConfig(t *testing.T) {
	config := DefaultMainConfig()
	assert.Equal(t, "./input", config.InputDir)
	assert.Equal(t, "./output", config.OutputDir)
	assert.Equal(t, ".txt", config.Extension)
	assert.Equal(t, "", config.Encoding)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, DefaultOutputNameFormat, config.OutputNameFormat)
	assert.Equal(t, 500000, config.SheetRowLimit)
	assert.Equal(t, 2, config.Reserve())
	assert.Equal(t, 0, config.MaxWorkers)
	assert.NoError(t, validateMainConfig(config))
}

func TestLoadMainConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
input_dir: /data/sped
extension: TXT
encoding: iso-8859-1
log_level: DEBUG
reserve_cpus: 0
max_workers: 8
sheet_row_limit: 1000
sqlite_path: /data/efd.db
column_rules:
  - column: NOME
    actions:
      - type: uppercase
      - type: trim
  - column: COD_ITEM
    actions:
      - type: pad_zeros_to_length
        value: "6"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	config, err := LoadMainConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/sped", config.InputDir)
	assert.Equal(t, ".TXT", config.Extension)
	assert.Equal(t, "ISO-8859-1", config.Encoding)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 0, config.Reserve(), "an explicit zero reserve is kept")
	assert.Equal(t, 8, config.MaxWorkers)
	assert.Equal(t, 1000, config.SheetRowLimit)
	assert.Equal(t, "/data/efd.db", config.SQLitePath)
	require.Len(t, config.ColumnRules, 2)
	assert.Equal(t, "uppercase", config.ColumnRules[0].Actions[0].Type)
}

func TestLoadMainConfigMissingFile(t *testing.T) {
	_, err := LoadMainConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidateMainConfig(t *testing.T) {
	var testCases = []struct {
		description string
		data        string
		errContains string
	}{
		{description: "bad log level", data: "log_level: loud", errContains: "log_level"},
		{description: "bad encoding", data: "encoding: EBCDIC", errContains: "encoding"},
		{description: "sheet too large", data: "sheet_row_limit: 2000000", errContains: "sheet_row_limit"},
		{description: "negative workers", data: "max_workers: -1", errContains: "max_workers"},
		{description: "negative reserve", data: "reserve_cpus: -3", errContains: "reserve_cpus"},
		{
			description: "unknown action",
			data:        "column_rules:\n  - column: NOME\n    actions:\n      - type: title_case\n",
			errContains: "unknown action type \"title_case\"",
		},
		{
			description: "bad regex",
			data:        "column_rules:\n  - column: NOME\n    actions:\n      - type: regex_replace\n        find: \"[\"\n",
			errContains: "invalid regex pattern",
		},
		{
			description: "lookup without table",
			data:        "column_rules:\n  - column: NOME\n    actions:\n      - type: lookup\n",
			errContains: "lookup_table",
		},
		{
			description: "rule without column",
			data:        "column_rules:\n  - actions:\n      - type: trim\n",
			errContains: "column is required",
		},
		{description: "not yaml", data: "input_dir: [", errContains: "failed to parse config file"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, err := ParseMainConfig([]byte(tc.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errContains)
		})
	}
}

func TestEnsureOutputDir(t *testing.T) {
	config := DefaultMainConfig()
	config.OutputDir = filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, config.EnsureOutputDir())
	info, err := os.Stat(config.OutputDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
