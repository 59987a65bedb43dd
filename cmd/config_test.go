package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleConfigRoundTripsThroughViper(t *testing.T) {
	data, err := sampleConfig()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "api-key")

	path := filepath.Join(t.TempDir(), "resume-query.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	var config Config
	require.NoError(t, v.Unmarshal(&config))

	assert.Equal(t, "raw_docs", config.InputDir)
	assert.Equal(t, "document/resume.json", config.Records)
	assert.Equal(t, "vectorstore/index.db", config.IndexPath)
	require.NotNil(t, config.Index)
	assert.Equal(t, 700, config.Index.ChunkSize)
	assert.Equal(t, 50, config.Index.ChunkOverlap)
	require.NotNil(t, config.Query)
	assert.Equal(t, 3, config.Query.Variants)
	assert.Equal(t, 5, config.Query.TopK)
	assert.True(t, config.Query.Compress)
	require.NotNil(t, config.AI)
	assert.Equal(t, 2*time.Minute, config.AI.Timeout)
	require.NotNil(t, config.AI.Gemini)
	assert.Equal(t, "gemini-2.5-pro", config.AI.Gemini.Model)
	assert.Equal(t, "text-embedding-004", config.AI.Gemini.EmbeddingModel)
}

func TestWriteSampleConfigRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, writeSampleConfig(path, false))

	err := writeSampleConfig(path, false)
	require.ErrorIs(t, err, errConfigExists)

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, writeSampleConfig(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "input-dir: raw_docs")
}
