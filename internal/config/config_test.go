package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalJSON = `{
	"port": 8080,
	"database": {"dsn": "postgres://localhost/aimarket"},
	"embedding": {"provider": "openai", "model": "text-embedding-3-small"},
	"generation": {"provider": "openai", "model": "gpt-4o"}
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", minimalJSON))
	require.NoError(t, err)
	require.Equal(t, 1536, cfg.Embedding.Dimension)
	require.Equal(t, 5, cfg.Retrieval.DefaultTopK)
	require.Equal(t, 800, cfg.Chunker.MaxChunkLength)
	require.Equal(t, 4, cfg.Ingest.Workers)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 30, cfg.EmbedCache.MaxAgeDays)
	require.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
	require.Equal(t, 600, cfg.Jobs.PendingIngestTimeoutSeconds)
	require.Equal(t, 60, cfg.Jobs.CacheCleanupTimeoutSeconds)
}

func TestLoadYAML(t *testing.T) {
	content := `
port: 9000
database:
  host: db
  user: aimarket
embedding:
  provider: gemini
  model: gemini-embedding-001
  data:
    api_key: k
generation:
  provider: openai
  model: gpt-4o
retrieval:
  default_top_k: 3
ingest:
  workers: 64
`
	cfg, err := Load(writeConfig(t, "config.yaml", content))
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "gemini", cfg.Embedding.Provider)
	require.Equal(t, 3, cfg.Retrieval.DefaultTopK)
	require.Equal(t, 16, cfg.Ingest.Workers)
	data, ok := cfg.Embedding.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "k", data["api_key"])
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing port", content: `{"database":{"dsn":"x"},"embedding":{"provider":"openai","model":"m"},"generation":{"provider":"openai","model":"m"}}`},
		{name: "missing database", content: `{"port":1,"embedding":{"provider":"openai","model":"m"},"generation":{"provider":"openai","model":"m"}}`},
		{name: "missing embedding", content: `{"port":1,"database":{"dsn":"x"},"generation":{"provider":"openai","model":"m"}}`},
		{name: "wrong dimension", content: `{"port":1,"database":{"dsn":"x"},"embedding":{"provider":"openai","model":"m","dimension":768},"generation":{"provider":"openai","model":"m"}}`},
		{name: "negative top k", content: `{"port":1,"database":{"dsn":"x"},"embedding":{"provider":"openai","model":"m"},"generation":{"provider":"openai","model":"m"},"retrieval":{"default_top_k":-1}}`},
		{name: "bad file store", content: `{"port":1,"database":{"dsn":"x"},"embedding":{"provider":"openai","model":"m"},"generation":{"provider":"openai","model":"m"},"file_store":{"type":"ftp"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.json", tt.content))
			require.Error(t, err)
		})
	}
}
