package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/leadflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir isolates Load from any .env in the package directory.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)
	t.Setenv("LEADFLOW_CONFIG", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "leadflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
default_flow: saude
action_timeout: 5s
store:
  backend: redis
  redis_ttl: 24h
openai:
  model: gpt-4o
genai:
  business_name: Corretora Exemplo
`), 0o644))

	t.Setenv("LEADFLOW_ADDR", ":7070")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LEADFLOW_MAX_CHARS", "250")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "saude", cfg.DefaultFlow)
	assert.Equal(t, 5*time.Second, cfg.ActionTimeout)
	assert.Equal(t, config.StoreRedis, cfg.Store.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Store.RedisTTL)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "Corretora Exemplo", cfg.GenAI.BusinessName)
	assert.Equal(t, 250, cfg.GenAI.MaxChars)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEADFLOW_STORE=file\nLEADFLOW_STORE_DIR=/tmp/conv\n"), 0o644))
	t.Setenv("LEADFLOW_CONFIG", "")
	t.Cleanup(func() {
		os.Unsetenv("LEADFLOW_STORE")
		os.Unsetenv("LEADFLOW_STORE_DIR")
	})

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.StoreFile, cfg.Store.Backend)
	assert.Equal(t, "/tmp/conv", cfg.Store.Dir)
}

func TestLoad_Errors(t *testing.T) {
	chdir(t)
	t.Setenv("LEADFLOW_CONFIG", "")

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load("nao-existe.yaml")
		assert.Error(t, err)
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("LEADFLOW_ACTION_TIMEOUT", "rapido")
		_, err := config.Load("")
		assert.ErrorContains(t, err, "LEADFLOW_ACTION_TIMEOUT")
	})
	t.Run("sql store without dsn", func(t *testing.T) {
		t.Setenv("LEADFLOW_STORE", "postgres")
		_, err := config.Load("")
		assert.ErrorContains(t, err, "DSN")
	})
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("LEADFLOW_STORE", "mongo")
		_, err := config.Load("")
		assert.ErrorContains(t, err, "mongo")
	})
}

func TestLoad_SecurityAndActions(t *testing.T) {
	chdir(t)
	t.Setenv("LEADFLOW_CONFIG", "")
	t.Setenv("LEADFLOW_ENCRYPTION_KEY", "a2V5")
	t.Setenv("LEADFLOW_FALLBACK_KEYS", "b2xk, ")
	t.Setenv("LEADFLOW_PII_PATTERNS", "^cpf$, (?i)email")
	t.Setenv("LEADFLOW_ACTIONS_FILE", "acoes.yaml")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "a2V5", cfg.Store.EncryptionKey)
	assert.Equal(t, []string{"b2xk"}, cfg.Store.FallbackKeys)
	assert.Equal(t, []string{"^cpf$", "(?i)email"}, cfg.Store.PIIPatterns)
	assert.Equal(t, "acoes.yaml", cfg.ActionsFile)
}
