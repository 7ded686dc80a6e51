package lmbconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lmb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeTemp(t, `store:
  path: ./data/lmb.db
  s3:
    bucket: my-bucket
    region: us-east-1
    use_path_style: true

eval:
  timeout_ms: 5000
  allowed_env:
    - API_KEY
    - HOME

server:
  bind: 0.0.0.0:8080
  workers: 4

sandbox:
  instruction_quantum: 10000
  max_instructions: 50000000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "./data/lmb.db", cfg.Store.Path)
	require.NotNil(t, cfg.Store.S3)
	require.Equal(t, "my-bucket", cfg.Store.S3.Bucket)
	require.True(t, cfg.Store.S3.UsePathStyle)

	require.EqualValues(t, 5000, cfg.Eval.TimeoutMS)
	require.ElementsMatch(t, []string{"API_KEY", "HOME"}, cfg.Eval.AllowedEnv)

	require.Equal(t, "0.0.0.0:8080", cfg.Server.Bind)
	require.Equal(t, 4, cfg.Server.Workers)

	require.Equal(t, 10000, cfg.Sandbox.InstructionQuantum)
	require.EqualValues(t, 50000000, cfg.Sandbox.MaxInstructions)

	allowed := cfg.AllowedEnvMap()
	require.True(t, allowed["API_KEY"])
	require.True(t, allowed["HOME"])
	require.False(t, allowed["SHELL"])

	limits := cfg.Limits()
	require.Equal(t, 10000, limits.InstructionQuantum)
	require.EqualValues(t, 50000000, limits.MaxInstructions)
}

func TestLoadEmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Store.Path)
	require.Nil(t, cfg.AllowedEnvMap())
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/lmb.yaml")
	require.Error(t, err)
}

func TestLoadOptionalMissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := LoadOptional("/nonexistent/lmb.yaml")
	require.NoError(t, err)
	require.Empty(t, cfg.Store.Path)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadUnknownKeyRejected(t *testing.T) {
	path := writeTemp(t, "bogus_key: should_fail\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bogus_key")
}

func TestLoadUnknownNestedKeyRejected(t *testing.T) {
	path := writeTemp(t, "store:\n  path: ./data\n  unknown_field: bad\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown_field")
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("LMB_TEST_PATH", "/tmp/expanded.db")

	path := writeTemp(t, "store:\n  path: ${LMB_TEST_PATH}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/expanded.db", cfg.Store.Path)
}

func TestLoadAdapterRedisConfig(t *testing.T) {
	path := writeTemp(t, `adapter:
  redis:
    url: redis://localhost:6379
    channel: custom:events
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Adapter)
	require.NotNil(t, cfg.Adapter.Redis)
	require.Nil(t, cfg.Adapter.Webhook)
	require.Equal(t, "redis://localhost:6379", cfg.Adapter.Redis.URL)
	require.Equal(t, "custom:events", cfg.Adapter.Redis.Channel)
}

func TestLoadAdapterWebhookConfig(t *testing.T) {
	path := writeTemp(t, `adapter:
  webhook:
    url: https://example.com/hook
    headers:
      Authorization: Bearer token
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Adapter)
	require.NotNil(t, cfg.Adapter.Webhook)
	require.Nil(t, cfg.Adapter.Redis)
	require.Equal(t, "https://example.com/hook", cfg.Adapter.Webhook.URL)
	require.Equal(t, "Bearer token", cfg.Adapter.Webhook.Headers["Authorization"])
}

func TestLoadFSS3Config(t *testing.T) {
	path := writeTemp(t, `fs:
  s3:
    region: us-west-2
    allowed_buckets:
      - scripts-data
      - scripts-archive
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.FS.S3)
	require.Equal(t, "us-west-2", cfg.FS.S3.Region)
	require.ElementsMatch(t, []string{"scripts-data", "scripts-archive"}, cfg.FS.S3.AllowedBuckets)
	require.Nil(t, cfg.Store.S3)
}

func TestLoadEnvExpansionDefault(t *testing.T) {
	path := writeTemp(t, "server:\n  bind: ${LMB_TEST_BIND:-127.0.0.1:9000}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Bind)
}
