package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 60*time.Second, cfg.Storage.SignedURLTTL)
	assert.Equal(t, "recordings", cfg.Storage.Bucket)
	assert.Equal(t, "visual", cfg.Client.PauseMode)
	assert.Equal(t, 4*time.Second, cfg.Client.CompleteDelay)
	assert.Equal(t, []string{"audio/wav", "audio/basic", "audio/x-alaw-basic"}, cfg.Client.Formats)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
auth:
  recordings_password: "from-file"
  whitelist: ["ops@example.com"]
storage:
  signed_url_ttl: 30s
`), 0o600))
	t.Setenv("VOX_AUTH_RECORDINGS_PASSWORD", "from-env")
	t.Setenv("VOX_CLIENT_PAUSE_MODE", "capture")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Auth.RecordingsPassword)
	assert.Equal(t, []string{"ops@example.com"}, cfg.Auth.Whitelist)
	assert.Equal(t, 30*time.Second, cfg.Storage.SignedURLTTL)
	assert.Equal(t, "capture", cfg.Client.PauseMode)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("VOX_CLIENT_GATE", "magic")
	_, err := Load("")
	assert.ErrorContains(t, err, "Gate")
}

func TestRedisBackendRequiresAddr(t *testing.T) {
	t.Setenv("VOX_SESSIONS_BACKEND", "redis")
	_, err := Load("")
	assert.ErrorContains(t, err, "RedisAddr")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
