package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-apiclient/api"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APICLIENT_HOST", "api.example.com")
	t.Setenv("APICLIENT_SECRET", "s3cret")
	t.Setenv("APICLIENT_STORAGE", StorageMemory)
	t.Setenv("APICLIENT_CACHE_TTL", "1d")
	t.Setenv("APICLIENT_HMAC_KEY", "key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", cfg.Host)
	assert.True(t, cfg.HTTPSLogin)
	assert.False(t, cfg.HTTPSOnly)
	assert.Equal(t, "/api/login", cfg.LoginPath)
	assert.Equal(t, "/api/logout", cfg.LogoutPath)
	assert.Equal(t, "/api/me", cfg.CurrentUserPath)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL.Std())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout.Std())
	assert.Equal(t, api.SignBody, cfg.SignMode())
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Setenv("APICLIENT_HOST", "env.example.com")
	t.Setenv("APICLIENT_SECRET", "s3cret")
	dir := t.TempDir()
	path := filepath.Join(dir, "apiclient.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: file.example.com
https_only: true
storage: file
storage_dir: `+dir+`
cache_ttl: 1w
hmac_key: k
hmac_nonce: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file.example.com", cfg.Host)
	assert.True(t, cfg.HTTPSOnly)
	assert.True(t, cfg.HTTPSLogin, "defaults survive the overlay")
	assert.Equal(t, dir, cfg.StorageDir)
	assert.Equal(t, 7*24*time.Hour, cfg.CacheTTL.Std())
	assert.Equal(t, api.SignBodyWithNonce, cfg.SignMode())
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("APICLIENT_HOST", "api.example.com")
	t.Setenv("APICLIENT_SECRET", "s3cret")
	t.Setenv("APICLIENT_CACHE_TTL", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{Host: "h", Secret: "s", LoginPath: "/l", LogoutPath: "/o", Storage: StorageMemory}
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(c *Config){
		"host":       func(c *Config) { c.Host = "" },
		"secret":     func(c *Config) { c.Secret = "" },
		"paths":      func(c *Config) { c.LoginPath = "" },
		"nonce":      func(c *Config) { c.SignWithNonce = true },
		"storage":    func(c *Config) { c.Storage = "tape" },
		"redis":      func(c *Config) { c.Storage = StorageRedis },
		"file store": func(c *Config) { c.Storage = StorageFile },
	} {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.True(t, errors.Is(c.Validate(), api.ErrMissingParameters))
		})
	}
	assert.Equal(t, api.SignNone, valid.SignMode())
}
