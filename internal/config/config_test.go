package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "./movies.json", cfg.Storage.DataFile)
	assert.Equal(t, "/uploads", cfg.Uploads.Route)
	assert.Equal(t, UpdateStrict, cfg.Movies.UpdateMode)
	assert.Equal(t, http.StatusNotFound, cfg.Movies.NotFoundStatus)
	assert.False(t, cfg.Events.Enabled)
	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Equal(t, ":3000", cfg.Addr())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "movies.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = "8080"
cors_origins = ["https://app.example.com"]

[storage]
data_file = "/var/lib/movies/movies.json"

[movies]
update_mode = "upsert"
require_image = true
`), 0o644))

	t.Setenv("APP_PORT", "9090")
	t.Setenv("UPLOAD_DIR", "/srv/uploads")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port, "env wins over file")
	assert.Equal(t, "/var/lib/movies/movies.json", cfg.Storage.DataFile)
	assert.Equal(t, UpdateUpsert, cfg.Movies.UpdateMode)
	assert.True(t, cfg.Movies.RequireImage)
	assert.Equal(t, "/srv/uploads", cfg.Uploads.Dir)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("UPDATE_MODE=upsert\nNOT_FOUND_STATUS=401\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("UPDATE_MODE")
		os.Unsetenv("NOT_FOUND_STATUS")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, UpdateUpsert, cfg.Movies.UpdateMode)
	assert.Equal(t, http.StatusUnauthorized, cfg.Movies.NotFoundStatus)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("UPDATE_MODE", "merge")
	t.Setenv("NOT_FOUND_STATUS", "410")
	t.Setenv("STORE_BACKEND", "s3")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown update mode "merge"`)
	assert.Contains(t, err.Error(), "not_found_status must be 404 or 401")
	assert.Contains(t, err.Error(), `unknown storage backend "s3"`)
}

func TestLoadMissingConfigFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("does-not-exist.toml")
	assert.Error(t, err)
}

func TestMySQLBackendNeedsCredentials(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = BackendMySQL
	assert.Error(t, cfg.Validate())

	cfg.Database.User = "movies"
	assert.NoError(t, cfg.Validate())
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, "ip_route", cfg.KeyStrategy)
}

func TestRedisEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")

	r := Default().Redis
	r.applyEnv()
	assert.Equal(t, "cache:6380", r.Addr)
	assert.Equal(t, 2, r.DB)
	assert.Nil(t, NewRedisClient(RedisConfig{Enabled: false}))
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
