package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	b, err := json.Marshal(data)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestParseJSON_OverlaysOnlySetFields(t *testing.T) {
	path := writeTempJSON(t, "", "cfg.json", map[string]any{
		"database_dsn":           "sqlite://identity.db",
		"session_ttl":            "2h",
		"verification_ttl":       int64(30 * time.Minute),
		"email_case_insensitive": false,
		"notifier":               "redis",
		"redis_stream":           "mail",
	})

	var c Config
	c.LoadDefaults()
	require.NoError(t, parseJSON(&c, path))

	assert.Equal(t, "sqlite://identity.db", c.DatabaseDSN)
	assert.Equal(t, 2*time.Hour, c.SessionTTL)
	assert.Equal(t, 30*time.Minute, c.VerificationTTL)
	assert.False(t, c.EmailCaseInsensitive)
	assert.Equal(t, "redis", c.Notifier)
	assert.Equal(t, "mail", c.RedisStream)

	// untouched
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 10*time.Minute, c.OTPTTL)
}

func TestParseJSON_EmptyPathIsNoop(t *testing.T) {
	var c Config
	c.LoadDefaults()
	want := c

	require.NoError(t, parseJSON(&c, ""))
	assert.Equal(t, want, c)
}

func TestParseJSON_Errors(t *testing.T) {
	var c Config

	err := parseJSON(&c, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	err = parseJSON(&c, path)
	assert.Error(t, err)
}
