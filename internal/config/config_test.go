package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPIToken, "")
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval)
	assert.True(t, cfg.Refresh.Auto)
	assert.True(t, cfg.DirectMode())
	assert.True(t, cfg.API.ExtractUseAI)
	assert.True(t, cfg.API.ExtractSave)
	assert.Len(t, cfg.RSS.Feeds, len(DefaultFeeds))
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "watchfloor.db"), cfg.DBPath())
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPIToken, "")
	path := writeConfig(t, `
api:
  url: https://intel.example.com
refresh:
  interval: 2m
session:
  auto_triage: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://intel.example.com", cfg.API.URL)
	assert.False(t, cfg.DirectMode())
	assert.Equal(t, 2*time.Minute, cfg.Refresh.Interval)
	assert.False(t, cfg.Session.AutoTriage)
	// untouched defaults
	assert.Equal(t, 200, cfg.API.ArticleLimit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadReplacesFeedList(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	path := writeConfig(t, `
rss:
  feeds:
    - id: cert
      name: CERT
      url: https://cert.example.org/feed.xml
      category: advisories
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.RSS.Feeds, 1)
	assert.Equal(t, "cert", cfg.RSS.Feeds[0].ID)
	assert.Equal(t, "advisories", cfg.RSS.Feeds[0].Category)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "api:\n  url: https://file.example.com\n  token: file-token\n")
	t.Setenv(EnvAPIURL, "https://env.example.com")
	t.Setenv(EnvAPIToken, "env-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.API.URL)
	assert.Equal(t, "env-token", cfg.API.Token)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	tests := []struct {
		name string
		body string
	}{
		{"interval too short", "refresh:\n  interval: 5s\n"},
		{"interval too long", "refresh:\n  interval: 48h\n"},
		{"bad scheme", "api:\n  url: ftp://example.com\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"feed without url", "rss:\n  feeds:\n    - name: broken\n"},
		{"no sources at all", "rss:\n  feeds: []\n"},
		{"malformed yaml", "refresh: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refresh.Interval = time.Second
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh.interval")
	assert.Contains(t, err.Error(), "log.level")
}

func TestValidateInterval(t *testing.T) {
	assert.NoError(t, ValidateInterval(MinRefreshInterval))
	assert.NoError(t, ValidateInterval(MaxRefreshInterval))
	assert.Error(t, ValidateInterval(MinRefreshInterval-time.Second))
	assert.Error(t, ValidateInterval(0))
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPIToken, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.API.URL = "https://intel.example.com"
	cfg.Refresh.Interval = 90 * time.Second
	cfg.Metrics.Addr = "127.0.0.1:9464"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.API.URL, loaded.API.URL)
	assert.Equal(t, 90*time.Second, loaded.Refresh.Interval)
	assert.Equal(t, "127.0.0.1:9464", loaded.Metrics.Addr)
	assert.Equal(t, cfg.RSS.Feeds, loaded.RSS.Feeds)
}

func TestDefaultConfigDoesNotAliasDefaultFeeds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSS.Feeds[0].Name = "changed"
	assert.NotEqual(t, "changed", DefaultFeeds[0].Name)
}
