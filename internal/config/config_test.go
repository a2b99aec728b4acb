package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_URL", "https://coordinator.example.com")
	t.Setenv("API_TOKEN", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "https://coordinator.example.com", cfg.APIURL)
	require.Equal(t, "secret", cfg.APIToken)
	require.Equal(t, "default", cfg.RunID)
	require.Equal(t, 100, cfg.BatchSize)
	require.Equal(t, 16, cfg.ConcurrentRequests)
	require.Equal(t, 30, cfg.RequestTimeoutSeconds)
	require.Equal(t, 3, cfg.RetryCount)
	require.Equal(t, 1.0, cfg.RetryDelaySeconds)
	require.Equal(t, 0.5, cfg.DownloadDelaySeconds)
	require.True(t, cfg.RandomizeDelay)
	require.Equal(t, int64(10*1024*1024), cfg.MaxContentLength)
	require.Equal(t, []string{"text/html", "application/xhtml+xml"}, cfg.AllowedContentTypes)
	require.Equal(t, "CloudflareCrawler/1.0", cfg.UserAgent)
	require.Equal(t, "INFO", cfg.LogLevel)
	require.Empty(t, cfg.MetricsAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RUN_ID", "run-42")
	t.Setenv("BATCH_SIZE", "10")
	t.Setenv("CONCURRENT_REQUESTS", "4")
	t.Setenv("REQUEST_TIMEOUT", "5")
	t.Setenv("RETRY_COUNT", "0")
	t.Setenv("RETRY_DELAY", "0.25")
	t.Setenv("DOWNLOAD_DELAY", "1.5")
	t.Setenv("RANDOMIZE_DELAY", "false")
	t.Setenv("MAX_CONTENT_LENGTH", "1024")
	t.Setenv("ALLOWED_CONTENT_TYPES", "text/html,text/plain")
	t.Setenv("USER_AGENT", "TestBot/9.9")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("METRICS_ADDR", ":9090")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "run-42", cfg.RunID)
	require.Equal(t, 10, cfg.BatchSize)
	require.Equal(t, 4, cfg.ConcurrentRequests)
	require.Equal(t, 0, cfg.RetryCount)
	require.False(t, cfg.RandomizeDelay)
	require.Equal(t, int64(1024), cfg.MaxContentLength)
	require.Equal(t, []string{"text/html", "text/plain"}, cfg.AllowedContentTypes)
	require.Equal(t, "TestBot/9.9", cfg.UserAgent)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, ":9090", cfg.MetricsAddr)

	require.Equal(t, 5*time.Second, cfg.RequestTimeout())
	require.Equal(t, 250*time.Millisecond, cfg.RetryDelay())
	require.Equal(t, 1500*time.Millisecond, cfg.DownloadDelay())
}

func TestLoad_MissingAPIURL(t *testing.T) {
	t.Setenv("API_TOKEN", "secret")

	_, err := Load("")
	require.ErrorContains(t, err, "api_url")
}

func TestLoad_MissingAPIToken(t *testing.T) {
	t.Setenv("API_URL", "https://coordinator.example.com")

	_, err := Load("")
	require.ErrorContains(t, err, "api_token")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BATCH_SIZE", "-1")

	_, err := Load("")
	require.ErrorContains(t, err, "batch_size")
}

func TestLoad_RejectsZeroConcurrency(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONCURRENT_REQUESTS", "0")

	_, err := Load("")
	require.ErrorContains(t, err, "concurrent_requests")
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"api_url: https://file.example.com\n"+
			"api_token: from-file\n"+
			"batch_size: 7\n"+
			"download_delay: 2\n",
	), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://file.example.com", cfg.APIURL)
	require.Equal(t, "from-file", cfg.APIToken)
	require.Equal(t, 7, cfg.BatchSize)
	require.Equal(t, 2*time.Second, cfg.DownloadDelay())
	// Untouched keys keep their defaults.
	require.Equal(t, 16, cfg.ConcurrentRequests)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}
