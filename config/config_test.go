package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	writeFile := func(t *testing.T, content string) string {
		path := filepath.Join(t.TempDir(), "rustlet.yml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("empty file keeps defaults", func(t *testing.T) {
		cfg, err := Load(writeFile(t, ""))
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		cfg, err := Load(writeFile(t, `
server:
  bind_address: 127.0.0.1:9090
  thread_pool_size: 4
net:
  idle_timeout: 60
session:
  session_timeout: 120
logs:
  max_log_queue: 500
  main:
    location: /var/log/rustlet/main.log
    max_size: 1048576
stats_frequency: 5000
`))
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:9090", cfg.Server.BindAddress)
		require.Equal(t, 4, cfg.Server.ThreadPoolSize)
		require.Equal(t, time.Minute, cfg.NET.IdleTimeout)
		require.Equal(t, 2*time.Minute, cfg.Session.Timeout)
		require.Equal(t, 500, cfg.Logs.QueueCapacity)
		require.Equal(t, "/var/log/rustlet/main.log", cfg.Logs.Main.Location)
		require.Equal(t, int64(1048576), cfg.Logs.Main.MaxSize)
		require.Equal(t, 5*time.Second, cfg.Stats.Frequency)

		// untouched sections keep their defaults
		require.Equal(t, Default().NET.RequestTimeout, cfg.NET.RequestTimeout)
		require.Equal(t, Default().Logs.Request, cfg.Logs.Request)
	})

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("RUSTLET_BIND_ADDRESS", "0.0.0.0:8443")

		cfg, err := Load(writeFile(t, "server:\n  bind_address: 127.0.0.1:9090\n"))
		require.NoError(t, err)
		require.Equal(t, "0.0.0.0:8443", cfg.Server.BindAddress)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
	})
}
