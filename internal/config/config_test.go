package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("BITCOINDE_PORT")
	os.Unsetenv("BITCOINDE_RETENTION_SECONDS")
	os.Unsetenv("BITCOINDE_MIRRORS")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, defaultPort, cfg.PublishPort)
	require.Len(t, cfg.Mirrors, 4)
	require.Equal(t, "ws.bitcoin.de", cfg.Mirrors[0].Hostname)
}

func TestLoadPortOverride(t *testing.T) {
	os.Setenv("BITCOINDE_PORT", "7000")
	defer os.Unsetenv("BITCOINDE_PORT")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.PublishPort)
}

func TestParseMirrors(t *testing.T) {
	mirrors, ok := parseMirrors("ws.bitcoin.de:V09, ws2.bitcoin.de:V20")
	require.True(t, ok)
	require.Equal(t, []Mirror{
		{Hostname: "ws.bitcoin.de", Variant: "V09"},
		{Hostname: "ws2.bitcoin.de", Variant: "V20"},
	}, mirrors)
}

func TestParseMirrorsRejectsMalformed(t *testing.T) {
	_, ok := parseMirrors("not-a-mirror")
	require.False(t, ok)
}

func TestWithPortOverridesOnlyWhenPositive(t *testing.T) {
	cfg := &Config{PublishPort: 1}
	cfg.WithPort(0)
	require.Equal(t, 1, cfg.PublishPort)
	cfg.WithPort(99)
	require.Equal(t, 99, cfg.PublishPort)
}
