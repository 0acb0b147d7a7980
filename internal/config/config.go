// Package config loads the small set of knobs this client needs: the
// publish port and the mirror list, from environment variables and an
// optional .env file, with built-in defaults for anything unset.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort            = 5634
	defaultRetentionSecond = 60
)

// Mirror is one configured endpoint, carrying enough to build an
// internal/source.Descriptor once the variant's protocol factory is
// wired up by the caller.
type Mirror struct {
	Hostname string
	Variant  string // "V09" or "V20"
}

// defaultMirrors is the default configuration: ws/ws1 on the legacy
// handshake, ws2/ws3 on the engine.io handshake.
var defaultMirrors = []Mirror{
	{Hostname: "ws.bitcoin.de", Variant: "V09"},
	{Hostname: "ws1.bitcoin.de", Variant: "V09"},
	{Hostname: "ws2.bitcoin.de", Variant: "V20"},
	{Hostname: "ws3.bitcoin.de", Variant: "V20"},
}

// Config holds the process's runtime configuration.
type Config struct {
	PublishPort     int
	Mirrors         []Mirror
	RetentionWindow time.Duration
}

// Load reads a .env file if present (a missing file is not an error),
// then builds a Config from environment variables, falling back to
// defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := &Config{
		PublishPort:     defaultPort,
		Mirrors:         defaultMirrors,
		RetentionWindow: defaultRetentionSecond * time.Second,
	}

	if v := os.Getenv("BITCOINDE_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err == nil && p > 0 {
			cfg.PublishPort = p
		}
	}

	if v := os.Getenv("BITCOINDE_RETENTION_SECONDS"); v != "" {
		s, err := strconv.Atoi(v)
		if err == nil && s > 0 {
			cfg.RetentionWindow = time.Duration(s) * time.Second
		}
	}

	if v := os.Getenv("BITCOINDE_MIRRORS"); v != "" {
		if mirrors, ok := parseMirrors(v); ok {
			cfg.Mirrors = mirrors
		}
	}

	return cfg, nil
}

// parseMirrors parses a "host:variant,host:variant,..." override string,
// e.g. "ws.bitcoin.de:V09,ws2.bitcoin.de:V20".
func parseMirrors(v string) ([]Mirror, bool) {
	parts := strings.Split(v, ",")
	out := make([]Mirror, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fields := strings.SplitN(p, ":", 2)
		if len(fields) != 2 {
			return nil, false
		}
		out = append(out, Mirror{Hostname: fields[0], Variant: fields[1]})
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// WithPort overrides the publish port, used by the --port/-p CLI flag
// which takes precedence over BITCOINDE_PORT.
func (c *Config) WithPort(port int) *Config {
	if port > 0 {
		c.PublishPort = port
	}
	return c
}
