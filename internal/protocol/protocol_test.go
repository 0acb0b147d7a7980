package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpectedAccept(t *testing.T) {
	// RFC 6455 §1.3 worked example.
	got := expectedAccept("dGhlIHNhbXBsZSBub25jZQ==")
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
}

func TestExtractCookie(t *testing.T) {
	require.Equal(t, "abc123", extractCookie(" io=abc123; Path=/"))
	require.Equal(t, "", extractCookie(" no-equals-sign"))
}

func TestExtractPingInterval(t *testing.T) {
	body := `0{"sid":"abc","upgrades":["websocket"],"pingInterval":22000,"pingTimeout":5000}`
	d, ok := extractPingInterval(body)
	require.True(t, ok)
	require.InDelta(t, 20.0, d.Seconds(), 0.01)
}

func TestExtractPingIntervalMissing(t *testing.T) {
	_, ok := extractPingInterval(`0{"sid":"abc"}`)
	require.False(t, ok)
}

func TestVariantString(t *testing.T) {
	require.Equal(t, "V09", VariantV09.String())
	require.Equal(t, "V20", VariantV20.String())
}
