package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
environment: test
instruments:
  - ticker: NIFTY
    upstox_key: "NSE_INDEX|Nifty 50"
    kite_token: "256265"
  - ticker: BANKNIFTY
    upstox_key: "NSE_INDEX|Nifty Bank"
    kite_token: "260105"
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, "poll", c.Mode)
	assert.Equal(t, 10*time.Second, c.Ingestion.PollInterval)
	assert.Equal(t, 14, c.Oscillator.Window)
	assert.Equal(t, 0.001, c.Oscillator.Epsilon)
	assert.Equal(t, "niftypulse.intents", c.Kafka.Topics.Intents)
	assert.True(t, c.EdgeTriggered())
	assert.True(t, c.ServerEnabled())
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	c, err := Parse([]byte(minimal + "signal:\n  edge_trigger: false\nserver:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, c.EdgeTriggered())
	assert.False(t, c.ServerEnabled())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad mode":         "mode: stream\n",
		"kafka disabled":   "storage:\n  backend: kafka\n",
		"no brokers":       "kafka:\n  enabled: true\n",
		"kite needs key":   "feed:\n  provider: kite\n",
		"http needs url":   "sentiment:\n  provider: http\n",
		"bad interval":     "ingestion:\n  interval: 3m\n",
		"backoff inverted": "ingestion:\n  retry:\n    min_backoff: 5s\n    max_backoff: 1s\n",
	}
	for name, extra := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(minimal + extra))
			require.Error(t, err)
		})
	}

	_, err := Parse([]byte("environment: test\n"))
	require.Error(t, err)

	dup := minimal + "  - ticker: NIFTY\n    upstox_key: other\n"
	_, err = Parse([]byte(dup))
	require.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	t.Setenv("NIFTYPULSE_MODE", "live")
	t.Setenv("NIFTYPULSE_UPSTOX_ACCESS_TOKEN", "secret")
	t.Setenv("NIFTYPULSE_KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "live", c.Mode)
	assert.Equal(t, "secret", c.Upstox.AccessToken)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)

	t.Setenv("NIFTYPULSE_MODE", "bogus")
	_, err = LoadWithEnv(path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "validate"))
}
