package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HTTP_ADDR", "STORE_BACKEND", "DB_DSN", "PAIRS_FILE", "TAKER_FEE_PCT", "EXECUTION_BAND_PCT",
	"ORACLE_TIMEOUT", "STORE_TIMEOUT", "WS_ORIGIN", "FAUCET_ENABLED", "FAUCET_MAX", "RATE_LIMIT",
	"LOG_LEVEL", "LOG_FILE",
}

func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":8080")

	c, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, c.StoreBackend)
	assert.Equal(t, "config/pairs.yaml", c.PairsFile)
	assert.True(t, c.FeeRate().Equal(decimal.RequireFromString("0.0026")))
	assert.True(t, c.ExecutionBand.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 2*time.Second, c.OracleTimeout)
	assert.Equal(t, 5*time.Second, c.StoreTimeout)
	assert.True(t, c.FaucetEnabled)
	assert.True(t, c.FaucetMax.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, "*", c.WebSocketOrigin)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadMissingRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")

	_, err := Load(noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_ADDR")
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"STORE_BACKEND":  "redis",
		"TAKER_FEE_PCT":  "abc",
		"ORACLE_TIMEOUT": "-1s",
		"FAUCET_ENABLED": "maybe",
		"RATE_LIMIT":     "-3",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HTTP_ADDR", ":8080")
			t.Setenv(key, val)
			_, err := Load(noEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are already set, even to "".
	require.NoError(t, os.Unsetenv("HTTP_ADDR"))
	require.NoError(t, os.Unsetenv("TAKER_FEE_PCT"))
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9090\nTAKER_FEE_PCT=0.1\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.True(t, c.FeeRate().Equal(decimal.RequireFromString("0.001")))
}

func TestParsePairs(t *testing.T) {
	p, err := ParsePairs([]byte(`
pairs:
  - name: xxbtzusd
    altname: xbtusd
    base: XXBT
    quote: ZUSD
    pair_decimals: 1
    lot_decimals: 8
    ordermin: "0.0001"
    reference: "60000"
  - name: XETHZUSD
    base: XETH
    quote: ZUSD
    status: cancel_only
`))
	require.NoError(t, err)
	require.Len(t, p.List, 2)
	assert.Equal(t, "XXBTZUSD", p.List[0].Name)
	assert.Equal(t, "XBTUSD", p.List[0].AltName)
	assert.Equal(t, int32(8), p.List[0].LotDecimals)
	assert.True(t, p.List[0].OrderMin.Equal(decimal.RequireFromString("0.0001")))
	assert.Equal(t, "online", p.List[0].Status)
	assert.Equal(t, "cancel_only", p.List[1].Status)
	assert.True(t, p.Prices["XXBTZUSD"].Equal(decimal.NewFromInt(60000)))
	_, ok := p.Prices["XETHZUSD"]
	assert.False(t, ok)
}

func TestParsePairsRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":         "pairs: []",
		"no base":       "pairs:\n  - name: A\n    quote: B\n",
		"duplicate":     "pairs:\n  - {name: A, base: X, quote: Y}\n  - {name: a, base: X, quote: Y}\n",
		"bad reference": "pairs:\n  - {name: A, base: X, quote: Y, reference: \"-1\"}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePairs([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestBundledPairsFileParses(t *testing.T) {
	p, err := LoadPairs(filepath.Join("..", "..", "config", "pairs.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, p.List)
	for _, pair := range p.List {
		_, ok := p.Prices[pair.Name]
		assert.True(t, ok, pair.Name)
	}
}
