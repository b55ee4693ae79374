package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTPAddr        string
	StoreBackend    string
	DBDSN           string
	PairsFile       string
	TakerFeePct     decimal.Decimal
	ExecutionBand   decimal.Decimal
	OracleTimeout   time.Duration
	StoreTimeout    time.Duration
	WebSocketOrigin string
	FaucetEnabled   bool
	FaucetMax       decimal.Decimal
	RateLimit       float64
	LogLevel        string
	LogFile         string
}

// FeeRate is the taker fee as a fraction.
func (c Config) FeeRate() decimal.Decimal {
	return c.TakerFeePct.Div(decimal.NewFromInt(100))
}

// Load reads the environment, after applying any .env files found in the
// working directory. Variables already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.StoreBackend = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	if c.StoreBackend == "" {
		c.StoreBackend = BackendMemory
	}
	if c.StoreBackend != BackendMemory && c.StoreBackend != BackendPostgres {
		return c, errors.New("invalid STORE_BACKEND: use memory or postgres")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.StoreBackend == BackendPostgres && c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.PairsFile = envOr("PAIRS_FILE", "config/pairs.yaml")
	c.WebSocketOrigin = envOr("WS_ORIGIN", "*")
	c.LogLevel = envOr("LOG_LEVEL", "info")
	c.LogFile = os.Getenv("LOG_FILE")

	var err error
	if c.TakerFeePct, err = decimalEnv("TAKER_FEE_PCT", "0.26"); err != nil {
		return c, err
	}
	if c.TakerFeePct.IsNegative() || c.TakerFeePct.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return c, errors.New("invalid TAKER_FEE_PCT: must be in [0, 100)")
	}
	if c.ExecutionBand, err = decimalEnv("EXECUTION_BAND_PCT", "5"); err != nil {
		return c, err
	}
	if c.ExecutionBand.IsNegative() {
		return c, errors.New("invalid EXECUTION_BAND_PCT: must not be negative")
	}
	if c.FaucetMax, err = decimalEnv("FAUCET_MAX", "100000"); err != nil {
		return c, err
	}
	if c.OracleTimeout, err = durationEnv("ORACLE_TIMEOUT", 2*time.Second); err != nil {
		return c, err
	}
	if c.StoreTimeout, err = durationEnv("STORE_TIMEOUT", 5*time.Second); err != nil {
		return c, err
	}
	faucetEnabled := os.Getenv("FAUCET_ENABLED")
	if faucetEnabled == "" {
		c.FaucetEnabled = true
	} else {
		b, err := strconv.ParseBool(faucetEnabled)
		if err != nil {
			return c, fmt.Errorf("invalid FAUCET_ENABLED: %w", err)
		}
		c.FaucetEnabled = b
	}
	rate := envOr("RATE_LIMIT", "10")
	if c.RateLimit, err = strconv.ParseFloat(rate, 64); err != nil || c.RateLimit < 0 {
		return c, fmt.Errorf("invalid RATE_LIMIT %q", rate)
	}

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func decimalEnv(key, def string) (decimal.Decimal, error) {
	raw := envOr(key, def)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
