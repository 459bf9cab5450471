package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GREENESTATE_JWT_SECRET", "s3cret")
	t.Setenv("GREENESTATE_SERVER_PORT", "9090")
	t.Setenv("GREENESTATE_LEDGER_UNDERSUPPLY_POLICY", "partial_fill")
	t.Setenv("GREENESTATE_EVENTS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Second, cfg.Lock.Expiry)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)

	p, err := cfg.Ledger.Policy()
	require.NoError(t, err)
	assert.Equal(t, ledger.Policy{Credit: ledger.CreditAutoList, Undersupply: ledger.UndersupplyPartialFill}, p)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jwt:
  secret: from-file
database:
  driver: sqlite
  dsn: "file::memory:?cache=shared"
ledger:
  credit_mode: explicit
  reconcile_interval: 5s
holdings:
  backend: sql
lock:
  backend: redis
`), 0o600))
	t.Setenv("GREENESTATE_LOCK_TRIES", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Ledger.ReconcileInterval)
	assert.Equal(t, "sql", cfg.Holdings.Backend)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, 7, cfg.Lock.Tries)
	assert.True(t, cfg.NeedsRedis())

	p, err := cfg.Ledger.Policy()
	require.NoError(t, err)
	assert.Equal(t, ledger.CreditExplicit, p.Credit)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "jwt.secret")

	t.Setenv("GREENESTATE_JWT_SECRET", "x")
	t.Setenv("GREENESTATE_HOLDINGS_BACKEND", "memcached")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "holdings.backend")

	t.Setenv("GREENESTATE_HOLDINGS_BACKEND", "sql")
	t.Setenv("GREENESTATE_LEDGER_CREDIT_MODE", "sometimes")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "credit mode")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
