package db

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/bursar/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = "6432"
	cfg.Database.User = "ledger"
	cfg.Database.Password = "secret"
	cfg.Database.DBName = "bursar"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxOpenConns = 12
	cfg.Database.MaxIdleConns = 3
	cfg.Database.ConnMaxLifetime = "45m"
	return cfg
}

func TestPaymentTxOptionsAreIsolated(t *testing.T) {
	assert.Equal(t, pgx.RepeatableRead, PaymentTxOptions.IsoLevel)
	assert.Equal(t, pgx.ReadWrite, PaymentTxOptions.AccessMode)
}

func TestPoolConfig(t *testing.T) {
	poolConfig, err := PoolConfig(testConfig())
	require.NoError(t, err)

	assert.Equal(t, int32(12), poolConfig.MaxConns)
	assert.Equal(t, int32(3), poolConfig.MinConns)
	assert.Equal(t, 45*time.Minute, poolConfig.MaxConnLifetime)
	assert.Equal(t, "db.internal", poolConfig.ConnConfig.Host)
	assert.Equal(t, uint16(6432), poolConfig.ConnConfig.Port)
	assert.Equal(t, "bursar", poolConfig.ConnConfig.Database)
	assert.NotNil(t, poolConfig.BeforeAcquire)
}

func TestPoolConfigRejectsBadLifetime(t *testing.T) {
	cfg := testConfig()
	cfg.Database.ConnMaxLifetime = "forever"

	_, err := PoolConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection max lifetime")
}
