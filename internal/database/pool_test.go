package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockPool 返回连接到 sqlmock 的 GORM 实例，用于在无真实
// 数据库的情况下验证池的生命周期。
func newMockPool(t *testing.T) (sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	return mock, gormDB
}

func TestNewPoolManager(t *testing.T) {
	_, gormDB := newMockPool(t)

	cfg := PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	pm, err := NewPoolManager(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)

	require.NotNil(t, pm)
	assert.Equal(t, cfg, pm.cfg)
	assert.Equal(t, 10, pm.Stats().MaxOpenConnections)
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestPoolManager_Ping(t *testing.T) {
	mock, gormDB := newMockPool(t)

	pm, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()

	require.NoError(t, pm.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_PingFailure(t *testing.T) {
	mock, gormDB := newMockPool(t)

	pm, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	assert.Error(t, pm.Ping(context.Background()))
}

func TestPoolManager_PingAfterClose(t *testing.T) {
	mock, gormDB := newMockPool(t)

	pm, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, pm.Close())

	err = pm.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestPoolManager_CloseIdempotent(t *testing.T) {
	mock, gormDB := newMockPool(t)

	pm, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()

	require.NoError(t, pm.Close())
	require.NoError(t, pm.Close(), "second close is a no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_HealthCheckStopsOnClose(t *testing.T) {
	mock, gormDB := newMockPool(t)

	pm, err := NewPoolManager(gormDB, PoolConfig{
		MaxOpenConns:        10,
		MaxIdleConns:        5,
		HealthCheckInterval: 20 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		mock.ExpectPing()
	}
	mock.ExpectClose()

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, pm.Close())

	// The health check goroutine exits on Close, so no pings after this point.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, pm.closed)
}
