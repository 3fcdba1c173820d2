package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDT-TDD/quizdd-engine/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		PoolCapacity:       2,
		PoolMaxLifetime:    time.Hour,
		PoolMaxIdle:        10 * time.Minute,
		PoolAcquireTimeout: time.Second,
		PoolAcquireBackoff: time.Millisecond,
		PoolPageCacheSize:  1000,
		PoolMmapSizeBytes:  1 << 20,
		PoolBusyTimeout:    5 * time.Second,
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(testConfig(), nil, "")
	assert.Error(t, err)
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := Open(testConfig(), nil, dbPath)
	require.NoError(t, err)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn.DB())

	var one int
	require.NoError(t, conn.DB().QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)

	p.Release(conn)

	conn2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn2)
}

func TestAcquireTimesOutAtCapacity(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	cfg := testConfig()
	cfg.PoolCapacity = 1
	cfg.PoolAcquireTimeout = 50 * time.Millisecond
	p, err := Open(cfg, nil, dbPath)
	require.NoError(t, err)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	assert.Error(t, err)

	p.Release(conn)
}

func TestExecuteRunsAgainstAcquiredConnection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := Open(testConfig(), nil, dbPath)
	require.NoError(t, err)
	defer p.Close()

	err = p.Execute(context.Background(), func(db *sqlx.DB) error {
		_, err := db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
		return err
	})
	require.NoError(t, err)
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := Open(testConfig(), nil, dbPath)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Execute(context.Background(), func(db *sqlx.DB) error {
		_, err := db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
		return err
	}))

	err = p.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec("INSERT INTO t (id) VALUES (1)")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, p.Execute(context.Background(), func(db *sqlx.DB) error {
		return db.QueryRow("SELECT COUNT(*) FROM t").Scan(&count)
	}))
	assert.Equal(t, 1, count)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := Open(testConfig(), nil, dbPath)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Execute(context.Background(), func(db *sqlx.DB) error {
		_, err := db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
		return err
	}))

	err = p.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (id) VALUES (1)"); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.Error(t, err)

	var count int
	require.NoError(t, p.Execute(context.Background(), func(db *sqlx.DB) error {
		return db.QueryRow("SELECT COUNT(*) FROM t").Scan(&count)
	}))
	assert.Equal(t, 0, count)
}
