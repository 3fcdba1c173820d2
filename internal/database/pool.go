// Package database implements the Store Pool and Migration Runner that sit
// in front of the engine's embedded SQLite database (spec.md §4.1, §4.2).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/config"
	"github.com/DDT-TDD/quizdd-engine/internal/logger"
)

// Connection is a pooled handle. Callers must Release it exactly once.
type Connection struct {
	db        *sqlx.DB
	pool      *Pool
	createdAt time.Time
	lastUsed  time.Time
}

// DB exposes the underlying *sqlx.DB for the store/migration layers.
func (c *Connection) DB() *sqlx.DB { return c.db }

// Pool manages a bounded set of connections to a single SQLite file,
// applying the pragma batch spec.md §4.1 requires on every freshly opened
// handle and evicting connections that outlive their lifetime or idle
// budget.
type Pool struct {
	dsn string
	cfg *config.Config
	log *logger.Logger

	mu        sync.Mutex
	conns     []*Connection
	limiter   *rate.Limiter
	openCount int
}

// Open builds the DSN for dbPath per spec.md §6 and returns a ready Pool.
// It does not eagerly open connections; the first Acquire lazily creates one.
func Open(cfg *config.Config, log *logger.Logger, dbPath string) (*Pool, error) {
	if dbPath == "" {
		return nil, apperr.InvalidInput("database path is required")
	}
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d",
		dbPath, cfg.PoolBusyTimeout.Milliseconds())

	burst := cfg.PoolCapacity
	if burst < 1 {
		burst = 1
	}
	return &Pool{
		dsn:     dsn,
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(cfg.PoolAcquireBackoff), burst),
	}, nil
}

// Acquire returns a Connection, opening a new one if the pool has spare
// capacity or reusing an idle one that hasn't aged out. It retries with a
// rate-limited backoff until ctx or the configured acquire timeout expires.
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PoolAcquireTimeout)
	defer cancel()

	for {
		conn, err := p.tryAcquire()
		if err == nil {
			return conn, nil
		}
		if !errAtCapacity(err) {
			return nil, err
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, apperr.Timeout("timed out waiting for a pool connection").WithDetail("cause", err.Error())
		}
	}
}

type capacityError struct{}

func (capacityError) Error() string { return "pool at capacity" }

func errAtCapacity(err error) bool {
	_, ok := err.(capacityError)
	return ok
}

func (p *Pool) tryAcquire() (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictLocked()

	if len(p.conns) > 0 {
		conn := p.conns[len(p.conns)-1]
		p.conns = p.conns[:len(p.conns)-1]
		conn.lastUsed = time.Now()
		return conn, nil
	}

	if p.openCount >= p.cfg.PoolCapacity {
		return nil, capacityError{}
	}

	db, err := p.openConn()
	if err != nil {
		if p.log != nil {
			p.log.WithError(err).Warn("failed to open pool connection")
		}
		return nil, apperr.StoreConnection("failed to open database connection", err)
	}
	p.openCount++
	now := time.Now()
	return &Connection{db: db, pool: p, createdAt: now, lastUsed: now}, nil
}

// evictLocked drops idle connections that have outlived PoolMaxIdle or
// PoolMaxLifetime. Must be called with p.mu held.
func (p *Pool) evictLocked() {
	now := time.Now()
	kept := p.conns[:0]
	for _, c := range p.conns {
		if now.Sub(c.lastUsed) > p.cfg.PoolMaxIdle || now.Sub(c.createdAt) > p.cfg.PoolMaxLifetime {
			c.db.Close()
			p.openCount--
			if p.log != nil {
				p.log.WithField("open_count", p.openCount).Debug("evicted aged pool connection")
			}
			continue
		}
		kept = append(kept, c)
	}
	p.conns = kept
}

func (p *Pool) openConn() (*sqlx.DB, error) {
	sqlDB, err := sql.Open("sqlite3", p.dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1) // one SQLite handle per pooled Connection
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(p.cfg.PoolMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = %d", p.cfg.PoolPageCacheSize),
		"PRAGMA temp_store = MEMORY",
		fmt.Sprintf("PRAGMA mmap_size = %d", p.cfg.PoolMmapSizeBytes),
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	return sqlx.NewDb(sqlDB, "sqlite3"), nil
}

// Release returns a connection to the pool for reuse.
func (p *Pool) Release(conn *Connection) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	conn.lastUsed = time.Now()
	p.conns = append(p.conns, conn)
}

// Close shuts down every connection currently idle in the pool. In-flight
// connections close themselves on their next Release-driven eviction.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, c := range p.conns {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.openCount--
	}
	p.conns = nil
	return firstErr
}

// Execute acquires a connection, runs fn against it, and releases it
// regardless of outcome.
func (p *Pool) Execute(ctx context.Context, fn func(*sqlx.DB) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn.db)
}

// Transaction acquires a connection, opens a *sqlx.Tx, and commits or
// rolls back depending on whether fn returns an error.
func (p *Pool) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)

	tx, err := conn.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Store(err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return apperr.Store(fmt.Errorf("rollback after %w failed: %v", err, rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Store(err)
	}
	return nil
}
