package pool

import (
	"context"
	"sync"
	"time"

	corecache "github.com/relvault/relvault/core/cache"
	dberrors "github.com/relvault/relvault/core/errors"
	"github.com/relvault/relvault/core/sqlite"
	rescache "github.com/relvault/relvault/internal/cache"
	"github.com/relvault/relvault/internal/logging"
)

const acquireSampleWindow = 100

// waiter is a suspended acquisition request, resolved or rejected
// exactly once.
type waiter struct {
	result     chan acquireResult
	enqueuedAt time.Time
}

type acquireResult struct {
	conn *PooledConnection
	err  error
}

// Pool is a connection pool over a single SQLite database path.
type Pool struct {
	mu   sync.Mutex
	path string
	cfg  Config

	connections map[string]*PooledConnection
	available   []string
	waiters     []*waiter

	stmtCache   *corecache.StatementCache
	resultCache *rescache.TTLCache[string, any]

	acquireSamples []time.Duration

	totalCreated   int64
	totalDestroyed int64
	totalAcquired  int64
	totalReleased  int64
	totalErrors    int64
	cacheHits      int64
	cacheMisses    int64

	closed bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open creates a pool over path, eagerly opening MinConnections and
// starting the reaper and (if enabled) health-check timers.
func Open(path string, cfg Config) (*Pool, error) {
	p := &Pool{
		path:        path,
		cfg:         cfg,
		connections: make(map[string]*PooledConnection),
		stopCh:      make(chan struct{}),
	}

	if cfg.EnableStatementCache {
		p.stmtCache = corecache.NewStatementCache(0)
	}
	if cfg.EnableResultCache {
		p.resultCache = rescache.New[string, any](cfg.MaxCacheEntries)
	}

	for i := 0; i < cfg.MinConnections; i++ {
		conn, err := p.createConnection(context.Background())
		if err != nil {
			p.Close(context.Background())
			return nil, err
		}
		p.mu.Lock()
		p.available = append(p.available, conn.ID)
		p.mu.Unlock()
	}

	p.wg.Add(1)
	go p.reapLoop()
	if cfg.EnableHealthChecks {
		p.wg.Add(1)
		go p.healthLoop()
	}

	return p, nil
}

func (p *Pool) createConnection(ctx context.Context) (*PooledConnection, error) {
	db, err := sqlite.Open(p.path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db, basePragmas); err != nil {
		db.Close()
		return nil, err
	}
	if err := applyPragmas(ctx, db, poolPragmas); err != nil {
		db.Close()
		return nil, err
	}

	conn := newPooledConnection(db)

	p.mu.Lock()
	p.connections[conn.ID] = conn
	p.totalCreated++
	p.mu.Unlock()

	logging.PoolEvent("connection_created", conn.ID, "path", p.path)
	return conn, nil
}

// Acquire returns a connection to the caller, per the §4.6 acquire
// semantics: pop from available, else grow the pool, else wait FIFO
// until AcquireTimeout elapses.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	start := time.Now()
	opID := logging.OperationID(ctx)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &dberrors.PoolClosingError{}
	}

	if len(p.available) > 0 {
		id := p.available[0]
		p.available = p.available[1:]
		conn := p.connections[id]
		conn.InUse = true
		conn.LastUsed = time.Now()
		p.totalAcquired++
		p.recordAcquireLatency(time.Since(start))
		p.mu.Unlock()
		logging.PoolEvent("connection_acquired", conn.ID, "operation_id", opID)
		return conn, nil
	}

	if len(p.connections) < p.cfg.MaxConnections {
		p.mu.Unlock()
		conn, err := p.createConnection(ctx)
		if err != nil {
			p.mu.Lock()
			p.totalErrors++
			p.mu.Unlock()
			return nil, err
		}
		p.mu.Lock()
		conn.InUse = true
		conn.LastUsed = time.Now()
		p.totalAcquired++
		p.recordAcquireLatency(time.Since(start))
		p.mu.Unlock()
		logging.PoolEvent("connection_acquired", conn.ID, "created", true, "operation_id", opID)
		return conn, nil
	}

	w := &waiter{result: make(chan acquireResult, 1), enqueuedAt: time.Now()}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case res := <-w.result:
		if res.err != nil {
			return nil, res.err
		}
		p.mu.Lock()
		p.recordAcquireLatency(time.Since(start))
		p.mu.Unlock()
		return res.conn, nil
	case <-timer.C:
		p.mu.Lock()
		p.removeWaiter(w)
		p.totalErrors++
		p.mu.Unlock()
		return nil, &dberrors.AcquireTimeoutError{
			WaitedMs: time.Since(start).Milliseconds(),
			Timeout:  p.cfg.AcquireTimeout.Milliseconds(),
		}
	case <-ctx.Done():
		p.mu.Lock()
		p.removeWaiter(w)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (p *Pool) removeWaiter(w *waiter) {
	for i, cur := range p.waiters {
		if cur == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

// Release returns conn to the pool, per §4.6: destroy if over max age,
// else hand to the oldest waiter, else park it as available.
func (p *Pool) Release(conn *PooledConnection) {
	p.mu.Lock()

	if conn.Age() >= p.cfg.MaxConnectionAge {
		delete(p.connections, conn.ID)
		p.totalDestroyed++
		p.totalReleased++
		p.mu.Unlock()
		conn.DB.Close()
		logging.PoolEvent("connection_destroyed", conn.ID, "reason", "max_age")
		return
	}

	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		conn.LastUsed = time.Now()
		conn.InUse = true
		p.totalAcquired++
		p.totalReleased++
		p.mu.Unlock()
		w.result <- acquireResult{conn: conn}
		return
	}

	conn.InUse = false
	conn.LastUsed = time.Now()
	p.available = append(p.available, conn.ID)
	p.totalReleased++
	p.mu.Unlock()
}

func (p *Pool) recordAcquireLatency(d time.Duration) {
	p.acquireSamples = append(p.acquireSamples, d)
	if len(p.acquireSamples) > acquireSampleWindow {
		p.acquireSamples = p.acquireSamples[len(p.acquireSamples)-acquireSampleWindow:]
	}
}

// StatementCache exposes the pool's shared prepared-statement cache. Nil
// if statement caching is disabled.
func (p *Pool) StatementCache() *corecache.StatementCache { return p.stmtCache }

// GetCached returns a cached result for key if present and unexpired.
func (p *Pool) GetCached(key string) (any, bool) {
	if p.resultCache == nil {
		return nil, false
	}
	v, ok := p.resultCache.Get(key)
	p.mu.Lock()
	if ok {
		p.cacheHits++
	} else {
		p.cacheMisses++
	}
	p.mu.Unlock()
	return v, ok
}

// SetCached inserts a result into the cache with the given TTL.
func (p *Pool) SetCached(key string, value any, ttl time.Duration) {
	if p.resultCache == nil {
		return
	}
	p.resultCache.Set(key, value, ttl)
}

// Close stops the reaper/health timers, rejects all waiters with
// PoolClosing, closes every connection, finalizes cached statements, and
// clears pool state. Errors while closing individual connections are
// logged, not returned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopCh)

	for _, w := range p.waiters {
		w.result <- acquireResult{err: &dberrors.PoolClosingError{}}
	}
	p.waiters = nil

	conns := make([]*PooledConnection, 0, len(p.connections))
	for _, c := range p.connections {
		conns = append(conns, c)
	}
	p.connections = make(map[string]*PooledConnection)
	p.available = nil
	p.mu.Unlock()

	p.wg.Wait()

	for _, c := range conns {
		if err := c.DB.Close(); err != nil {
			logging.PoolError("connection_close_failed", err, "id", c.ID)
		}
	}

	if p.stmtCache != nil {
		for _, err := range p.stmtCache.CloseAll() {
			logging.PoolError("statement_finalize_failed", err)
		}
	}
	if p.resultCache != nil {
		p.resultCache.Clear()
	}

	logging.LifecycleEvent("pool_closed", p.path)
	return nil
}
