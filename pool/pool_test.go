package pool

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 2
	cfg.AcquireTimeout = 100 * time.Millisecond
	cfg.ReapInterval = time.Hour // don't let the reaper interfere with tests
	cfg.EnableHealthChecks = false
	return cfg
}

func TestOpen_EagerlyOpensMinConnections(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := Open(dbPath, testConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close(context.Background())

	stats := p.Stats()
	if stats.TotalConnections != 1 {
		t.Errorf("TotalConnections = %d; want 1", stats.TotalConnections)
	}
	if stats.IdleConnections != 1 {
		t.Errorf("IdleConnections = %d; want 1", stats.IdleConnections)
	}
}

func TestAcquireRelease(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := Open(dbPath, testConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close(context.Background())

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !conn.InUse {
		t.Error("acquired connection should be marked InUse")
	}

	stats := p.Stats()
	if stats.ActiveConnections != 1 {
		t.Errorf("ActiveConnections = %d; want 1", stats.ActiveConnections)
	}

	p.Release(conn)

	stats = p.Stats()
	if stats.ActiveConnections != 0 {
		t.Errorf("ActiveConnections after release = %d; want 0", stats.ActiveConnections)
	}
}

func TestAcquire_GrowsPoolUpToMax(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	cfg := testConfig()
	p, err := Open(dbPath, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close(context.Background())

	c1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() #1 error = %v", err)
	}
	c2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() #2 error = %v", err)
	}
	if c1.ID == c2.ID {
		t.Error("expected two distinct connections")
	}

	stats := p.Stats()
	if stats.TotalConnections != 2 {
		t.Errorf("TotalConnections = %d; want 2 (grew to max)", stats.TotalConnections)
	}
}

func TestAcquire_TimesOutWhenExhausted(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	cfg := testConfig()
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = 50 * time.Millisecond
	p, err := Open(dbPath, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close(context.Background())

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() #1 error = %v", err)
	}
	_ = conn

	start := time.Now()
	_, err = p.Acquire(context.Background())
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected AcquireTimeout error")
	}
	if elapsed < cfg.AcquireTimeout {
		t.Errorf("returned too early: %v < %v", elapsed, cfg.AcquireTimeout)
	}

	stats := p.Stats()
	if stats.TotalErrors == 0 {
		t.Error("expected TotalErrors to be incremented on timeout")
	}
}

func TestAcquire_FIFOFairness(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	cfg := testConfig()
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = 2 * time.Second
	p, err := Open(dbPath, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close(context.Background())

	held, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("initial Acquire() error = %v", err)
	}

	order := make(chan int, 2)
	go func() {
		if _, err := p.Acquire(context.Background()); err == nil {
			order <- 1
		}
	}()
	time.Sleep(20 * time.Millisecond) // ensure w1 enqueues first
	go func() {
		if _, err := p.Acquire(context.Background()); err == nil {
			order <- 2
		}
	}()
	time.Sleep(20 * time.Millisecond)

	p.Release(held)
	first := <-order
	if first != 1 {
		t.Errorf("first resolved waiter = %d; want 1 (FIFO)", first)
	}
}

func TestClose_RejectsWaitersWithPoolClosing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	cfg := testConfig()
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = 5 * time.Second
	p, err := Open(dbPath, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	p.Close(context.Background())

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected waiter to be rejected on Close")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was never resolved after Close")
	}
}

func TestResultCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := Open(dbPath, testConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close(context.Background())

	if _, ok := p.GetCached("k"); ok {
		t.Fatal("expected cache miss")
	}
	p.SetCached("k", 42, time.Minute)
	v, ok := p.GetCached("k")
	if !ok || v != 42 {
		t.Errorf("GetCached() = %v, %v; want 42, true", v, ok)
	}
}
