package pool

import (
	"context"
	"time"

	"github.com/relvault/relvault/internal/logging"
)

func (p *Pool) reapLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) healthLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(2 * p.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkHealth()
		}
	}
}

// reapIdle destroys any not-in-use connection idle past IdleTimeout,
// so long as doing so keeps at least MinConnections alive.
func (p *Pool) reapIdle() {
	p.mu.Lock()
	var toClose []*PooledConnection
	now := time.Now()

	remainingAvailable := make([]string, 0, len(p.available))
	for _, id := range p.available {
		conn := p.connections[id]
		if conn == nil {
			continue
		}
		if now.Sub(conn.LastUsed) > p.cfg.IdleTimeout && len(p.connections) > p.cfg.MinConnections {
			delete(p.connections, id)
			p.totalDestroyed++
			toClose = append(toClose, conn)
			continue
		}
		remainingAvailable = append(remainingAvailable, id)
	}
	p.available = remainingAvailable
	p.mu.Unlock()

	for _, conn := range toClose {
		conn.DB.Close()
		logging.PoolEvent("connection_reaped", conn.ID, "reason", "idle")
	}
}

// checkHealth probes every not-in-use connection with SELECT 1 and
// destroys any that fail.
func (p *Pool) checkHealth() {
	p.mu.Lock()
	candidates := make([]string, len(p.available))
	copy(candidates, p.available)
	p.mu.Unlock()

	ctx := context.Background()
	var dead []string
	for _, id := range candidates {
		p.mu.Lock()
		conn := p.connections[id]
		p.mu.Unlock()
		if conn == nil {
			continue
		}
		if _, err := conn.DB.ExecContext(ctx, "SELECT 1"); err != nil {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return
	}

	p.mu.Lock()
	remainingAvailable := make([]string, 0, len(p.available))
	var toClose []*PooledConnection
	deadSet := make(map[string]bool, len(dead))
	for _, id := range dead {
		deadSet[id] = true
	}
	for _, id := range p.available {
		if deadSet[id] {
			if conn := p.connections[id]; conn != nil {
				delete(p.connections, id)
				p.totalDestroyed++
				toClose = append(toClose, conn)
			}
			continue
		}
		remainingAvailable = append(remainingAvailable, id)
	}
	p.available = remainingAvailable
	p.mu.Unlock()

	for _, conn := range toClose {
		conn.DB.Close()
		logging.PoolEvent("connection_reaped", conn.ID, "reason", "health_check_failed")
	}
}
