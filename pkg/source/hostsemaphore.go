package source

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// HostSemaphorePool caps concurrent fetches per host. Several sources often
// live on one host, so the refresh worker limit alone does not bound it.
type HostSemaphorePool struct {
	sems  map[string]*semaphore.Weighted
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostSemaphorePool creates a pool with the given per-host concurrency limit.
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
	}
	return &HostSemaphorePool{
		sems:  make(map[string]*semaphore.Weighted),
		limit: limit,
		log:   log,
	}
}

// Acquire takes one permit for host, blocking until one is free or ctx is done.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	p.mu.Lock()
	sem, ok := p.sems[host]
	if !ok {
		sem = semaphore.NewWeighted(p.limit)
		p.sems[host] = sem
		p.log.WithFields(logrus.Fields{"host": host, "limit": p.limit}).Debug("Created new host semaphore")
	}
	p.mu.Unlock()

	return sem.Acquire(ctx, 1)
}

// Release returns one permit for host.
func (p *HostSemaphorePool) Release(host string) {
	p.mu.Lock()
	sem, ok := p.sems[host]
	p.mu.Unlock()
	if !ok {
		p.log.Errorf("hostsemaphore: Release called for unknown host: %s", host)
		return
	}
	sem.Release(1)
}

// Len returns the number of tracked hosts.
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sems)
}
