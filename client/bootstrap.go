package client

import (
	"crypto/tls"
	"sync"
	"time"

	"github.com/momentics/asynchttp/reactor"
)

// tlsIdleExpiry is how long an unused per-host TLS bootstrap entry survives,
// mirroring the buffer pool manager's per-NUMA-node pool reuse in the
// teacher's pool.NewBufferPoolManager: expensive setup state is cached and
// keyed, not rebuilt on every connection.
const tlsIdleExpiry = 2 * time.Minute

// tlsBootstrapCache caches a per-host *tls.Config (ServerName set, session
// cache shared) so repeated TLS dials to the same host reuse session
// resumption state instead of performing a full handshake every time.
type tlsBootstrapCache struct {
	mu        sync.Mutex
	scheduler reactor.Scheduler
	entries   map[string]*tlsCacheEntry
}

type tlsCacheEntry struct {
	cfg    *tls.Config
	expiry reactor.Cancelable
}

func newTLSBootstrapCache(scheduler reactor.Scheduler) *tlsBootstrapCache {
	return &tlsBootstrapCache{scheduler: scheduler, entries: make(map[string]*tlsCacheEntry)}
}

// Get returns the cached *tls.Config for hostPort, cloning base and setting
// ServerName plus a shared ClientSessionCache on first use, and resets the
// idle-expiry timer on every access.
func (c *tlsBootstrapCache) Get(hostPort, serverName string, base *tls.Config) *tls.Config {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[hostPort]; ok {
		e.expiry.Cancel()
		e.expiry = c.scheduler.Schedule(tlsIdleExpiry, func() { c.evict(hostPort) })
		return e.cfg
	}

	cfg := base.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	if cfg.ClientSessionCache == nil {
		cfg.ClientSessionCache = tls.NewLRUClientSessionCache(32)
	}

	e := &tlsCacheEntry{cfg: cfg}
	e.expiry = c.scheduler.Schedule(tlsIdleExpiry, func() { c.evict(hostPort) })
	c.entries[hostPort] = e
	return cfg
}

func (c *tlsBootstrapCache) evict(hostPort string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, hostPort)
}
