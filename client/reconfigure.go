package client

import (
	"sync"
	"time"

	"github.com/momentics/asynchttp/control"
)

// liveConfig guards the subset of Config fields that Reconfigure is allowed
// to change after construction, grounded on the teacher's ConfigStore
// snapshot-plus-listener pattern (control/config.go).
type liveConfig struct {
	mu    sync.RWMutex
	store *control.ConfigStore
}

func newLiveConfig() *liveConfig {
	return &liveConfig{store: control.NewConfigStore()}
}

// Reconfigure applies a runtime update to the subset of options that are
// safe to change after construction: compression, followRedirects,
// maxRedirects and timeout. Everything else (threadCount, TLS, dialer,
// marshallers) is fixed at New() since changing it mid-flight would race
// live connection attempts.
func (c *Client) Reconfigure(updates map[string]any) {
	c.live.mu.Lock()
	if v, ok := updates["compression"].(bool); ok {
		c.cfg.Compression = v
	}
	if v, ok := updates["followRedirects"].(bool); ok {
		c.cfg.FollowRedirects = v
	}
	if v, ok := updates["maxRedirects"].(int); ok {
		c.cfg.MaxRedirects = v
	}
	if v, ok := updates["timeout"].(time.Duration); ok {
		c.cfg.Timeout = v
	}
	c.live.mu.Unlock()

	c.live.store.SetConfig(updates)
}

// OnReconfigure registers a listener invoked (on its own goroutine, per the
// teacher's dispatchReload) every time Reconfigure applies an update.
func (c *Client) OnReconfigure(fn func()) {
	c.live.store.OnReload(fn)
}
