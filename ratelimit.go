package japi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnectionLimiter provides connection-admission shaping on top of (not
// instead of) the max-clients cap. It combines a single global token
// bucket with a lazily created, per-source-IP token bucket, evicting idle
// IP entries on a background sweep.
//
// Disabled by default: admission shaping is a supplement to, not a
// replacement for, authentication (which this library never does), so
// it is opt-in.
type ConnectionLimiter struct {
	global *rate.Limiter

	ipRate  rate.Limit
	ipBurst int
	ipTTL   time.Duration

	mu     sync.Mutex
	ips    map[string]*ipEntry
	stopCh chan struct{}
	once   sync.Once
}

type ipEntry struct {
	limiter *rate.Limiter
	lastHit time.Time
}

// ConnectionLimiterConfig configures NewConnectionLimiter.
type ConnectionLimiterConfig struct {
	GlobalRate  float64
	GlobalBurst int
	PerIPRate   float64
	PerIPBurst  int
	IdleTTL     time.Duration
}

// NewConnectionLimiter builds a limiter and starts its idle-IP sweeper.
func NewConnectionLimiter(cfg ConnectionLimiterConfig) *ConnectionLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}

	cl := &ConnectionLimiter{
		global:  rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		ipRate:  rate.Limit(cfg.PerIPRate),
		ipBurst: cfg.PerIPBurst,
		ipTTL:   cfg.IdleTTL,
		ips:     make(map[string]*ipEntry),
		stopCh:  make(chan struct{}),
	}

	go cl.sweepLoop()
	return cl
}

// Allow reports whether a new connection from ip may be admitted right
// now. It always consults the global bucket; when ip is non-empty it also
// consults (and lazily creates) that IP's own bucket.
func (cl *ConnectionLimiter) Allow(ip string) bool {
	if !cl.global.Allow() {
		return false
	}
	if ip == "" {
		return true
	}

	cl.mu.Lock()
	entry, ok := cl.ips[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(cl.ipRate, cl.ipBurst)}
		cl.ips[ip] = entry
	}
	entry.lastHit = time.Now()
	limiter := entry.limiter
	cl.mu.Unlock()

	return limiter.Allow()
}

func (cl *ConnectionLimiter) sweepLoop() {
	ticker := time.NewTicker(cl.ipTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-cl.ipTTL)
			cl.mu.Lock()
			for ip, entry := range cl.ips {
				if entry.lastHit.Before(cutoff) {
					delete(cl.ips, ip)
				}
			}
			cl.mu.Unlock()
		case <-cl.stopCh:
			return
		}
	}
}

// Close stops the idle-IP sweeper. Safe to call more than once.
func (cl *ConnectionLimiter) Close() {
	cl.once.Do(func() { close(cl.stopCh) })
}
