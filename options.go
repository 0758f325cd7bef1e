package japi

import (
	"go.uber.org/zap"

	"github.com/japi-go/japi/internal/metrics"
)

// Option configures a Context at construction time, expressed as
// functional options so the core constructor signature stays New() with
// no required arguments — every ambient concern is opt-in.
type Option func(*Context)

// WithUserData attaches an opaque payload, carried into every handler
// invocation's Context and every push service's UserData(), mirroring the
// reference implementation's void *userptr.
func WithUserData(v any) Option {
	return func(c *Context) { c.userdata = v }
}

// WithLogger installs a structured logger. The default is a no-op logger;
// a library must never force output on an embedder that didn't ask for it.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics installs a Prometheus registry. Every call site guards on
// this being non-nil, so omitting it costs nothing.
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Context) { c.metrics = m }
}

// WithMaxLineSize overrides the LineReader cap (default 64 MiB).
func WithMaxLineSize(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.maxLineSize = n
		}
	}
}

// WithMaxClients sets the admission cap up front, equivalent to calling
// SetMaxClients immediately after New.
func WithMaxClients(n uint16) Option {
	return func(c *Context) { c.maxClients = n }
}

// WithIncludeArgsInResponse sets the args-echo option up front, equivalent
// to calling SetIncludeArgsInResponse immediately after New.
func WithIncludeArgsInResponse(b bool) Option {
	return func(c *Context) { c.includeArgs = b }
}

// WithRateLimiter installs connection-admission rate limiting, consulted
// before the max-clients cap on every accept.
func WithRateLimiter(rl *ConnectionLimiter) Option {
	return func(c *Context) { c.rateLimiter = rl }
}

// WithKeepalive applies TCP keepalive settings to every accepted
// *net.TCPConn. A non-TCP listener (e.g. in tests, net.Pipe) silently
// ignores this.
func WithKeepalive(cfg KeepaliveConfig) Option {
	return func(c *Context) { c.keepalive = cfg }
}
