// Package japi is an embeddable, newline-framed JSON request/response and
// server-push library for TCP. An embedder registers named request
// handlers and named push services on a Context, then calls
// ListenAndServe; connected clients exchange newline-delimited JSON
// messages, one request in and one response out per line, while push
// services fan a stream of JSON messages out to every subscribed client.
package japi

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/japi-go/japi/internal/metrics"
)

// Context is one embedded server instance: its handler registry, push
// service registry, live client table, and configuration. Create one with
// New, register handlers and push services, then call ListenAndServe.
// Destroy must be called exactly once after the server loop returns.
type Context struct {
	userdata any

	handlers     *handlerRegistry
	pushServices *pushServiceRegistry

	mu      sync.Mutex
	table   *clientTable
	shutdown bool

	maxClients  uint16
	maxLineSize int
	includeArgs bool

	logger      *zap.Logger
	metrics     *metrics.Registry
	rateLimiter *ConnectionLimiter
	keepalive   KeepaliveConfig

	listener net.Listener
	wg       sync.WaitGroup
}

// New constructs a Context, registering the library's built-in handlers
// before any Option or embedder Register call runs, and sealing the
// handler registry against the reserved "japi_" prefix immediately
// afterward, once the library has finished its own initial registrations.
func New(opts ...Option) *Context {
	c := &Context{
		handlers:     newHandlerRegistry(),
		pushServices: newPushServiceRegistry(),
		table:        newClientTable(),
		maxLineSize:  DefaultMaxLineSize,
		logger:       zap.NewNop(),
	}

	registerBuiltins(c.handlers)
	c.handlers.seal()

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Register adds a named request handler. Distinct error Kinds are
// returned for an empty name, a nil handler, a duplicate name, and
// (since the library's own registrations have already sealed the
// registry) a name starting with the reserved "japi_" prefix — unless the
// name is exactly "request_not_found_handler", the one pre-reservation
// name an embedder may still shadow to override the built-in fallback.
func (c *Context) Register(name string, h Handler) error {
	if c == nil {
		return newErr(KindNullContext, "Register", "context is nil")
	}
	return c.handlers.register(name, h)
}

// SetMaxClients sets the admission cap on concurrently connected clients.
// 0 (the default) means unlimited.
func (c *Context) SetMaxClients(n uint16) {
	c.mu.Lock()
	c.maxClients = n
	c.mu.Unlock()
}

// SetIncludeArgsInResponse controls whether the response envelope echoes
// the request's args object.
func (c *Context) SetIncludeArgsInResponse(b bool) {
	c.mu.Lock()
	c.includeArgs = b
	c.mu.Unlock()
}

// RegisterPushService creates a named push service. The name must be
// non-empty and not already registered (exact-match, case-sensitive
// uniqueness), though subscribe/unsubscribe/list later resolve names
// case-insensitively.
func (c *Context) RegisterPushService(name string) (*PushService, error) {
	return c.pushServices.register(name, c.userdata, c.metrics)
}

// ClientCount returns the number of clients currently connected.
func (c *Context) ClientCount() int {
	return c.clientCount()
}

// Shutdown requests that a running ListenAndServe begin draining and
// return. It closes the listener, which unblocks the accept loop at once.
// A second call is a no-op.
func (c *Context) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
}

// Destroy tears down every push service (stopping and joining its
// producer task, before any remaining client is removed, so no producer
// can observe a closed client table mid-fan-out) and every remaining
// client connection. Call exactly once, after ListenAndServe has returned.
func (c *Context) Destroy() {
	c.pushServices.destroyAll()
	c.removeAllClients()
	if c.rateLimiter != nil {
		c.rateLimiter.Close()
	}
}

func (c *Context) lookupClient(id uint64) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.clients[id]
}
