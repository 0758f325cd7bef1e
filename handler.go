package japi

import (
	"strings"
	"sync"
)

// reservedPrefix is the prefix built-in request names use. Once the
// library has finished its own initial registrations, user calls to
// Register with a name carrying this prefix are rejected.
const reservedPrefix = "japi_"

// Handler is invoked by the Dispatcher with the parsed request arguments
// and a fresh, empty response payload object for the handler to mutate.
type Handler func(ctx *Context, args map[string]any, data map[string]any)

type handlerRecord struct {
	name string
	fn   Handler
}

// handlerRegistry is an insertion-ordered, case-insensitively-keyed list of
// named handlers. Mutated only during Context construction and by
// Register calls issued before the server starts; lookups thereafter are
// concurrent with no further mutation and need no synchronization beyond
// the RWMutex already in place for safety against a misbehaving embedder.
type handlerRegistry struct {
	mu      sync.RWMutex
	order   []*handlerRecord
	sealed  bool // true once the library's own built-ins are registered
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{}
}

func (h *handlerRegistry) register(name string, fn Handler) error {
	if name == "" {
		return newErr(KindInvalidArgument, "Register", "request name is empty")
	}
	if fn == nil {
		return newErr(KindInvalidArgument, "Register", "handler is nil")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sealed && strings.HasPrefix(strings.ToLower(name), reservedPrefix) {
		return newErr(KindReservedName, "Register", "request name uses the reserved \""+reservedPrefix+"\" prefix")
	}

	for _, rec := range h.order {
		if strings.EqualFold(rec.name, name) {
			return newErr(KindDuplicate, "Register", "request handler \""+name+"\" already registered")
		}
	}

	h.order = append(h.order, &handlerRecord{name: name, fn: fn})
	return nil
}

func (h *handlerRegistry) lookup(name string) (Handler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, rec := range h.order {
		if strings.EqualFold(rec.name, name) {
			return rec.fn, true
		}
	}
	return nil, false
}

func (h *handlerRegistry) names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.order))
	for i, rec := range h.order {
		out[i] = rec.name
	}
	return out
}

func (h *handlerRegistry) seal() {
	h.mu.Lock()
	h.sealed = true
	h.mu.Unlock()
}
