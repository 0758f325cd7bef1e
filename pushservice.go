package japi

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/japi-go/japi/internal/metrics"
)

// subscriber is one (client, push service) edge. Duplicates are permitted:
// subscribing twice from the same client yields two independent delivery
// records.
type subscriber struct {
	clientID uint64
	client   *Client
}

// PushRoutine is supplied by the embedder to PushService.Start. It is
// expected to loop, calling Send to fan out messages, until it observes
// the service has been stopped — either by polling Enabled or by
// selecting on StopChannel.
type PushRoutine func(ps *PushService)

// PushService is a named producer of JSON messages fanned out to every
// subscribed client. Its subscriber set and enabled flag are guarded by a
// mutex private to the service, deliberately never held at the same time
// as a Context's own mutex (see the lock-ordering note in client.go).
type PushService struct {
	name     string
	userdata any
	metrics  *metrics.Registry

	mu          sync.Mutex
	subscribers []*subscriber
	enabled     bool
	started     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// Name returns the push service's registered name.
func (ps *PushService) Name() string { return ps.name }

// UserData returns the opaque payload the owning Context was constructed
// with (see WithUserData), so a routine can reach embedder state without
// resorting to a package-level global.
func (ps *PushService) UserData() any { return ps.userdata }

// Enabled reports whether the service is currently accepting fan-out
// writes. A routine should stop producing once this turns false.
func (ps *PushService) Enabled() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.enabled
}

// StopChannel returns a channel that is closed when Stop is called, so a
// routine blocked on an external source (a NATS subscription, a Kafka
// consumer) can select on cancellation instead of polling Enabled.
func (ps *PushService) StopChannel() <-chan struct{} {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.stopCh
}

// SubscriberCount reports the number of live subscriber records, including
// duplicates from repeated subscribe calls by the same client.
func (ps *PushService) SubscriberCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.subscribers)
}

// Start launches routine as the service's single producer task and marks
// the service enabled. Returns KindDuplicate if already started.
func (ps *PushService) Start(routine PushRoutine) error {
	ps.mu.Lock()
	if ps.started {
		ps.mu.Unlock()
		return newErr(KindDuplicate, "Start", "push service \""+ps.name+"\" already started")
	}
	ps.enabled = true
	ps.started = true
	ps.stopCh = make(chan struct{})
	ps.mu.Unlock()

	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()
		routine(ps)
	}()
	return nil
}

// Stop disables the service and joins its producer task. Returns
// KindTaskNotRunning if the service was never started or already stopped.
func (ps *PushService) Stop() error {
	ps.mu.Lock()
	if !ps.started {
		ps.mu.Unlock()
		return newErr(KindTaskNotRunning, "Stop", "push service \""+ps.name+"\" is not running")
	}
	ps.enabled = false
	stopCh := ps.stopCh
	ps.mu.Unlock()

	close(stopCh)
	ps.wg.Wait()

	ps.mu.Lock()
	ps.started = false
	ps.mu.Unlock()
	return nil
}

// Send serializes one envelope {japi_pushsrv, data} and fans it out to
// every subscriber. Returns the count of successful deliveries, 0 if the
// service has no subscribers or is currently disabled, and a negative
// value if msg is nil.
func (ps *PushService) Send(msg any) (int, error) {
	if msg == nil {
		return -1, newErr(KindInvalidArgument, "Send", "message is nil")
	}
	if !ps.Enabled() {
		return 0, nil
	}

	envelope := map[string]any{"japi_pushsrv": ps.name, "data": msg}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return 0, wrapErr(KindInvalidArgument, "Send", "message is not JSON-serializable", err)
	}

	return writeFanout(ps, payload), nil
}

func (ps *PushService) subscribe(client *Client) {
	ps.mu.Lock()
	ps.subscribers = append(ps.subscribers, &subscriber{clientID: client.ID, client: client})
	count := len(ps.subscribers)
	ps.mu.Unlock()
	ps.observeSubscriberCount(count)
}

// unsubscribeFirst removes the first subscriber record matching clientID,
// leaving any further duplicate subscriptions from the same client intact.
func (ps *PushService) unsubscribeFirst(clientID uint64) bool {
	ps.mu.Lock()
	removed := false
	for i, s := range ps.subscribers {
		if s.clientID == clientID {
			ps.subscribers = append(ps.subscribers[:i], ps.subscribers[i+1:]...)
			removed = true
			break
		}
	}
	count := len(ps.subscribers)
	ps.mu.Unlock()
	if removed {
		ps.observeSubscriberCount(count)
	}
	return removed
}

// removeAllForClient drops every subscriber record for clientID — used by
// disconnect cascade, where all of a client's subscriptions (including
// duplicates) must disappear.
func (ps *PushService) removeAllForClient(clientID uint64) {
	ps.mu.Lock()
	out := ps.subscribers[:0]
	for _, s := range ps.subscribers {
		if s.clientID != clientID {
			out = append(out, s)
		}
	}
	ps.subscribers = out
	count := len(ps.subscribers)
	ps.mu.Unlock()
	ps.observeSubscriberCount(count)
}

// removeFailed drops exactly the subscriber records that failed a
// fan-out write, identified by pointer so that surviving duplicate
// subscriptions from the same client are left untouched.
func (ps *PushService) removeFailed(failed []*subscriber) {
	if len(failed) == 0 {
		return
	}
	failedSet := make(map[*subscriber]struct{}, len(failed))
	for _, f := range failed {
		failedSet[f] = struct{}{}
	}

	ps.mu.Lock()
	out := ps.subscribers[:0]
	for _, s := range ps.subscribers {
		if _, isFailed := failedSet[s]; !isFailed {
			out = append(out, s)
		}
	}
	ps.subscribers = out
	count := len(ps.subscribers)
	ps.mu.Unlock()

	if ps.metrics != nil {
		ps.metrics.PushDropped.Add(float64(len(failed)))
	}
	ps.observeSubscriberCount(count)
}

func (ps *PushService) observeSubscriberCount(count int) {
	if ps.metrics != nil {
		ps.metrics.PushSubscribers.WithLabelValues(ps.name).Set(float64(count))
	}
}

func (ps *PushService) destroy() {
	if ps.Enabled() {
		_ = ps.Stop()
	}
	ps.mu.Lock()
	ps.subscribers = nil
	ps.mu.Unlock()
}

// pushServiceRegistry is the Context's mapping from service name to
// PushService record. Membership (registration, lookup, enumeration) is
// guarded by its own mutex, kept deliberately distinct from both
// Context.mu and any PushService.mu so the three are never nested in a
// way that could invert lock order.
type pushServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]*PushService
	order    []string
}

func newPushServiceRegistry() *pushServiceRegistry {
	return &pushServiceRegistry{services: make(map[string]*PushService)}
}

// register requires an exact-match-unique, non-empty name: the registry's
// own storage is case-sensitive, even though subscribe/unsubscribe
// lookups below are case-insensitive.
func (r *pushServiceRegistry) register(name string, userdata any, reg *metrics.Registry) (*PushService, error) {
	if name == "" {
		return nil, newErr(KindInvalidArgument, "RegisterPushService", "service name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[name]; exists {
		return nil, newErr(KindDuplicate, "RegisterPushService", "push service \""+name+"\" already registered")
	}

	ps := &PushService{name: name, userdata: userdata, metrics: reg}
	r.services[name] = ps
	r.order = append(r.order, name)
	return ps, nil
}

func (r *pushServiceRegistry) lookupCaseInsensitive(name string) (*PushService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.order {
		if strings.EqualFold(n, name) {
			return r.services[n], true
		}
	}
	return nil, false
}

func (r *pushServiceRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *pushServiceRegistry) snapshot() []*PushService {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PushService, len(r.order))
	for i, n := range r.order {
		out[i] = r.services[n]
	}
	return out
}

func (r *pushServiceRegistry) removeClientFromAll(clientID uint64) {
	for _, ps := range r.snapshot() {
		ps.removeAllForClient(clientID)
	}
}

func (r *pushServiceRegistry) destroyAll() {
	r.mu.Lock()
	list := make([]*PushService, len(r.order))
	for i, n := range r.order {
		list[i] = r.services[n]
	}
	r.services = make(map[string]*PushService)
	r.order = nil
	r.mu.Unlock()

	for _, ps := range list {
		ps.destroy()
	}
}
