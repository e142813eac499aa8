package jetpush

import (
	"slices"

	"github.com/puzpuzpuz/xsync/v4"
)

// subscriptionHandle is the dispatch handle of one registered consumer.
// *nats.Subscription satisfies it.
type subscriptionHandle interface {
	Unsubscribe() error
	Drain() error
	IsValid() bool
}

// dispatcher is a registry entry. sub is nil while the name is reserved and the
// broker calls are in flight.
type dispatcher struct {
	name   string
	stream string
	sub    subscriptionHandle
}

// dispatcherRegistry tracks dispatch handles keyed by resolved consumer name.
//
// Safe for concurrent use.
type dispatcherRegistry struct {
	entries *xsync.Map[string, *dispatcher]
}

func newDispatcherRegistry() *dispatcherRegistry {
	return &dispatcherRegistry{entries: xsync.NewMap[string, *dispatcher]()}
}

// reserve claims name. It returns false if the name is already reserved or registered.
func (r *dispatcherRegistry) reserve(name string) bool {
	_, loaded := r.entries.LoadOrStore(name, &dispatcher{name: name})
	return !loaded
}

// release drops a reservation after a failed registration.
func (r *dispatcherRegistry) release(name string) {
	r.entries.Delete(name)
}

// commit stores the handle for a reserved name.
func (r *dispatcherRegistry) commit(name, stream string, sub subscriptionHandle) {
	r.entries.Store(name, &dispatcher{name: name, stream: stream, sub: sub})
}

// removeAll empties the registry and returns the registered entries.
// Pending reservations are dropped from the result but left in place.
func (r *dispatcherRegistry) removeAll() []*dispatcher {
	var out []*dispatcher
	r.entries.Range(func(name string, d *dispatcher) bool {
		if d.sub == nil {
			return true
		}
		r.entries.Delete(name)
		out = append(out, d)

		return true
	})

	return out
}

// registered returns the registered entries without removing them.
func (r *dispatcherRegistry) registered() []*dispatcher {
	var out []*dispatcher
	r.entries.Range(func(_ string, d *dispatcher) bool {
		if d.sub != nil {
			out = append(out, d)
		}

		return true
	})

	return out
}

// size returns the number of registered entries.
func (r *dispatcherRegistry) size() int {
	n := 0
	r.entries.Range(func(_ string, d *dispatcher) bool {
		if d.sub != nil {
			n++
		}

		return true
	})

	return n
}

// names returns the registered consumer names, sorted.
func (r *dispatcherRegistry) names() []string {
	var out []string
	r.entries.Range(func(name string, d *dispatcher) bool {
		if d.sub != nil {
			out = append(out, name)
		}

		return true
	})
	slices.Sort(out)

	return out
}

// get returns the registered entry for name.
func (r *dispatcherRegistry) get(name string) (*dispatcher, bool) {
	d, ok := r.entries.Load(name)
	if !ok || d.sub == nil {
		return nil, false
	}

	return d, true
}
