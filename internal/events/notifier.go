package events

import (
	"context"
	"sync"
)

// Handler consumes a single event. Handlers run on the mutating goroutine;
// slow handlers slow the mutation call that triggered them.
type Handler func(Event)

// Notifier is a per-kind subscriber registry with synchronous delivery.
// Subscribe and Emit are safe for concurrent use.
type Notifier struct {
	mu       sync.RWMutex
	byKind   [KindCount][]Handler
	allKinds []Handler
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers h for one mutation kind. Out-of-range kinds are ignored.
func (n *Notifier) Subscribe(kind MutationKind, h Handler) {
	if n == nil || h == nil || kind >= KindCount {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.byKind[kind] = append(n.byKind[kind], h)
}

// SubscribeAll registers h for every mutation kind.
func (n *Notifier) SubscribeAll(h Handler) {
	if n == nil || h == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.allKinds = append(n.allKinds, h)
}

// AttachSink subscribes a Sink to every mutation kind.
func (n *Notifier) AttachSink(ctx context.Context, sink Sink) {
	if sink == nil {
		return
	}
	n.SubscribeAll(func(event Event) {
		sink.Emit(ctx, event)
	})
}

// Emit delivers the event to every matching subscriber before returning.
// The subscriber snapshot is taken under the read lock; handlers run outside
// it so a handler may itself subscribe without deadlocking.
func (n *Notifier) Emit(event Event) {
	if n == nil || event.Kind >= KindCount {
		return
	}

	n.mu.RLock()
	kindHandlers := n.byKind[event.Kind]
	allHandlers := n.allKinds
	n.mu.RUnlock()

	for _, h := range kindHandlers {
		h(event)
	}
	for _, h := range allHandlers {
		h(event)
	}
}
