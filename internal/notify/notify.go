// Package notify delivers "the dataset changed" signals to in-process
// observers.
package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Listener is called once per publish. It must not block for long and must
// not trigger another local write synchronously.
type Listener func()

type subscription struct {
	id uint64
	fn Listener
}

// Notifier is a synchronous, ordered fan-out. Each Publish delivers to a
// snapshot of the listeners registered when it starts.
type Notifier struct {
	mu     sync.Mutex
	subs   []subscription
	nextID uint64
	logger *zap.Logger
}

// New creates a Notifier. A nil logger disables logging.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (n *Notifier) Subscribe(fn Listener) (unsubscribe func()) {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every listener in subscription order. A panicking listener is
// logged and skipped.
func (n *Notifier) Publish() {
	n.mu.Lock()
	snapshot := make([]subscription, len(n.subs))
	copy(snapshot, n.subs)
	n.mu.Unlock()

	for _, s := range snapshot {
		n.deliver(s)
	}
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *Notifier) deliver(s subscription) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("change listener panicked", zap.Uint64("listener", s.id), zap.Any("panic", r))
		}
	}()
	s.fn()
}
