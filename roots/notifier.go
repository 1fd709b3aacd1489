package roots

import (
	"slices"
	"sync"
)

// ChangeNotifier is a small in-process pub-sub used to signal that the set of
// roots changed.
type ChangeNotifier struct {
	subscribersMu sync.RWMutex
	subscribers   []chan struct{}
	closed        bool
}

// Notify signals every subscriber. Sends are non-blocking; a subscriber that
// has not drained its previous signal simply keeps that one.
func (cn *ChangeNotifier) Notify() {
	cn.subscribersMu.RLock()
	defer cn.subscribersMu.RUnlock()

	if cn.closed {
		return
	}
	for _, ch := range cn.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close closes every subscriber channel. Later Subscriber calls return a
// closed channel.
func (cn *ChangeNotifier) Close() {
	cn.subscribersMu.Lock()
	if cn.closed {
		cn.subscribersMu.Unlock()
		return
	}
	cn.closed = true
	subs := cn.subscribers
	cn.subscribers = nil
	cn.subscribersMu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Subscriber returns a channel that receives a signal whenever Notify is
// called. The channel has capacity 1.
func (cn *ChangeNotifier) Subscriber() <-chan struct{} {
	cn.subscribersMu.Lock()
	defer cn.subscribersMu.Unlock()

	if cn.closed {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	ch := make(chan struct{}, 1)
	cn.subscribers = append(cn.subscribers, ch)
	return ch
}

// Unsubscribe stops signals to ch, a channel returned by Subscriber. The
// channel is not closed.
func (cn *ChangeNotifier) Unsubscribe(ch <-chan struct{}) {
	cn.subscribersMu.Lock()
	defer cn.subscribersMu.Unlock()

	for i, sub := range cn.subscribers {
		if sub == ch {
			cn.subscribers = slices.Delete(cn.subscribers, i, i+1)
			return
		}
	}
}
