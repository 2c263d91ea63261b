package scan

import (
	"context"
	"sync"
	"time"
)

// Waiter blocks until a pending scan may be available or ctx ends.
type Waiter interface {
	WaitForPending(ctx context.Context) error
}

// Notifier fans out "pending scan available" signals to runner workers.
type Notifier interface {
	Subscribe() (func(), <-chan struct{})
	Notify()
	StopAll()
}

// NotifierOptions configure the default notifier implementation.
type NotifierOptions struct {
	// Waiter is optional; without it only in-process Notify calls wake subscribers.
	Waiter     Waiter
	WaitWindow time.Duration
	Backoff    time.Duration
}

// DefaultNotifier is the default implementation of Notifier.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu         sync.Mutex
	subs       map[chan struct{}]struct{}
	stopListen context.CancelFunc
}

// NewNotifier constructs the default notifier implementation.
func NewNotifier(opts NotifierOptions) *DefaultNotifier {
	waitWindow := opts.WaitWindow
	if waitWindow <= 0 {
		waitWindow = time.Minute
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	return &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: waitWindow,
		backoff:    backoff,
		subs:       make(map[chan struct{}]struct{}),
	}
}

// Subscribe registers a buffered channel that receives coalesced wakeups.
func (n *DefaultNotifier) Subscribe() (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.waiter != nil && n.stopListen == nil {
		ctx, cancel := context.WithCancel(context.Background())
		n.stopListen = cancel
		go n.listenLoop(ctx)
	}

	ch := make(chan struct{}, 1)
	n.subs[ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[ch]; !ok {
			return
		}
		delete(n.subs, ch)
		drainAndClose(ch)
		if len(n.subs) == 0 && n.stopListen != nil {
			n.stopListen()
			n.stopListen = nil
		}
	}
	return unsub, ch
}

// Notify wakes every subscriber without blocking.
func (n *DefaultNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// StopAll stops the listener and closes every subscription.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopListen != nil {
		n.stopListen()
		n.stopListen = nil
	}
	for ch := range n.subs {
		drainAndClose(ch)
		delete(n.subs, ch)
	}
}

func (n *DefaultNotifier) listenLoop(ctx context.Context) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForPending(waitCtx)
		cancel()

		n.Notify()

		if err != nil && ctx.Err() == nil {
			timer := time.NewTimer(n.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// drainAndClose removes buffered notifications before closing so receivers observe a closed channel immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
