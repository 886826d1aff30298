package bank

import "time"

// waiter is a single-shot subscription to append events. deliver runs
// with the bank lock held, once per append, in subscription order; it
// returns true when the waiter is satisfied, at which point the bank
// marks it resolved and drops it from the list. A waiter resolves
// exactly once: either through deliver or through its timeout.
type waiter struct {
	id       int64
	resolved bool
	deliver  func(*Message) bool
}

func (b *Bank) addWaiterLocked(deliver func(*Message) bool) *waiter {
	b.nextWaiterID++
	w := &waiter{id: b.nextWaiterID, deliver: deliver}
	b.waiters = append(b.waiters, w)
	return w
}

func (b *Bank) removeWaiterLocked(id int64) {
	for i, w := range b.waiters {
		if w.id == id {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}

// publishLocked fans an append event out to the current waiters. The
// snapshot makes it safe for a waiter to unsubscribe itself (or consume
// the message) mid-delivery without corrupting the list.
func (b *Bank) publishLocked(m *Message) {
	subs := append([]*waiter{}, b.waiters...)
	for _, w := range subs {
		if w.resolved {
			continue
		}
		if w.deliver(m) {
			w.resolved = true
			b.removeWaiterLocked(w.id)
		}
	}
}

func (b *Bank) clampTimeout(timeout, def time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = def
	}
	if timeout > b.cfg.MaxWait {
		timeout = b.cfg.MaxWait
	}
	return timeout
}

// awaitWaiter blocks until the waiter resolves through delivery or the
// timeout elapses. On timeout it re-enters the bank lock: if a match won
// the race in the meantime the delivered value is returned, otherwise
// the waiter is unsubscribed and expire (run with the lock held)
// produces the timeout outcome. Every exit path leaves the waiter
// unsubscribed and the timer stopped.
func awaitWaiter[T any](b *Bank, w *waiter, ch <-chan T, timeout time.Duration, expire func() T) T {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v
	case <-timer.C:
		b.mu.Lock()
		if w.resolved {
			b.mu.Unlock()
			return <-ch
		}
		w.resolved = true
		b.removeWaiterLocked(w.id)
		v := expire()
		b.mu.Unlock()
		return v
	}
}
