// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import "sync"

// notifier runs deliveries one at a time, in the order they were enqueued.
// The caller that finds it idle drains the queue, including deliveries
// enqueued while it drains. Deliveries run without any manager lock held, so
// they may call back into the manager.
type notifier struct {
	lock       sync.Mutex
	queue      []func()
	delivering bool
}

func (n *notifier) enqueue(f func()) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.queue = append(n.queue, f)
}

// deliver drains the queue unless another caller is already draining it.
func (n *notifier) deliver() {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.delivering {
		return
	}
	n.delivering = true
	defer func() {
		n.delivering = false
	}()

	for len(n.queue) > 0 {
		f := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		n.run(f)
	}
}

// run calls f with the lock released. Must be called with the lock held.
func (n *notifier) run(f func()) {
	n.lock.Unlock()
	defer n.lock.Lock()

	f()
}
