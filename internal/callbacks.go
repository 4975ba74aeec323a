package internal

import "sync"

type callback func(args ...any)

// callbacks is a named-event callback store. Callbacks always run after the
// store lock is released, so they may register or fire other events.
type callbacks struct {
	mu sync.Mutex
	m  map[string][]callback
}

func newCallbacks() *callbacks {
	return &callbacks{m: make(map[string][]callback)}
}

func (c *callbacks) append(event string, fn callback) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[event] = append(c.m[event], fn)
}

// define replaces every callback registered for event with fn
func (c *callbacks) define(event string, fn callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.m, event)
		return
	}
	c.m[event] = []callback{fn}
}

func (c *callbacks) clear(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, event)
}

func (c *callbacks) snapshot(event string, take bool) []callback {
	c.mu.Lock()
	defer c.mu.Unlock()
	fns := c.m[event]
	if take {
		delete(c.m, event)
		return fns
	}
	return append([]callback(nil), fns...)
}

// exec fires every callback for event in registration order and reports whether any ran
func (c *callbacks) exec(event string, args ...any) bool {
	fns := c.snapshot(event, false)
	for _, fn := range fns {
		fn(args...)
	}
	return len(fns) > 0
}

// execOnce fires and removes the callbacks for event
func (c *callbacks) execOnce(event string, args ...any) bool {
	fns := c.snapshot(event, true)
	for _, fn := range fns {
		fn(args...)
	}
	return len(fns) > 0
}

// execWithSelf fires the callbacks for event with self prepended to args
func (c *callbacks) execWithSelf(event string, self any, args ...any) bool {
	return c.exec(event, append([]any{self}, args...)...)
}
