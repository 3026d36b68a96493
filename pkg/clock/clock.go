// Package clock implements the action counter that labels every logged event.
//
// The counter is a degenerate Lamport clock with a single process: the
// workshop mutex serializes every event, so one shared counter is enough to
// give the whole run a total order. Each event consumes the current value and
// advances the counter by one, which makes the labels gap-free:
//
//	1, 2, 3, ... in the order the events happened.
//
// Note: Counter is not goroutine-safe. It lives inside the workshop state and
// is only touched while the workshop mutex is held.
package clock

// Counter is the action counter. The zero value is not ready; use New.
type Counter struct {
	next int64
}

// New returns a counter whose first Tick returns 1.
func New() *Counter { return &Counter{next: 1} }

// Tick returns the label for the next event and advances the counter.
func (c *Counter) Tick() int64 {
	v := c.next
	c.next++
	return v
}

// Peek returns the label the next event will get, without advancing.
func (c *Counter) Peek() int64 { return c.next }

// Issued returns how many labels have been handed out so far.
func (c *Counter) Issued() int64 { return c.next - 1 }
