// Package toast keeps the list of short-lived notifications shown to the
// user. Each toast removes itself after its duration.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDuration applies when Show is given a non-positive duration.
const DefaultDuration = 2000 * time.Millisecond

type Variant string

const (
	Info    Variant = "info"
	Success Variant = "success"
	Warning Variant = "warning"
	Error   Variant = "error"
)

// Class maps a variant to its alert CSS class; unknown variants render as info.
func (v Variant) Class() string {
	switch v {
	case Success:
		return "alert-success"
	case Error:
		return "alert-error"
	case Warning:
		return "alert-warning"
	default:
		return "alert-info"
	}
}

type Toast struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Variant Variant `json:"variant"`
}

// Event reports a toast being shown or removed.
type Event struct {
	Kind  string `json:"kind"` // "shown" | "dismissed"
	Toast Toast  `json:"toast"`
}

// Center holds the visible toasts in insertion order. It is safe for
// concurrent use.
type Center struct {
	mu     sync.Mutex
	items  []Toast
	timers map[string]*time.Timer
	subs   map[int]func(Event)
	nextID int
	closed bool
}

func NewCenter() *Center {
	return &Center{
		timers: make(map[string]*time.Timer),
		subs:   make(map[int]func(Event)),
	}
}

// Show appends a toast and schedules its removal after d. An empty variant
// is info. The new toast's id is returned; "" once the center is closed.
func (c *Center) Show(text string, variant Variant, d time.Duration) string {
	if variant == "" {
		variant = Info
	}
	if d <= 0 {
		d = DefaultDuration
	}
	t := Toast{ID: uuid.NewString(), Text: text, Variant: variant}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ""
	}
	c.items = append(c.items, t)
	c.timers[t.ID] = time.AfterFunc(d, func() { c.Dismiss(t.ID) })
	subs := c.subscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Kind: "shown", Toast: t})
	}
	return t.ID
}

// Dismiss removes the toast with id; unknown ids are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	idx := -1
	for i, t := range c.items {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	removed := c.items[idx]
	c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	subs := c.subscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Kind: "dismissed", Toast: removed})
	}
}

// List returns the visible toasts, oldest first.
func (c *Center) List() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, len(c.items))
	copy(out, c.items)
	return out
}

// Subscribe registers fn for show/dismiss events and returns a function
// removing it. fn runs on the goroutine that caused the event.
func (c *Center) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close stops every pending timer and drops all toasts.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.items = nil
	c.closed = true
}

func (c *Center) subscribers() []func(Event) {
	out := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}
