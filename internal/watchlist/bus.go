package watchlist

import "sync"

// SourceWatchlist tags changes made by the watchlist view itself.
const SourceWatchlist = "watchlist"

// Change announces a watchlist mutation to other views.
type Change struct {
	Type   string `json:"type"` // "added" | "removed"
	CoinID string `json:"coinId"`
	Source string `json:"source"`
}

// Bus fans changes out to subscribers. The zero value is ready to use.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Change)
}

// Subscribe registers fn and returns a function that unregisters it.
func (b *Bus) Subscribe(fn func(Change)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(Change))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Notify calls every subscriber synchronously, outside the lock.
func (b *Bus) Notify(c Change) {
	b.mu.Lock()
	fns := make([]func(Change), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
