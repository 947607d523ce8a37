package live

import (
	"github.com/sdibella/coinfolio/internal/toast"
	"github.com/sdibella/coinfolio/internal/watchlist"
)

// Attach forwards toast events and watchlist changes to every client.
// Either source may be nil. The returned function detaches both.
func (h *Hub) Attach(center *toast.Center, bus *watchlist.Bus) func() {
	var stops []func()
	if center != nil {
		stops = append(stops, center.Subscribe(func(e toast.Event) {
			h.Broadcast(TypeToast, e)
		}))
	}
	if bus != nil {
		stops = append(stops, bus.Subscribe(func(c watchlist.Change) {
			h.Broadcast(TypeWatchlist, c)
		}))
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}
