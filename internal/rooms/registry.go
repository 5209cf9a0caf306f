// Package rooms implements the subscription registry mapping symbols to the
// set of interested connections.
//
// The registry keeps three views over the same fact ("connection C wants
// symbol S"): a forward index per symbol, the implicit all-updates room, and
// a reverse index per connection so disconnect cleanup is O(subscriptions of
// that connection). It knows nothing about the cache or the provider.
package rooms

import (
	"strings"
	"sync"
)

// Registry tracks which connections are subscribed to which symbols.
// C is the opaque connection handle supplied by the transport.
type Registry[C comparable] struct {
	mu         sync.RWMutex
	rooms      map[string]map[C]struct{}
	allUpdates map[C]struct{}
	reverse    map[C]map[string]struct{}
}

// Stats is a diagnostic snapshot of the registry.
type Stats struct {
	TotalConnections int            `json:"totalConnections"`
	TotalRooms       int            `json:"totalRooms"`
	PerRoomCount     map[string]int `json:"perRoomCount"`
}

// NewRegistry creates an empty registry.
func NewRegistry[C comparable]() *Registry[C] {
	return &Registry[C]{
		rooms:      make(map[string]map[C]struct{}),
		allUpdates: make(map[C]struct{}),
		reverse:    make(map[C]map[string]struct{}),
	}
}

// Subscribe adds conn to the room of each symbol (lower-cased) and to the
// all-updates room. Returns the normalized symbols newly applied.
func (r *Registry[C]) Subscribe(conn C, symbols []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.reverse[conn]
	if !ok {
		subs = make(map[string]struct{})
		r.reverse[conn] = subs
	}

	applied := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		normalized := normalize(symbol)
		if _, dup := subs[normalized]; dup {
			continue
		}
		subs[normalized] = struct{}{}

		room, ok := r.rooms[normalized]
		if !ok {
			room = make(map[C]struct{})
			r.rooms[normalized] = room
		}
		room[conn] = struct{}{}

		applied = append(applied, normalized)
	}

	if len(subs) > 0 {
		r.allUpdates[conn] = struct{}{}
	}

	return applied
}

// Unsubscribe removes conn from the room of each symbol. A nil symbols slice
// targets the connection's full current subscription set. Returns the
// symbols actually removed.
func (r *Registry[C]) Unsubscribe(conn C, symbols []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribeLocked(conn, symbols)
}

func (r *Registry[C]) unsubscribeLocked(conn C, symbols []string) []string {
	subs, ok := r.reverse[conn]
	if !ok {
		return []string{}
	}

	if symbols == nil {
		symbols = make([]string, 0, len(subs))
		for symbol := range subs {
			symbols = append(symbols, symbol)
		}
	}

	removed := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		normalized := normalize(symbol)
		if _, ok := subs[normalized]; !ok {
			continue
		}
		delete(subs, normalized)
		removed = append(removed, normalized)

		if room, ok := r.rooms[normalized]; ok {
			delete(room, conn)
			if len(room) == 0 {
				// No empty rooms persist.
				delete(r.rooms, normalized)
			}
		}
	}

	if len(subs) == 0 {
		delete(r.allUpdates, conn)
	}

	return removed
}

// RemoveConnection tears down all state for conn. Safe to call for a
// connection the registry has never seen.
func (r *Registry[C]) RemoveConnection(conn C) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unsubscribeLocked(conn, nil)
	delete(r.reverse, conn)
	delete(r.allUpdates, conn)
}

// SubscribersOf returns the connections subscribed to symbol.
// Unknown symbols yield an empty slice.
func (r *Registry[C]) SubscribersOf(symbol string) []C {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[normalize(symbol)]
	conns := make([]C, 0, len(room))
	for conn := range room {
		conns = append(conns, conn)
	}
	return conns
}

// AllUpdateSubscribers returns every connection holding at least one
// symbol subscription.
func (r *Registry[C]) AllUpdateSubscribers() []C {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]C, 0, len(r.allUpdates))
	for conn := range r.allUpdates {
		conns = append(conns, conn)
	}
	return conns
}

// SubscriptionsOf returns the symbols conn is subscribed to.
func (r *Registry[C]) SubscriptionsOf(conn C) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.reverse[conn]
	symbols := make([]string, 0, len(subs))
	for symbol := range subs {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Stats returns a diagnostic snapshot.
func (r *Registry[C]) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perRoom := make(map[string]int, len(r.rooms))
	for symbol, room := range r.rooms {
		perRoom[symbol] = len(room)
	}
	return Stats{
		TotalConnections: len(r.reverse),
		TotalRooms:       len(r.rooms),
		PerRoomCount:     perRoom,
	}
}

func normalize(symbol string) string {
	return strings.ToLower(symbol)
}
