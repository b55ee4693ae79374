// Package events fans engine events out to in-process subscribers.
package events

import (
	"sync"
)

const (
	TypeOrderPlaced   = "order.placed"
	TypeOrderCanceled = "order.canceled"
	TypeOrderReplaced = "order.replaced"
	TypeOrderAmended  = "order.amended"
	TypeTradeExecuted = "trade.executed"
	TypeBalanceFunded = "balance.funded"
)

type Event struct {
	Type    string `json:"type"`
	Account string `json:"-"`
	Data    any    `json:"data"`
}

type subscription struct {
	account string
}

// Bus delivers events without blocking the publisher. A subscriber that
// falls behind loses events rather than stalling the engine.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]subscription)}
}

// Subscribe returns a channel receiving events for account, or every event
// when account is empty.
func (b *Bus) Subscribe(account string) chan Event {
	ch := make(chan Event, 100)
	b.mu.Lock()
	b.subs[ch] = subscription{account: account}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	for ch, sub := range b.subs {
		if sub.account != "" && sub.account != evt.Account {
			continue
		}
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.RUnlock()
}

// Publisher is the engine's view of the bus.
type Publisher interface {
	Publish(evt Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
