// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/invowk/contentpipe/internal/content"
)

// Event types.
const (
	LoadStarted EventType = iota + 1
	LoadFinished
	ItemLoaded
	ItemReloaded
	ItemFailed
	ItemRemoved
)

type (
	// EventType tags an Event.
	EventType int

	// Event is published to observers as the pipeline progresses. Fields not
	// meaningful for a type are zero.
	Event struct {
		Type   EventType
		RunID  uuid.UUID
		Stage  string
		ID     content.ID
		Source string
		Path   string
		Err    error
		Report *Report
	}

	// Observer receives events synchronously on the pipeline goroutine.
	Observer interface {
		OnEvent(Event)
	}

	// ObserverFunc adapts a function to Observer.
	ObserverFunc func(Event)

	// ChannelObserver forwards events to a buffered channel. When the
	// buffer is full the event is dropped and counted.
	ChannelObserver struct {
		ch      chan Event
		dropped atomic.Int64
	}

	observers struct {
		mu   sync.RWMutex
		next int
		subs map[int]Observer
	}
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case LoadStarted:
		return "load-started"
	case LoadFinished:
		return "load-finished"
	case ItemLoaded:
		return "item-loaded"
	case ItemReloaded:
		return "item-reloaded"
	case ItemFailed:
		return "item-failed"
	case ItemRemoved:
		return "item-removed"
	default:
		return "unknown"
	}
}

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// NewChannelObserver returns an observer with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{ch: make(chan Event, buffer)}
}

// OnEvent implements Observer.
func (c *ChannelObserver) OnEvent(e Event) {
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// C returns the receive side of the channel.
func (c *ChannelObserver) C() <-chan Event { return c.ch }

// Dropped returns how many events did not fit in the buffer.
func (c *ChannelObserver) Dropped() int64 { return c.dropped.Load() }

func (o *observers) subscribe(obs Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]Observer)
	}
	id := o.next
	o.next++
	o.subs[id] = obs

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// publish delivers e to every observer in subscription order.
func (o *observers) publish(e Event) {
	o.mu.RLock()
	ids := make([]int, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	subs := make([]Observer, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		subs = append(subs, o.subs[id])
	}
	o.mu.RUnlock()

	for _, s := range subs {
		s.OnEvent(e)
	}
}
