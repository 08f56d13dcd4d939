// Package events implements the in-process update channel: a
// publish/subscribe registry keyed by search id that keeps stream
// transports in sync with a pipeline running in a background task.
//
// Registry entries are reference-counted by subscription: when the last
// subscriber for a search id cancels, the entry is removed; a later
// re-subscription lazily recreates it.
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kalil0321/stapply/internal/model"
)

// subscriberBuffer bounds how many undelivered snapshots a slow
// subscriber may queue before older ones are dropped.
const subscriberBuffer = 16

// Broker is the process-wide update channel registry.
type Broker struct {
	mu     sync.Mutex
	topics map[uuid.UUID]map[*Subscription]struct{}
}

// Subscription is one subscriber's handle on a search's update feed.
type Subscription struct {
	broker   *Broker
	searchID uuid.UUID
	ch       chan *model.Snapshot
	closed   bool
}

// NewBroker returns an empty registry.
func NewBroker() *Broker {
	return &Broker{topics: make(map[uuid.UUID]map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber for the given search id. The
// caller must Cancel the subscription when done; the feed is also closed
// for all subscribers when the pipeline finishes via CloseTopic.
func (b *Broker) Subscribe(searchID uuid.UUID) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[searchID]
	if subs == nil {
		subs = make(map[*Subscription]struct{})
		b.topics[searchID] = subs
	}

	sub := &Subscription{
		broker:   b,
		searchID: searchID,
		ch:       make(chan *model.Snapshot, subscriberBuffer),
	}
	subs[sub] = struct{}{}
	return sub
}

// Updates returns the channel snapshots are delivered on. It is closed
// when the subscription is canceled or the search's topic is closed.
func (s *Subscription) Updates() <-chan *model.Snapshot {
	return s.ch
}

// Cancel removes the subscription from the registry, releasing the
// topic entry when it was the last subscriber. Safe to call more than
// once and after CloseTopic.
func (s *Subscription) Cancel() {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)

	if subs, ok := b.topics[s.searchID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.topics, s.searchID)
		}
	}
}

// HasSubscribers reports whether anybody is currently listening for the
// given search id. The pipeline uses this to skip snapshot recomputation
// when nobody would see it.
func (b *Broker) HasSubscribers(searchID uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[searchID]) > 0
}

// Publish fans the snapshot out to every active subscriber for the
// search id. Delivery never blocks the pipeline: when a subscriber's
// buffer is full the oldest pending snapshot is dropped, so the newest
// state — including the terminal one — always gets through.
func (b *Broker) Publish(searchID uuid.UUID, snap *model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[searchID] {
		if sub.closed {
			continue
		}
		deliver(sub.ch, snap)
	}
}

// CloseTopic ends the feed for every subscriber of the search id.
// Snapshots already buffered are still drained by their receivers.
func (b *Broker) CloseTopic(searchID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[searchID] {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	delete(b.topics, searchID)
}

func deliver(ch chan *model.Snapshot, snap *model.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		// Buffer full — drop the oldest pending snapshot. Snapshots are
		// cumulative, so a subscriber that misses one loses nothing once
		// the next arrives.
		select {
		case <-ch:
		default:
		}
	}
}
