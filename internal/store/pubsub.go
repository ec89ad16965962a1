package store

import (
	"context"
	"sync"
)

// LocalMessage mirrors redis.Message for the in-process pubsub
type LocalMessage struct {
	Channel string
	Payload string
}

// LocalSubscription mirrors redis.PubSub for the in-process pubsub
type LocalSubscription struct {
	channels map[string]bool
	msgChan  chan *LocalMessage
	closeCh  chan struct{}
	closed   bool
	mu       sync.RWMutex
}

func newLocalSubscription(channels []string) *LocalSubscription {
	channelMap := make(map[string]bool, len(channels))
	for _, ch := range channels {
		channelMap[ch] = true
	}

	return &LocalSubscription{
		channels: channelMap,
		msgChan:  make(chan *LocalMessage, 100),
		closeCh:  make(chan struct{}),
	}
}

// Channel returns the message channel
func (s *LocalSubscription) Channel() <-chan *LocalMessage {
	return s.msgChan
}

func (s *LocalSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.closeCh)
		close(s.msgChan)
	}
	return nil
}

// deliver sends without blocking; slow subscribers lose messages
func (s *LocalSubscription) deliver(msg *LocalMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || !s.channels[msg.Channel] {
		return
	}

	select {
	case s.msgChan <- msg:
	default:
	}
}

// PubSubHub fans messages out to in-process subscriptions
type PubSubHub struct {
	subscribers map[string][]*LocalSubscription
	mu          sync.RWMutex
}

func NewPubSubHub() *PubSubHub {
	return &PubSubHub{
		subscribers: make(map[string][]*LocalSubscription),
	}
}

// Subscribe registers a subscription that is removed when ctx ends or it is closed
func (h *PubSubHub) Subscribe(ctx context.Context, channels ...string) *LocalSubscription {
	sub := newLocalSubscription(channels)

	h.mu.Lock()
	for _, channel := range channels {
		h.subscribers[channel] = append(h.subscribers[channel], sub)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closeCh:
		}
		h.remove(sub, channels)
	}()

	return sub
}

func (h *PubSubHub) remove(sub *LocalSubscription, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		subscribers := h.subscribers[channel]
		for i, s := range subscribers {
			if s == sub {
				h.subscribers[channel] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(h.subscribers[channel]) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

// Publish sends a message to all subscribers of a channel
func (h *PubSubHub) Publish(channel, payload string) {
	h.mu.RLock()
	subscribers := make([]*LocalSubscription, len(h.subscribers[channel]))
	copy(subscribers, h.subscribers[channel])
	h.mu.RUnlock()

	msg := &LocalMessage{Channel: channel, Payload: payload}
	for _, sub := range subscribers {
		sub.deliver(msg)
	}
}
