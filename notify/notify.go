// Package notify is a small in-process pub/sub hub used for bus
// lifecycle events. Retained events let a late subscriber learn which
// adapters are already present without racing registration.
package notify

import (
	"strings"
	"sync"
)

// Topic is a sequence of path elements, e.g. {"adapter", "i2c-0"}.
type Topic []string

// T builds a Topic from its elements.
func T(elems ...string) Topic { return Topic(elems) }

func (t Topic) String() string { return strings.Join(t, "/") }

// Event is one published notification.
type Event struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// Subscription receives events for one exact topic.
type Subscription struct {
	topic Topic
	ch    chan *Event
	hub   *Hub
}

func (s *Subscription) Topic() Topic            { return s.topic }
func (s *Subscription) Channel() <-chan *Event  { return s.ch }
func (s *Subscription) Cancel()                 { s.hub.cancel(s) }

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Event
}

// Hub routes events to subscribers by exact topic match.
type Hub struct {
	mu   sync.Mutex
	root *node
	qLen int
}

// NewHub creates a hub with the given subscription queue length.
func NewHub(queueLen int) *Hub {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Hub{root: &node{}, qLen: queueLen}
}

// Subscribe registers interest in one topic. A retained event stored
// for the topic is delivered immediately.
func (h *Hub) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Event, h.qLen),
		hub:   h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.root
	for _, elem := range topic {
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		child, ok := n.children[elem]
		if !ok {
			child = &node{}
			n.children[elem] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	if n.retained != nil {
		select {
		case sub.ch <- n.retained:
		default:
		}
	}
	return sub
}

// Publish delivers ev to all subscribers of its topic. A retained
// event with a nil payload clears the stored event.
func (h *Hub) Publish(ev *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.root
	for _, elem := range ev.Topic {
		if n.children == nil {
			if !ev.Retained {
				return
			}
			n.children = make(map[string]*node)
		}
		child, ok := n.children[elem]
		if !ok {
			if !ev.Retained {
				return
			}
			child = &node{}
			n.children[elem] = child
		}
		n = child
	}

	for _, sub := range n.subs {
		select {
		case sub.ch <- ev:
		default:
			// drop oldest if queue full
			<-sub.ch
			sub.ch <- ev
		}
	}

	if ev.Retained {
		if ev.Payload == nil {
			n.retained = nil
		} else {
			n.retained = ev
		}
	}
}

// cancel removes a subscription and prunes empty trie nodes.
func (h *Hub) cancel(sub *Subscription) {
	h.mu.Lock()

	n := h.root
	var stack []*node
	for _, elem := range sub.topic {
		if n.children == nil {
			h.mu.Unlock()
			return
		}
		child, ok := n.children[elem]
		if !ok {
			h.mu.Unlock()
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := sub.topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
	h.mu.Unlock()

	close(sub.ch)
}
