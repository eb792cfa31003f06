// bus.go
package bus

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is a single element in a topic path. Tokens must be comparable;
// in practice they are strings or ints (numeric sensor handles).
type Token = any

const (
	// Wildcard matches exactly one token at its level in a subscription topic.
	Wildcard = "+"
	// MultiWildcard matches the remainder of a topic, including the empty
	// remainder. It is only meaningful as the last token of a subscription.
	MultiWildcard = "#"
)

// Topic is a sequence of tokens, e.g. {"sensors", "sensor", "pressure", 0, "value"}.
type Topic []Token

// T builds a topic from its tokens. It panics on non-comparable tokens since
// those can never be stored as trie keys.
func T(tokens ...Token) Topic {
	for _, tok := range tokens {
		if tok != nil && !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token must be comparable")
		}
	}
	return Topic(tokens)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Message
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.RWMutex
	root *node
	qLen int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		root: &node{},
		qLen: queueLen,
	}
}

// NewMessage is a convenience constructor for Publish.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// addSubscription inserts a subscription into the trie. Wildcard tokens are
// stored as ordinary children keyed by their wildcard string.
func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range topic {
		if n.children == nil {
			n.children = make(map[Token]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}

	n.subs = append(n.subs, sub)

	// Replay retained messages matching this subscription.
	replayRetained(b.root, topic, sub)
}

// replayRetained walks the trie along the subscription topic, branching on
// wildcards, and delivers retained messages stored at matching nodes.
func replayRetained(n *node, rest Topic, sub *Subscription) {
	if len(rest) == 0 {
		if n.retained != nil {
			deliver(sub, n.retained)
		}
		return
	}
	if rest[0] == Token(MultiWildcard) {
		replayRetainedAll(n, sub)
		return
	}
	if n.children == nil {
		return
	}
	if rest[0] == Token(Wildcard) {
		for _, child := range n.children {
			replayRetained(child, rest[1:], sub)
		}
		return
	}
	if child, ok := n.children[rest[0]]; ok {
		replayRetained(child, rest[1:], sub)
	}
}

// replayRetainedAll delivers every retained message in the subtree rooted at
// n, n itself included ("a/#" matches "a").
func replayRetainedAll(n *node, sub *Subscription) {
	if n.retained != nil {
		deliver(sub, n.retained)
	}
	for _, child := range n.children {
		replayRetainedAll(child, sub)
	}
}

// Publish delivers a message to all subscribers whose topic matches,
// including wildcard subscriptions, then stores or clears the retained copy
// at the exact topic path (nil payload clears).
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	match(b.root, msg.Topic, msg)

	if !msg.Retained {
		return
	}

	n := b.root
	for _, tok := range msg.Topic {
		if n.children == nil {
			if msg.Payload == nil {
				return
			}
			n.children = make(map[Token]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			if msg.Payload == nil {
				return
			}
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	if msg.Payload == nil {
		n.retained = nil
	} else {
		n.retained = msg
	}
}

// match follows the exact token and both wildcard branches per level and
// delivers msg to subscriptions found at matching nodes. A "#" child matches
// any remainder of the topic, the empty remainder included.
func match(n *node, rest Topic, msg *Message) {
	if hash, ok := n.children[Token(MultiWildcard)]; ok {
		for _, sub := range hash.subs {
			deliver(sub, msg)
		}
	}
	if len(rest) == 0 {
		for _, sub := range n.subs {
			deliver(sub, msg)
		}
		return
	}
	if n.children == nil {
		return
	}
	if child, ok := n.children[rest[0]]; ok {
		match(child, rest[1:], msg)
	}
	if child, ok := n.children[Token(Wildcard)]; ok {
		match(child, rest[1:], msg)
	}
}

// deliver enqueues without blocking; the oldest queued message is dropped
// when the subscriber queue is full.
func deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, t := range topic {
		if n.children == nil {
			return
		}
		child, ok := n.children[t]
		if !ok {
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

	// Prune empty nodes.
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string // placeholder for future identity/auth

	replySeq atomic.Uint64
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

// NewMessage is a convenience constructor for Publish.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Reply publishes a response on the ReplyTo topic of a request.
// It is a no-op when the request carries no ReplyTo.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.bus.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}

// Request assigns a unique ReplyTo to msg, subscribes to it, publishes the
// request, and returns the reply subscription. The caller owns the
// subscription and must Unsubscribe when done.
func (c *Connection) Request(msg *Message) *Subscription {
	seq := c.replySeq.Add(1)
	msg.ReplyTo = Topic{"$reply", c.id, int(seq)}
	sub := c.Subscribe(msg.ReplyTo)
	c.bus.Publish(msg)
	return sub
}

// ErrNoReply is returned by RequestWait when ctx expires first.
var ErrNoReply = errors.New("bus: no reply")

// RequestWait performs a request and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case reply, ok := <-sub.Channel():
		if !ok {
			return nil, ErrNoReply
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ErrNoReply
	}
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		bus:   c.bus,
		conn:  c,
	}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
		close(sub.ch)
	}
}
