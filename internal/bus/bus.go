// Package bus routes real-time events to connections by subscription key
// (a call id or an order reference) rather than by connection.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyKey = errors.New("empty subscription key")
	ErrClosed   = errors.New("connection closed")
)

const (
	DefaultHeartbeat  = 30 * time.Second
	DefaultBufferSize = 64
)

// Conn is one subscriber channel. The transport drains Messages and calls Ack
// whenever the client answers a probe.
type Conn struct {
	id  string
	out chan []byte

	mu       sync.Mutex
	closed   bool
	awaiting bool
	done     chan struct{}
}

func (c *Conn) ID() string { return c.id }

// Messages is closed when the bus closes the connection.
func (c *Conn) Messages() <-chan []byte { return c.out }

func (c *Conn) Done() <-chan struct{} { return c.done }

// Ack marks the outstanding probe as answered.
func (c *Conn) Ack() {
	c.mu.Lock()
	c.awaiting = false
	c.mu.Unlock()
}

func (c *Conn) send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

func (c *Conn) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.out)
	close(c.done)
	return true
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type Bus struct {
	mu    sync.RWMutex
	keys  map[string]map[*Conn]struct{}
	conns map[*Conn]map[string]struct{}

	interval   time.Duration
	bufferSize int
	logger     *slog.Logger
	now        func() time.Time
}

type Config struct {
	Heartbeat  time.Duration
	BufferSize int
	Logger     *slog.Logger
}

func New(cfg Config) *Bus {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bus{
		keys:       make(map[string]map[*Conn]struct{}),
		conns:      make(map[*Conn]map[string]struct{}),
		interval:   cfg.Heartbeat,
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Connect registers a new connection with no subscriptions.
func (b *Bus) Connect() *Conn {
	c := &Conn{
		id:   uuid.NewString(),
		out:  make(chan []byte, b.bufferSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.conns[c] = make(map[string]struct{})
	b.mu.Unlock()
	return c
}

// Subscribe registers c under key. Subscribing twice is a no-op.
func (b *Bus) Subscribe(key string, c *Conn) error {
	if key == "" {
		return ErrEmptyKey
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	keys, ok := b.conns[c]
	if !ok || c.isClosed() {
		return ErrClosed
	}
	members, ok := b.keys[key]
	if !ok {
		members = make(map[*Conn]struct{})
		b.keys[key] = members
	}
	members[c] = struct{}{}
	keys[key] = struct{}{}
	return nil
}

func (b *Bus) UnsubscribeKey(key string, c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(key, c)
}

// Unsubscribe removes c from every key it is registered under. The
// connection stays open.
func (b *Bus) Unsubscribe(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.conns[c] {
		b.removeLocked(key, c)
	}
}

// Close unsubscribes c and closes its message channel.
func (b *Bus) Close(c *Conn) {
	b.mu.Lock()
	for key := range b.conns[c] {
		b.removeLocked(key, c)
	}
	delete(b.conns, c)
	b.mu.Unlock()
	c.close()
}

func (b *Bus) removeLocked(key string, c *Conn) {
	if members, ok := b.keys[key]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(b.keys, key)
		}
	}
	if keys, ok := b.conns[c]; ok {
		delete(keys, key)
	}
}

// Publish delivers msg to every connection subscribed to key and returns how
// many received it. Connections whose buffer is full are closed.
func (b *Bus) Publish(key string, msg []byte) int {
	b.mu.RLock()
	members := make([]*Conn, 0, len(b.keys[key]))
	for c := range b.keys[key] {
		members = append(members, c)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.send(msg) {
			delivered++
			continue
		}
		b.logger.Debug("bus: dropping slow connection", "conn", c.id, "key", key)
		b.Close(c)
	}
	return delivered
}

// PublishEvent marshals event and publishes it under key.
func (b *Bus) PublishEvent(key string, event any) int {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("bus: event marshal failed", "key", key, "error", err)
		return 0
	}
	return b.Publish(key, payload)
}

// Sweep runs one heartbeat cycle: connections still owing an answer to the
// previous probe are closed, the rest are probed again.
func (b *Bus) Sweep() {
	b.mu.RLock()
	conns := make([]*Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	ping, err := json.Marshal(PingEvent{Event: newEvent(TypePing, "", b.now())})
	if err != nil {
		b.logger.Error("bus: ping marshal failed", "error", err)
		return
	}

	for _, c := range conns {
		if !b.probe(c, ping) {
			b.logger.Debug("bus: closing unresponsive connection", "conn", c.id)
			b.Close(c)
		}
	}
}

func (b *Bus) probe(c *Conn, ping []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.awaiting {
		return false
	}
	select {
	case c.out <- ping:
		c.awaiting = true
		return true
	default:
		return false
	}
}

// Run sweeps every heartbeat interval until ctx is done, then closes all
// connections.
func (b *Bus) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case <-ticker.C:
			b.Sweep()
		}
	}
}

func (b *Bus) closeAll() {
	b.mu.RLock()
	conns := make([]*Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()
	for _, c := range conns {
		b.Close(c)
	}
}

func (b *Bus) Interval() time.Duration { return b.interval }

// Subscribers counts connections registered under key.
func (b *Bus) Subscribers(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.keys[key])
}

// Connections counts open connections.
func (b *Bus) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}
