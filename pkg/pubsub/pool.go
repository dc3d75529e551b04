package pubsub

import (
	"context"
	"sync"
)

// channelPool bounds the number of broker channels in use and keeps idle
// ones for reuse. Callers hold a channel for one publish and return it.
type channelPool[T any] struct {
	slots chan struct{}
	idle  chan T

	open    func() (T, error)
	healthy func(T) bool
	discard func(T)

	mu     sync.Mutex
	closed bool
}

func newChannelPool[T any](size int, open func() (T, error), healthy func(T) bool, discard func(T)) *channelPool[T] {
	if size <= 0 {
		size = 1
	}
	return &channelPool[T]{
		slots:   make(chan struct{}, size),
		idle:    make(chan T, size),
		open:    open,
		healthy: healthy,
		discard: discard,
	}
}

// get blocks until a slot is free, then returns an idle healthy channel or
// opens a new one. The slot is held until put.
func (p *channelPool[T]) get(ctx context.Context) (T, error) {
	var zero T

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		<-p.slots
		return zero, ErrClosed
	}

	for {
		select {
		case ch := <-p.idle:
			if p.healthy(ch) {
				return ch, nil
			}
			p.discard(ch)
		default:
			ch, err := p.open()
			if err != nil {
				<-p.slots
				return zero, err
			}
			return ch, nil
		}
	}
}

// put releases the slot taken by get. A channel that failed is discarded
// instead of returned to the idle set.
func (p *channelPool[T]) put(ch T, ok bool) {
	defer func() { <-p.slots }()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if !ok || closed || !p.healthy(ch) {
		p.discard(ch)
		return
	}
	select {
	case p.idle <- ch:
	default:
		p.discard(ch)
	}
}

// drain discards every idle channel.
func (p *channelPool[T]) drain() {
	for {
		select {
		case ch := <-p.idle:
			p.discard(ch)
		default:
			return
		}
	}
}

// close marks the pool closed and discards idle channels. Channels in use
// are discarded when returned.
func (p *channelPool[T]) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.drain()
}
