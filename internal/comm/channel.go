// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Package comm provides the bounded multi-producer/single-consumer channel
// abstraction every role uses to talk to every other role: one shared core
// split into two capability-scoped views, so a role that should only ever
// send cannot accidentally receive, and vice versa.
package comm

import "sync"

type chanCore[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once
}

// Sender is the send-only capability over a Chan.
type Sender[T any] struct {
	core *chanCore[T]
}

// Receiver is the receive-only capability over a Chan, plus the right to
// mark it closed on shutdown.
type Receiver[T any] struct {
	core *chanCore[T]
}

// New builds a bounded channel of the given buffer size and splits it into
// its send and receive capabilities, mirroring Channel::new(...).split().
func New[T any](bufferSize int) (Sender[T], Receiver[T]) {
	core := &chanCore[T]{
		ch:   make(chan T, bufferSize),
		done: make(chan struct{}),
	}
	return Sender[T]{core: core}, Receiver[T]{core: core}
}

// Send blocks until the value is accepted (a full channel is deliberate
// backpressure) or the channel has been marked closed, in which case it
// returns false without sending so the caller can log and drop.
func (s Sender[T]) Send(v T) bool {
	select {
	case <-s.core.done:
		return false
	default:
	}
	select {
	case s.core.ch <- v:
		return true
	case <-s.core.done:
		return false
	}
}

// Closed reports whether the receiving side has shut down.
func (s Sender[T]) Closed() bool {
	select {
	case <-s.core.done:
		return true
	default:
		return false
	}
}

// Recv blocks until a value arrives or the channel is closed. ok is false
// only on close; Recv never panics on a closed channel the way a bare
// receive from a closed Go channel would, because the underlying channel is
// never actually closed, only the done signal is.
func (r Receiver[T]) Recv() (v T, ok bool) {
	select {
	case v = <-r.core.ch:
		return v, true
	case <-r.core.done:
		return v, false
	}
}

// RecvChan exposes the raw channel for use in a multi-way select alongside
// other receivers and timers. A read that races with Close may still deliver
// a value queued just before shutdown; in-flight messages at shutdown are
// dropped on a best-effort basis, not a guarantee either way.
func (r Receiver[T]) RecvChan() <-chan T { return r.core.ch }

// Done returns a channel that is closed once Close has been called.
func (r Receiver[T]) Done() <-chan struct{} { return r.core.done }

// Close marks the channel closed: further sends are dropped and any
// pending Recv returns ok=false. Idempotent.
func (r Receiver[T]) Close() {
	r.core.once.Do(func() { close(r.core.done) })
}
