package gojob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// ErrQueueClosed is returned by Enqueue and Dequeue after Close.
var ErrQueueClosed = errors.New("gojob: queue closed")

// MemoryQueue is a process-local queue for single-instance deployments.
// Messages carrying an idempotency key are dropped while an identical key is
// pending or in flight.
type MemoryQueue struct {
	mu          sync.Mutex
	ready       chan *memoryEntry
	done        chan struct{}
	closeOnce   sync.Once
	pending     map[string]struct{}
	deadLetters []*job.ExecutionMessage
	timers      map[*time.Timer]struct{}
}

type memoryEntry struct {
	msg     *job.ExecutionMessage
	attempt int
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryQueue{
		ready:   make(chan *memoryEntry, capacity),
		done:    make(chan struct{}),
		pending: map[string]struct{}{},
		timers:  map[*time.Timer]struct{}{},
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	q.mu.Lock()
	if key := msg.IdempotencyKey; key != "" {
		if _, exists := q.pending[key]; exists {
			q.mu.Unlock()
			return nil
		}
		q.pending[key] = struct{}{}
	}
	q.mu.Unlock()
	return q.push(ctx, &memoryEntry{msg: msg, attempt: 1})
}

func (q *MemoryQueue) push(ctx context.Context, entry *memoryEntry) error {
	select {
	case <-q.done:
		q.release(entry.msg)
		return ErrQueueClosed
	default:
	}
	select {
	case q.ready <- entry:
		return nil
	case <-q.done:
		q.release(entry.msg)
		return ErrQueueClosed
	case <-ctx.Done():
		q.release(entry.msg)
		return ctx.Err()
	}
}

// Dequeue blocks until a message is ready or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	select {
	case entry := <-q.ready:
		return &memoryDelivery{queue: q, entry: entry}, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeadLetters returns the messages that ran out of retries.
func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.deadLetters...)
}

// Close stops pending delayed redeliveries and unblocks redeliveries waiting
// on a full buffer. It is safe to call more than once.
func (q *MemoryQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		defer q.mu.Unlock()
		for timer := range q.timers {
			timer.Stop()
		}
		clear(q.timers)
	})
}

func (q *MemoryQueue) release(msg *job.ExecutionMessage) {
	if msg == nil || msg.IdempotencyKey == "" {
		return
	}
	q.mu.Lock()
	delete(q.pending, msg.IdempotencyKey)
	q.mu.Unlock()
}

func (q *MemoryQueue) requeue(entry *memoryEntry, delay time.Duration) {
	next := &memoryEntry{msg: entry.msg, attempt: entry.attempt + 1}
	if delay <= 0 {
		select {
		case q.ready <- next:
		default:
			go q.redeliver(next)
		}
		return
	}
	q.mu.Lock()
	select {
	case <-q.done:
		q.mu.Unlock()
		q.release(next.msg)
		return
	default:
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()
		q.redeliver(next)
	})
	q.timers[timer] = struct{}{}
	q.mu.Unlock()
}

// redeliver blocks until the entry fits in the buffer or the queue closes.
func (q *MemoryQueue) redeliver(entry *memoryEntry) {
	select {
	case q.ready <- entry:
	case <-q.done:
		q.release(entry.msg)
	}
}

func (q *MemoryQueue) delayed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

type memoryDelivery struct {
	queue *MemoryQueue
	entry *memoryEntry
	once  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.entry.msg
}

// Attempt is 1 on first delivery and grows with every requeue.
func (d *memoryDelivery) Attempt() int {
	return d.entry.attempt
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() {
		d.queue.release(d.entry.msg)
	})
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.once.Do(func() {
		switch {
		case opts.Requeue:
			d.queue.requeue(d.entry, opts.Delay)
		case opts.DeadLetter:
			d.queue.mu.Lock()
			d.queue.deadLetters = append(d.queue.deadLetters, d.entry.msg)
			d.queue.mu.Unlock()
			d.queue.release(d.entry.msg)
		default:
			d.queue.release(d.entry.msg)
		}
	})
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
