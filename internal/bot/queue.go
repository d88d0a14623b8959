// Package bot wires the conversational pieces together: an inbound update
// queue, a worker pool that drives the booking machine, and an outbound
// messenger abstraction the channel adapters implement.
package bot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Update is one inbound user interaction, normalized across channels. Exactly
// one of Text or CallbackData carries the payload; Start marks a first
// contact.
type Update struct {
	ID           string
	UserID       int64
	Name         string
	Text         string
	CallbackData string
	Start        bool
	ReceivedAt   time.Time
}

// Queue delivers updates from the channel adapter to the worker pool.
type Queue interface {
	Send(ctx context.Context, upd Update) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Update, error)
}

// MemoryQueue is a Queue backed by an in-memory buffered channel.
type MemoryQueue struct {
	ch chan Update
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{ch: make(chan Update, buffer)}
}

// Send enqueues an update or blocks until ctx is done.
func (q *MemoryQueue) Send(ctx context.Context, upd Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if upd.ID == "" {
		upd.ID = uuid.NewString()
	}
	if upd.ReceivedAt.IsZero() {
		upd.ReceivedAt = time.Now().UTC()
	}

	select {
	case q.ch <- upd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until an update is available, ctx is done, or waitSeconds
// elapses.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Update, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var timer *time.Timer
	if waitSeconds > 0 {
		timer = time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
	}

	if timer == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case upd := <-q.ch:
			return q.collect(ctx, upd, maxMessages), nil
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case upd := <-q.ch:
		return q.collect(ctx, upd, maxMessages), nil
	}
}

func (q *MemoryQueue) collect(ctx context.Context, first Update, max int) []Update {
	updates := make([]Update, 0, max)
	updates = append(updates, first)

	for len(updates) < max {
		select {
		case <-ctx.Done():
			return updates
		case upd := <-q.ch:
			updates = append(updates, upd)
		default:
			return updates
		}
	}
	return updates
}
