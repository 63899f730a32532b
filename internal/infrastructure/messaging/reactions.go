// Package messaging routes reactions coming from the chat platform to the
// code that is waiting for them.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

var (
	// ErrAwaitTimeout resolves a wait nobody reacted to in time.
	ErrAwaitTimeout = errors.New("reaction wait timed out")

	// ErrAwaitCancelled resolves a wait that was cancelled or whose hub closed.
	ErrAwaitCancelled = errors.New("reaction wait cancelled")
)

// ══════════════════════════════════════════════════════════════════════════════
// WAIT
// ══════════════════════════════════════════════════════════════════════════════

// Wait is a pending reaction. It resolves exactly once: with the first
// accepted reaction, on timeout or on cancellation.
type Wait struct {
	id      string
	msg     notification.MessageHandle
	accept  func(notification.Reaction) bool
	hub     *ReactionHub
	timer   timeutil.Timer
	created time.Time

	once     sync.Once
	done     chan struct{}
	reaction notification.Reaction
	err      error
}

// ID is a unique id for logs.
func (w *Wait) ID() string {
	return w.id
}

// Done is closed once the wait resolves.
func (w *Wait) Done() <-chan struct{} {
	return w.done
}

// Result blocks until the wait resolves or ctx is done. A ctx error does not
// cancel the wait.
func (w *Wait) Result(ctx context.Context) (notification.Reaction, error) {
	select {
	case <-w.done:
		return w.reaction, w.err
	case <-ctx.Done():
		return notification.Reaction{}, ctx.Err()
	}
}

// Cancel resolves the wait with ErrAwaitCancelled if it is still pending.
func (w *Wait) Cancel() {
	w.hub.resolve(w, notification.Reaction{}, ErrAwaitCancelled)
}

// ══════════════════════════════════════════════════════════════════════════════
// HUB
// ══════════════════════════════════════════════════════════════════════════════

// ReactionHub matches delivered reactions against registered waits.
// Timeouts run on the injected clock.
type ReactionHub struct {
	mu     sync.Mutex
	clock  timeutil.Clock
	logger *zap.Logger
	waits  []*Wait
	closed bool
}

// NewReactionHub creates a hub.
func NewReactionHub(clock timeutil.Clock, logger *zap.Logger) *ReactionHub {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReactionHub{clock: clock, logger: logger}
}

// Await registers interest in reactions on msg that satisfy accept. The wait
// times out after timeout.
func (h *ReactionHub) Await(msg notification.MessageHandle, accept func(notification.Reaction) bool, timeout time.Duration) *Wait {
	w := &Wait{
		id:      uuid.New().String(),
		msg:     msg,
		accept:  accept,
		hub:     h,
		created: h.clock.Now(),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.resolve(w, notification.Reaction{}, ErrAwaitCancelled)
		return w
	}
	h.waits = append(h.waits, w)
	h.mu.Unlock()

	// Armed after registration so an immediate timeout still finds the wait.
	timer := h.clock.AfterFunc(timeout, func() {
		h.resolve(w, notification.Reaction{}, ErrAwaitTimeout)
	})
	h.mu.Lock()
	w.timer = timer
	h.mu.Unlock()

	h.logger.Debug("awaiting reaction",
		zap.String("wait_id", w.id),
		zap.String("message_id", msg.MessageID),
		zap.Duration("timeout", timeout),
	)
	return w
}

// Deliver hands a reaction to the oldest matching wait. It returns false when
// nobody was waiting for it.
func (h *ReactionHub) Deliver(r notification.Reaction) bool {
	h.mu.Lock()
	var target *Wait
	for _, w := range h.waits {
		if w.msg != r.Message {
			continue
		}
		if w.accept == nil || w.accept(r) {
			target = w
			break
		}
	}
	h.mu.Unlock()

	if target == nil {
		return false
	}
	return h.resolve(target, r, nil)
}

// Pending returns the number of unresolved waits.
func (h *ReactionHub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waits)
}

// Close cancels every pending wait and rejects new ones.
func (h *ReactionHub) Close() {
	h.mu.Lock()
	h.closed = true
	waits := append([]*Wait(nil), h.waits...)
	h.mu.Unlock()

	for _, w := range waits {
		w.Cancel()
	}
}

func (h *ReactionHub) resolve(w *Wait, r notification.Reaction, err error) bool {
	resolved := false
	w.once.Do(func() {
		resolved = true

		h.mu.Lock()
		for i, other := range h.waits {
			if other == w {
				h.waits = append(h.waits[:i], h.waits[i+1:]...)
				break
			}
		}
		timer := w.timer
		h.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		w.reaction = r
		w.err = err
		close(w.done)

		h.logger.Debug("reaction wait resolved",
			zap.String("wait_id", w.id),
			zap.Duration("waited", h.clock.Now().Sub(w.created)),
			zap.Error(err),
		)
	})
	return resolved
}

var _ notification.ReactionSource = (*ReactionHub)(nil)
