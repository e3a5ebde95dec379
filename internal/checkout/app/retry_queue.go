package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/pos-checkout/pkg/dispatch"
)

type SweepResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	// Skipped is set when another sweep was already running.
	Skipped bool `json:"skipped"`
}

// RetryQueue holds carts whose checkout failed for lack of connectivity
// and replays them with the offline fallback method.
type RetryQueue struct {
	repo     QueueRepo
	backend  Backend
	fallback domain.PaymentMethod
	accepted []domain.PaymentMethod
	queue    *dispatch.Queue
	log      *slog.Logger

	maxConcurrent int
	now           func() time.Time

	mu    sync.Mutex
	items []domain.SavedCart

	sweeping atomic.Bool
}

func NewRetryQueue(repo QueueRepo, backend Backend, fallback domain.PaymentMethod, accepted []domain.PaymentMethod, queue *dispatch.Queue, log *slog.Logger) *RetryQueue {
	return &RetryQueue{
		repo:          repo,
		backend:       backend,
		fallback:      fallback,
		accepted:      accepted,
		queue:         queue,
		log:           log,
		maxConcurrent: 4,
		now:           time.Now,
	}
}

func (q *RetryQueue) Load(ctx context.Context) error {
	items, err := q.repo.LoadQueue(ctx)
	if err != nil {
		return fmt.Errorf("load retry queue: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = items
	return nil
}

func (q *RetryQueue) Enqueue(c cart.BackendCart) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, domain.SavedCart{
		ID:       uuid.NewString(),
		Cart:     c,
		FailedAt: q.now(),
	})
	q.log.Info("checkout queued for retry", slog.String("session", c.Session), slog.Int("pending", len(q.items)))
	q.persistLocked()
}

func (q *RetryQueue) Pending() []domain.SavedCart {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ProcessPendingCheckouts retries every queued cart. A call made while
// another sweep is running returns immediately with Skipped set.
func (q *RetryQueue) ProcessPendingCheckouts(ctx context.Context) SweepResult {
	if !q.sweeping.CompareAndSwap(false, true) {
		return SweepResult{Skipped: true}
	}
	defer q.sweeping.Store(false)

	items := q.Pending()
	if len(items) == 0 || q.fallback == "" {
		return SweepResult{}
	}

	done := make([]bool, len(items))
	var g errgroup.Group
	g.SetLimit(q.maxConcurrent)

	for idx := range items {
		g.Go(func() error {
			if err := q.retry(ctx, items[idx]); err != nil {
				q.log.Warn("retry checkout",
					slog.String("id", items[idx].ID),
					slog.Any("error", err),
				)
				return nil
			}
			done[idx] = true
			return nil
		})
	}
	_ = g.Wait()

	succeeded := make(map[string]bool, len(items))
	failed := make(map[string]bool, len(items))
	for i, it := range items {
		if done[i] {
			succeeded[it.ID] = true
		} else {
			failed[it.ID] = true
		}
	}

	q.mu.Lock()
	q.items = slices.DeleteFunc(q.items, func(it domain.SavedCart) bool { return succeeded[it.ID] })
	for i := range q.items {
		if failed[q.items[i].ID] {
			q.items[i].Attempts++
		}
	}
	q.persistLocked()
	q.mu.Unlock()

	return SweepResult{Attempted: len(items), Succeeded: len(succeeded)}
}

func (q *RetryQueue) retry(ctx context.Context, saved domain.SavedCart) error {
	info, err := q.backend.CreateCheckoutInfo(ctx, saved.Cart, q.accepted)
	if err != nil {
		return fmt.Errorf("create checkout info: %w", err)
	}
	if _, err := q.backend.CreatePaymentProcess(ctx, info, q.fallback, nil); err != nil {
		return fmt.Errorf("create payment process: %w", err)
	}
	return nil
}

func (q *RetryQueue) persistLocked() {
	if q.repo == nil {
		return
	}
	items := slices.Clone(q.items)
	q.queue.Post(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.repo.SaveQueue(ctx, items); err != nil {
			q.log.Error("save retry queue", slog.Any("error", err))
		}
	})
}
