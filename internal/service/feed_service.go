package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/observability"
	"github.com/spec-kit/crm-console/internal/worker"
)

// Feed names, also used as metric labels.
const (
	FeedScheduledMessages = "scheduled_messages"
	FeedConversations     = "conversations"
)

// FeedSnapshot is the latest successful poll of a feed.
type FeedSnapshot[T any] struct {
	Items     []T       `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
	Polling   bool      `json:"polling"`
}

// Feed keeps the latest items of a periodically refreshed backend listing.
// A poll canceled by Stop never overwrites the snapshot.
type Feed[T any] struct {
	fetch  func(ctx context.Context) ([]T, error)
	poller *worker.Poller

	startOnce sync.Once
	mu        sync.RWMutex
	items     []T
	updatedAt time.Time
}

func newFeed[T any](name string, interval time.Duration, fetch func(context.Context) ([]T, error), logger *zap.Logger, metrics *observability.Metrics) *Feed[T] {
	f := &Feed[T]{fetch: fetch, items: []T{}}
	f.poller = worker.NewPoller(name, interval, f.poll, logger, metrics)
	return f
}

// NewScheduledMessagesFeed polls queued SMS.
func NewScheduledMessagesFeed(api FeedAPI, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Feed[domain.ScheduledMessage] {
	return newFeed(FeedScheduledMessages, interval, api.ListScheduledMessages, logger, metrics)
}

// NewConversationFeed polls chat threads.
func NewConversationFeed(api FeedAPI, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Feed[domain.Conversation] {
	return newFeed(FeedConversations, interval, api.ListConversations, logger, metrics)
}

func (f *Feed[T]) poll(ctx context.Context) error {
	items, err := f.fetch(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if items == nil {
		items = []T{}
	}
	f.items = items
	f.updatedAt = time.Now().UTC()
	return nil
}

// Start begins polling; later calls are no-ops.
func (f *Feed[T]) Start(ctx context.Context) {
	f.startOnce.Do(func() { f.poller.Start(ctx) })
}

// Refresh asks for an immediate poll unless one is already in flight.
func (f *Feed[T]) Refresh() bool {
	return f.poller.Trigger()
}

// Stop cancels polling and waits for the in-flight poll to return.
func (f *Feed[T]) Stop() {
	f.poller.Stop()
}

// Snapshot returns the latest items.
func (f *Feed[T]) Snapshot() FeedSnapshot[T] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FeedSnapshot[T]{
		Items:     append([]T{}, f.items...),
		UpdatedAt: f.updatedAt,
		Polling:   f.poller.Running(),
	}
}
