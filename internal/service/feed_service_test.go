package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/upstream/upstreamtest"
)

func TestFeedSnapshotsLatestPoll(t *testing.T) {
	backend := upstreamtest.New(t)
	backend.SetConversations([]domain.Conversation{{ID: "c-1", Title: "Renewal", UnreadCount: 2}})

	feed := NewConversationFeed(backend.Client(), time.Hour, zap.NewNop(), nil)
	assert.Empty(t, feed.Snapshot().Items)

	feed.Start(context.Background())
	defer feed.Stop()

	require.Eventually(t, func() bool { return len(feed.Snapshot().Items) == 1 }, time.Second, 5*time.Millisecond)
	snap := feed.Snapshot()
	assert.Equal(t, "c-1", snap.Items[0].ID)
	assert.False(t, snap.UpdatedAt.IsZero())

	backend.SetConversations(nil)
	require.Eventually(t, feed.Refresh, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(feed.Snapshot().Items) == 0 }, time.Second, 5*time.Millisecond)
}

func TestFeedStopDiscardsInFlightPoll(t *testing.T) {
	backend := upstreamtest.New(t)
	backend.SetScheduled([]domain.ScheduledMessage{{ID: "s-1", To: "+15550000003"}})
	release := backend.Hold(upstreamtest.RouteScheduled)
	t.Cleanup(release)

	feed := NewScheduledMessagesFeed(backend.Client(), 10*time.Millisecond, zap.NewNop(), nil)
	feed.Start(context.Background())

	require.Eventually(t, func() bool { return backend.Calls(upstreamtest.RouteScheduled) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, feed.Refresh())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, backend.Calls(upstreamtest.RouteScheduled))

	feed.Stop()
	release()

	snap := feed.Snapshot()
	assert.Empty(t, snap.Items)
	assert.True(t, snap.UpdatedAt.IsZero())
	assert.False(t, snap.Polling)
}

func TestShellStartsFeedsLazilyAndStopsThemOnClose(t *testing.T) {
	h := newHarness(t)
	shell := h.factory.New(adminPrincipal())

	assert.Equal(t, 0, h.backend.Calls(upstreamtest.RouteConversations))
	feed := shell.Conversations()
	require.Eventually(t, func() bool { return h.backend.Calls(upstreamtest.RouteConversations) == 1 }, time.Second, 5*time.Millisecond)

	shell.Close()
	assert.False(t, feed.Refresh())
	assert.Equal(t, 0, h.backend.Calls(upstreamtest.RouteScheduled))
}
