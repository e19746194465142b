package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherFillsIdentityAndFansOut(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())

	var got []Event
	d.Subscribe(EventRoleAdded, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	d.Subscribe(EventRoleAdded, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventRoleAdded, Payload: RolePayload{Role: "Partner"}}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventRoleDeleted}))

	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, got[0].ID, got[1].ID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestDispatcherLogsHandlerFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	called := false
	d.Subscribe(EventMemberDeleted, func(context.Context, Event) error {
		return errors.New("boom")
	})
	d.Subscribe(EventMemberDeleted, func(context.Context, Event) error {
		called = true
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventMemberDeleted}))
	assert.True(t, called)
	assert.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
}
