package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPollerSkipsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	p := NewPoller("test", time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, zap.NewNop(), nil)

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, p.Running, time.Second, 5*time.Millisecond)
	assert.False(t, p.Trigger())
	assert.False(t, p.Trigger())
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	require.Eventually(t, func() bool { return !p.Running() }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Trigger())
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPollerStopCancelsInFlightPoll(t *testing.T) {
	started := make(chan struct{})
	var canceled atomic.Bool

	p := NewPoller("test", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	}, zap.NewNop(), nil)

	p.Start(context.Background())
	<-started
	p.Stop()

	assert.True(t, canceled.Load())
	assert.False(t, p.Running())
	assert.False(t, p.Trigger())
}

func TestPollerTicksOnInterval(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller("test", 10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, zap.NewNop(), nil)

	p.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	p.Stop()

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestPollerStopWithoutStart(t *testing.T) {
	p := NewPoller("test", time.Second, func(context.Context) error { return nil }, nil, nil)
	p.Stop()
	p.Start(context.Background())
	assert.False(t, p.Trigger())
}

func TestPollerTriggerRacingStop(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller("test", time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	}, zap.NewNop(), nil)
	p.Start(context.Background())

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			for {
				select {
				case <-done:
					return
				default:
					p.Trigger()
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	p.Stop()
	after := calls.Load()

	assert.False(t, p.Trigger())
	time.Sleep(20 * time.Millisecond)
	close(done)
	assert.Equal(t, after, calls.Load())
	assert.False(t, p.Running())
}
