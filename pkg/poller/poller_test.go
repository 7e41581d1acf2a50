package poller_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/poller"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoller_DropsOverlappingRefresh(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	p := poller.New(0, func(ctx context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	}, zap.NewNop())

	done := make(chan bool)
	go func() { done <- p.Refresh(context.Background()) }()
	<-started

	require.False(t, p.Refresh(context.Background()))
	close(release)
	require.True(t, <-done)
	require.Equal(t, int32(1), calls.Load())
}

func TestPoller_ErrorKeepsRunning(t *testing.T) {
	var calls atomic.Int32
	p := poller.New(0, func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("unreachable")
	}, zap.NewNop())

	require.True(t, p.Refresh(context.Background()))
	require.True(t, p.Refresh(context.Background()))
	require.Equal(t, int32(2), calls.Load())
}

func TestPoller_RunTickAndTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	p := poller.New(20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, zap.NewNop())

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
}

func TestPoller_TriggerWithoutTicker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	p := poller.New(0, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, zap.NewNop())
	go p.Run(ctx) //nolint:errcheck

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	p.Trigger()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}
