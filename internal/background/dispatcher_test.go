package background

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnqueueRunsJob(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	defer d.Close()

	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "test.run", false, func() error {
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not executed")
	}
	require.Zero(t, d.ErrorCount())
}

func TestNonRetryableFailureRunsOnce(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	err := d.Enqueue(context.Background(), "test.fail", true, func() error {
		calls.Add(1)
		return errors.New("constraint violation")
	})
	require.NoError(t, err)

	d.Close()
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, uint64(1), d.ErrorCount())
}

func TestRetryableTransientFailureRetries(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	transient := &net.DNSError{Err: "lookup timed out", IsTimeout: true}
	var calls atomic.Int32
	err := d.Enqueue(context.Background(), "test.retry", true, func() error {
		if calls.Add(1) < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)

	d.Close()
	require.Equal(t, int32(3), calls.Load())
	require.Zero(t, d.ErrorCount())
}

func TestCloseDrainsQueue(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 64})

	var done atomic.Int32
	for i := 0; i < 20; i++ {
		err := d.Enqueue(context.Background(), "test.drain", false, func() error {
			done.Add(1)
			return nil
		})
		require.NoError(t, err)
	}

	d.Close()
	require.Equal(t, int32(20), done.Load())
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()

	err := d.Enqueue(context.Background(), "test.closed", false, func() error { return nil })
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestEnqueueDuringClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 64})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				err := d.Enqueue(context.Background(), "test.race", false, func() error { return nil })
				if errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	d.Close()
	close(stop)
	wg.Wait()

	err := d.Enqueue(context.Background(), "test.race", false, func() error { return nil })
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	defer d.Close()

	release := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "test.block", false, func() error {
		<-release
		return nil
	}))

	// Fill the queue behind the blocked worker until Enqueue rejects.
	var full bool
	for i := 0; i < 10; i++ {
		err := d.Enqueue(context.Background(), "test.fill", false, func() error { return nil })
		if errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
		require.NoError(t, err)
	}
	require.True(t, full)
	close(release)
}

func TestRedactToken(t *testing.T) {
	err := errors.New("Post https://api.telegram.org/bot123456:AAHdq_secret-Token/sendMessage: timeout")
	got := redactToken(err)
	require.NotContains(t, got, "123456:AAHdq_secret-Token")
	require.Contains(t, got, "bot<redacted>")
}
