package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedJobs(t *testing.T) {
	p := NewPool(2, 16, time.Second)

	var ran atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		p.Submit("count", func(ctx context.Context) error {
			if ran.Add(1) == 5 {
				close(done)
			}
			return nil
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not run")
	}
	p.Shutdown()
	assert.Equal(t, int32(5), ran.Load())
}

func TestPool_ShutdownWaitsForInflight(t *testing.T) {
	p := NewPool(1, 16, time.Second)

	var finished atomic.Bool
	started := make(chan struct{})
	p.Submit("slow", func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	<-started
	p.Shutdown()
	assert.True(t, finished.Load())
}

func TestPool_SubmitRacingShutdownDoesNotPanic(t *testing.T) {
	p := NewPool(2, 4, time.Second)

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
					p.Submit("noise", func(ctx context.Context) error { return nil })
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	p.Shutdown()
	close(stop)
	wg.Wait()
}

func TestPool_JobContextHasDeadline(t *testing.T) {
	p := NewPool(1, 1, time.Minute)
	defer p.Shutdown()

	got := make(chan bool, 1)
	p.Submit("deadline", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		got <- ok
		return nil
	})

	select {
	case ok := <-got:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}
