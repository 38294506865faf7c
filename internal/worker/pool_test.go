package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingCommitter struct {
	mu        sync.Mutex
	committed []kafka.Message
	err       error
}

func (c *recordingCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, msgs...)
	return c.err
}

func (c *recordingCommitter) offsets(partition int) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int64
	for _, m := range c.committed {
		if m.Partition == partition {
			out = append(out, m.Offset)
		}
	}
	return out
}

func TestPool_PreservesPartitionOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[int][]int64{}
	handle := func(_ context.Context, msg kafka.Message) {
		mu.Lock()
		seen[msg.Partition] = append(seen[msg.Partition], msg.Offset)
		mu.Unlock()
	}
	commit := &recordingCommitter{}

	p := NewPool(3, 4, handle, commit, zap.NewNop())
	p.Start(context.Background())

	for off := int64(0); off < 20; off++ {
		for part := 0; part < 5; part++ {
			require.NoError(t, p.Submit(context.Background(), kafka.Message{Partition: part, Offset: off}))
		}
	}
	p.Stop()

	for part := 0; part < 5; part++ {
		require.Len(t, seen[part], 20)
		for i, off := range seen[part] {
			assert.Equal(t, int64(i), off, "partition %d out of order", part)
		}
		assert.Equal(t, seen[part], commit.offsets(part))
	}
}

func TestPool_CommitsAfterHandle(t *testing.T) {
	commit := &recordingCommitter{}
	handled := make(chan struct{})
	handle := func(_ context.Context, _ kafka.Message) {
		assert.Empty(t, commit.offsets(0))
		close(handled)
	}

	p := NewPool(1, 1, handle, commit, zap.NewNop())
	p.Start(context.Background())
	require.NoError(t, p.Submit(context.Background(), kafka.Message{Partition: 0, Offset: 7}))
	<-handled
	p.Stop()

	assert.Equal(t, []int64{7}, commit.offsets(0))
}

func TestPool_CommitErrorDoesNotStopWorker(t *testing.T) {
	commit := &recordingCommitter{err: errors.New("rebalance in progress")}
	var count int
	var mu sync.Mutex
	handle := func(_ context.Context, _ kafka.Message) {
		mu.Lock()
		count++
		mu.Unlock()
	}

	p := NewPool(1, 1, handle, commit, zap.NewNop())
	p.Start(context.Background())
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(context.Background(), kafka.Message{Offset: int64(i)}))
	}
	p.Stop()

	assert.Equal(t, 3, count)
}

func TestPool_HandlerContextSurvivesShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr error
	handle := func(hctx context.Context, _ kafka.Message) {
		close(started)
		<-release
		handlerErr = hctx.Err()
	}
	commit := &recordingCommitter{}

	p := NewPool(1, 1, handle, commit, zap.NewNop())
	p.Start(ctx)
	require.NoError(t, p.Submit(context.Background(), kafka.Message{Offset: 1}))
	<-started
	cancel()
	close(release)
	p.Stop()

	assert.NoError(t, handlerErr)
	assert.Equal(t, []int64{1}, commit.offsets(0))
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 3)
	handle := func(_ context.Context, _ kafka.Message) {
		started <- struct{}{}
		<-block
	}

	p := NewPool(1, 1, handle, &recordingCommitter{}, zap.NewNop())
	p.Start(context.Background())
	defer func() {
		close(block)
		p.Stop()
	}()

	// One message in the handler, one in the inbox; the third must block.
	require.NoError(t, p.Submit(context.Background(), kafka.Message{Offset: 1}))
	<-started
	require.NoError(t, p.Submit(context.Background(), kafka.Message{Offset: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Submit(ctx, kafka.Message{Offset: 3}), context.DeadlineExceeded)
}

func TestPool_SlowPartitionDoesNotStallOthers(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	fast := 0
	fastDone := make(chan struct{})
	handle := func(_ context.Context, msg kafka.Message) {
		if msg.Partition == 0 {
			<-block
			return
		}
		mu.Lock()
		fast++
		if fast == 5 {
			close(fastDone)
		}
		mu.Unlock()
	}

	p := NewPool(2, 8, handle, &recordingCommitter{}, zap.NewNop())
	p.Start(context.Background())
	defer func() {
		close(block)
		p.Stop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Partition 0 is stuck in its handler; its backlog must fit in the inbox
	// while partition 1 keeps flowing.
	for off := int64(0); off < 5; off++ {
		require.NoError(t, p.Submit(ctx, kafka.Message{Partition: 0, Offset: off}))
		require.NoError(t, p.Submit(ctx, kafka.Message{Partition: 1, Offset: off}))
	}

	select {
	case <-fastDone:
	case <-time.After(time.Second):
		t.Fatal("partition 1 stalled behind partition 0")
	}
}
