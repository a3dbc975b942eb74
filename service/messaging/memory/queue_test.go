package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	Topic  string
	Entity string
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond // Speed up for testing
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	payload := testEvent{Topic: "lock.created", Entity: "lock-1"}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, payload, *message.T())

	err = message.Ack()
	assert.NoError(t, err)

	// double ack should error
	err = message.Ack()
	assert.Error(t, err)
}

func TestQueueDeadLetter(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	payload := testEvent{Topic: "consensus.vetoed", Entity: "item-1"}
	assert.NoError(t, queue.Publish(ctx, &payload))

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NoError(t, message.Nack(fmt.Errorf("observer failed")))

	time.Sleep(30 * time.Millisecond)

	// retried copy
	message, err = queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NoError(t, message.Nack(fmt.Errorf("observer failed again")))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueuePublishNeverBlocks(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 100
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	// no consumer attached, publish well past the buffer capacity
	for i := 0; i < 250; i++ {
		payload := testEvent{Topic: "lock.created", Entity: fmt.Sprintf("lock-%d", i)}
		assert.NoError(t, queue.Publish(ctx, &payload))
	}
	assert.Equal(t, 100, queue.Size())
	assert.Equal(t, 150, queue.Dropped())

	// the oldest messages were evicted, the newest survive
	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "lock-150", message.T().Entity)
}

func TestQueueConcurrency(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 200 // above the total published so nothing is evicted
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	producers := 8
	perProducer := 20

	var wg sync.WaitGroup
	wg.Add(producers)

	var consumedMu sync.Mutex
	consumed := 0

	done := make(chan struct{})
	go func() {
		for i := 0; i < producers*perProducer; i++ {
			message, err := queue.Consume(ctx)
			if err != nil {
				t.Errorf("consume failed: %v", err)
				return
			}
			_ = message.Ack()
			consumedMu.Lock()
			consumed++
			consumedMu.Unlock()
		}
		close(done)
	}()

	for i := 0; i < producers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				payload := testEvent{Topic: "lock.approved", Entity: fmt.Sprintf("p%d-%d", id, j)}
				assert.NoError(t, queue.Publish(ctx, &payload))
			}
		}(i)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("test timed out")
	}
	assert.Equal(t, producers*perProducer, consumed)
}

func TestQueueContextCancellation(t *testing.T) {
	queue := NewQueue[testEvent](DefaultConfig())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	payload := testEvent{Topic: "review.routed"}
	assert.Error(t, queue.Publish(cancelled, &payload))

	timed, stop := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stop()
	_, err := queue.Consume(timed)
	assert.Error(t, err)

	// still usable afterwards
	ctx := context.Background()
	assert.NoError(t, queue.Publish(ctx, &payload))
	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
}
