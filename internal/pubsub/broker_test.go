package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func assertClosed(t *testing.T, ch <-chan any) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "expected channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "topic", nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 1, b.Publish("topic", i))
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, receive(t, ch))
	}
}

func TestPublishOnlyReachesTopicSubscribers(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := b.Subscribe(ctx, "a", nil)
	other := b.Subscribe(ctx, "b", nil)

	b.Publish("a", "for-a")
	assert.Equal(t, "for-a", receive(t, a))

	select {
	case v := <-other:
		t.Fatalf("unexpected payload on other topic: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterDropsRejectedPayloads(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evenOnly := func(_ context.Context, payload any) bool { return payload.(int)%2 == 0 }
	ch := b.Subscribe(ctx, "numbers", evenOnly)
	all := b.Subscribe(ctx, "numbers", nil)

	for i := 1; i <= 4; i++ {
		b.Publish("numbers", i)
	}
	assert.Equal(t, 2, receive(t, ch))
	assert.Equal(t, 4, receive(t, ch))
	for i := 1; i <= 4; i++ {
		assert.Equal(t, i, receive(t, all))
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := NewBroker(WithBuffer(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stalled := b.Subscribe(ctx, "t", nil)
	fast := b.Subscribe(ctx, "t", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish("t", i)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked by stalled subscriber")
	}

	// Both subscribers still see the first event; the rest may have been dropped.
	assert.Equal(t, 0, receive(t, fast))
	assert.Equal(t, 0, receive(t, stalled))
}

func TestCancelUnsubscribes(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "t", nil)
	assert.Equal(t, 1, b.Subscribers("t"))

	cancel()
	assertClosed(t, ch)
	assert.Eventually(t, func() bool { return b.Subscribers("t") == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, b.Publish("t", "late"))
}

func TestCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(context.Background(), "t", nil)

	b.Close()
	assertClosed(t, ch)
	assertClosed(t, b.Subscribe(context.Background(), "t", nil))
}
