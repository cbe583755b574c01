package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesOnlyKeySubscribers(t *testing.T) {
	b := New[int]()
	a := b.Subscribe("a")
	other := b.Subscribe("b")

	b.Publish("a", 7)

	assert.Equal(t, 7, <-a)
	select {
	case v := <-other:
		t.Fatalf("unexpected event on other key: %v", v)
	default:
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := New[string]()
	s1 := b.Subscribe("k")
	s2 := b.Subscribe("k")

	b.Publish("k", "x")
	assert.Equal(t, "x", <-s1)
	assert.Equal(t, "x", <-s2)
	assert.Equal(t, 2, b.Subscribers("k"))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New[int]()
	slow := b.Subscribe("k")
	for i := 0; i < 40; i++ {
		b.Publish("k", i)
	}
	// The channel buffers 16; the rest were dropped, not delivered late.
	count := 0
	for {
		select {
		case <-slow:
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 16, count)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[int]()
	ch := b.Subscribe("k")
	b.Unsubscribe("k", ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.Subscribers("k"))

	// Publishing to a key with no subscribers is a no-op.
	b.Publish("k", 1)
}

func TestClose(t *testing.T) {
	b := New[int]()
	ch := b.Subscribe("k")
	b.Close()

	_, open := <-ch
	require.False(t, open)

	late := b.Subscribe("k")
	_, open = <-late
	assert.False(t, open)

	// Idempotent.
	b.Close()
}
