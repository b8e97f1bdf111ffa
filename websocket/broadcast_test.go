package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastPreservesOrderPerSubscriber(t *testing.T) {
	g := newBroadcastGroup(16)
	ch := g.Subscribe("c1")

	for i := 0; i < 5; i++ {
		g.Publish(NewMessage(TypeMarketData, i))
	}

	for i := 0; i < 5; i++ {
		msg := <-ch
		assert.Equal(t, i, msg.Data)
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	g := newBroadcastGroup(16)
	g.Publish(NewMessage(TypeSystemNotification, nil))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	g := newBroadcastGroup(16)
	ch := g.Subscribe("c1")

	g.Unsubscribe("c1")
	g.Publish(NewMessage(TypeMarketData, 1))

	assert.Empty(t, ch)
}

func TestLaggedSubscriberDropsOldest(t *testing.T) {
	g := newBroadcastGroup(10)
	stalled := g.Subscribe("stalled")
	fast := g.Subscribe("fast")

	const total = 25
	for i := 0; i < total; i++ {
		g.Publish(NewMessage(TypeMarketData, i))

		// The fast subscriber keeps up; the stalled one never reads.
		msg := <-fast
		assert.Equal(t, i, msg.Data)
	}

	// The stalled subscriber lost the oldest messages and kept the
	// newest ten, still in order.
	require.Len(t, stalled, 10)
	for i := total - 10; i < total; i++ {
		msg := <-stalled
		assert.Equal(t, i, msg.Data)
	}
}

func TestOfferEvictsOldestWhenFull(t *testing.T) {
	ch := make(chan Message, 2)

	require.Zero(t, offer(ch, NewMessage(TypeMarketData, 1)))
	require.Zero(t, offer(ch, NewMessage(TypeMarketData, 2)))
	require.Equal(t, 1, offer(ch, NewMessage(TypeMarketData, 3)))

	assert.Equal(t, 2, (<-ch).Data)
	assert.Equal(t, 3, (<-ch).Data)
}
