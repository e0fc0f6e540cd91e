package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Delivers(t *testing.T) {
	b := NewBroadcaster()
	ch, unsubscribe := b.Subscribe(4)
	defer unsubscribe()

	b.Publish(Event{RunID: "r1", Stage: StageFetch, Done: 1, Total: 12})

	e := <-ch
	assert.Equal(t, "r1", e.RunID)
	assert.Equal(t, StageFetch, e.Stage)
	assert.False(t, e.Time.IsZero(), "publish stamps the time")
}

func TestBroadcaster_SlowListenerDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Done: i})
	}

	e := <-ch
	assert.Equal(t, 0, e.Done, "first event kept, rest dropped")
	assert.Empty(t, ch)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch, unsubscribe := b.Subscribe(0)
	require.Equal(t, 1, b.Subscribers())

	unsubscribe()
	unsubscribe()

	assert.Equal(t, 0, b.Subscribers())
	_, open := <-ch
	assert.False(t, open)

	b.Publish(Event{Stage: StageComplete})
}
