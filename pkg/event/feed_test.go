package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedDeliversToAllSubscribers(t *testing.T) {
	f := NewFeed[int]()
	chA, subA := f.Subscribe(1)
	defer subA.Unsubscribe()
	chB, subB := f.Subscribe(1)
	defer subB.Unsubscribe()

	sent := f.Send(42)
	require.Equal(t, 2, sent)
	require.Equal(t, 42, <-chA)
	require.Equal(t, 42, <-chB)
}

func TestFeedSkipsUnsubscribedChannels(t *testing.T) {
	f := NewFeed[string]()
	ch, sub := f.Subscribe(1)
	sub.Unsubscribe()

	sent := f.Send("hello")
	require.Equal(t, 0, sent)

	_, ok := <-ch
	require.False(t, ok, "channel must be closed after Unsubscribe")
}

func TestFeedWithNoSubscribersReturnsZero(t *testing.T) {
	f := NewFeed[int]()
	require.Equal(t, 0, f.Send(1))
}
