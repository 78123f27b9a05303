package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublish_DeliversInSubscriptionOrder(t *testing.T) {
	n := New(nil)
	var got []string
	n.Subscribe(func() { got = append(got, "a") })
	n.Subscribe(func() { got = append(got, "b") })
	n.Subscribe(func() { got = append(got, "c") })

	n.Publish()

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPublish_PanickingListenerDoesNotStopOthers(t *testing.T) {
	n := New(nil)
	var calls int
	n.Subscribe(func() { panic("listener bug") })
	n.Subscribe(func() { calls++ })

	assert.NotPanics(t, n.Publish)
	assert.Equal(t, 1, calls)
}

func TestUnsubscribe(t *testing.T) {
	n := New(nil)
	var a, b int
	unsubA := n.Subscribe(func() { a++ })
	n.Subscribe(func() { b++ })

	n.Publish()
	unsubA()
	unsubA()
	n.Publish()

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, n.Len())
}

func TestPublish_ListenerAddedDuringPublishWaitsForNext(t *testing.T) {
	n := New(nil)
	var late int
	added := false
	n.Subscribe(func() {
		if !added {
			added = true
			n.Subscribe(func() { late++ })
		}
	})

	n.Publish()
	assert.Equal(t, 0, late)

	n.Publish()
	assert.Equal(t, 1, late)
}

func TestPublish_UnsubscribeDuringPublish(t *testing.T) {
	n := New(nil)
	var second int
	var unsubSecond func()
	n.Subscribe(func() { unsubSecond() })
	unsubSecond = n.Subscribe(func() { second++ })

	// snapshot was taken before removal
	n.Publish()
	assert.Equal(t, 1, second)

	n.Publish()
	assert.Equal(t, 1, second)
}
