package eventbus_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/crm-backoffice/pkg/eventbus"
)

type testEvent struct {
	Value int
}

func newBus() eventbus.EventBus {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return eventbus.NewEventPublisher(logger)
}

func TestPublish_MatchingSubscriber(t *testing.T) {
	bus := newBus()

	got := 0
	bus.Subscribe(func(e testEvent) {
		got = e.Value
	})

	bus.Publish(testEvent{Value: 42})
	assert.Equal(t, 42, got)
}

func TestPublish_NonMatchingSubscriberIgnored(t *testing.T) {
	bus := newBus()

	called := false
	bus.Subscribe(func(s string) {
		called = true
	})

	bus.Publish(testEvent{Value: 1})
	assert.False(t, called)
}

func TestPublish_PanickingHandlerDoesNotPropagate(t *testing.T) {
	bus := newBus()

	bus.Subscribe(func(e testEvent) {
		panic("boom")
	})

	require.NotPanics(t, func() {
		bus.Publish(testEvent{Value: 1})
	})
}

func TestUnsubscribeAndClear(t *testing.T) {
	bus := newBus()

	handler := func(e testEvent) {}
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Unsubscribe(handler)
	assert.Equal(t, 0, bus.SubscribersCount())

	bus.Subscribe(func(e testEvent) {})
	bus.Clear()
	assert.Equal(t, 0, bus.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	assert.True(t, eventbus.MatchSignature(func(e testEvent) {}, []interface{}{testEvent{}}))
	assert.False(t, eventbus.MatchSignature(func(e testEvent) {}, []interface{}{"nope"}))
	assert.False(t, eventbus.MatchSignature("not a func", []interface{}{testEvent{}}))
}
