package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncEventBus_DeliversQueuedEvents(t *testing.T) {
	bus := NewAsyncEventBus(2)
	bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var got []string
	require.NoError(t, bus.SubscribeAsync(EventSessionPhase, func(data SessionEventData) {
		mu.Lock()
		got = append(got, data.Phase)
		mu.Unlock()
	}))

	for i := 0; i < 10; i++ {
		bus.PublishAsync(EventSessionPhase, SessionEventData{SessionID: "s", Phase: "capturing_face"})
	}
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 10)
}

func TestAsyncEventBus_SurvivesPanickingSubscriber(t *testing.T) {
	bus := NewAsyncEventBus(1)
	bus.Start()
	defer bus.Stop()

	require.NoError(t, bus.SubscribeAsync(EventSystemError, func(ErrorEventData) {
		panic("subscriber bug")
	}))

	var mu sync.Mutex
	delivered := 0
	require.NoError(t, bus.SubscribeAsync(EventSystemInfo, func(SystemEventData) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}))

	bus.PublishAsync(EventSystemError, ErrorEventData{Message: "boom"})
	bus.PublishAsync(EventSystemInfo, SystemEventData{Level: "info", Message: "still alive"})
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, delivered)
}

func TestAsyncEventBus_StopSettlesQueuedEvents(t *testing.T) {
	// workers never start, so every published event stays queued
	bus := NewAsyncEventBus(2)
	for i := 0; i < 5; i++ {
		bus.PublishAsync(EventSystemInfo, SystemEventData{Level: "info", Message: "queued"})
	}

	bus.Stop()

	start := time.Now()
	bus.WaitAsync()
	assert.Less(t, time.Since(start), time.Second,
		"discarded events must not hold WaitAsync open")
}

func TestSyncBus_PublishReachesSubscriber(t *testing.T) {
	bus := New()

	var got ResultEventData
	require.NoError(t, bus.Subscribe(EventHeartResult, func(data ResultEventData) {
		got = data
	}))

	bus.Publish(EventHeartResult, ResultEventData{SessionID: "s1", Kind: "heart"})
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "heart", got.Kind)
}
