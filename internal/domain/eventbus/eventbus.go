package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

var (
	instance evbus.Bus
	asyncBus *AsyncEventBus
	once     sync.Once
)

// Get returns the shared synchronous bus instance.
func Get() evbus.Bus {
	once.Do(initBuses)
	return instance
}

// GetAsync returns the shared asynchronous bus instance.
func GetAsync() *AsyncEventBus {
	once.Do(initBuses)
	return asyncBus
}

func initBuses() {
	instance = New()
	asyncBus = NewAsyncEventBus(4)
	asyncBus.Start()
}

// New creates a fresh synchronous bus, independent of the shared one.
func New() evbus.Bus {
	return evbus.New()
}

// Publish delivers an event synchronously on the shared bus.
func Publish(topic string, args ...interface{}) {
	Get().Publish(topic, args...)
}

// PublishAsync queues an event for delivery by the shared worker pool.
func PublishAsync(topic string, args ...interface{}) {
	GetAsync().PublishAsync(topic, args...)
}

// Subscribe registers a handler on the shared synchronous bus.
func Subscribe(topic string, fn interface{}) error {
	return Get().Subscribe(topic, fn)
}

// SubscribeAsync registers a handler on the shared asynchronous bus.
func SubscribeAsync(topic string, fn interface{}) error {
	return GetAsync().SubscribeAsync(topic, fn)
}

// Shutdown stops the shared asynchronous workers.
func Shutdown() {
	if asyncBus != nil {
		asyncBus.Stop()
	}
}
