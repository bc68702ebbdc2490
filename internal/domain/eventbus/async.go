package eventbus

import (
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
)

// AsyncEventBus decouples publishers from slow subscribers with a fixed
// worker pool. Events are dropped, not blocked on, when the queue fills.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
	pending   sync.WaitGroup
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

func NewAsyncEventBus(workerNum int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}

	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the worker pool.
func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop shuts the workers down. Queued events are discarded, with their
// pending counts settled so WaitAsync does not wait on events that will
// never be delivered.
func (aeb *AsyncEventBus) Stop() {
	close(aeb.stopChan)
	aeb.wg.Wait()
	for {
		select {
		case <-aeb.workChan:
			aeb.pending.Done()
		default:
			return
		}
	}
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			func() {
				defer aeb.pending.Done()
				defer func() {
					// a panicking subscriber must not take a worker down
					_ = recover()
				}()
				aeb.bus.Publish(event.topic, event.args...)
			}()
		}
	}
}

// Publish delivers the event synchronously on this bus.
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync queues the event for worker delivery, dropping it if the
// queue is full.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	aeb.pending.Add(1)
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.pending.Done()
	}
}

func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

func (aeb *AsyncEventBus) SubscribeAsync(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// WaitAsync blocks until every queued event has been delivered.
func (aeb *AsyncEventBus) WaitAsync() {
	done := make(chan struct{})
	go func() {
		aeb.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
