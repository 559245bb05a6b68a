package event

import "sync"

// Listener receives published values in subscription order.
type Listener[T any] func(T)

// Bus is a synchronous in-process publish/subscribe channel for one value type.
type Bus[T any] struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn Listener[T]
}

func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a disposer. Calling the disposer more than once is a no-op.
func (b *Bus[T]) Subscribe(fn Listener[T]) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// Publish calls every listener registered at the time of the call.
// Listeners may subscribe or unsubscribe from inside a callback.
func (b *Bus[T]) Publish(value T) {
	b.mu.RLock()
	snapshot := make([]subscription[T], len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.fn(value)
	}
}

func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.listeners {
		if sub.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}
