package dispatch

import "sync"

// Registry is an observer list whose subscribers are snapshotted before
// each publish, so subscribing or unsubscribing from inside a callback is
// safe.
type Registry[E any] struct {
	mu    sync.Mutex
	next  int
	order []int
	subs  map[int]func(E)
	queue *Queue
}

func NewRegistry[E any](queue *Queue) *Registry[E] {
	return &Registry[E]{
		subs:  make(map[int]func(E)),
		queue: queue,
	}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is idempotent.
func (r *Registry[E]) Subscribe(fn func(E)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	r.subs[id] = fn
	r.order = append(r.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry[E]) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Publish schedules delivery of e to the current subscribers on the queue.
func (r *Registry[E]) Publish(e E) {
	r.mu.Lock()
	snapshot := make([]func(E), 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.subs[id])
	}
	r.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}
	r.queue.Post(func() {
		for _, fn := range snapshot {
			fn(e)
		}
	})
}
