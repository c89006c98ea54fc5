// Package queue provides the work queue of the bisection.
// The queue is a double-ended queue (deque) that allows for efficient adding and removing of elements from both ends.
//
// The bisection uses it breadth-first:
// 1. Start with the failing group as the only entry.
// 2. Pop the entry at the front and validate it.
// 3. If it fails and holds more than one option, push both halves to the back, first half first.
// 4. Repeat step 2 until the queue is empty.
//
// Breadth-first order keeps the halves of one split next to each other, so the options of a group are
// always explored in group order within one level.
package queue

// Queue is a deque over a ring buffer.
type Queue[T any] struct {
	entries []T
	head    int
	size    int
}

// New creates a queue holding the given entries, front first.
func New[T any](entries ...T) *Queue[T] {
	q := &Queue[T]{}

	for _, entry := range entries {
		q.PushBack(entry)
	}

	return q
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	return q.size
}

// Empty reports whether the queue holds no entries.
func (q *Queue[T]) Empty() bool {
	return q.size == 0
}

// PushBack adds entries to the back of the queue, in order.
func (q *Queue[T]) PushBack(entries ...T) {
	for _, entry := range entries {
		q.grow()
		q.entries[(q.head+q.size)%len(q.entries)] = entry
		q.size++
	}
}

// PushFront adds an entry to the front of the queue.
func (q *Queue[T]) PushFront(entry T) {
	q.grow()
	q.head = (q.head - 1 + len(q.entries)) % len(q.entries)
	q.entries[q.head] = entry
	q.size++
}

// PopFront removes and returns the entry at the front of the queue.
func (q *Queue[T]) PopFront() (T, bool) {
	var zero T

	if q.size == 0 {
		return zero, false
	}

	entry := q.entries[q.head]
	q.entries[q.head] = zero
	q.head = (q.head + 1) % len(q.entries)
	q.size--

	return entry, true
}

// PopBack removes and returns the entry at the back of the queue.
func (q *Queue[T]) PopBack() (T, bool) {
	var zero T

	if q.size == 0 {
		return zero, false
	}

	idx := (q.head + q.size - 1) % len(q.entries)
	entry := q.entries[idx]
	q.entries[idx] = zero
	q.size--

	return entry, true
}

// Entries returns a copy of the queued entries, front first. Used for testing.
func (q *Queue[T]) Entries() []T {
	entries := make([]T, q.size)
	for i := range q.size {
		entries[i] = q.entries[(q.head+i)%len(q.entries)]
	}

	return entries
}

func (q *Queue[T]) grow() {
	if q.size < len(q.entries) {
		return
	}

	entries := make([]T, max(2*len(q.entries), 4))
	for i := range q.size {
		entries[i] = q.entries[(q.head+i)%len(q.entries)]
	}

	q.entries = entries
	q.head = 0
}
