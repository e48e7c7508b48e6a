package container

// List is a doubly linked list backed by an arena of nodes addressed by
// stable handles. A handle stays valid until the element it refers to is
// removed, which makes arbitrary-position removal O(1) when the caller
// keeps the handle around.
//
// Index 0 of the arena is a sentinel that represents both ends of the
// list; an empty list is the sentinel pointing at itself.
type List[T any] struct {
	nodes []node[T]
	free  Handle // head of the free chain, None when the arena is full
	size  int
}

// Handle addresses one element in a List. The zero value is None.
type Handle int

// None is the null handle. It is never returned for a live element.
const None Handle = 0

type node[T any] struct {
	value T
	prev  Handle
	next  Handle
	live  bool
}

// New creates an empty list.
func New[T any]() *List[T] {
	l := &List[T]{
		nodes: make([]node[T], 1), // slot 0 is the sentinel
		free:  None,
	}
	l.nodes[0].prev = 0
	l.nodes[0].next = 0
	return l
}

// Len returns the number of elements in the list.
func (l *List[T]) Len() int {
	return l.size
}

// PushFront inserts v at the beginning of the list and returns its handle.
func (l *List[T]) PushFront(v T) Handle {
	return l.insertAfter(v, 0)
}

// PushBack appends v at the end of the list and returns its handle.
func (l *List[T]) PushBack(v T) Handle {
	return l.insertAfter(v, l.nodes[0].prev)
}

// Front returns the handle of the first element, or None if the list is empty.
func (l *List[T]) Front() Handle {
	h := l.nodes[0].next
	if h == 0 {
		return None
	}
	return h
}

// Back returns the handle of the last element, or None if the list is empty.
func (l *List[T]) Back() Handle {
	h := l.nodes[0].prev
	if h == 0 {
		return None
	}
	return h
}

// Next returns the handle following h, or None at the end of the list.
func (l *List[T]) Next(h Handle) Handle {
	if !l.valid(h) {
		return None
	}
	n := l.nodes[h].next
	if n == 0 {
		return None
	}
	return n
}

// Prev returns the handle preceding h, or None at the beginning of the list.
func (l *List[T]) Prev(h Handle) Handle {
	if !l.valid(h) {
		return None
	}
	p := l.nodes[h].prev
	if p == 0 {
		return None
	}
	return p
}

// Value returns the element addressed by h.
func (l *List[T]) Value(h Handle) (T, bool) {
	var zero T
	if !l.valid(h) {
		return zero, false
	}
	return l.nodes[h].value, true
}

// Remove unlinks the element addressed by h and returns its value.
// Removing an already-removed or invalid handle is a no-op.
func (l *List[T]) Remove(h Handle) (T, bool) {
	var zero T
	if !l.valid(h) {
		return zero, false
	}

	n := &l.nodes[h]
	l.nodes[n.prev].next = n.next
	l.nodes[n.next].prev = n.prev

	v := n.value
	n.value = zero
	n.live = false

	// Chain the slot onto the free list for reuse.
	n.next = l.free
	l.free = h

	l.size--
	return v, true
}

// Clear removes every element and resets the arena.
func (l *List[T]) Clear() {
	l.nodes = l.nodes[:1]
	l.nodes[0].prev = 0
	l.nodes[0].next = 0
	l.free = None
	l.size = 0
}

// Values returns all elements in list order.
func (l *List[T]) Values() []T {
	out := make([]T, 0, l.size)
	for h := l.nodes[0].next; h != 0; h = l.nodes[h].next {
		out = append(out, l.nodes[h].value)
	}
	return out
}

func (l *List[T]) insertAfter(v T, prev Handle) Handle {
	h := l.alloc()
	n := &l.nodes[h]
	n.value = v
	n.live = true
	n.prev = prev
	n.next = l.nodes[prev].next
	l.nodes[n.next].prev = h
	l.nodes[prev].next = h
	l.size++
	return h
}

func (l *List[T]) alloc() Handle {
	if l.free != None {
		h := l.free
		l.free = l.nodes[h].next
		return h
	}
	l.nodes = append(l.nodes, node[T]{})
	return Handle(len(l.nodes) - 1)
}

func (l *List[T]) valid(h Handle) bool {
	return h > 0 && int(h) < len(l.nodes) && l.nodes[h].live
}
