package cache

// lruNode is a node in a doubly-linked LRU list.
// The node stores its value so the list can hand it back on eviction.
type lruNode[T comparable] struct {
	value T
	prev  *lruNode[T]
	next  *lruNode[T]
}

// lruList is a doubly-linked list ordered by recency.
// The head is the most recently used, the tail the least recently used.
// The list is not thread-safe; callers must handle synchronization.
type lruList[T comparable] struct {
	head *lruNode[T]
	tail *lruNode[T]
	len  int
}

func newLRUList[T comparable]() *lruList[T] {
	return &lruList[T]{}
}

// Len returns the number of nodes in the list.
func (l *lruList[T]) Len() int {
	return l.len
}

// PushFront adds value as the most recently used node and returns the node.
func (l *lruList[T]) PushFront(value T) *lruNode[T] {
	node := &lruNode[T]{value: value}
	l.linkFront(node)
	return node
}

// MoveToFront marks an existing node as most recently used.
func (l *lruList[T]) MoveToFront(node *lruNode[T]) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove unlinks node from the list.
func (l *lruList[T]) Remove(node *lruNode[T]) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// RemoveOldest removes and returns the least recently used value.
func (l *lruList[T]) RemoveOldest() (T, bool) {
	if l.tail == nil {
		var zero T
		return zero, false
	}
	node := l.tail
	l.unlink(node)
	return node.value, true
}

// Oldest returns the least recently used value without removing it.
func (l *lruList[T]) Oldest() (T, bool) {
	if l.tail == nil {
		var zero T
		return zero, false
	}
	return l.tail.value, true
}

// Each calls fn for every value from least to most recently used.
func (l *lruList[T]) Each(fn func(T)) {
	for n := l.tail; n != nil; n = n.prev {
		fn(n.value)
	}
}

// Clear removes all nodes from the list.
func (l *lruList[T]) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *lruList[T]) linkFront(node *lruNode[T]) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

// unlink removes a node from the list and clears its links.
func (l *lruList[T]) unlink(node *lruNode[T]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
