package containers

import "sync"

type n[T any] struct {
	next  *n[T]
	value T
}

// Queue is a FIFO queue safe for concurrent use.
type Queue[T any] struct {
	lock sync.Mutex
	root *n[T]
	tail *n[T]
	size int
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (s *Queue[T]) Push(p T) {
	s.lock.Lock()
	defer s.lock.Unlock()

	node := &n[T]{value: p}
	if s.root == nil {
		s.root = node
	} else {
		s.tail.next = node
	}
	s.tail = node
	s.size++
}

func (s *Queue[T]) Peek() T {
	s.lock.Lock()
	defer s.lock.Unlock()

	var none T
	if s.root == nil {
		return none
	}
	return s.root.value
}

func (s *Queue[T]) Pop() T {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.pop()
}

// Drain removes and returns every element in insertion order.
func (s *Queue[T]) Drain() []T {
	s.lock.Lock()
	defer s.lock.Unlock()

	values := make([]T, 0, s.size)
	for s.root != nil {
		values = append(values, s.pop())
	}
	return values
}

func (s *Queue[T]) Size() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.size
}

func (s *Queue[T]) pop() T {
	var none T
	if s.root == nil {
		return none
	}

	root := s.root
	s.root = root.next
	if s.root == nil {
		s.tail = nil
	}
	s.size--

	return root.value
}
