package sim

import log "github.com/sirupsen/logrus"

// HookPosBufPush marks when an element is pushed into the buffer.
var HookPosBufPush = &HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is popped from the buffer.
var HookPosBufPop = &HookPos{Name: "Buffer Pop"}

// BufferLevel reports the occupancy of a named buffer. It is the part of a
// buffer that monitors care about.
type BufferLevel interface {
	Named
	Capacity() int
	Size() int
}

// A Buffer is a fixed-capacity fifo queue.
//
// The storage is allocated once when the buffer is created. Push and Pop
// never allocate, so a buffer can be used from contexts that must not
// allocate.
type Buffer[T any] interface {
	BufferLevel
	Hookable

	CanPush() bool
	Push(e T)
	Pop() (T, bool)
	Peek() (T, bool)

	// At returns the i-th element counting from the front.
	At(i int) T

	// Remove all elements in the buffer
	Clear()
}

// NewBuffer creates a default buffer object.
func NewBuffer[T any](name string, capacity int) Buffer[T] {
	NameMustBeValid(name)

	if capacity <= 0 {
		log.Panicf("buffer %s must have a positive capacity", name)
	}

	return &bufferImpl[T]{
		name:     name,
		elements: make([]T, capacity),
	}
}

type bufferImpl[T any] struct {
	HookableBase

	name     string
	elements []T
	head     int
	size     int
}

// Name returns the name of the buffer.
func (b *bufferImpl[T]) Name() string {
	return b.name
}

func (b *bufferImpl[T]) CanPush() bool {
	return b.size < len(b.elements)
}

func (b *bufferImpl[T]) Push(e T) {
	if b.size >= len(b.elements) {
		log.Panicf("buffer %s overflow", b.name)
	}

	tail := (b.head + b.size) % len(b.elements)
	b.elements[tail] = e
	b.size++

	if b.NumHooks() > 0 {
		b.InvokeHook(HookCtx{
			Domain: b,
			Pos:    HookPosBufPush,
			Item:   e,
		})
	}
}

func (b *bufferImpl[T]) Pop() (T, bool) {
	var zero T

	if b.size == 0 {
		return zero, false
	}

	e := b.elements[b.head]
	b.elements[b.head] = zero
	b.head = (b.head + 1) % len(b.elements)
	b.size--

	if b.NumHooks() > 0 {
		b.InvokeHook(HookCtx{
			Domain: b,
			Pos:    HookPosBufPop,
			Item:   e,
		})
	}

	return e, true
}

func (b *bufferImpl[T]) Peek() (T, bool) {
	var zero T

	if b.size == 0 {
		return zero, false
	}

	return b.elements[b.head], true
}

func (b *bufferImpl[T]) At(i int) T {
	if i < 0 || i >= b.size {
		log.Panicf("buffer %s index %d out of range [0, %d)", b.name, i, b.size)
	}

	return b.elements[(b.head+i)%len(b.elements)]
}

func (b *bufferImpl[T]) Capacity() int {
	return len(b.elements)
}

func (b *bufferImpl[T]) Size() int {
	return b.size
}

func (b *bufferImpl[T]) Clear() {
	var zero T
	for i := range b.elements {
		b.elements[i] = zero
	}

	b.head = 0
	b.size = 0
}
