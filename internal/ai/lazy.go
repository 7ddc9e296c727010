package ai

import "sync"

// lazy holds a process-wide upstream client that is built on first use.
// Concurrent first callers share one construction; a failed construction
// is remembered and returned to every caller.
type lazy[T any] struct {
	once sync.Once
	init func() (T, error)
	v    T
	err  error
}

func newLazy[T any](init func() (T, error)) *lazy[T] {
	return &lazy[T]{init: init}
}

func (l *lazy[T]) get() (T, error) {
	l.once.Do(func() {
		l.v, l.err = l.init()
	})
	return l.v, l.err
}
