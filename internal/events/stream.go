package events

import "sync"

// Stream delivers values to its subscribers synchronously, in subscription
// order, on the goroutine that calls Fire.
type Stream[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewStream creates an empty stream
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{}
}

// Subscribe registers fn and returns the function that removes it again.
// Calling the returned function more than once is a no-op.
func (s *Stream[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Stream[T]) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Fire delivers v to every current subscriber.
// A subscriber removed during delivery does not receive v.
func (s *Stream[T]) Fire(v T) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		if !s.alive(sub.id) {
			continue
		}
		sub.fn(v)
	}
}

func (s *Stream[T]) alive(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of subscribers
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Lifetime collects unsubscribe functions and runs them all on Destroy
type Lifetime struct {
	mu        sync.Mutex
	cleanups  []func()
	destroyed bool
}

// Add registers a cleanup. If the lifetime is already destroyed it runs at once.
func (l *Lifetime) Add(cleanup func()) {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		cleanup()
		return
	}
	l.cleanups = append(l.cleanups, cleanup)
	l.mu.Unlock()
}

// Destroy runs every cleanup in reverse registration order
func (l *Lifetime) Destroy() {
	l.mu.Lock()
	cleanups := l.cleanups
	l.cleanups = nil
	l.destroyed = true
	l.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Destroyed reports whether Destroy was called
func (l *Lifetime) Destroyed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.destroyed
}

// Attach subscribes fn to s for as long as l lives
func Attach[T any](l *Lifetime, s *Stream[T], fn func(T)) {
	if s == nil {
		return
	}
	l.Add(s.Subscribe(fn))
}
