package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Locker serializes work on a key. Lock blocks until the key is acquired or
// ctx is done and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(context.Context) error, error)
}

// libraryKey identifies the pair of libraries a transition touches. The ids
// are sorted so both directions of a swap take the same lock.
func libraryKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return "library:" + strings.Join(ids, ":")
}

// KeyedMutex is an in-process Locker used when no Redis is configured.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

var _ Locker = (*KeyedMutex)(nil)

// Lock implements Locker.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-l.ch
			m.release(key, l)
		})
		return nil
	}, nil
}

func (m *KeyedMutex) release(key string, l *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}
