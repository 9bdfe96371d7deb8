package memory

import (
	"context"
	"sync"

	redisclient "github.com/clinicore/availability-booking/internal/redis"
)

var _ redisclient.Locker = (*Locker)(nil)

// Locker is an in-process substitute for the Redis slot lock. Unlike the
// Redis try-lock it blocks until the key is free, which is the behavior tests
// want when hammering one slot.
type Locker struct {
	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func NewLocker() *Locker {
	return &Locker{keys: make(map[string]*sync.Mutex)}
}

func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	km, ok := l.keys[key]
	if !ok {
		km = &sync.Mutex{}
		l.keys[key] = km
	}
	l.mu.Unlock()

	km.Lock()
	defer km.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
