package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// KeyedLocker is a set of named mutexes. Lock acquires several keys in sorted
// order so two callers asking for overlapping sets cannot deadlock.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int // holders plus waiters; the entry is dropped at zero
}

// NewKeyedLocker returns an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until every key is held or ctx is done. The returned unlock is
// idempotent.
func (l *KeyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = sortedUnique(keys)
	held := make([]*keyLock, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			l.release(keys[:len(held)], held)
			return nil, ErrInvalidKey
		}
		kl := l.ref(k)
		select {
		case kl.sem <- struct{}{}:
			held = append(held, kl)
		case <-ctx.Done():
			l.unref(k)
			l.release(keys[:len(held)], held)
			return nil, fmt.Errorf("lock %s: %w", k, ctx.Err())
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.release(keys, held) })
	}, nil
}

// Held reports the number of keys currently tracked (held or waited on).
func (l *KeyedLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyedLocker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyedLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kl, ok := l.locks[key]; ok {
		kl.refs--
		if kl.refs <= 0 {
			delete(l.locks, key)
		}
	}
}

// release frees held locks in reverse acquisition order.
func (l *KeyedLocker) release(keys []string, held []*keyLock) {
	for i := len(held) - 1; i >= 0; i-- {
		<-held[i].sem
		l.unref(keys[i])
	}
}

func sortedUnique(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
