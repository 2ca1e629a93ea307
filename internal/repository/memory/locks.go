package memory

import (
	"context"
	"sync"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

var _ repository.EntityLockStore = (*LockStore)(nil)

// LockStore is a process-local EntityLockStore.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]string
}

// NewLockStore creates an empty lock table.
func NewLockStore() *LockStore {
	return &LockStore{locks: make(map[string]string)}
}

func (l *LockStore) Acquire(_ context.Context, key, holder string) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.locks[key]; ok {
		return current == holder, current, nil
	}
	l.locks[key] = holder
	return true, holder, nil
}

func (l *LockStore) Release(_ context.Context, key, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[key] == holder {
		delete(l.locks, key)
	}
	return nil
}

// Extend reports whether holder still owns key; process-local locks never expire.
func (l *LockStore) Extend(_ context.Context, key, holder string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locks[key] == holder, nil
}

// Steal hands key to holder regardless of the current owner.
func (l *LockStore) Steal(key, holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks[key] = holder
}

// Held reports the number of claimed keys.
func (l *LockStore) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
