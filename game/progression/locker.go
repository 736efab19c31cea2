package progression

import (
	"sort"
	"sync"
)

// locker serializes read-modify-write cycles per user.
type locker struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newLocker() *locker {
	return &locker{locks: make(map[int64]*userLock)}
}

// Lock acquires the locks of ids in ascending order and returns the release
// func. Duplicate ids are locked once.
func (l *locker) Lock(ids ...int64) func() {
	keys := append([]int64(nil), ids...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	uniq := keys[:0]
	for i, k := range keys {
		if i == 0 || k != keys[i-1] {
			uniq = append(uniq, k)
		}
	}

	held := make([]*userLock, 0, len(uniq))
	for _, id := range uniq {
		l.mu.Lock()
		ul, ok := l.locks[id]
		if !ok {
			ul = &userLock{}
			l.locks[id] = ul
		}
		ul.refs++
		l.mu.Unlock()

		ul.mu.Lock()
		held = append(held, ul)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			ul := held[i]
			ul.mu.Unlock()
			l.mu.Lock()
			ul.refs--
			if ul.refs == 0 {
				delete(l.locks, uniq[i])
			}
			l.mu.Unlock()
		}
	}
}

func (l *locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
