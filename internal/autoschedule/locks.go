package autoschedule

import (
	"context"
	"sync"
)

// ownerLocks is a keyed mutex. Entries are dropped when no pass holds or waits on them.
type ownerLocks struct {
	mu sync.Mutex
	m  map[string]*ownerLock
}

type ownerLock struct {
	sem  chan struct{}
	refs int
}

func (l *ownerLocks) lock(ctx context.Context, owner string) (func(), error) {
	l.mu.Lock()
	if l.m == nil {
		l.m = map[string]*ownerLock{}
	}
	ol := l.m[owner]
	if ol == nil {
		ol = &ownerLock{sem: make(chan struct{}, 1)}
		l.m[owner] = ol
	}
	ol.refs++
	l.mu.Unlock()

	select {
	case ol.sem <- struct{}{}:
		return func() {
			<-ol.sem
			l.release(owner, ol)
		}, nil
	case <-ctx.Done():
		l.release(owner, ol)
		return nil, ctx.Err()
	}
}

func (l *ownerLocks) release(owner string, ol *ownerLock) {
	l.mu.Lock()
	ol.refs--
	if ol.refs == 0 {
		delete(l.m, owner)
	}
	l.mu.Unlock()
}

func (l *ownerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
