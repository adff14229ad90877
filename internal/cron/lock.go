package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 55 * time.Second

// Lock hands out at most one Lease at a time across all worker instances.
// Acquire returns a nil Lease when another instance holds the lock.
type Lock interface {
	Acquire(ctx context.Context) (Lease, error)
}

// Lease is a held lock. Lost is closed if the lock expired or was taken over
// while held; jobs still running should stop at the next safe point.
type Lease interface {
	Lost() <-chan struct{}
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ExtendIfOwner(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
}

// RedisLock is a SETNX lock whose lease is renewed every third of the TTL.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (Lease, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, nil
	}
	lease := &redisLease{
		lock:  l,
		owner: owner,
		lost:  make(chan struct{}),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go lease.renew()
	return lease, nil
}

type redisLease struct {
	lock  *RedisLock
	owner string

	lost     chan struct{}
	lostOnce sync.Once
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (l *redisLease) Lost() <-chan struct{} { return l.lost }

func (l *redisLease) renew() {
	defer close(l.done)
	ticker := time.NewTicker(l.lock.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.lock.ttl/3)
			held, err := l.lock.store.ExtendIfOwner(ctx, l.lock.key, l.owner, l.lock.ttl)
			cancel()
			// A transient error is retried on the next tick while the TTL
			// still covers us.
			if err == nil && !held {
				l.lostOnce.Do(func() { close(l.lost) })
				return
			}
		}
	}
}

// Release stops renewal and frees the lock if this lease still owns it.
func (l *redisLease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
	if _, err := l.lock.store.ReleaseIfOwner(ctx, l.lock.key, l.owner); err != nil {
		return fmt.Errorf("release %s: %w", l.lock.key, err)
	}
	return nil
}
