package checkin

import (
	"context"
	"sync"
	"time"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

const (
	DefaultSuppressionWindow = 3 * time.Second
	DefaultLockTimeout       = 4 * time.Second
	DefaultLockIdleTTL       = 60 * time.Second
)

type CoordinatorOptions struct {
	// SuppressionWindow of zero disables the decision cache.
	SuppressionWindow time.Duration
	LockTimeout       time.Duration
	LockIdleTTL       time.Duration
}

type codeLock struct {
	// sem is a one slot semaphore; blocked senders are served in arrival order.
	sem      chan struct{}
	refs     int
	lastUsed time.Time
}

// ScanCoordinator owns the per-code lock table and the recent decision
// cache. One instance is shared by every request in the process.
type ScanCoordinator struct {
	cache       DecisionCache
	window      time.Duration
	lockTimeout time.Duration
	idleTTL     time.Duration
	logger      *logger.Logger
	now         func() time.Time

	mu        sync.Mutex
	locks     map[string]*codeLock
	lastSweep time.Time
}

func NewScanCoordinator(cache DecisionCache, opts CoordinatorOptions, log *logger.Logger) *ScanCoordinator {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.LockIdleTTL <= 0 {
		opts.LockIdleTTL = DefaultLockIdleTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ScanCoordinator{
		cache:       cache,
		window:      opts.SuppressionWindow,
		lockTimeout: opts.LockTimeout,
		idleTTL:     opts.LockIdleTTL,
		logger:      log,
		now:         time.Now,
		locks:       make(map[string]*codeLock),
		lastSweep:   time.Now(),
	}
}

// WithExclusive runs fn while holding the lock for code. Distinct codes never
// contend. The lock is released on every exit path, panics included.
// ErrLockTimeout is returned when the lock is not acquired within the
// configured timeout; fn is not run in that case.
func (c *ScanCoordinator) WithExclusive(ctx context.Context, code string, fn func(ctx context.Context) error) error {
	l := c.acquireEntry(code)
	defer c.releaseEntry(l)

	timer := time.NewTimer(c.lockTimeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	return fn(ctx)
}

func (c *ScanCoordinator) acquireEntry(code string) *codeLock {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.idleTTL/2 {
		c.sweepLocked(now)
		c.lastSweep = now
	}

	l, ok := c.locks[code]
	if !ok {
		l = &codeLock{sem: make(chan struct{}, 1)}
		c.locks[code] = l
	}
	l.refs++
	return l
}

func (c *ScanCoordinator) releaseEntry(l *codeLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	l.lastUsed = c.now()
}

// sweepLocked drops locks nobody holds or waits on that have been idle for
// the idle TTL. c.mu must be held.
func (c *ScanCoordinator) sweepLocked(now time.Time) {
	for code, l := range c.locks {
		if l.refs == 0 && now.Sub(l.lastUsed) >= c.idleTTL {
			delete(c.locks, code)
		}
	}
}

// LockCount reports how many per-code locks are currently tracked.
func (c *ScanCoordinator) LockCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

// Recall returns a cached decision still inside the suppression window.
func (c *ScanCoordinator) Recall(ctx context.Context, key string, now time.Time) (models.Decision, bool) {
	if c.cache == nil || c.window <= 0 {
		return models.Decision{}, false
	}
	d, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warnf("CHECKIN", "Decision cache read failed for %s: %v", key, err)
		return models.Decision{}, false
	}
	if !ok || now.Sub(d.Metadata.ScannedAt) > c.window {
		return models.Decision{}, false
	}
	return d, true
}

func (c *ScanCoordinator) Remember(ctx context.Context, key string, d models.Decision) {
	if c.cache == nil || c.window <= 0 {
		return
	}
	if err := c.cache.Put(ctx, key, d, c.window); err != nil {
		c.logger.Warnf("CHECKIN", "Decision cache write failed for %s: %v", key, err)
	}
}

// Forget drops cached decisions for the given codes of an event.
func (c *ScanCoordinator) Forget(ctx context.Context, eventID int64, codes ...string) error {
	if c.cache == nil || len(codes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, CacheKey(eventID, code))
	}
	return c.cache.Delete(ctx, keys...)
}
