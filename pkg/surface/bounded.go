package surface

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrQueryTimeout is returned by Bounded.Query when a single surface query
// exceeds its time limit.
var ErrQueryTimeout = errors.New("surface query timed out")

// Locked serializes every query to the wrapped surface behind a mutex.
type Locked struct {
	mu sync.Mutex
	s  Surface
}

// NewLocked wraps s so that at most one query runs at a time.
func NewLocked(s Surface) *Locked {
	return &Locked{s: s}
}

// Intersect implements Surface.
func (l *Locked) Intersect(origin, dir v3.Vec) (v3.Vec, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Intersect(origin, dir)
}

// ConcurrentSafe implements ConcurrentSafe.
func (l *Locked) ConcurrentSafe() bool { return true }

// queryResult passes an intersection through a channel.
type queryResult struct {
	point v3.Vec
	hit   bool
	err   error
}

// Bounded runs each query against a time limit so that one slow or
// degenerate ray cannot stall a batch. A zero Timeout disables the limit.
type Bounded struct {
	Surface Surface
	Timeout time.Duration
}

// Query intersects the ray with the surface. It returns ErrQueryTimeout
// when the query outlives the timeout, or the context's error when ctx is
// done first. A panic inside the surface comes back as an error.
//
// On timeout the query goroutine may still be running; its result is
// discarded when it eventually completes.
func (b Bounded) Query(ctx context.Context, origin, dir v3.Vec) (v3.Vec, bool, error) {
	if err := ctx.Err(); err != nil {
		return v3.Vec{}, false, err
	}
	if b.Timeout <= 0 {
		res := safeIntersect(b.Surface, origin, dir)
		return res.point, res.hit, res.err
	}

	ch := make(chan queryResult, 1)
	go func() {
		ch <- safeIntersect(b.Surface, origin, dir)
	}()

	timer := time.NewTimer(b.Timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.point, res.hit, res.err
	case <-timer.C:
		return v3.Vec{}, false, fmt.Errorf("%w after %s", ErrQueryTimeout, b.Timeout)
	case <-ctx.Done():
		return v3.Vec{}, false, ctx.Err()
	}
}

// safeIntersect turns a panic inside the surface into an error.
func safeIntersect(s Surface, origin, dir v3.Vec) (res queryResult) {
	defer func() {
		if r := recover(); r != nil {
			res = queryResult{err: fmt.Errorf("panic during surface query: %v", r)}
		}
	}()
	p, ok := s.Intersect(origin, dir)
	return queryResult{point: p, hit: ok}
}
