// Package time provides a mockable source of the current time.
package time

import (
	"sync"
	"time"
)

// Clock retrieves the current time.
type Clock interface {
	Now() time.Time
}

// Time is the Clock backed by the system clock.
type Time struct{}

// Now wraps time.Now.
func (t Time) Now() time.Time {
	return time.Now()
}

// NewMock initializes a new Mock instance.
func NewMock(now time.Time) *Mock {
	return &Mock{mutex: new(sync.RWMutex), now: now}
}

// Mock is a Clock that only moves when told to.
type Mock struct {
	mutex *sync.RWMutex
	now   time.Time
}

// Now retrieves the mocked time.
func (m *Mock) Now() time.Time {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.now
}

// Advance moves the mocked time forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mutex.Lock()
	m.now = m.now.Add(d)
	m.mutex.Unlock()
}
