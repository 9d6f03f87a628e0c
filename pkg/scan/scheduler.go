package scan

import (
	"runtime"
	"time"
)

// Scheduler is the loop's single suspension point. Wait blocks until the
// next frame slot and returns false if stop was closed first.
type Scheduler interface {
	Wait(stop <-chan struct{}) bool
}

// FrameClock paces the loop at a fixed frame rate.
type FrameClock struct {
	interval time.Duration
}

// NewFrameClock returns a clock firing fps times per second.
func NewFrameClock(fps int) *FrameClock {
	if fps <= 0 {
		fps = 30
	}
	return &FrameClock{interval: time.Second / time.Duration(fps)}
}

// Wait implements Scheduler.
func (c *FrameClock) Wait(stop <-chan struct{}) bool {
	t := time.NewTimer(c.interval)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

// Immediate yields to other goroutines and returns straight away.
type Immediate struct{}

// Wait implements Scheduler.
func (Immediate) Wait(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	default:
	}
	runtime.Gosched()
	return true
}
