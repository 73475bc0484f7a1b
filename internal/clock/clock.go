// Package clock abstracts wall-clock access so the scheduler's periodic
// loops can be driven deterministically under test.
package clock

import "time"

// Clock returns the current time. Production code uses Real; tests use
// a Fake that can be advanced explicitly.
type Clock interface {
	Now() time.Time
}

// Real is the system wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// New returns the system clock.
func New() Clock { return Real{} }
