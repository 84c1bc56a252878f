// Package system provides the wall-clock implementation of crawl.Clock.
package system

import "time"

// Clock reads the real time. All timestamps are normalized to UTC so that
// crawl records and status files compare cleanly across hosts.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
