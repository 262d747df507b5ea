package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotConnected = errors.New("exchange not connected")
	ErrUnresolvable = errors.New("blockchain unresolvable")
)
