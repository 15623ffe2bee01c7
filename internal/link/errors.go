package link

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the daemon is running.
	ErrAlreadyRunning = errors.New("link: supervisor already running")

	// ErrLinkDown is returned by the operstate check when the interface is not up.
	ErrLinkDown = errors.New("link: interface not up")
)
