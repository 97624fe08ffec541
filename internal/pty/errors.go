package pty

import "errors"

// Sentinel errors for the pty package.
var (
	// ErrPTYOpen is returned when the master/slave pair cannot be allocated.
	ErrPTYOpen = errors.New("pty: cannot open pseudo-terminal")

	// ErrSpawn is returned when the child process cannot be forked.
	ErrSpawn = errors.New("pty: cannot spawn child")

	// ErrControllingTTY is returned when the slave cannot become the child's
	// controlling terminal.
	ErrControllingTTY = errors.New("pty: cannot set controlling terminal")

	// ErrExec is returned when the child image cannot be replaced by the
	// configured command. The child has already exited when this is seen.
	ErrExec = errors.New("pty: cannot exec command")

	// ErrAlreadyStarted is returned by a second Spawn.
	ErrAlreadyStarted = errors.New("pty: session already started")

	// ErrSessionClosed is returned by operations on a shut down session.
	ErrSessionClosed = errors.New("pty: session is closed")
)
