package server

import "errors"

// ErrShutdownTimeout is returned by Stop when active connections have not
// drained within Config.ShutdownTimeout.
var ErrShutdownTimeout = errors.New("server: shutdown timeout exceeded")

// ErrAlreadyStarted is returned by Start if called more than once.
var ErrAlreadyStarted = errors.New("server: already started")
