package store

import "errors"

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("store closed")
