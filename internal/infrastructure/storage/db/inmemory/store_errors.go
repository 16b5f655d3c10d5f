package inmemory

import "errors"

// ErrStoreClosed ...
var ErrStoreClosed = errors.New("store is closed")
