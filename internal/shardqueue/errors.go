package shardqueue

import "errors"

// ErrExecutorClosed is returned by Do after Stop.
var ErrExecutorClosed = errors.New("shardqueue: executor closed")
