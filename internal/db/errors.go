package db

import "errors"

// ErrKeyNotFound signals a missing key.
var ErrKeyNotFound = errors.New("db: key not found")

// Op constants map to Redis command names for error context.
const (
	OpDel       = "DEL"
	OpHGetAll   = "HGETALL"
	OpHSet      = "HSET"
	OpExists    = "EXISTS"
	OpScan      = "SCAN"
	OpGet       = "GET"
	OpSet       = "SET"
	OpIncrBy    = "INCRBY"
	OpExpire    = "EXPIRE"
	OpTTL       = "TTL"
	OpPublish   = "PUBLISH"
	OpSubscribe = "SUBSCRIBE"
	OpZAdd      = "ZADD"
	OpZRem      = "ZREM"
	OpZRemRange = "ZREMRANGEBYSCORE"
	OpZCard     = "ZCARD"
	OpZRange    = "ZRANGE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
