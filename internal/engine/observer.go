package engine

import (
	"time"

	"github.com/memvra/dejavu/internal/codec"
	"github.com/memvra/dejavu/internal/pack"
	"github.com/memvra/dejavu/internal/response"
)

// EvictReason says why a unit left the cache.
type EvictReason string

const (
	// EvictExpired means Vacuum found the unit older than the window.
	EvictExpired EvictReason = "expired"
	// EvictDisplaced means the LRU cache was full.
	EvictDisplaced EvictReason = "displaced"
)

// ResponseEvent is emitted for every message added.
type ResponseEvent struct {
	Query     string
	SessionID string
	Response  response.Response
	At        time.Time
}

// RotateEvent is emitted when the open unit is closed and cached.
type RotateEvent struct {
	Unit   pack.Summary
	Result codec.Result
	At     time.Time
}

// EvictEvent is emitted when a unit leaves the cache.
type EvictEvent struct {
	Unit   pack.Summary
	Reason EvictReason
	At     time.Time
}

// Observer receives engine events after the state change they describe.
// Errors are logged and otherwise ignored.
type Observer interface {
	OnResponse(ev ResponseEvent) error
	OnRotate(ev RotateEvent) error
	OnEvict(ev EvictEvent) error
}
