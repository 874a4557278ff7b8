package entity

import (
	"encoding/json"
	"time"
)

type CacheMode string

const (
	CacheModeAct     CacheMode = "act"
	CacheModeExtract CacheMode = "extract"
)

// ActResolution is the replayable part of a grounded action: everything
// needed to go straight to locator resolution and execution.
type ActResolution struct {
	ElementID   int               `json:"elementId"`
	Description string            `json:"description"`
	Locator     string            `json:"locator"`
	Method      InteractionMethod `json:"method"`
	Arguments   []string          `json:"arguments"`
}

// CacheEntry memoizes one instruction resolution against one page structure.
// Entries never expire by time; a changed fingerprint simply never produces
// the same key again.
type CacheEntry struct {
	Key         string
	Fingerprint string
	Instruction string
	Mode        CacheMode
	Action      *ActResolution
	Result      json.RawMessage
	CreatedAt   time.Time
}
