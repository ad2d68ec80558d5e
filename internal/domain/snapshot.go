package domain

import (
	"encoding/json"
	"time"
)

// ComparisonSnapshot is a frozen copy of a computed ranking. Rankings is the
// marshalled ordered list, stored and returned verbatim; it is never
// recomputed, even when the underlying review data changes later.
type ComparisonSnapshot struct {
	ID        string
	Name      string
	Rankings  json.RawMessage
	CreatedAt time.Time
}

// SnapshotInfo is the listing view: everything but the frozen payload.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
