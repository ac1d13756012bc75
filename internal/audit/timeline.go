// Package audit reads the audit trail written by shared.AuditLogger.
package audit

import "time"

// TimelineFilters narrows the audit timeline. Zero values are ignored.
type TimelineFilters struct {
	DioceseID  string
	Resource   string
	ResourceID string
	ActorID    string
	Action     string
	From       time.Time
	To         time.Time
	Limit      int
}

// Entry is one stored audit record.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    string         `json:"actorId"`
	ActorEmail *string        `json:"actorEmail"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId"`
	DioceseID  *string        `json:"dioceseId"`
	Meta       map[string]any `json:"meta,omitempty"`
	At         time.Time      `json:"at"`
}

// Result is a page of the timeline, newest first.
type Result struct {
	Rows    []Entry
	HasMore bool
}
