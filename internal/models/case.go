package models

import "time"

// CaseStatus tracks the server-side lifecycle of a case. The client never
// writes the status, it only observes transitions through realtime events.
type CaseStatus string

const (
	CaseStatusInit       CaseStatus = "INIT"
	CaseStatusWorldReady CaseStatus = "WORLD_READY"
	CaseStatusCastReady  CaseStatus = "CAST_READY"
	CaseStatusInProgress CaseStatus = "IN_PROGRESS"
	CaseStatusDone       CaseStatus = "DONE"
)

// Case is one instance of the mystery scenario owned by a user.
// At most one case per owner should have IsActive set, enforced by
// the active-case selector's two-step update.
type Case struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      CaseStatus `json:"status"`
	IsActive    bool       `json:"is_active"`
	OwnerID     string     `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
}
