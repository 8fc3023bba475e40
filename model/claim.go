package model

import (
	"time"
)

// Status is the human approval workflow state of a claim.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
	StatusClosed   Status = "closed"
)

// transitions lists the allowed outbound edges of the approval workflow.
// Closing is administrative and handled separately; paid and closed have
// no outbound edges.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusRejected: {StatusPending},
	StatusApproved: {StatusPaid},
}

// CanTransitionTo reports whether the workflow permits moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further workflow transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusClosed
}

// Valid reports whether s is a known workflow status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusClosed:
		return true
	}
	return false
}

// OCRState tracks receipt enrichment independently of the approval workflow.
type OCRState string

const (
	OCRStateNone   OCRState = ""
	OCRStateParsed OCRState = "parsed"
)

// Role is the authorization role resolved from an actor's email.
type Role string

const (
	RoleSubmitter Role = "submitter"
	RoleApprover  Role = "approver"
	RoleAdmin     Role = "admin"
)

// Identity is an authenticated actor as issued by the identity provider.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// ExtractedData holds the fields parsed from a receipt image. It is written
// only by the ingestion pipeline, always as a whole record.
type ExtractedData struct {
	Merchant string   `json:"merchant,omitempty"`
	Amount   *float64 `json:"amount,omitempty"`
	Date     string   `json:"date,omitempty"`
	RawText  string   `json:"raw_text"`
}

// Claim represents an expense claim moving through the approval workflow.
type Claim struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	OwnerEmail    string         `json:"owner_email"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Vendor        string         `json:"vendor,omitempty"`
	Amount        float64        `json:"amount"`
	OccurredOn    string         `json:"occurred_on,omitempty"` // date the expense was incurred, YYYY-MM-DD
	ReceiptRefs   []string       `json:"receipt_refs"`
	Status        Status         `json:"status"`
	OCRState      OCRState       `json:"ocr_state,omitempty"`
	ExtractedData *ExtractedData `json:"extracted_data,omitempty"`
	Comments      string         `json:"comments,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so store snapshots cannot be mutated by callers.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	cp := *c
	cp.ReceiptRefs = append([]string(nil), c.ReceiptRefs...)
	if c.ExtractedData != nil {
		ed := *c.ExtractedData
		if c.ExtractedData.Amount != nil {
			a := *c.ExtractedData.Amount
			ed.Amount = &a
		}
		cp.ExtractedData = &ed
	}
	return &cp
}
