package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusCreated    TicketStatus = "CREATED"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED_PENDING_VALIDATION"
	TicketStatusRejected   TicketStatus = "REJECTED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketType distinguishes hardware from software requests.
type TicketType string

const (
	TicketTypeMaterial    TicketType = "MATERIAL"
	TicketTypeApplication TicketType = "APPLICATION"
)

// Ticket is the aggregate for support requests. Number is a sequential
// human-readable identifier assigned by the database on insert.
//
// Invariants: AssignedAt is set iff TechnicianID is set; ResolvedAt and
// ClosedAt are written once and never cleared, so a rejected ticket keeps the
// timestamp of its first resolution.
type Ticket struct {
	ID                string
	Number            int64
	Title             string
	Description       string
	Type              TicketType
	Category          *string
	Priority          TicketPriority
	Status            TicketStatus
	CreatorID         string
	TechnicianID      *string
	AdjointID         *string
	ResolutionSummary *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	AssignedAt        *time.Time
	ResolvedAt        *time.Time
	ClosedAt          *time.Time
}
