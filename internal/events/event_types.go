package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates the lifecycle events that feed the notification engine.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventTicketDelegated   EventType = "ticket_delegated"
	EventTicketWorkStarted EventType = "ticket_work_started"
	EventTicketResolved    EventType = "ticket_resolved"
	EventTicketValidated   EventType = "ticket_validated"
	EventTicketClosed      EventType = "ticket_closed"
)

// Event represents a lifecycle transition emitted after its ticket+history
// write committed. ActorID identifies the user who performed the transition.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketAssignedPayload payload. Notes carries optional instructions for the
// technician, rendered as the instructions block of the assignment email.
type TicketAssignedPayload struct {
	TechnicianID string  `json:"technician_id"`
	Notes        *string `json:"notes,omitempty"`
}

// TicketDelegatedPayload payload.
type TicketDelegatedPayload struct {
	AdjointID string  `json:"adjoint_id"`
	Notes     *string `json:"notes,omitempty"`
}

// TicketWorkStartedPayload payload.
type TicketWorkStartedPayload struct {
	TechnicianID string `json:"technician_id"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Summary string `json:"summary"`
}

// TicketValidatedPayload payload. Reason is set when the requester rejected
// the resolution.
type TicketValidatedPayload struct {
	Accepted bool    `json:"accepted"`
	Reason   *string `json:"reason,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct{}
