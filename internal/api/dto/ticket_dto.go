package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Type        domain.TicketType     `json:"type"`
	Category    *string               `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	TechnicianID string  `json:"technician_id"`
	Notes        *string `json:"notes"`
}

// DelegateTicketRequest payload.
type DelegateTicketRequest struct {
	AdjointID string  `json:"adjoint_id"`
	Notes     *string `json:"notes"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	Summary string `json:"summary"`
}

// ValidateTicketRequest payload. Reason is required when Accepted is false.
type ValidateTicketRequest struct {
	Accepted bool    `json:"accepted"`
	Reason   *string `json:"reason"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	Number       int64                 `json:"number"`
	Title        string                `json:"title"`
	Type         domain.TicketType     `json:"type"`
	Category     *string               `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	CreatorID    string                `json:"creator_id"`
	TechnicianID *string               `json:"technician_id"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID                string                  `json:"id"`
	Number            int64                   `json:"number"`
	Title             string                  `json:"title"`
	Description       string                  `json:"description"`
	Type              domain.TicketType       `json:"type"`
	Category          *string                 `json:"category"`
	Priority          domain.TicketPriority   `json:"priority"`
	Status            domain.TicketStatus     `json:"status"`
	CreatorID         string                  `json:"creator_id"`
	TechnicianID      *string                 `json:"technician_id"`
	AdjointID         *string                 `json:"adjoint_id"`
	ResolutionSummary *string                 `json:"resolution_summary"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	AssignedAt        *time.Time              `json:"assigned_at"`
	ResolvedAt        *time.Time              `json:"resolved_at"`
	ClosedAt          *time.Time              `json:"closed_at"`
	History           []TicketHistoryResponse `json:"history"`
}

// TicketHistoryResponse represents one audit trail entry.
type TicketHistoryResponse struct {
	ID        string               `json:"id"`
	OldStatus *domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus  `json:"new_status"`
	ActorID   string               `json:"actor_id"`
	Reason    *string              `json:"reason"`
	ChangedAt time.Time            `json:"changed_at"`
}
