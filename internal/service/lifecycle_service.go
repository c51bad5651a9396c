package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/apperrors"
)

// LifecycleService owns the ticket status state machine. Every operation
// validates the (status, role) pair, commits the ticket row together with its
// history entry, and then publishes one lifecycle event. Events fire after
// commit: whatever the notification pipeline does with them can neither roll
// back nor block the ticket write.
type LifecycleService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Type        domain.TicketType
	Category    *string
	Priority    domain.TicketPriority
}

// Event names used in InvalidTransition errors.
const (
	eventAssign    = "assign"
	eventDelegate  = "delegate"
	eventStartWork = "start_work"
	eventResolve   = "resolve"
	eventValidate  = "validate"
	eventClose     = "close"
)

// CreateTicket creates a ticket in status CREATED and notifies the intake
// staff and the creator.
func (s *LifecycleService) CreateTicket(ctx context.Context, creator *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if creator == nil || !creator.Active {
		return nil, apperrors.NewUnauthorized("active user required")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Type:        input.Type,
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      domain.TicketStatusCreated,
		CreatorID:   creator.ID,
	}
	if ticket.Type == "" {
		ticket.Type = domain.TicketTypeMaterial
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if !validTicketType(ticket.Type) {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": string(ticket.Type)})
	}
	if !validTicketPriority(ticket.Priority) {
		return nil, apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": string(ticket.Priority)})
	}

	entry := &domain.TicketHistory{
		OldStatus: nil,
		NewStatus: domain.TicketStatusCreated,
		ActorID:   creator.ID,
	}
	if err := s.tickets.Create(ctx, ticket, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  creator.ID,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// AssignTicket assigns (or re-assigns) a ticket to a technician. Legal from
// CREATED, ASSIGNED and REJECTED; only intake roles may assign.
func (s *LifecycleService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, technicianID string, notes *string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !roleIn(actor.Role, domain.RoleDSI, domain.RoleSecretaryDSI, domain.RoleAdjointDSI, domain.RoleAdmin) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventAssign)
	}
	if !statusIn(ticket.Status, domain.TicketStatusCreated, domain.TicketStatusAssigned, domain.TicketStatusRejected) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventAssign)
	}

	technician, err := s.getActiveUser(ctx, technicianID, domain.RoleTechnician, "technician")
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	now := time.Now()
	ticket.Status = domain.TicketStatusAssigned
	ticket.TechnicianID = &technician.ID
	ticket.AssignedAt = &now

	entry := &domain.TicketHistory{
		OldStatus: &oldStatus,
		NewStatus: ticket.Status,
		ActorID:   actor.ID,
		Reason:    notes,
	}
	if err := s.applyTransition(ctx, ticket, oldStatus, entry, eventAssign); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketAssignedPayload{
			TechnicianID: technician.ID,
			Notes:        notes,
		},
	})
	return ticket, nil
}

// DelegateTicket hands assignment authority for a CREATED ticket to an
// adjoint. The status does not change: delegation is ownership metadata, and
// the history records an entry whose old and new status are equal.
func (s *LifecycleService) DelegateTicket(ctx context.Context, actor *domain.User, ticketID, adjointID string, notes *string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleDSI || ticket.Status != domain.TicketStatusCreated {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventDelegate)
	}

	adjoint, err := s.getActiveUser(ctx, adjointID, domain.RoleAdjointDSI, "adjoint")
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	ticket.AdjointID = &adjoint.ID

	reason := "delegated to " + adjoint.Name
	if notes != nil && strings.TrimSpace(*notes) != "" {
		reason = *notes
	}
	entry := &domain.TicketHistory{
		OldStatus: &oldStatus,
		NewStatus: ticket.Status,
		ActorID:   actor.ID,
		Reason:    &reason,
	}
	if err := s.applyTransition(ctx, ticket, oldStatus, entry, eventDelegate); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDelegated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketDelegatedPayload{
			AdjointID: adjoint.ID,
			Notes:     notes,
		},
	})
	return ticket, nil
}

// StartWork moves an ASSIGNED or REJECTED ticket to IN_PROGRESS. Only the
// assigned technician may start (or resume) work.
func (s *LifecycleService) StartWork(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireAssignedTechnician(actor, ticket, eventStartWork); err != nil {
		return nil, err
	}
	if !statusIn(ticket.Status, domain.TicketStatusAssigned, domain.TicketStatusRejected) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventStartWork)
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusInProgress

	entry := &domain.TicketHistory{
		OldStatus: &oldStatus,
		NewStatus: ticket.Status,
		ActorID:   actor.ID,
	}
	if err := s.applyTransition(ctx, ticket, oldStatus, entry, eventStartWork); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketWorkStarted,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketWorkStartedPayload{TechnicianID: actor.ID},
	})
	return ticket, nil
}

// ResolveTicket marks an IN_PROGRESS ticket as resolved, pending the
// requester's validation. Only the assigned technician resolves.
func (s *LifecycleService) ResolveTicket(ctx context.Context, actor *domain.User, ticketID, summary string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireAssignedTechnician(actor, ticket, eventResolve); err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusInProgress {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventResolve)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, apperrors.NewValidationError("resolution summary required", nil)
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusResolved
	ticket.ResolutionSummary = &summary
	if ticket.ResolvedAt == nil {
		now := time.Now()
		ticket.ResolvedAt = &now
	}

	entry := &domain.TicketHistory{
		OldStatus: &oldStatus,
		NewStatus: ticket.Status,
		ActorID:   actor.ID,
		Reason:    &summary,
	}
	if err := s.applyTransition(ctx, ticket, oldStatus, entry, eventResolve); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketResolvedPayload{Summary: summary},
	})
	return ticket, nil
}

// ValidateTicket records the requester's verdict on a resolved ticket:
// acceptance closes it, rejection reopens it as REJECTED and requires a
// reason. Only the ticket's creator validates.
func (s *LifecycleService) ValidateTicket(ctx context.Context, actor *domain.User, ticketID string, accepted bool, reason *string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.ID != ticket.CreatorID {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventValidate)
	}
	if ticket.Status != domain.TicketStatusResolved {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventValidate)
	}
	if !accepted && (reason == nil || strings.TrimSpace(*reason) == "") {
		return nil, apperrors.NewValidationRequiresReason()
	}

	oldStatus := ticket.Status
	if accepted {
		ticket.Status = domain.TicketStatusClosed
		if ticket.ClosedAt == nil {
			now := time.Now()
			ticket.ClosedAt = &now
		}
	} else {
		ticket.Status = domain.TicketStatusRejected
	}

	entry := &domain.TicketHistory{
		OldStatus: &oldStatus,
		NewStatus: ticket.Status,
		ActorID:   actor.ID,
		Reason:    reason,
	}
	if err := s.applyTransition(ctx, ticket, oldStatus, entry, eventValidate); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketValidated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketValidatedPayload{
			Accepted: accepted,
			Reason:   reason,
		},
	})
	return ticket, nil
}

// CloseTicket closes a resolved ticket without an explicit validation verdict.
// Allowed to the ticket's creator and to admins.
func (s *LifecycleService) CloseTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if actor == nil || (actor.ID != ticket.CreatorID && actor.Role != domain.RoleAdmin) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventClose)
	}
	if ticket.Status != domain.TicketStatusResolved {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), eventClose)
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusClosed
	if ticket.ClosedAt == nil {
		now := time.Now()
		ticket.ClosedAt = &now
	}

	entry := &domain.TicketHistory{
		OldStatus: &oldStatus,
		NewStatus: ticket.Status,
		ActorID:   actor.ID,
	}
	if err := s.applyTransition(ctx, ticket, oldStatus, entry, eventClose); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketClosedPayload{},
	})
	return ticket, nil
}

// GetTicket fetches a ticket, enforcing visibility: requesters only see
// tickets they created, technicians only tickets assigned to them. Foreign
// tickets read as NotFound, never as a partial view.
func (s *LifecycleService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// ListOwnTickets returns the actor's created tickets.
func (s *LifecycleService) ListOwnTickets(ctx context.Context, actor *domain.User, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	filter := repository.TicketFilter{
		CreatorID: &actor.ID,
		Statuses:  statuses,
		Limit:     limit,
		Offset:    offset,
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListStaffTickets returns tickets visible to staff. Technicians are scoped
// to their own assignments; intake roles and admins see everything.
func (s *LifecycleService) ListStaffTickets(ctx context.Context, actor *domain.User, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	filter := repository.TicketFilter{
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	}
	switch actor.Role {
	case domain.RoleTechnician:
		filter.TechnicianID = &actor.ID
	case domain.RoleDSI, domain.RoleSecretaryDSI, domain.RoleAdjointDSI, domain.RoleAdmin:
		// full visibility
	default:
		return nil, apperrors.NewForbidden("staff role required")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListHistory returns the audit trail for a ticket the actor can view.
func (s *LifecycleService) ListHistory(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *LifecycleService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *LifecycleService) getActiveUser(ctx context.Context, id string, role domain.Role, label string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(label, map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if !user.Active || user.Role != role {
		return nil, apperrors.NewNotFound(label, map[string]any{"user_id": id})
	}
	return user, nil
}

// applyTransition performs the atomic ticket+history write. A lost status
// race surfaces as InvalidTransition: the loser's observed status is stale
// and its transition is no longer legal.
func (s *LifecycleService) applyTransition(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.TicketHistory, event string) error {
	if err := s.tickets.UpdateTransition(ctx, ticket, expected, entry); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return apperrors.NewInvalidTransition(string(expected), event)
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validTicketType(t domain.TicketType) bool {
	return t == domain.TicketTypeMaterial || t == domain.TicketTypeApplication
}

func validTicketPriority(p domain.TicketPriority) bool {
	switch p {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium,
		domain.TicketPriorityHigh, domain.TicketPriorityUrgent:
		return true
	}
	return false
}

func roleIn(role domain.Role, candidates ...domain.Role) bool {
	for _, candidate := range candidates {
		if role == candidate {
			return true
		}
	}
	return false
}

func requireAssignedTechnician(actor *domain.User, ticket *domain.Ticket, event string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("user required")
	}
	if ticket.TechnicianID == nil || *ticket.TechnicianID != actor.ID {
		return apperrors.NewInvalidTransition(string(ticket.Status), event)
	}
	return nil
}

func statusIn(status domain.TicketStatus, candidates ...domain.TicketStatus) bool {
	for _, candidate := range candidates {
		if status == candidate {
			return true
		}
	}
	return false
}

func canView(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case domain.RoleDSI, domain.RoleSecretaryDSI, domain.RoleAdjointDSI, domain.RoleAdmin:
		return true
	case domain.RoleTechnician:
		return ticket.CreatorID == actor.ID ||
			(ticket.TechnicianID != nil && *ticket.TechnicianID == actor.ID)
	default:
		return ticket.CreatorID == actor.ID
	}
}
