package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/pkg/apperrors"
)

// StaffTicketsHandler manages the staff-facing ticket endpoints: listing the
// work queue and driving the assignment and resolution transitions.
type StaffTicketsHandler struct {
	service *service.LifecycleService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(lifecycle *service.LifecycleService) *StaffTicketsHandler {
	return &StaffTicketsHandler{service: lifecycle}
}

// ListTickets GET /staff/tickets. Technicians see their assignments, intake
// roles and admins see everything.
func (h *StaffTicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	statuses, limit, offset := parseTicketQuery(c)
	tickets, err := h.service.ListStaffTickets(c.Context(), user, statuses, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// AssignTicket POST /staff/tickets/:id/assign.
func (h *StaffTicketsHandler) AssignTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TechnicianID == "" {
		return apperrors.NewValidationError("technician_id required", nil)
	}
	ticket, err := h.service.AssignTicket(c.Context(), user, c.Params("id"), req.TechnicianID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// DelegateTicket POST /staff/tickets/:id/delegate.
func (h *StaffTicketsHandler) DelegateTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.DelegateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AdjointID == "" {
		return apperrors.NewValidationError("adjoint_id required", nil)
	}
	ticket, err := h.service.DelegateTicket(c.Context(), user, c.Params("id"), req.AdjointID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// StartWork POST /staff/tickets/:id/start.
func (h *StaffTicketsHandler) StartWork(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	ticket, err := h.service.StartWork(c.Context(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ResolveTicket POST /staff/tickets/:id/resolve.
func (h *StaffTicketsHandler) ResolveTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ResolveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ResolveTicket(c.Context(), user, c.Params("id"), req.Summary)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}
