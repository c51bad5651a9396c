package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/apperrors"
)

// NotificationService is the fan-out side of the lifecycle: it subscribes to
// ticket events, resolves recipients, records in-app notifications and ships
// best-effort emails. It also serves the in-app notification query surface.
//
// Every step after event receipt is best effort: a failure for one recipient
// or one channel is logged and never affects the others, and nothing ever
// propagates back to the ticket operation that raised the event.
type NotificationService struct {
	notifications repository.NotificationRepository
	tickets       repository.TicketRepository
	users         repository.UserRepository
	mailer        notify.Transport
	metrics       *observability.Metrics
	logger        *zap.Logger
	cache         *redis.Client
	cfg           config.NotificationConfig
	sender        string

	wg sync.WaitGroup
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	TicketRepo       repository.TicketRepository
	UserRepo         repository.UserRepository
	Mailer           notify.Transport
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Cache            *redis.Client
	Config           config.NotificationConfig
	SenderName       string
}

// NewNotificationService constructs the service. Cache may be nil, in which
// case unread counts always hit the database.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		tickets:       deps.TicketRepo,
		users:         deps.UserRepo,
		mailer:        deps.Mailer,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		cache:         deps.Cache,
		cfg:           deps.Config,
		sender:        deps.SenderName,
	}
}

// RegisterHandlers subscribes the pipeline to every lifecycle event that
// routes to at least one recipient. Work-started transitions notify nobody.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketDelegated,
		events.EventTicketResolved,
		events.EventTicketValidated,
		events.EventTicketClosed,
	} {
		dispatcher.Subscribe(eventType, s.HandleEvent)
	}
}

// HandleEvent runs the full pipeline for one lifecycle event: reload the
// ticket, build the user directory, resolve recipients, record the in-app
// rows synchronously and fan the emails out on a detached goroutine.
func (s *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	ticket, err := s.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		s.logger.Error("notification pipeline: ticket load failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event", string(event.Type)),
			zap.Error(err))
		return err
	}

	dir := s.loadDirectory(ctx, event, ticket)
	recipients := notify.Resolve(event.Type, event.Payload, ticket, dir)
	if len(recipients) == 0 {
		return nil
	}

	rejected := false
	if p, ok := event.Payload.(events.TicketValidatedPayload); ok {
		rejected = !p.Accepted
	}
	facts := ticketFacts(ticket, dir, event)

	type envelope struct {
		address string
		message notify.Message
	}
	var outbox []envelope

	for _, recipient := range recipients {
		message, err := notify.Render(notify.Input{
			Event:     event.Type,
			Role:      recipient.User.Role,
			Recipient: recipient.User.Name,
			Actions:   recipient.Actions,
			Ticket:    facts,
			Rejected:  rejected,
			BaseURL:   s.cfg.BaseURL,
			Sender:    s.sender,
		})
		if err != nil {
			s.logger.Error("notification pipeline: render failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("user_id", recipient.User.ID),
				zap.Error(err))
			continue
		}

		record := &domain.Notification{
			UserID:   recipient.User.ID,
			Type:     notificationTypeFor(event.Type, rejected),
			TicketID: &ticket.ID,
			Message:  message.Subject,
		}
		if err := s.notifications.Create(ctx, record); err != nil {
			s.logger.Error("notification pipeline: in-app record failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("user_id", recipient.User.ID),
				zap.Error(err))
		} else {
			s.invalidateUnreadCount(ctx, recipient.User.ID)
		}

		outbox = append(outbox, envelope{address: recipient.User.Email, message: message})
	}

	if s.mailer == nil || len(outbox) == 0 {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, item := range outbox {
			for _, result := range s.mailer.Send([]string{item.address}, item.message) {
				s.metrics.RecordDelivery(string(event.Type), string(result.Status))
			}
		}
	}()
	return nil
}

// Flush waits for in-flight email fan-out goroutines. Called on shutdown.
func (s *NotificationService) Flush() {
	s.wg.Wait()
}

// ListForUser returns the caller's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	list, err := s.notifications.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// UnreadCount returns the caller's unread notification count, served from the
// Redis cache when fresh.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, unreadCountKey(userID)).Result(); err == nil {
			if count, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				return count, nil
			}
		}
	}

	count, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, unreadCountKey(userID),
			strconv.FormatInt(count, 10), s.cfg.UnreadCacheTTL()).Err(); err != nil {
			s.logger.Warn("unread count cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return count, nil
}

// MarkRead marks one of the caller's notifications as read. Marking an
// already-read notification is a no-op that returns the current state;
// another user's notification reads as NotFound.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	affected, err := s.notifications.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if affected > 0 {
		s.invalidateUnreadCount(ctx, userID)
	}

	notification, err := s.notifications.GetByIDForUser(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return nil, apperrors.MapError(err)
	}
	return notification, nil
}

// MarkAllRead marks all of the caller's unread notifications as read and
// returns how many rows changed. Idempotent: a second call reports zero.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	affected, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if affected > 0 {
		s.invalidateUnreadCount(ctx, userID)
	}
	return affected, nil
}

// loadDirectory fetches the users an event can route to. A missing or
// unloadable user simply leaves its slot nil; resolution skips empty slots.
func (s *NotificationService) loadDirectory(ctx context.Context, event events.Event, ticket *domain.Ticket) notify.Directory {
	var dir notify.Directory

	dir.Creator = s.loadUser(ctx, ticket.CreatorID)
	if ticket.TechnicianID != nil {
		dir.Technician = s.loadUser(ctx, *ticket.TechnicianID)
	}
	if ticket.AdjointID != nil {
		dir.Adjoint = s.loadUser(ctx, *ticket.AdjointID)
	}

	if event.Type == events.EventTicketCreated {
		staff, err := s.users.ListActiveByRole(ctx,
			domain.RoleDSI, domain.RoleSecretaryDSI, domain.RoleAdjointDSI)
		if err != nil {
			s.logger.Error("notification pipeline: staff listing failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
		dir.Staff = staff
	}
	return dir
}

func (s *NotificationService) loadUser(ctx context.Context, id string) *domain.User {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("notification pipeline: user load failed",
				zap.String("user_id", id), zap.Error(err))
		}
		return nil
	}
	return user
}

func (s *NotificationService) invalidateUnreadCount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadCountKey(userID)).Err(); err != nil {
		s.logger.Warn("unread count cache invalidation failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

func unreadCountKey(userID string) string {
	return "notifications:unread:" + userID
}

func ticketFacts(ticket *domain.Ticket, dir notify.Directory, event events.Event) notify.TicketFacts {
	facts := notify.TicketFacts{
		ID:       ticket.ID,
		Number:   ticket.Number,
		Title:    ticket.Title,
		Priority: string(ticket.Priority),
	}
	if dir.Creator != nil {
		facts.Creator = dir.Creator.Name
	}
	if dir.Technician != nil {
		facts.Technician = dir.Technician.Name
	}
	if ticket.ResolutionSummary != nil {
		facts.Summary = *ticket.ResolutionSummary
	}

	switch p := event.Payload.(type) {
	case events.TicketAssignedPayload:
		if p.Notes != nil {
			facts.Notes = *p.Notes
		}
	case events.TicketDelegatedPayload:
		if p.Notes != nil {
			facts.Notes = *p.Notes
		}
	case events.TicketValidatedPayload:
		if !p.Accepted && p.Reason != nil {
			facts.RejectionReason = *p.Reason
		}
	}
	return facts
}

func notificationTypeFor(eventType events.EventType, rejected bool) domain.NotificationType {
	switch eventType {
	case events.EventTicketCreated:
		return domain.NotificationTicketCreated
	case events.EventTicketAssigned:
		return domain.NotificationTicketAssigned
	case events.EventTicketDelegated:
		return domain.NotificationTicketDelegated
	case events.EventTicketResolved:
		return domain.NotificationTicketResolved
	case events.EventTicketValidated:
		if rejected {
			return domain.NotificationTicketRejected
		}
		return domain.NotificationTicketClosed
	case events.EventTicketClosed:
		return domain.NotificationTicketClosed
	}
	return domain.NotificationTicketCreated
}
