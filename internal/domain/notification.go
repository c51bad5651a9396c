package domain

import "time"

// NotificationType tags the lifecycle event a notification was produced for.
type NotificationType string

const (
	NotificationTicketCreated   NotificationType = "TICKET_CREATED"
	NotificationTicketAssigned  NotificationType = "TICKET_ASSIGNED"
	NotificationTicketDelegated NotificationType = "TICKET_DELEGATED"
	NotificationTicketResolved  NotificationType = "TICKET_RESOLVED"
	NotificationTicketRejected  NotificationType = "TICKET_REJECTED"
	NotificationTicketClosed    NotificationType = "TICKET_CLOSED"
)

// Notification is the persisted in-app record of a delivered event. One row
// exists per recipient per event, independent of email delivery outcome.
// ReadAt is set iff Read is true; once read, a notification never reverts.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	TicketID  *string
	Message   string
	Read      bool
	CreatedAt time.Time
	ReadAt    *time.Time
}
