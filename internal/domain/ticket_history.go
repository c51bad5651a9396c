package domain

import "time"

// TicketHistory is an immutable audit trail entry for a status transition.
// OldStatus is nil only for the entry recorded at ticket creation; for every
// later entry it equals the NewStatus of the previous entry. A delegation
// appends an entry whose OldStatus equals its NewStatus.
type TicketHistory struct {
	ID        string
	TicketID  string
	OldStatus *TicketStatus
	NewStatus TicketStatus
	ActorID   string
	Reason    *string
	ChangedAt time.Time
}
