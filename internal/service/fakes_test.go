package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// fakeTicketRepo is an in-memory TicketRepository with the same check-and-set
// behavior as the Postgres implementation.
type fakeTicketRepo struct {
	mu         sync.Mutex
	tickets    map[string]domain.Ticket
	histories  map[string][]domain.TicketHistory
	nextNumber int64
	nextSeq    int

	failCreate error
	failUpdate error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:   make(map[string]domain.Ticket),
		histories: make(map[string][]domain.TicketHistory),
	}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	r.nextNumber++
	r.nextSeq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.nextSeq)
	ticket.Number = r.nextNumber
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	r.appendHistory(ticket.ID, entry)
	return nil
}

func (r *fakeTicketRepo) UpdateTransition(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		err := r.failUpdate
		r.failUpdate = nil
		return err
	}
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStatusConflict
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = *ticket
	r.appendHistory(ticket.ID, entry)
	return nil
}

func (r *fakeTicketRepo) appendHistory(ticketID string, entry *domain.TicketHistory) {
	r.nextSeq++
	entry.ID = fmt.Sprintf("history-%d", r.nextSeq)
	entry.TicketID = ticketID
	entry.ChangedAt = time.Now()
	r.histories[ticketID] = append(r.histories[ticketID], *entry)
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := ticket
	return &copied, nil
}

func (r *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.TechnicianID != nil &&
			(ticket.TechnicianID == nil || *ticket.TechnicianID != *filter.TechnicianID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		result = append(result, ticket)
	}
	return result, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *fakeTicketRepo) historyFor(ticketID string) []domain.TicketHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TicketHistory{}, r.histories[ticketID]...)
}

type fakeHistoryRepo struct {
	tickets *fakeTicketRepo
}

func (r *fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return r.tickets.historyFor(ticketID), nil
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListActiveByRole(ctx context.Context, roles ...domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if !user.Active {
			continue
		}
		for _, role := range roles {
			if user.Role == role {
				result = append(result, user)
				break
			}
		}
	}
	return result, nil
}

// fakeNotificationRepo is an in-memory NotificationRepository.
type fakeNotificationRepo struct {
	mu      sync.Mutex
	rows    map[string]domain.Notification
	nextSeq int

	failCreateFor string // user ID whose Create calls fail
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{rows: make(map[string]domain.Notification)}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateFor != "" && notification.UserID == r.failCreateFor {
		return fmt.Errorf("insert failed for %s", notification.UserID)
	}
	r.nextSeq++
	notification.ID = fmt.Sprintf("notification-%d", r.nextSeq)
	notification.CreatedAt = time.Now()
	r.rows[notification.ID] = *notification
	return nil
}

func (r *fakeNotificationRepo) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	copied := row
	return &copied, nil
}

func (r *fakeNotificationRepo) ListByUser(ctx context.Context, userID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Notification
	for _, row := range r.rows {
		if row.UserID != userID {
			continue
		}
		if filter.UnreadOnly && row.Read {
			continue
		}
		result = append(result, row)
	}
	return result, nil
}

func (r *fakeNotificationRepo) UnreadCount(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, row := range r.rows {
		if row.UserID == userID && !row.Read {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID || row.Read {
		return 0, nil
	}
	now := time.Now()
	row.Read = true
	row.ReadAt = &now
	r.rows[id] = row
	return 1, nil
}

func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	now := time.Now()
	for id, row := range r.rows {
		if row.UserID != userID || row.Read {
			continue
		}
		row.Read = true
		row.ReadAt = &now
		r.rows[id] = row
		affected++
	}
	return affected, nil
}

func (r *fakeNotificationRepo) forUser(userID string) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Notification
	for _, row := range r.rows {
		if row.UserID == userID {
			result = append(result, row)
		}
	}
	return result
}

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *recordingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.events...)
}

// recordingTransport captures Send calls and answers with a fixed status.
type recordingTransport struct {
	mu     sync.Mutex
	sent   map[string][]notify.Message
	status notify.DeliveryStatus
}

func newRecordingTransport(status notify.DeliveryStatus) *recordingTransport {
	return &recordingTransport{sent: make(map[string][]notify.Message), status: status}
}

func (t *recordingTransport) Send(to []string, msg notify.Message) []notify.DeliveryResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	results := make([]notify.DeliveryResult, 0, len(to))
	for _, addr := range to {
		t.sent[addr] = append(t.sent[addr], msg)
		results = append(results, notify.DeliveryResult{Address: addr, Status: t.status})
	}
	return results
}

func (t *recordingTransport) messagesFor(addr string) []notify.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]notify.Message{}, t.sent[addr]...)
}
