package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ErrStatusConflict is returned when a transition's status check-and-set
// matches zero rows: another transition won the race and the caller must
// treat its own attempt as illegal for the ticket's (new) current state.
var ErrStatusConflict = errors.New("ticket status changed concurrently")

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CreatorID    *string
	TechnicianID *string
	Statuses     []domain.TicketStatus
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence. Create and
// UpdateTransition commit the ticket row and its history entry as a single
// transaction so the audit trail can never miss a transition.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error
	UpdateTransition(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.TicketHistory) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertTicket = `
        INSERT INTO tickets (title, description, type, category, priority, status, creator_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, number, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertTicket,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.CreatorID,
	).Scan(&ticket.ID, &ticket.Number, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	entry.TicketID = ticket.ID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) UpdateTransition(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.TicketHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const update = `
        UPDATE tickets SET status=$1, technician_id=$2, adjoint_id=$3, resolution_summary=$4,
            assigned_at=$5, resolved_at=$6, closed_at=$7, updated_at=NOW()
        WHERE id=$8 AND status=$9`
	cmd, err := tx.Exec(ctx, update,
		ticket.Status,
		ticket.TechnicianID,
		ticket.AdjointID,
		ticket.ResolutionSummary,
		ticket.AssignedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}

	entry.TicketID = ticket.ID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, old_status, new_status, actor_id, reason)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, changed_at`
	return tx.QueryRow(ctx, query,
		entry.TicketID,
		entry.OldStatus,
		entry.NewStatus,
		entry.ActorID,
		entry.Reason,
	).Scan(&entry.ID, &entry.ChangedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, number, title, description, type, category, priority, status,
               creator_id, technician_id, adjoint_id, resolution_summary,
               created_at, updated_at, assigned_at, resolved_at, closed_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.Type,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatorID,
		&ticket.TechnicianID,
		&ticket.AdjointID,
		&ticket.ResolutionSummary,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AssignedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, number, title, description, type, category, priority, status,
                    creator_id, technician_id, adjoint_id, resolution_summary,
                    created_at, updated_at, assigned_at, resolved_at, closed_at
             FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Number,
			&ticket.Title,
			&ticket.Description,
			&ticket.Type,
			&ticket.Category,
			&ticket.Priority,
			&ticket.Status,
			&ticket.CreatorID,
			&ticket.TechnicianID,
			&ticket.AdjointID,
			&ticket.ResolutionSummary,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.AssignedAt,
			&ticket.ResolvedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
