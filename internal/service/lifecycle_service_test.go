package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/apperrors"
)

type lifecycleFixture struct {
	service    *LifecycleService
	tickets    *fakeTicketRepo
	users      *fakeUserRepo
	dispatcher *recordingDispatcher

	requester  domain.User
	secretary  domain.User
	dsi        domain.User
	adjoint    domain.User
	technician domain.User
	admin      domain.User
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		requester:  domain.User{ID: "req-1", Name: "Rae", Email: "rae@example.com", Role: domain.RoleRequester, Active: true},
		secretary:  domain.User{ID: "sec-1", Name: "Sam", Email: "sam@example.com", Role: domain.RoleSecretaryDSI, Active: true},
		dsi:        domain.User{ID: "dsi-1", Name: "Dana", Email: "dana@example.com", Role: domain.RoleDSI, Active: true},
		adjoint:    domain.User{ID: "adj-1", Name: "Ari", Email: "ari@example.com", Role: domain.RoleAdjointDSI, Active: true},
		technician: domain.User{ID: "tech-1", Name: "Theo", Email: "theo@example.com", Role: domain.RoleTechnician, Active: true},
		admin:      domain.User{ID: "adm-1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin, Active: true},
	}
	f.tickets = newFakeTicketRepo()
	f.users = newFakeUserRepo(f.requester, f.secretary, f.dsi, f.adjoint, f.technician, f.admin)
	f.dispatcher = &recordingDispatcher{}
	f.service = NewLifecycleService(LifecycleDependencies{
		TicketRepo:  f.tickets,
		HistoryRepo: &fakeHistoryRepo{tickets: f.tickets},
		UserRepo:    f.users,
		Dispatcher:  f.dispatcher,
	})
	return f
}

func (f *lifecycleFixture) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.CreateTicket(context.Background(), &f.requester, TicketCreateInput{
		Title:       "Printer on fire",
		Description: "It is actually on fire.",
		Type:        domain.TicketTypeMaterial,
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	return ticket
}

func (f *lifecycleFixture) advanceTo(t *testing.T, status domain.TicketStatus) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	ticket := f.createTicket(t)
	if status == domain.TicketStatusCreated {
		return ticket
	}

	ticket, err := f.service.AssignTicket(ctx, &f.secretary, ticket.ID, f.technician.ID, nil)
	require.NoError(t, err)
	if status == domain.TicketStatusAssigned {
		return ticket
	}

	ticket, err = f.service.StartWork(ctx, &f.technician, ticket.ID)
	require.NoError(t, err)
	if status == domain.TicketStatusInProgress {
		return ticket
	}

	ticket, err = f.service.ResolveTicket(ctx, &f.technician, ticket.ID, "replaced fuser")
	require.NoError(t, err)
	if status == domain.TicketStatusResolved {
		return ticket
	}

	switch status {
	case domain.TicketStatusRejected:
		reason := "still broken"
		ticket, err = f.service.ValidateTicket(ctx, &f.requester, ticket.ID, false, &reason)
	case domain.TicketStatusClosed:
		ticket, err = f.service.ValidateTicket(ctx, &f.requester, ticket.ID, true, nil)
	default:
		t.Fatalf("unsupported target status %s", status)
	}
	require.NoError(t, err)
	return ticket
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return apperrors.ToDomainError(err).Code
}

func TestCreateTicketStartsInCreated(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.createTicket(t)

	assert.Equal(t, domain.TicketStatusCreated, ticket.Status)
	assert.Equal(t, int64(1), ticket.Number)
	assert.Equal(t, f.requester.ID, ticket.CreatorID)
	assert.Nil(t, ticket.TechnicianID)

	history := f.tickets.historyFor(ticket.ID)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].OldStatus)
	assert.Equal(t, domain.TicketStatusCreated, history[0].NewStatus)

	published := f.dispatcher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTicketCreated, published[0].Type)
	assert.NotEmpty(t, published[0].ID)
	assert.False(t, published[0].Timestamp.IsZero())
}

func TestCreateTicketRequiresTitleAndDescription(t *testing.T) {
	f := newLifecycleFixture()
	_, err := f.service.CreateTicket(context.Background(), &f.requester, TicketCreateInput{Title: "  "})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))
	assert.Empty(t, f.dispatcher.published())
}

func TestCreateTicketRejectsUnknownEnums(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	_, err := f.service.CreateTicket(ctx, &f.requester, TicketCreateInput{
		Title: "t", Description: "d", Type: "FURNITURE",
	})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))

	_, err = f.service.CreateTicket(ctx, &f.requester, TicketCreateInput{
		Title: "t", Description: "d", Priority: "WHENEVER",
	})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))
}

func TestAssignTicketSetsTechnicianAndTimestamp(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.createTicket(t)
	notes := "bring a ladder"

	assigned, err := f.service.AssignTicket(context.Background(), &f.secretary, ticket.ID, f.technician.ID, &notes)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusAssigned, assigned.Status)
	require.NotNil(t, assigned.TechnicianID)
	assert.Equal(t, f.technician.ID, *assigned.TechnicianID)
	assert.NotNil(t, assigned.AssignedAt)

	published := f.dispatcher.published()
	require.Len(t, published, 2)
	payload, ok := published[1].Payload.(events.TicketAssignedPayload)
	require.True(t, ok)
	assert.Equal(t, f.technician.ID, payload.TechnicianID)
	require.NotNil(t, payload.Notes)
	assert.Equal(t, notes, *payload.Notes)
}

func TestAssignTicketAllowsReassignment(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.advanceTo(t, domain.TicketStatusAssigned)

	other := domain.User{ID: "tech-2", Name: "Tess", Email: "tess@example.com", Role: domain.RoleTechnician, Active: true}
	f.users.users[other.ID] = other

	reassigned, err := f.service.AssignTicket(context.Background(), &f.dsi, ticket.ID, other.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, reassigned.Status)
	assert.Equal(t, other.ID, *reassigned.TechnicianID)
}

func TestAssignTicketRejectsNonIntakeRoles(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.createTicket(t)

	for _, actor := range []*domain.User{&f.requester, &f.technician} {
		_, err := f.service.AssignTicket(context.Background(), actor, ticket.ID, f.technician.ID, nil)
		assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err), "role %s", actor.Role)
	}
}

func TestAssignTicketUnknownTechnicianIsNotFound(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.createTicket(t)

	_, err := f.service.AssignTicket(context.Background(), &f.dsi, ticket.ID, "ghost", nil)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	inactive := domain.User{ID: "tech-9", Role: domain.RoleTechnician, Active: false}
	f.users.users[inactive.ID] = inactive
	_, err = f.service.AssignTicket(context.Background(), &f.dsi, ticket.ID, inactive.ID, nil)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	_, err = f.service.AssignTicket(context.Background(), &f.dsi, ticket.ID, f.secretary.ID, nil)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err), "non-technician role")
}

func TestDelegateLeavesStatusUnchanged(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.createTicket(t)

	delegated, err := f.service.DelegateTicket(context.Background(), &f.dsi, ticket.ID, f.adjoint.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusCreated, delegated.Status)
	require.NotNil(t, delegated.AdjointID)
	assert.Equal(t, f.adjoint.ID, *delegated.AdjointID)

	history := f.tickets.historyFor(ticket.ID)
	require.Len(t, history, 2)
	require.NotNil(t, history[1].OldStatus)
	assert.Equal(t, *history[1].OldStatus, history[1].NewStatus)
}

func TestDelegateOnlyByDSIOnCreated(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.createTicket(t)

	_, err := f.service.DelegateTicket(context.Background(), &f.secretary, ticket.ID, f.adjoint.ID, nil)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))

	assigned := f.advanceTo(t, domain.TicketStatusAssigned)
	_, err = f.service.DelegateTicket(context.Background(), &f.dsi, assigned.ID, f.adjoint.ID, nil)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))
}

func TestStartWorkOnlyByAssignedTechnician(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.advanceTo(t, domain.TicketStatusAssigned)

	other := domain.User{ID: "tech-2", Role: domain.RoleTechnician, Active: true}
	_, err := f.service.StartWork(context.Background(), &other, ticket.ID)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))

	started, err := f.service.StartWork(context.Background(), &f.technician, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, started.Status)
}

func TestResolveRequiresSummary(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.advanceTo(t, domain.TicketStatusInProgress)

	_, err := f.service.ResolveTicket(context.Background(), &f.technician, ticket.ID, "   ")
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))

	resolved, err := f.service.ResolveTicket(context.Background(), &f.technician, ticket.ID, "replaced fuser")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionSummary)
	assert.Equal(t, "replaced fuser", *resolved.ResolutionSummary)
	assert.NotNil(t, resolved.ResolvedAt)
}

func TestValidateAcceptClosesTicket(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.advanceTo(t, domain.TicketStatusResolved)

	closed, err := f.service.ValidateTicket(context.Background(), &f.requester, ticket.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
}

func TestValidateRejectRequiresReason(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.advanceTo(t, domain.TicketStatusResolved)

	_, err := f.service.ValidateTicket(context.Background(), &f.requester, ticket.ID, false, nil)
	assert.Equal(t, "VALIDATION_REQUIRES_REASON", errorCode(t, err))

	blank := "   "
	_, err = f.service.ValidateTicket(context.Background(), &f.requester, ticket.ID, false, &blank)
	assert.Equal(t, "VALIDATION_REQUIRES_REASON", errorCode(t, err))

	stored, getErr := f.service.GetTicket(context.Background(), &f.requester, ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
}

func TestValidateOnlyByCreator(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.advanceTo(t, domain.TicketStatusResolved)

	_, err := f.service.ValidateTicket(context.Background(), &f.technician, ticket.ID, true, nil)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))

	_, err = f.service.ValidateTicket(context.Background(), &f.admin, ticket.ID, true, nil)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))
}

func TestRejectionLoopKeepsFirstResolvedAt(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	ticket := f.advanceTo(t, domain.TicketStatusRejected)

	firstResolvedAt := ticket.ResolvedAt
	require.NotNil(t, firstResolvedAt)

	// Resume, re-resolve, accept: the first resolution timestamp survives.
	resumed, err := f.service.StartWork(ctx, &f.technician, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, resumed.Status)

	time.Sleep(5 * time.Millisecond)
	resolved, err := f.service.ResolveTicket(ctx, &f.technician, ticket.ID, "actually fixed now")
	require.NoError(t, err)
	assert.True(t, resolved.ResolvedAt.Equal(*firstResolvedAt))

	closed, err := f.service.ValidateTicket(ctx, &f.requester, ticket.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
}

func TestRejectedTicketCanBeReassigned(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.advanceTo(t, domain.TicketStatusRejected)

	other := domain.User{ID: "tech-2", Name: "Tess", Email: "tess@example.com", Role: domain.RoleTechnician, Active: true}
	f.users.users[other.ID] = other

	reassigned, err := f.service.AssignTicket(context.Background(), &f.dsi, ticket.ID, other.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, reassigned.Status)
	assert.Equal(t, other.ID, *reassigned.TechnicianID)
}

func TestCloseByCreatorOrAdmin(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	ticket := f.advanceTo(t, domain.TicketStatusResolved)
	_, err := f.service.CloseTicket(ctx, &f.technician, ticket.ID)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))

	closed, err := f.service.CloseTicket(ctx, &f.admin, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)

	second := f.advanceTo(t, domain.TicketStatusResolved)
	closed, err = f.service.CloseTicket(ctx, &f.requester, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
}

func TestIllegalTransitionsAreRejected(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		from domain.TicketStatus
		op   func(ticketID string) error
	}{
		{"start work on created", domain.TicketStatusCreated, func(id string) error {
			_, err := f.service.StartWork(ctx, &f.technician, id)
			return err
		}},
		{"resolve assigned", domain.TicketStatusAssigned, func(id string) error {
			_, err := f.service.ResolveTicket(ctx, &f.technician, id, "summary")
			return err
		}},
		{"validate in progress", domain.TicketStatusInProgress, func(id string) error {
			_, err := f.service.ValidateTicket(ctx, &f.requester, id, true, nil)
			return err
		}},
		{"close created", domain.TicketStatusCreated, func(id string) error {
			_, err := f.service.CloseTicket(ctx, &f.requester, id)
			return err
		}},
		{"assign closed", domain.TicketStatusClosed, func(id string) error {
			_, err := f.service.AssignTicket(ctx, &f.dsi, id, f.technician.ID, nil)
			return err
		}},
		{"start work on closed", domain.TicketStatusClosed, func(id string) error {
			_, err := f.service.StartWork(ctx, &f.technician, id)
			return err
		}},
		{"validate closed", domain.TicketStatusClosed, func(id string) error {
			_, err := f.service.ValidateTicket(ctx, &f.requester, id, true, nil)
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ticket := f.advanceTo(t, tc.from)
			err := tc.op(ticket.ID)
			assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))
		})
	}
}

func TestLostStatusRaceSurfacesAsInvalidTransition(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.createTicket(t)

	// The losing writer observes CREATED, but another transition commits
	// first: the check-and-set misses and the attempt must fail cleanly.
	f.tickets.failUpdate = repository.ErrStatusConflict
	_, err := f.service.AssignTicket(context.Background(), &f.dsi, ticket.ID, f.technician.ID, nil)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))

	// No event was published for the failed attempt.
	require.Len(t, f.dispatcher.published(), 1)

	stored, getErr := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TicketStatusCreated, stored.Status)
	assert.Len(t, f.tickets.historyFor(ticket.ID), 1)
}

func TestUnknownTicketIsNotFound(t *testing.T) {
	f := newLifecycleFixture()
	_, err := f.service.GetTicket(context.Background(), &f.requester, "ghost")
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))
}

func TestTicketVisibility(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	ticket := f.advanceTo(t, domain.TicketStatusAssigned)

	// Foreign requesters read foreign tickets as NotFound.
	stranger := domain.User{ID: "req-2", Role: domain.RoleRequester, Active: true}
	_, err := f.service.GetTicket(ctx, &stranger, ticket.ID)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	// The assigned technician, intake staff and the creator all see it.
	for _, actor := range []*domain.User{&f.requester, &f.technician, &f.secretary, &f.dsi, &f.admin} {
		_, err := f.service.GetTicket(ctx, actor, ticket.ID)
		assert.NoError(t, err, "role %s", actor.Role)
	}

	// An unassigned technician does not.
	other := domain.User{ID: "tech-2", Role: domain.RoleTechnician, Active: true}
	_, err = f.service.GetTicket(ctx, &other, ticket.ID)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))
}

func TestListStaffTicketsScopesTechnicians(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	assigned := f.advanceTo(t, domain.TicketStatusAssigned)
	f.createTicket(t)

	mine, err := f.service.ListStaffTickets(ctx, &f.technician, nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, assigned.ID, mine[0].ID)

	all, err := f.service.ListStaffTickets(ctx, &f.dsi, nil, 50, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.service.ListStaffTickets(ctx, &f.requester, nil, 50, 0)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))
}

func TestHistoryRecordsFullTrail(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.advanceTo(t, domain.TicketStatusClosed)

	history, err := f.service.ListHistory(context.Background(), &f.requester, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)

	statuses := make([]domain.TicketStatus, 0, len(history))
	for _, entry := range history {
		statuses = append(statuses, entry.NewStatus)
	}
	assert.Equal(t, []domain.TicketStatus{
		domain.TicketStatusCreated,
		domain.TicketStatusAssigned,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	}, statuses)
}
