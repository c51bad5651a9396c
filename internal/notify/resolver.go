package notify

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// Action is a call-to-action a notification exposes to its recipient.
type Action string

const (
	ActionAssign        Action = "assign"
	ActionDelegate      Action = "delegate"
	ActionOpen          Action = "open"
	ActionTakeOwnership Action = "take-ownership"
	ActionValidate      Action = "validate"
	ActionResume        Action = "resume"
	ActionViewOwn       Action = "view-own"
)

// actionOrder fixes the rendering order when a recipient accumulates actions
// from several routing rules.
var actionOrder = []Action{
	ActionAssign,
	ActionDelegate,
	ActionTakeOwnership,
	ActionValidate,
	ActionResume,
	ActionViewOwn,
	ActionOpen,
}

// Recipient pairs a user with the actions their notification must expose.
type Recipient struct {
	User    domain.User
	Actions []Action
}

// Directory holds the users a lifecycle event may route to, loaded by the
// pipeline before resolution so that Resolve stays pure.
type Directory struct {
	Creator    *domain.User
	Technician *domain.User
	Adjoint    *domain.User
	Staff      []domain.User // active DSI, SECRETARY_DSI and ADJOINT_DSI users
}

// Resolve computes the ordered recipient set for a lifecycle event. The
// result is deterministic and role-driven; a user qualifying under several
// rules appears once, with the union of the matching action sets.
func Resolve(eventType events.EventType, payload any, ticket *domain.Ticket, dir Directory) []Recipient {
	var out []Recipient

	switch eventType {
	case events.EventTicketCreated:
		for _, staff := range dir.Staff {
			switch staff.Role {
			case domain.RoleDSI:
				out = appendRecipient(out, staff, ActionAssign, ActionDelegate, ActionOpen)
			case domain.RoleSecretaryDSI, domain.RoleAdjointDSI:
				out = appendRecipient(out, staff, ActionAssign)
			}
		}
		if dir.Creator != nil {
			out = appendRecipient(out, *dir.Creator, ActionViewOwn)
		}

	case events.EventTicketAssigned:
		if dir.Technician != nil {
			out = appendRecipient(out, *dir.Technician, ActionTakeOwnership)
		}
		if dir.Creator != nil {
			out = appendRecipient(out, *dir.Creator, ActionViewOwn)
		}

	case events.EventTicketDelegated:
		if dir.Adjoint != nil {
			out = appendRecipient(out, *dir.Adjoint, ActionTakeOwnership)
		}

	case events.EventTicketResolved:
		if dir.Creator != nil {
			out = appendRecipient(out, *dir.Creator, ActionValidate)
		}

	case events.EventTicketValidated:
		accepted := true
		if p, ok := payload.(events.TicketValidatedPayload); ok {
			accepted = p.Accepted
		}
		if !accepted {
			if dir.Technician != nil {
				out = appendRecipient(out, *dir.Technician, ActionResume)
			}
			break
		}
		if dir.Creator != nil {
			out = appendRecipient(out, *dir.Creator, ActionViewOwn)
		}
		if dir.Technician != nil {
			out = appendRecipient(out, *dir.Technician, ActionViewOwn)
		}

	case events.EventTicketClosed:
		if dir.Creator != nil {
			out = appendRecipient(out, *dir.Creator, ActionViewOwn)
		}
		if dir.Technician != nil {
			out = appendRecipient(out, *dir.Technician, ActionViewOwn)
		}
	}

	return out
}

// appendRecipient adds the user or, when already present, merges the actions
// into the existing entry so no user is notified twice for one event.
func appendRecipient(list []Recipient, user domain.User, actions ...Action) []Recipient {
	if !user.Active {
		return list
	}
	for i := range list {
		if list[i].User.ID == user.ID {
			list[i].Actions = mergeActions(list[i].Actions, actions)
			return list
		}
	}
	return append(list, Recipient{User: user, Actions: mergeActions(nil, actions)})
}

func mergeActions(existing, extra []Action) []Action {
	present := make(map[Action]bool, len(existing)+len(extra))
	for _, a := range existing {
		present[a] = true
	}
	for _, a := range extra {
		present[a] = true
	}
	merged := make([]Action, 0, len(present))
	for _, a := range actionOrder {
		if present[a] {
			merged = append(merged, a)
		}
	}
	return merged
}

// HasAction reports whether the recipient's action set contains the action.
func (r Recipient) HasAction(action Action) bool {
	for _, a := range r.Actions {
		if a == action {
			return true
		}
	}
	return false
}
