package notify

import (
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// TicketFacts carries the ticket fields a notification may render. Optional
// fields left empty are omitted from the output, never an error.
type TicketFacts struct {
	ID              string
	Number          int64
	Title           string
	Creator         string
	Technician      string
	Priority        string
	Notes           string
	RejectionReason string
	Summary         string
}

// Input is the full rendering context for one recipient of one event.
type Input struct {
	Event     events.EventType
	Role      domain.Role
	Recipient string
	Actions   []Action
	Ticket    TicketFacts
	Rejected  bool
	BaseURL   string
	Sender    string
}

// Message is a rendered notification ready for transport.
type Message struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// Link is one clickable affordance of the HTML body.
type Link struct {
	Label string
	URL   string
}

type bodyContext struct {
	Recipient string
	Heading   string
	Intro     string
	Outro     string
	Sender    string
	Ticket    TicketFacts
	Links     []Link
}

var textBody = texttemplate.Must(texttemplate.New("text").Parse(`Hello {{.Recipient}},

{{.Intro}}

Ticket details:
  - Number: #{{.Ticket.Number}}
  - Title: {{.Ticket.Title}}
  - Creator: {{.Ticket.Creator}}
{{- if .Ticket.Technician}}
  - Technician: {{.Ticket.Technician}}
{{- end}}
{{- if .Ticket.Priority}}
  - Priority: {{.Ticket.Priority}}
{{- end}}
{{- if .Ticket.Summary}}

Resolution summary:
{{.Ticket.Summary}}
{{- end}}
{{- if .Ticket.Notes}}

Instructions:
{{.Ticket.Notes}}
{{- end}}
{{- if .Ticket.RejectionReason}}

Rejection reason:
{{.Ticket.RejectionReason}}
{{- end}}

{{.Outro}}

Regards,
{{.Sender}}
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<html>
<body>
    <h2>{{.Heading}}</h2>
    <p>Hello {{.Recipient}},</p>
    <p>{{.Intro}}</p>
    <div style="background-color:#f5f5f5;padding:15px;border-radius:5px;margin:15px 0;">
        <p><strong>Ticket details:</strong></p>
        <ul>
            <li><strong>Number:</strong> #{{.Ticket.Number}}</li>
            <li><strong>Title:</strong> {{.Ticket.Title}}</li>
            <li><strong>Creator:</strong> {{.Ticket.Creator}}</li>
            {{- if .Ticket.Technician}}
            <li><strong>Technician:</strong> {{.Ticket.Technician}}</li>
            {{- end}}
            {{- if .Ticket.Priority}}
            <li><strong>Priority:</strong> {{.Ticket.Priority}}</li>
            {{- end}}
        </ul>
        {{- if .Ticket.Summary}}
        <p><strong>Resolution summary:</strong></p>
        <p style="background-color:#fff;padding:10px;border-left:3px solid #007bff;">{{.Ticket.Summary}}</p>
        {{- end}}
        {{- if .Ticket.Notes}}
        <p><strong>Instructions:</strong></p>
        <p style="background-color:#fff;padding:10px;border-left:3px solid #007bff;">{{.Ticket.Notes}}</p>
        {{- end}}
        {{- if .Ticket.RejectionReason}}
        <p><strong>Rejection reason:</strong></p>
        <p style="background-color:#fff;padding:10px;border-left:3px solid #dc3545;">{{.Ticket.RejectionReason}}</p>
        {{- end}}
    </div>
    {{- if .Links}}
    <div style="margin:20px 0;">
        {{- range .Links}}
        <a href="{{.URL}}" style="background:#007bff;color:#fff;text-decoration:none;padding:10px 16px;border-radius:6px;display:inline-block;margin-right:10px;">{{.Label}}</a>
        {{- end}}
    </div>
    {{- end}}
    <p>{{.Outro}}</p>
    <p>Regards,<br>{{.Sender}}</p>
</body>
</html>
`))

// Render produces the subject, plain-text body and HTML body for one
// recipient. It is pure: no I/O, and missing optional ticket fields are
// simply left out.
func Render(in Input) (Message, error) {
	subject, heading, intro, outro := copyFor(in)

	ctx := bodyContext{
		Recipient: in.Recipient,
		Heading:   heading,
		Intro:     intro,
		Outro:     outro,
		Sender:    in.Sender,
		Ticket:    in.Ticket,
		Links:     buildLinks(in),
	}

	var text strings.Builder
	if err := textBody.Execute(&text, ctx); err != nil {
		return Message{}, err
	}
	var html strings.Builder
	if err := htmlBody.Execute(&html, ctx); err != nil {
		return Message{}, err
	}

	return Message{
		Subject:  subject,
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}

func copyFor(in Input) (subject, heading, intro, outro string) {
	number := in.Ticket.Number
	title := in.Ticket.Title

	switch in.Event {
	case events.EventTicketCreated:
		if hasAction(in.Actions, ActionViewOwn) {
			return fmt.Sprintf("Your ticket #%d has been created: %s", number, title),
				"Ticket created",
				"Your ticket has been created and will be processed shortly.",
				"You will be notified when it is assigned to a technician."
		}
		return fmt.Sprintf("New ticket #%d created: %s", number, title),
			"New ticket created",
			"A new ticket has been created in the helpdesk.",
			"Please sign in to review and assign this ticket."

	case events.EventTicketAssigned:
		if hasAction(in.Actions, ActionTakeOwnership) {
			return fmt.Sprintf("Ticket #%d has been assigned to you: %s", number, title),
				"Ticket assigned",
				"A ticket has been assigned to you.",
				"Please sign in to take over this ticket."
		}
		return fmt.Sprintf("Your ticket #%d has been assigned to a technician", number),
			"Ticket assigned",
			"Your ticket has been assigned to a technician and will be handled shortly.",
			"You will be notified when it is resolved."

	case events.EventTicketDelegated:
		return fmt.Sprintf("Ticket #%d has been delegated to you: %s", number, title),
			"Ticket delegated",
			"A ticket has been delegated to you for assignment.",
			"Please sign in to assign this ticket to a technician."

	case events.EventTicketResolved:
		return fmt.Sprintf("Your ticket #%d has been resolved: %s", number, title),
			"Ticket resolved",
			"The technician has marked your ticket as resolved.",
			"Please sign in to validate or reject the resolution."

	case events.EventTicketValidated:
		if in.Rejected {
			return fmt.Sprintf("Ticket #%d rejected by the requester: %s", number, title),
				"Ticket rejected",
				"The requester has rejected the resolution of this ticket.",
				"Please sign in and resume work on this ticket."
		}
		return fmt.Sprintf("Ticket #%d has been closed: %s", number, title),
			"Ticket closed",
			"The resolution has been validated and the ticket is closed.",
			"No further action is required."

	case events.EventTicketClosed:
		return fmt.Sprintf("Ticket #%d has been closed: %s", number, title),
			"Ticket closed",
			"The ticket has been closed.",
			"No further action is required."
	}

	return fmt.Sprintf("Ticket #%d: %s", number, title),
		"Ticket update", "The ticket has been updated.", ""
}

var actionLabels = map[Action]string{
	ActionAssign:        "Assign to a technician",
	ActionDelegate:      "Delegate to a deputy",
	ActionOpen:          "Open the application",
	ActionTakeOwnership: "Take over the ticket",
	ActionValidate:      "Validate the resolution",
	ActionResume:        "Resume the ticket",
	ActionViewOwn:       "View the ticket",
}

func buildLinks(in Input) []Link {
	links := make([]Link, 0, len(in.Actions))
	for _, action := range in.Actions {
		links = append(links, Link{
			Label: actionLabels[action],
			URL:   ActionLink(in.BaseURL, in.Role, action, in.Ticket.ID),
		})
	}
	return links
}

// ActionLink builds the authentication-gated deep link for one action. The
// link always targets the login page with a role-appropriate redirect; the
// ticket parameter is present for ticket-specific actions, and the action
// verb only where the target dashboard distinguishes several verbs.
func ActionLink(baseURL string, role domain.Role, action Action, ticketID string) string {
	params := url.Values{}
	params.Set("redirect", DashboardPath(role))

	switch action {
	case ActionAssign, ActionDelegate, ActionValidate, ActionResume:
		params.Set("ticket", ticketID)
		params.Set("action", string(action))
	case ActionViewOwn, ActionTakeOwnership:
		params.Set("ticket", ticketID)
	case ActionOpen:
		// plain "open app" link: redirect only
	}

	return strings.TrimSuffix(baseURL, "/") + "/login?" + params.Encode()
}

// DashboardPath maps a role to the dashboard its deep links redirect to.
func DashboardPath(role domain.Role) string {
	switch role {
	case domain.RoleDSI, domain.RoleAdmin:
		return "/dashboard/dsi"
	case domain.RoleSecretaryDSI, domain.RoleAdjointDSI:
		return "/dashboard/secretary"
	case domain.RoleTechnician:
		return "/dashboard/technician"
	case domain.RoleRequester:
		return "/dashboard/user"
	}
	return "/dashboard/user"
}

func hasAction(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
