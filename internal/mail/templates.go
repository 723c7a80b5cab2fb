package mail

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template keys. They match the keys services pass to Send.
const (
	TemplateInvitation = "invitation"
)

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]mailTemplate{
	TemplateInvitation: {
		subject: template.Must(template.New("invitation.subject").Parse(
			`You're invited to join {{.LocationName}}`)),
		body: template.Must(template.New("invitation.body").Parse(`Hi,

{{.InviterName}} has invited you to join {{.LocationName}} as {{.Role}}.

Accept the invitation here:
{{.AcceptURL}}

Or enter this code after signing in: {{.InviteCode}}

This invitation expires on {{.ExpiresAt}}.
`)),
	},
}

// Message is a templated email waiting to be rendered and delivered. It is
// what goes on the queue.
type Message struct {
	To       string                 `json:"to"`
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
}

// Rendered is a message ready for the wire
type Rendered struct {
	To      string
	Subject string
	Text    string
}

// Render executes the message's template
func Render(msg Message) (*Rendered, error) {
	tmpl, ok := templates[msg.Template]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", msg.Template)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, msg.Data); err != nil {
		return nil, fmt.Errorf("failed to render %s subject: %w", msg.Template, err)
	}
	if err := tmpl.body.Execute(&body, msg.Data); err != nil {
		return nil, fmt.Errorf("failed to render %s body: %w", msg.Template, err)
	}

	return &Rendered{To: msg.To, Subject: subject.String(), Text: body.String()}, nil
}
