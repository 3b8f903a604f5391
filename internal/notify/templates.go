package notify

import (
	"bytes"
	"fmt"
	"maps"
	"text/template"
)

// TemplateKind names an email template.
type TemplateKind string

const (
	TemplateThresholdCrossed TemplateKind = "threshold_crossed"
)

// Params are the template variables of an email.
type Params map[string]string

// With returns a copy of p with key set to value.
func (p Params) With(key, value string) Params {
	out := maps.Clone(p)
	if out == nil {
		out = Params{}
	}
	out[key] = value
	return out
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[TemplateKind]emailTemplate{
	TemplateThresholdCrossed: {
		subject: template.Must(template.New("subject").Parse(
			`[{{.room}}] Spending threshold reached`)),
		body: template.Must(template.New("body").Parse(
			`Hi {{.name}},

Expenses in {{.room}} have reached {{.total}}, at or above the room threshold of {{.threshold}}.
New expenses are paused until {{.admin}} closes the current cycle, and every member's
payment status has been reset to UNPAID. Please settle your share with {{.admin}}.

-- Roomledger
`)),
	},
}

// Email is a rendered message.
type Email struct {
	Subject string
	Body    string
}

// Render renders the template kind with params.
func Render(kind TemplateKind, params Params) (*Email, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", kind)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, params); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, params); err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}
	return &Email{Subject: subject.String(), Body: body.String()}, nil
}
