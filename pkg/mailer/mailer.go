// Package mailer sends transactional mail for the marketplace: password
// resets, order confirmations, vendor notifications. Templates are markdown
// with YAML front matter, rendered to HTML through a shared layout; delivery
// goes through a provider adapter behind the Sender interface.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	texttemplate "text/template"
)

var (
	ErrNoRecipient = errors.New("mailer: email must have a recipient")
	ErrNoSubject   = errors.New("mailer: email must have a subject")
	ErrNoContent   = errors.New("mailer: email must have HTML content")
	ErrTemplate    = errors.New("mailer: template not found")
	ErrLayout      = errors.New("mailer: layout not found")
	ErrRender      = errors.New("mailer: failed to render template")
	ErrSend        = errors.New("mailer: failed to send email")
	ErrFrontMatter = errors.New("mailer: invalid front matter")
)

// Email is a fully-prepared message ready for delivery.
type Email struct {
	Headers     map[string]string
	Subject     string
	HTML        string
	Text        string
	From        string
	ReplyTo     string
	To          []string
	Attachments []Attachment
}

// Attachment is a file attached to an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender delivers a prepared email through a mail provider.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// Recipient formats a display name and address as an RFC 5322 mailbox.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// Config holds mailer defaults, populated from the environment.
type Config struct {
	FallbackSubject string `env:"MAILER_FALLBACK_SUBJECT" envDefault:"Notification from Bazaar"`
	DefaultLayout   string `env:"MAILER_DEFAULT_LAYOUT" envDefault:"base.html"`
}

// Mailer renders a template and hands the result to the provider.
type Mailer struct {
	sender   Sender
	renderer *Renderer
	cfg      Config
}

// New creates a Mailer.
func New(sender Sender, renderer *Renderer, cfg Config) *Mailer {
	return &Mailer{sender: sender, renderer: renderer, cfg: cfg}
}

// SendParams describes one templated send.
type SendParams struct {
	To       string
	Template string // template filename, e.g. "password_reset.md"
	Data     any

	// Optional overrides.
	Subject     string
	Layout      string
	From        string
	ReplyTo     string
	Attachments []Attachment
}

// Send renders the named template and delivers the result. The subject
// resolves from params, then the template's front matter, then the
// configured fallback; it may itself contain template syntax.
func (m *Mailer) Send(ctx context.Context, params SendParams) error {
	if params.To == "" {
		return ErrNoRecipient
	}

	layout := params.Layout
	if layout == "" {
		layout = m.cfg.DefaultLayout
	}

	rendered, err := m.renderer.Render(layout, params.Template, params.Data)
	if err != nil {
		return errors.Join(ErrRender, err)
	}

	subject := params.Subject
	if subject == "" {
		if s, ok := rendered.Metadata["subject"].(string); ok {
			subject = s
		} else {
			subject = m.cfg.FallbackSubject
		}
	}
	subject, err = expandSubject(subject, params.Data)
	if err != nil {
		return errors.Join(ErrRender, err)
	}

	email := &Email{
		To:          []string{params.To},
		Subject:     subject,
		HTML:        rendered.HTML,
		Text:        rendered.Text,
		From:        params.From,
		ReplyTo:     params.ReplyTo,
		Attachments: params.Attachments,
	}
	if err := m.sender.Send(ctx, email); err != nil {
		return errors.Join(ErrSend, err)
	}
	return nil
}

// SendRaw delivers a pre-built email without rendering.
func (m *Mailer) SendRaw(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return ErrNoRecipient
	}
	if email.Subject == "" {
		return ErrNoSubject
	}
	if email.HTML == "" {
		return ErrNoContent
	}
	if err := m.sender.Send(ctx, email); err != nil {
		return errors.Join(ErrSend, err)
	}
	return nil
}

func expandSubject(subject string, data any) (string, error) {
	tmpl, err := texttemplate.New("subject").Parse(subject)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
