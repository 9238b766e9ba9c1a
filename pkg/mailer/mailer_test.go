package mailer_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/pkg/mailer"
)

var testFS = fstest.MapFS{
	"password_reset.md": &fstest.MapFile{Data: []byte(`---
subject: "Reset your password, {{.Name}}"
---
Hi **{{.Name}}**,

[Reset your password]({{.URL}}) within the next hour.
`)},
	"plain.md": &fstest.MapFile{Data: []byte("Just a *plain* template.\n")},
	"layouts/base.html": &fstest.MapFile{Data: []byte(
		`<html><body>{{.Content}}</body></html>`)},
}

type captureSender struct {
	sent []*mailer.Email
	err  error
}

func (s *captureSender) Send(_ context.Context, e *mailer.Email) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, e)
	return nil
}

func newMailer(s mailer.Sender) *mailer.Mailer {
	r := mailer.NewRenderer(testFS, mailer.RendererConfig{})
	return mailer.New(s, r, mailer.Config{
		FallbackSubject: "Notification",
		DefaultLayout:   "base.html",
	})
}

func TestMailerSend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("renders template into layout", func(t *testing.T) {
		t.Parallel()

		sender := &captureSender{}
		m := newMailer(sender)

		err := m.Send(ctx, mailer.SendParams{
			To:       "ada@example.com",
			Template: "password_reset.md",
			Data:     map[string]string{"Name": "Ada", "URL": "https://shop.example.com/reset/abc"},
		})
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)

		sent := sender.sent[0]
		require.Equal(t, []string{"ada@example.com"}, sent.To)
		require.Equal(t, "Reset your password, Ada", sent.Subject)
		require.Contains(t, sent.HTML, "<strong>Ada</strong>")
		require.Contains(t, sent.HTML, "<html><body>")
		require.Contains(t, sent.HTML, `href="https://shop.example.com/reset/abc"`)
		require.Contains(t, sent.Text, "**Ada**")
	})

	t.Run("subject falls back when front matter has none", func(t *testing.T) {
		t.Parallel()

		sender := &captureSender{}
		m := newMailer(sender)

		require.NoError(t, m.Send(ctx, mailer.SendParams{
			To:       "ada@example.com",
			Template: "plain.md",
		}))
		require.Equal(t, "Notification", sender.sent[0].Subject)
	})

	t.Run("explicit subject overrides front matter", func(t *testing.T) {
		t.Parallel()

		sender := &captureSender{}
		m := newMailer(sender)

		require.NoError(t, m.Send(ctx, mailer.SendParams{
			To:       "ada@example.com",
			Template: "password_reset.md",
			Subject:  "Urgent",
			Data:     map[string]string{"Name": "Ada", "URL": "https://x"},
		}))
		require.Equal(t, "Urgent", sender.sent[0].Subject)
	})

	t.Run("missing recipient", func(t *testing.T) {
		t.Parallel()

		m := newMailer(&captureSender{})
		require.ErrorIs(t, m.Send(ctx, mailer.SendParams{Template: "plain.md"}), mailer.ErrNoRecipient)
	})

	t.Run("missing template", func(t *testing.T) {
		t.Parallel()

		m := newMailer(&captureSender{})
		err := m.Send(ctx, mailer.SendParams{To: "a@b.c", Template: "nope.md"})
		require.ErrorIs(t, err, mailer.ErrTemplate)
	})
}

func TestMailerSendRaw(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sender := &captureSender{}
	m := newMailer(sender)

	require.ErrorIs(t, m.SendRaw(ctx, &mailer.Email{Subject: "s", HTML: "<p>x</p>"}), mailer.ErrNoRecipient)
	require.ErrorIs(t, m.SendRaw(ctx, &mailer.Email{To: []string{"a@b.c"}, HTML: "<p>x</p>"}), mailer.ErrNoSubject)
	require.ErrorIs(t, m.SendRaw(ctx, &mailer.Email{To: []string{"a@b.c"}, Subject: "s"}), mailer.ErrNoContent)

	require.NoError(t, m.SendRaw(ctx, &mailer.Email{To: []string{"a@b.c"}, Subject: "s", HTML: "<p>x</p>"}))
	require.Len(t, sender.sent, 1)
}

func TestRecipient(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Ada <ada@example.com>", mailer.Recipient("Ada", "ada@example.com"))
	require.Equal(t, "ada@example.com", mailer.Recipient("", "ada@example.com"))
}
