package mailer

import (
	"context"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/pkg/errors"
)

const defaultSender = "digest@example.com"

// Option configures a Mailjet transport.
type Option func(*Mailjet)

// WithSender sets the From address and display name.
func WithSender(email, name string) Option {
	return func(m *Mailjet) {
		if email != "" {
			m.sender = email
		}
		m.senderName = name
	}
}

// Mailjet sends messages through the Mailjet v3.1 send API.
type Mailjet struct {
	client     *mailjet.Client
	sender     string
	senderName string
}

// NewMailjet returns a transport authenticated with the given key pair.
func NewMailjet(publicKey, privateKey string, opts ...Option) *Mailjet {
	m := &Mailjet{
		client: mailjet.NewMailjetClient(publicKey, privateKey),
		sender: defaultSender,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send delivers msg. Failures are not retried.
func (m *Mailjet) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(ErrTransport, err.Error())
	}

	info := mailjet.InfoMessagesV31{
		From:     &mailjet.RecipientV31{Email: m.sender, Name: m.senderName},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: msg.To}},
		Subject:  msg.Subject,
		TextPart: msg.Text,
		HTMLPart: msg.HTML,
	}
	if len(msg.Inline) > 0 {
		inline := make(mailjet.InlinedAttachmentsV31, 0, len(msg.Inline))
		for _, img := range msg.Inline {
			inline = append(inline, mailjet.InlinedAttachmentV31{
				AttachmentV31: mailjet.AttachmentV31{
					ContentType:   img.ContentType,
					Filename:      img.Filename,
					Base64Content: img.Base64,
				},
				ContentID: img.ContentID,
			})
		}
		info.InlinedAttachments = &inline
	}

	msgs := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{info}}
	if _, err := m.client.SendMailV31(&msgs); err != nil {
		return errors.Wrapf(ErrTransport, "mailjet: %v", err)
	}
	return nil
}
