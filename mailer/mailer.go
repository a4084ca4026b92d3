package mailer

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"newsdigest/config"
)

var (
	// ErrRender means the email document could not be produced.
	ErrRender = errors.New("render email")
	// ErrTransport means the mail service did not accept the message.
	ErrTransport = errors.New("send email")
)

// InlineImage is an attachment referenced from the HTML body by content id.
type InlineImage struct {
	ContentID   string
	Filename    string
	ContentType string
	Base64      string
}

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Inline  []InlineImage
}

// Transport delivers one message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// NewTransport returns the transport selected by cfg.Provider.
func NewTransport(cfg config.MailConfig, logger *slog.Logger) (Transport, error) {
	switch cfg.Provider {
	case "mailjet":
		return NewMailjet(cfg.MailjetPublicKey, cfg.MailjetPrivateKey,
			WithSender(cfg.Sender, cfg.SenderName),
		), nil
	case "log", "":
		return NewLogTransport(logger, cfg.DumpDir), nil
	default:
		return nil, errors.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
