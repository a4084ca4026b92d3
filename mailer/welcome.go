package mailer

import (
	"context"

	"newsdigest/digest"
	"newsdigest/models"
)

// Welcomer sends the signup confirmation and re-sends personal links.
type Welcomer struct {
	renderer  *Renderer
	transport Transport
	baseURL   string
}

// NewWelcomer returns a Welcomer building links from baseURL.
func NewWelcomer(renderer *Renderer, transport Transport, baseURL string) *Welcomer {
	return &Welcomer{renderer: renderer, transport: transport, baseURL: baseURL}
}

// SendLinks emails sub its manage and unsubscribe links. returning selects
// the wording for a subscriber who signed up before.
func (w *Welcomer) SendLinks(ctx context.Context, sub models.Subscriber, returning bool) error {
	msg, err := w.renderer.RenderWelcome(sub.Email, sub.Topics, digest.LinksFor(w.baseURL, sub.Token), returning)
	if err != nil {
		return err
	}
	return w.transport.Send(ctx, msg)
}
