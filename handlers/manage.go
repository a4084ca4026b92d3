package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"newsdigest/models"
	"newsdigest/store"
)

type updateForm struct {
	Topics string `form:"text"`
	models.Flags
}

// subscriberFor resolves the token of the request or answers with the
// generic invalid-link page.
func (h *Handler) subscriberFor(c *gin.Context) (*models.Subscriber, bool) {
	sub, err := h.store.FindByToken(tokenParam(c))
	if err != nil {
		h.tokenError(c, err)
		return nil, false
	}
	return sub, true
}

func (h *Handler) tokenError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrInvalidToken) {
		h.renderError(c, http.StatusNotFound, msgInvalidLink)
		return
	}
	h.logger.Error("token lookup", "error", err)
	h.renderError(c, http.StatusInternalServerError, msgServerError)
}

func (h *Handler) UpdateForm(c *gin.Context) {
	sub, ok := h.subscriberFor(c)
	if !ok {
		return
	}

	links := selfLinks(sub.Token)
	h.render(c, http.StatusOK, "change.html", page{
		Title:          "Manage preferences",
		Subscriber:     sub,
		Flags:          flagOptions(sub.Flags),
		ActionURL:      links.Manage,
		UnsubscribeURL: links.Unsubscribe,
	})
}

// UpdateInfo saves topics and flags. Unchecked boxes are absent from the
// form and stored as false.
func (h *Handler) UpdateInfo(c *gin.Context) {
	token := tokenParam(c)

	var form updateForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, http.StatusBadRequest, "The form could not be read. Please try again.")
		return
	}
	if strings.TrimSpace(strings.Trim(form.Topics, ", ")) == "" {
		h.flash(c, flashError, "Please enter at least one topic.")
		c.Redirect(http.StatusSeeOther, selfLinks(token).Manage)
		return
	}

	sub, err := h.store.Update(token, store.UpdateInput{Topics: &form.Topics, Flags: &form.Flags})
	if err != nil {
		h.tokenError(c, err)
		return
	}

	h.logger.Info("subscriber updated", "subscriber_id", sub.ID)
	h.flash(c, flashNotice, "Your preferences were saved.")
	c.Redirect(http.StatusSeeOther, "/success")
}

func (h *Handler) UnsubscribeForm(c *gin.Context) {
	sub, ok := h.subscriberFor(c)
	if !ok {
		return
	}

	links := selfLinks(sub.Token)
	h.render(c, http.StatusOK, "unsub.html", page{
		Title:      "Unsubscribe",
		Subscriber: sub,
		ActionURL:  links.Unsubscribe,
		ManageURL:  links.Manage,
	})
}

// Unsubscribe deletes the subscriber for good.
func (h *Handler) Unsubscribe(c *gin.Context) {
	if err := h.store.Delete(tokenParam(c)); err != nil {
		h.tokenError(c, err)
		return
	}

	h.logger.Info("subscriber deleted")
	h.flash(c, flashNotice, "You have been unsubscribed.")
	c.Redirect(http.StatusSeeOther, "/success")
}
