package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"newsdigest/models"
	"newsdigest/store"
)

type signupForm struct {
	Email  string `form:"email" binding:"required,email"`
	Topics string `form:"text"`
	models.Flags
}

type resendForm struct {
	Email string `form:"email" binding:"required,email"`
}

func (h *Handler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, "index.html", page{
		Title: "Subscribe",
		Flags: flagOptions(models.Flags{}),
	})
}

// Signup creates a subscriber. An address already on file is sent to the
// returning-subscriber page instead.
func (h *Handler) Signup(c *gin.Context) {
	var form signupForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "index.html", page{
			Title:  "Subscribe",
			Errors: []string{"Please enter a valid email address."},
			Email:  form.Email,
			Topics: form.Topics,
			Flags:  flagOptions(form.Flags),
		})
		return
	}
	if strings.TrimSpace(strings.Trim(form.Topics, ", ")) == "" {
		h.render(c, http.StatusBadRequest, "index.html", page{
			Title:  "Subscribe",
			Errors: []string{"Please enter at least one topic you would like news about."},
			Email:  form.Email,
			Flags:  flagOptions(form.Flags),
		})
		return
	}

	sub, err := h.store.Create(form.Email, form.Topics, form.Flags)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.Redirect(http.StatusSeeOther, "/sameuser")
			return
		}
		if errors.Is(err, store.ErrInvalidEmail) {
			h.render(c, http.StatusBadRequest, "index.html", page{
				Title:  "Subscribe",
				Errors: []string{"Please enter a valid email address."},
				Topics: form.Topics,
				Flags:  flagOptions(form.Flags),
			})
			return
		}
		h.logger.Error("create subscriber", "error", err)
		h.renderError(c, http.StatusInternalServerError, msgServerError)
		return
	}

	h.logger.Info("subscriber created", "subscriber_id", sub.ID)
	if err := h.links.SendLinks(c.Request.Context(), *sub, false); err != nil {
		h.logger.Warn("welcome email failed", "subscriber_id", sub.ID, "error", err)
	}

	h.flash(c, flashNotice, "You are subscribed. Check your inbox for a welcome email.")
	c.Redirect(http.StatusSeeOther, "/success")
}

// SameUser is the landing page of a returning subscriber. With a valid
// token it shows the current settings.
func (h *Handler) SameUser(c *gin.Context) {
	p := page{Title: "Already subscribed"}

	if token := c.Query("token"); token != "" {
		sub, err := h.store.FindByToken(token)
		switch {
		case err == nil:
			links := selfLinks(sub.Token)
			p.Subscriber = sub
			p.Flags = flagOptions(sub.EffectiveFlags())
			p.ManageURL = links.Manage
			p.UnsubscribeURL = links.Unsubscribe
		case errors.Is(err, store.ErrInvalidToken):
			p.Errors = []string{msgInvalidLink}
		default:
			h.logger.Error("find subscriber by token", "error", err)
			h.renderError(c, http.StatusInternalServerError, msgServerError)
			return
		}
	}

	h.render(c, http.StatusOK, "sameuser.html", p)
}

// ResendLinks emails the personal links to the address on file. The answer
// is the same whether or not the address is subscribed.
func (h *Handler) ResendLinks(c *gin.Context) {
	var form resendForm
	if err := c.ShouldBind(&form); err != nil {
		h.flash(c, flashError, "Please enter a valid email address.")
		c.Redirect(http.StatusSeeOther, "/sameuser")
		return
	}

	sub, err := h.store.FindByEmail(form.Email)
	switch {
	case err == nil:
		if err := h.links.SendLinks(c.Request.Context(), *sub, true); err != nil {
			h.logger.Warn("resend links failed", "subscriber_id", sub.ID, "error", err)
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		h.logger.Error("find subscriber by email", "error", err)
	}

	h.flash(c, flashNotice, "If that address is subscribed, its links are on the way.")
	c.Redirect(http.StatusSeeOther, "/sameuser")
}

func (h *Handler) Success(c *gin.Context) {
	h.render(c, http.StatusOK, "success.html", page{Title: "Done"})
}
