package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"newsdigest/digest"
	"newsdigest/models"
	"newsdigest/store"
)

const (
	sessionName = "newsdigest"
	flashError  = "error"
	flashNotice = "notice"

	msgInvalidLink = "This link is invalid or has expired."
	msgServerError = "Something went wrong. Please try again later."
)

// SubscriberStore is the part of the subscriber store the web pages use.
type SubscriberStore interface {
	Create(email, topics string, flags models.Flags) (*models.Subscriber, error)
	FindByToken(token string) (*models.Subscriber, error)
	FindByEmail(email string) (*models.Subscriber, error)
	Update(token string, in store.UpdateInput) (*models.Subscriber, error)
	Delete(token string) error
	Stats() (*store.Stats, error)
}

// LinkSender emails a subscriber their personal links.
type LinkSender interface {
	SendLinks(ctx context.Context, sub models.Subscriber, returning bool) error
}

// Handler serves the signup, manage and unsubscribe pages.
type Handler struct {
	store    SubscriberStore
	links    LinkSender
	sessions *sessions.CookieStore
	logger   *slog.Logger
}

// New returns a Handler. Flash messages are kept in a cookie signed with
// secret.
func New(s SubscriberStore, links LinkSender, secret string, logger *slog.Logger) *Handler {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Handler{store: s, links: links, sessions: cs, logger: logger}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.Index)
	r.POST("/signup", h.Signup)
	r.POST("/submit", h.Signup)
	r.GET("/sameuser", h.SameUser)
	r.POST("/sameuser/resend", h.ResendLinks)
	r.GET("/update_info", h.UpdateForm)
	r.POST("/update_info", h.UpdateInfo)
	r.GET("/unsubscribe", h.UnsubscribeForm)
	r.POST("/unsubscribe", h.Unsubscribe)
	r.GET("/success", h.Success)

	api := r.Group("/api")
	{
		api.GET("/stats", h.GetStats)
		api.GET("/health", h.Health)
	}
}

// page is the data every HTML page is rendered with.
type page struct {
	Title          string
	Errors         []string
	Notices        []string
	Email          string
	Topics         string
	Flags          []flagOption
	Subscriber     *models.Subscriber
	ManageURL      string
	UnsubscribeURL string
	ActionURL      string
	Message        string
}

type flagOption struct {
	Name    string
	Label   string
	Checked bool
}

// flagOptions lists the checkboxes of the signup and manage forms.
func flagOptions(f models.Flags) []flagOption {
	return []flagOption{
		{"include_sp500_chart", "S&P 500 chart", f.SP500Chart},
		{"include_nasdaq_chart", "NASDAQ chart", f.NasdaqChart},
		{"include_bitcoin_chart", "Bitcoin chart", f.BitcoinChart},
		{"include_top10_stocks", "Top 10 S&P 500 stocks", f.Top10Stocks},
		{"include_stock_suite", "Full stock suite", f.StockSuite},
		{"include_insider_trading", "Insider trading", f.InsiderTrading},
		{"include_market_news", "Market news & sentiment", f.MarketNews},
	}
}

// render writes an HTML page after attaching pending flash messages.
func (h *Handler) render(c *gin.Context, status int, name string, p page) {
	errs, notices := h.takeFlashes(c)
	p.Errors = append(errs, p.Errors...)
	p.Notices = append(notices, p.Notices...)
	c.HTML(status, name, p)
}

func (h *Handler) renderError(c *gin.Context, status int, msg string) {
	h.render(c, status, "error.html", page{Title: "Error", Message: msg})
}

func (h *Handler) flash(c *gin.Context, kind, msg string) {
	sess, _ := h.sessions.Get(c.Request, sessionName)
	sess.AddFlash(msg, kind)
	if err := sess.Save(c.Request, c.Writer); err != nil {
		h.logger.Warn("save flash", "error", err)
	}
}

func (h *Handler) takeFlashes(c *gin.Context) (errs, notices []string) {
	sess, err := h.sessions.Get(c.Request, sessionName)
	if err != nil && sess == nil {
		return nil, nil
	}
	for _, f := range sess.Flashes(flashError) {
		if s, ok := f.(string); ok {
			errs = append(errs, s)
		}
	}
	for _, f := range sess.Flashes(flashNotice) {
		if s, ok := f.(string); ok {
			notices = append(notices, s)
		}
	}
	if len(errs)+len(notices) > 0 {
		if err := sess.Save(c.Request, c.Writer); err != nil {
			h.logger.Warn("clear flashes", "error", err)
		}
	}
	return errs, notices
}

// tokenParam reads the token from the query string, falling back to the
// posted form.
func tokenParam(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	return c.PostForm("token")
}

// selfLinks are the site-relative manage and unsubscribe links of token.
func selfLinks(token string) digest.Links {
	return digest.LinksFor("", token)
}
