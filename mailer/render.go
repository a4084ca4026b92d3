package mailer

import (
	"bytes"
	"embed"
	"encoding/base64"
	htmltemplate "html/template"
	"log/slog"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"newsdigest/digest"
)

//go:embed templates/*
var templateFS embed.FS

var funcs = map[string]any{
	"date":     func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"datetime": func(t time.Time) string { return t.Format("Jan 2, 2006 15:04 MST") },
	"money":    formatMoney,
	"shares":   func(d decimal.Decimal) string { return groupThousands(d.Round(0).IntPart()) },
	"signed": func(d decimal.Decimal) string {
		if d.IsNegative() {
			return d.StringFixed(2)
		}
		return "+" + d.StringFixed(2)
	},
	"score": func(f float64) string { return strconv.FormatFloat(f, 'f', 3, 64) },
}

// chartImage is one rasterized chart as the templates see it.
type chartImage struct {
	Name string
	Src  htmltemplate.URL
	Last float64
}

type digestView struct {
	digest.Payload
	Images      []chartImage
	Placeholder bool
}

type welcomeView struct {
	Subject string
	Heading string
	Topics  string
	Links   digest.Links
}

// Renderer turns payloads into multipart messages.
type Renderer struct {
	html   *htmltemplate.Template
	text   *texttemplate.Template
	chart  func(digest.Chart) ([]byte, error)
	logger *slog.Logger
}

// NewRenderer parses the embedded templates.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	html, err := htmltemplate.New("html").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse html templates")
	}
	text, err := texttemplate.New("text").Funcs(funcs).ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, errors.Wrap(err, "parse text templates")
	}
	return &Renderer{html: html, text: text, chart: RenderChart, logger: logger}, nil
}

// Render produces the digest email of p. A chart that cannot be drawn is
// left out; any other failure is an ErrRender.
func (r *Renderer) Render(p digest.Payload) (Message, error) {
	view := digestView{Payload: p, Placeholder: p.Synthetic}
	msg := Message{To: p.To, Subject: p.Subject}

	for _, c := range p.Charts {
		png, err := r.chart(c)
		if err != nil {
			r.logger.Warn("chart dropped", "chart", string(c.Key), "to", p.To, "error", err)
			continue
		}
		cid := "chart-" + string(c.Key)
		msg.Inline = append(msg.Inline, InlineImage{
			ContentID:   cid,
			Filename:    cid + ".png",
			ContentType: "image/png",
			Base64:      base64.StdEncoding.EncodeToString(png),
		})
		view.Images = append(view.Images, chartImage{
			Name: c.Name,
			Src:  htmltemplate.URL("cid:" + cid),
			Last: c.Bars[len(c.Bars)-1].Close,
		})
	}

	var err error
	if msg.HTML, msg.Text, err = r.execute("digest", view); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// RenderWelcome produces the confirmation sent after signup, also used to
// re-send the personal links to a returning subscriber.
func (r *Renderer) RenderWelcome(to, topics string, links digest.Links, returning bool) (Message, error) {
	view := welcomeView{
		Subject: "Welcome to your daily news digest",
		Heading: "Thanks for subscribing!",
		Topics:  topics,
		Links:   links,
	}
	if returning {
		view.Subject = "Your news digest links"
		view.Heading = "Here are your subscription links"
	}

	html, text, err := r.execute("welcome", view)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: view.Subject, HTML: html, Text: text}, nil
}

func (r *Renderer) execute(name string, data any) (string, string, error) {
	var html, text bytes.Buffer
	if err := r.html.ExecuteTemplate(&html, name+".html", data); err != nil {
		return "", "", errors.Wrapf(ErrRender, "%s html: %v", name, err)
	}
	if err := r.text.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return "", "", errors.Wrapf(ErrRender, "%s text: %v", name, err)
	}
	return html.String(), text.String(), nil
}

// formatMoney renders d with two decimals and grouped thousands.
func formatMoney(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return d.StringFixed(2)
	}
	out := groupThousands(n) + "." + frac
	if d.IsNegative() {
		return "-" + out
	}
	return out
}

func groupThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
