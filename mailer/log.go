package mailer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// LogTransport is the dry-run transport: it logs each message and, when a
// directory is set, writes the HTML body there for inspection.
type LogTransport struct {
	logger *slog.Logger
	dir    string
	now    func() time.Time
}

// NewLogTransport returns a transport that never contacts a mail service.
func NewLogTransport(logger *slog.Logger, dir string) *LogTransport {
	return &LogTransport{logger: logger, dir: dir, now: time.Now}
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.logger.Info("email not sent (log transport)",
		"to", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
		"inline_images", len(msg.Inline),
	)
	if t.dir == "" {
		return nil
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return errors.Wrapf(ErrTransport, "create dump dir: %v", err)
	}
	name := t.now().UTC().Format("20060102T150405") + "_" + unsafeName.ReplaceAllString(strings.ToLower(msg.To), "_") + ".html"
	if err := os.WriteFile(filepath.Join(t.dir, name), []byte(msg.HTML), 0o644); err != nil {
		return errors.Wrapf(ErrTransport, "dump email: %v", err)
	}
	return nil
}
