package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"newsdigest/digest"
	"newsdigest/mailer"
	"newsdigest/market"
	"newsdigest/models"
	"newsdigest/news"
)

// SubscriberLister returns every subscriber of a run.
type SubscriberLister interface {
	All() ([]models.Subscriber, error)
}

// SnapshotFetcher builds the shared market snapshot.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, req market.Request) *market.Snapshot
}

// ArticleCollector finds the keyword articles of one subscriber.
type ArticleCollector interface {
	Collect(ctx context.Context, keywords []string) []news.Article
}

// MessageRenderer turns a payload into an email.
type MessageRenderer interface {
	Render(p digest.Payload) (mailer.Message, error)
}

// Outcome summarizes a finished run.
type Outcome string

const (
	Complete Outcome = "complete"
	Partial  Outcome = "partial"
)

// Report counts what happened to each subscriber of a run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Total    int
	Sent     int
	Skipped  int
	Failed   int
}

// Outcome is Partial when at least one subscriber failed.
func (r Report) Outcome() Outcome {
	if r.Failed > 0 {
		return Partial
	}
	return Complete
}

// Runner executes one daily batch: load subscribers, fetch the market
// snapshot once, then build, render and send each email.
type Runner struct {
	subscribers SubscriberLister
	fetcher     SnapshotFetcher
	articles    ArticleCollector
	renderer    MessageRenderer
	transport   mailer.Transport
	baseURL     string
	workers     int
	logger      *slog.Logger
	now         func() time.Time
}

// NewRunner wires the collaborators of a run. workers below one means
// sequential processing.
func NewRunner(
	subscribers SubscriberLister,
	fetcher SnapshotFetcher,
	articles ArticleCollector,
	renderer MessageRenderer,
	transport mailer.Transport,
	baseURL string,
	workers int,
	logger *slog.Logger,
) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		subscribers: subscribers,
		fetcher:     fetcher,
		articles:    articles,
		renderer:    renderer,
		transport:   transport,
		baseURL:     baseURL,
		workers:     workers,
		logger:      logger,
		now:         time.Now,
	}
}

// Run processes every subscriber. Per-subscriber failures are counted and
// never stop the run; only a failure to load the subscribers aborts it.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), Started: r.now()}
	log := r.logger.With("run_id", report.RunID)

	subs, err := r.subscribers.All()
	if err != nil {
		return report, errors.Wrap(err, "load subscribers")
	}
	report.Total = len(subs)
	log.Info("run started", "subscribers", len(subs), "workers", r.workers)

	var snap *market.Snapshot
	if req := market.RequestFor(subs); !req.Empty() {
		snap = r.fetcher.Fetch(ctx, req)
	}

	var mu sync.Mutex
	count := func(res result) {
		mu.Lock()
		defer mu.Unlock()
		switch res {
		case sent:
			report.Sent++
		case skipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(r.workers)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			count(r.process(ctx, log, sub, snap))
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = r.now()
	log.Info("run finished",
		"outcome", string(report.Outcome()),
		"total", report.Total,
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Finished.Sub(report.Started).String(),
	)
	return report, nil
}

type result int

const (
	failed result = iota
	sent
	skipped
)

func (r *Runner) process(ctx context.Context, log *slog.Logger, sub models.Subscriber, snap *market.Snapshot) result {
	log = log.With("subscriber_id", sub.ID)

	if err := ctx.Err(); err != nil {
		log.Warn("subscriber not processed", "error", err)
		return failed
	}

	articles := r.articles.Collect(ctx, sub.Keywords())
	payload := digest.Build(sub, snap, articles, digest.LinksFor(r.baseURL, sub.Token))
	if payload.Empty() {
		log.Info("nothing to send")
		return skipped
	}

	msg, err := r.renderer.Render(payload)
	if err != nil {
		log.Error("render failed", "error", err)
		return failed
	}
	if err := r.transport.Send(ctx, msg); err != nil {
		log.Error("send failed", "error", err)
		return failed
	}

	log.Info("digest sent", "articles", len(payload.Articles), "market", payload.HasMarket())
	return sent
}
