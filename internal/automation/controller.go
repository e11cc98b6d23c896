package automation

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lifeos/memoryd/internal/clients/openai"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/repos"
)

// Outcome is one automation's dispatch result, keyed by Label in
// DispatchResult.Outcomes.
type Outcome struct {
	Status string `json:"status"` // "triggered", "skipped", or "error"
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DispatchResult is the aggregate of every automation the classifier
// elected for one summary.
type DispatchResult struct {
	Classification Classification     `json:"classification"`
	Outcomes       map[Label]Outcome `json:"outcomes"`
}

// Controller classifies a summary, then fans the triggered
// automations out concurrently and aggregates their outcomes. A failure in
// one automation never blocks another.
type Controller struct {
	log        *logger.Logger
	classifier *Classifier
	calendar   *CalendarExtractor
	highlights *HighlightsSink
}

func NewController(log *logger.Logger, chat openai.Client, poster CalendarPoster, highlightRepo repos.HighlightRepo) *Controller {
	base := log.With("component", "AutomationController")
	return &Controller{
		log:        base,
		classifier: NewClassifier(base, chat),
		calendar:   NewCalendarExtractor(base, chat, poster),
		highlights: NewHighlightsSink(base, highlightRepo),
	}
}

// Dispatch classifies the summary and runs every triggered automation
// concurrently, recording a per-label outcome regardless of individual
// failures.
func (c *Controller) Dispatch(ctx context.Context, userID, videoID, summary string) DispatchResult {
	classification := c.classifier.Classify(ctx, summary)

	outcomes := make(map[Label]Outcome, 2)
	var mu sync.Mutex
	set := func(label Label, o Outcome) {
		mu.Lock()
		outcomes[label] = o
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	if classification.Has(LabelCalendar) {
		g.Go(func() error {
			result := c.calendar.Extract(gctx, summary)
			status := "skipped"
			if result.Triggered {
				status = "triggered"
			}
			set(LabelCalendar, Outcome{Status: status, Result: result})
			return nil
		})
	}

	if classification.Has(LabelHighlights) {
		g.Go(func() error {
			dbc := dbctx.Context{Ctx: gctx}
			result := c.highlights.Record(dbc, userID, videoID)
			status := "skipped"
			if result.Triggered {
				status = "triggered"
			}
			set(LabelHighlights, Outcome{Status: status, Result: result})
			return nil
		})
	}

	// Dispatch errors are swallowed per-automation above; Wait only waits
	// for completion since neither goroutine returns a non-nil error.
	_ = g.Wait()

	return DispatchResult{Classification: classification, Outcomes: outcomes}
}
