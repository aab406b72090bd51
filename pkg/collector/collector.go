package collector

import (
	"context"
	"time"

	"allinattendees/pkg/checkpoint"
	"allinattendees/pkg/logger"
	"allinattendees/pkg/retry"
	"allinattendees/pkg/swapcard"
)

// Reason identifies which termination condition ended a run. All
// reasons except ReasonAborted are successful completion.
type Reason string

const (
	// ReasonExhausted: upstream signalled no more pages
	ReasonExhausted Reason = "exhausted"
	// ReasonSafetyLimit: the max-pages bound was hit
	ReasonSafetyLimit Reason = "safety-limit-hit"
	// ReasonStalled: too many consecutive pages with no new records
	ReasonStalled Reason = "stalled"
	// ReasonTargetReached: collected count reached the upstream's total
	ReasonTargetReached Reason = "target-reached"
	// ReasonAborted: a transport error cut the run short
	ReasonAborted Reason = "aborted"
)

// PageFetcher retrieves pages of the people listing.
type PageFetcher interface {
	FetchFirstPage(ctx context.Context) (swapcard.Page, error)
	FetchNextPage(ctx context.Context, cursor string) (swapcard.Page, error)
}

// Snapshotter persists run state snapshots.
type Snapshotter interface {
	Save(state *checkpoint.RunState) error
}

// Options bound one collection run.
type Options struct {
	// MaxPages is the safety limit on total pages fetched
	MaxPages int
	// EmptyPageTolerance is how many consecutive pages may yield zero
	// new records before the run is considered stalled
	EmptyPageTolerance int
	// CheckpointEvery is the snapshot interval in pages
	CheckpointEvery int
	// PageDelay is the fixed sleep applied between page requests
	PageDelay time.Duration
}

// Result is the outcome of one collection run. Records are
// deduplicated by id in first-observation order. Err is only set when
// Reason is ReasonAborted, and the records are still the valid partial
// accumulation up to the failure.
type Result struct {
	Records       []swapcard.Attendee
	Reason        Reason
	Pages         int
	ExpectedTotal int
	Err           error
}

// Collector owns all state for one scraping run: the page fetcher, the
// dedup set, the cursor, and the accumulated record list. A collector
// is single-use; the next run gets a fresh instance.
type Collector struct {
	fetcher   PageFetcher
	snapshots Snapshotter
	opts      Options
	logger    logger.Logger

	records       []swapcard.Attendee
	seen          map[string]struct{}
	expectedTotal int
}

// New creates a collector. snapshots may be nil to disable
// checkpointing.
func New(fetcher PageFetcher, snapshots Snapshotter, opts Options, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Collector{
		fetcher:   fetcher,
		snapshots: snapshots,
		opts:      opts,
		logger:    log,
		seen:      make(map[string]struct{}),
	}
}

// Run drives the full pagination loop and returns the deduplicated
// record set. Run never returns early with an error: a transport
// failure ends the loop, a final checkpoint is written, and the
// partial accumulation is returned with Reason set to ReasonAborted.
func (c *Collector) Run(ctx context.Context) *Result {
	page := 1

	first, err := c.fetcher.FetchFirstPage(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Failed to fetch initial page")
		return c.finish(ReasonAborted, page, err)
	}

	if first.TotalCount > 0 {
		c.expectedTotal = first.TotalCount
		c.logger.InfoWithFields("Upstream reported total attendee count", map[string]interface{}{
			"expected_total": c.expectedTotal,
		})
	}

	newCount := c.appendNew(first.Records)
	c.logger.InfoWithFields("Initial page fetched", map[string]interface{}{
		"records":  len(first.Records),
		"new":      newCount,
		"has_more": first.HasMore,
	})

	cursor := first.EndCursor
	hasMore := first.HasMore
	consecutiveEmpty := 0

	if c.expectedTotal > 0 && len(c.seen) >= c.expectedTotal {
		return c.finish(ReasonTargetReached, page, nil)
	}

	for cursor != "" && hasMore {
		if page >= c.opts.MaxPages {
			c.logger.WarnWithFields("Safety page limit reached", map[string]interface{}{
				"max_pages": c.opts.MaxPages,
			})
			return c.finish(ReasonSafetyLimit, page, nil)
		}

		if err := retry.Wait(ctx, c.opts.PageDelay); err != nil {
			return c.finishWithCheckpoint(ReasonAborted, page, err)
		}

		page++
		next, err := c.fetcher.FetchNextPage(ctx, cursor)
		if err != nil {
			c.logger.WithError(err).WithField("page", page).Error("Page fetch failed, aborting run")
			return c.finishWithCheckpoint(ReasonAborted, page, err)
		}

		newCount := c.appendNew(next.Records)
		cursor = next.EndCursor
		hasMore = next.HasMore

		logger.LogCollectionProgress(page, len(c.seen), c.expectedTotal)

		if newCount == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= c.opts.EmptyPageTolerance {
				c.logger.WarnWithFields("No new records for consecutive pages, stopping", map[string]interface{}{
					"consecutive_empty": consecutiveEmpty,
				})
				return c.finish(ReasonStalled, page, nil)
			}
		} else {
			consecutiveEmpty = 0
		}

		if c.opts.CheckpointEvery > 0 && page%c.opts.CheckpointEvery == 0 {
			c.persistCheckpoint(page)
		}

		if c.expectedTotal > 0 && len(c.seen) >= c.expectedTotal {
			c.logger.InfoWithFields("Reached expected total", map[string]interface{}{
				"expected_total": c.expectedTotal,
			})
			return c.finish(ReasonTargetReached, page, nil)
		}
	}

	return c.finish(ReasonExhausted, page, nil)
}

// appendNew filters out records whose id has already been observed and
// appends the rest in response order. Returns the number of newly
// inserted records.
func (c *Collector) appendNew(records []swapcard.Attendee) int {
	added := 0
	for _, record := range records {
		if record.ID == "" {
			continue
		}
		if _, dup := c.seen[record.ID]; dup {
			continue
		}
		c.seen[record.ID] = struct{}{}
		c.records = append(c.records, record)
		added++
	}
	return added
}

func (c *Collector) persistCheckpoint(page int) {
	if c.snapshots == nil {
		return
	}

	seenIDs := make([]string, 0, len(c.records))
	for _, record := range c.records {
		seenIDs = append(seenIDs, record.ID)
	}

	state := &checkpoint.RunState{
		Records:       c.records,
		SeenIDs:       seenIDs,
		ExpectedTotal: c.expectedTotal,
		PageNumber:    page,
	}
	if err := c.snapshots.Save(state); err != nil {
		c.logger.WithError(err).Warn("Failed to save checkpoint")
	}
}

func (c *Collector) finish(reason Reason, page int, err error) *Result {
	c.logger.InfoWithFields("Collection run finished", map[string]interface{}{
		"reason":  string(reason),
		"pages":   page,
		"records": len(c.records),
	})
	return &Result{
		Records:       c.records,
		Reason:        reason,
		Pages:         page,
		ExpectedTotal: c.expectedTotal,
		Err:           err,
	}
}

// finishWithCheckpoint writes a final snapshot of the partial
// accumulation before returning an aborted result.
func (c *Collector) finishWithCheckpoint(reason Reason, page int, err error) *Result {
	c.persistCheckpoint(page)
	return c.finish(reason, page, err)
}
