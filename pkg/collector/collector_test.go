package collector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allinattendees/pkg/checkpoint"
	"allinattendees/pkg/errors"
	"allinattendees/pkg/logger"
	"allinattendees/pkg/swapcard"
)

// scriptedFetcher replays a fixed sequence of pages. Each call to
// FetchFirstPage or FetchNextPage consumes the next entry.
type scriptedFetcher struct {
	pages []pageOrErr
	calls int
}

type pageOrErr struct {
	page swapcard.Page
	err  error
}

func (s *scriptedFetcher) next() (swapcard.Page, error) {
	if s.calls >= len(s.pages) {
		return swapcard.Page{}, nil
	}
	entry := s.pages[s.calls]
	s.calls++
	return entry.page, entry.err
}

func (s *scriptedFetcher) FetchFirstPage(ctx context.Context) (swapcard.Page, error) {
	return s.next()
}

func (s *scriptedFetcher) FetchNextPage(ctx context.Context, cursor string) (swapcard.Page, error) {
	return s.next()
}

// loopFetcher returns the same page forever, simulating an upstream
// whose cursor never advances.
type loopFetcher struct {
	page  swapcard.Page
	calls int
}

func (l *loopFetcher) FetchFirstPage(ctx context.Context) (swapcard.Page, error) {
	l.calls++
	return l.page, nil
}

func (l *loopFetcher) FetchNextPage(ctx context.Context, cursor string) (swapcard.Page, error) {
	l.calls++
	return l.page, nil
}

// recordingSnapshotter captures every saved state.
type recordingSnapshotter struct {
	states []*checkpoint.RunState
}

func (r *recordingSnapshotter) Save(state *checkpoint.RunState) error {
	r.states = append(r.states, state)
	return nil
}

func attendees(ids ...string) []swapcard.Attendee {
	records := make([]swapcard.Attendee, 0, len(ids))
	for _, id := range ids {
		records = append(records, swapcard.Attendee{ID: id, FirstName: "F" + id})
	}
	return records
}

func ids(records []swapcard.Attendee) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func testOptions() Options {
	return Options{
		MaxPages:           200,
		EmptyPageTolerance: 3,
		CheckpointEvery:    10,
		PageDelay:          0,
	}
}

func TestRunCollectsAllPagesUntilExhausted(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{page: swapcard.Page{Records: attendees("a", "b"), EndCursor: "c1", HasMore: true, TotalCount: 6}},
		{page: swapcard.Page{Records: attendees("c", "d"), EndCursor: "c2", HasMore: true}},
		{page: swapcard.Page{Records: attendees("e"), HasMore: false}},
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.NoError(t, result.Err)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 6, result.ExpectedTotal)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(result.Records))
}

func TestRunDeduplicatesOverlappingPages(t *testing.T) {
	// Consecutive pages share a boundary record, as happens when the
	// upstream listing shifts under the cursor.
	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{page: swapcard.Page{Records: attendees("a", "b"), EndCursor: "c1", HasMore: true}},
		{page: swapcard.Page{Records: attendees("b", "c"), HasMore: false}},
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Equal(t, []string{"a", "b", "c"}, ids(result.Records))
}

func TestRunPreservesFirstObservation(t *testing.T) {
	// A duplicate carries different field values; the first observed
	// version wins.
	first := swapcard.Attendee{ID: "a", FirstName: "original"}
	dup := swapcard.Attendee{ID: "a", FirstName: "changed"}

	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{page: swapcard.Page{Records: []swapcard.Attendee{first}, EndCursor: "c1", HasMore: true}},
		{page: swapcard.Page{Records: []swapcard.Attendee{dup, {ID: "b"}}, HasMore: false}},
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	require.Len(t, result.Records, 2)
	assert.Equal(t, "original", result.Records[0].FirstName)
}

func TestRunSkipsRecordsWithoutID(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{page: swapcard.Page{Records: []swapcard.Attendee{{ID: "a"}, {FirstName: "no-id"}, {ID: "b"}}, HasMore: false}},
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, []string{"a", "b"}, ids(result.Records))
}

func TestRunStopsAtExpectedTotal(t *testing.T) {
	// The upstream claims 5 attendees but keeps paging; the run must stop
	// once the collected count reaches the claim. The final page is
	// appended whole, so the result may slightly exceed the total.
	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{page: swapcard.Page{Records: attendees("a", "b"), EndCursor: "c1", HasMore: true, TotalCount: 5}},
		{page: swapcard.Page{Records: attendees("c", "d"), EndCursor: "c2", HasMore: true}},
		{page: swapcard.Page{Records: attendees("e", "f"), EndCursor: "c3", HasMore: true}},
		{page: swapcard.Page{Records: attendees("g", "h"), EndCursor: "c4", HasMore: true}},
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonTargetReached, result.Reason)
	assert.Equal(t, 3, result.Pages)
	assert.Len(t, result.Records, 6)
	assert.Equal(t, 3, fetcher.calls)
}

func TestRunStopsWhenStalled(t *testing.T) {
	// The upstream keeps returning the same page with has_more set; after
	// the tolerance of consecutive pages with no new records the run ends.
	fetcher := &loopFetcher{page: swapcard.Page{
		Records:   attendees("a", "b"),
		EndCursor: "stuck",
		HasMore:   true,
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonStalled, result.Reason)
	assert.Equal(t, []string{"a", "b"}, ids(result.Records))
	// First page plus exactly EmptyPageTolerance barren pages
	assert.Equal(t, 4, fetcher.calls)
}

func TestRunHitsSafetyLimit(t *testing.T) {
	// Every page yields a fresh record so the stall detector never
	// fires; only the page cap bounds the run.
	pages := make([]pageOrErr, 0, 50)
	for i := 0; i < 50; i++ {
		pages = append(pages, pageOrErr{page: swapcard.Page{
			Records:   attendees(fmt.Sprintf("id-%d", i)),
			EndCursor: fmt.Sprintf("c%d", i),
			HasMore:   true,
		}})
	}
	fetcher := &scriptedFetcher{pages: pages}

	opts := testOptions()
	opts.MaxPages = 10

	c := New(fetcher, nil, opts, logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonSafetyLimit, result.Reason)
	assert.Equal(t, 10, result.Pages)
	assert.Equal(t, 10, fetcher.calls)
	assert.Len(t, result.Records, 10)
}

func TestRunTerminatesOnEndlessIdenticalPages(t *testing.T) {
	// Belt and braces: even with a huge page cap an upstream loop must
	// not run unbounded.
	fetcher := &loopFetcher{page: swapcard.Page{
		Records:   attendees("x"),
		EndCursor: "same",
		HasMore:   true,
	}}

	opts := testOptions()
	opts.MaxPages = 100000

	c := New(fetcher, nil, opts, logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonStalled, result.Reason)
	assert.Less(t, fetcher.calls, 10)
}

func TestRunAbortsOnTransportErrorWithPartialResults(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{page: swapcard.Page{Records: attendees("a", "b"), EndCursor: "c1", HasMore: true}},
		{page: swapcard.Page{Records: attendees("c", "d"), EndCursor: "c2", HasMore: true}},
		{err: errors.NewTransport("connection reset", 0)},
	}}

	snapshots := &recordingSnapshotter{}
	c := New(fetcher, snapshots, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonAborted, result.Reason)
	assert.Error(t, result.Err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(result.Records))

	// A final checkpoint captures the partial accumulation
	require.NotEmpty(t, snapshots.states)
	last := snapshots.states[len(snapshots.states)-1]
	assert.Len(t, last.Records, 4)
	assert.Len(t, last.SeenIDs, 4)
}

func TestRunAbortsOnFirstPageError(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{err: errors.NewTransport("connection refused", 0)},
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonAborted, result.Reason)
	assert.Error(t, result.Err)
	assert.Empty(t, result.Records)
}

func TestRunSinglePageListing(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{page: swapcard.Page{Records: attendees("a", "b", "c"), HasMore: false, TotalCount: 3}},
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonTargetReached, result.Reason)
	assert.Equal(t, 1, result.Pages)
	assert.Len(t, result.Records, 3)
}

func TestRunEmptyListing(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []pageOrErr{
		{page: swapcard.Page{HasMore: false}},
	}}

	c := New(fetcher, nil, testOptions(), logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Empty(t, result.Records)
}

func TestRunCheckpointsAtInterval(t *testing.T) {
	pages := make([]pageOrErr, 0, 25)
	for i := 0; i < 25; i++ {
		hasMore := i < 24
		pages = append(pages, pageOrErr{page: swapcard.Page{
			Records:   attendees(fmt.Sprintf("id-%d", i)),
			EndCursor: fmt.Sprintf("c%d", i),
			HasMore:   hasMore,
		}})
	}
	fetcher := &scriptedFetcher{pages: pages}

	snapshots := &recordingSnapshotter{}
	opts := testOptions()
	opts.CheckpointEvery = 10

	c := New(fetcher, snapshots, opts, logger.NewNopLogger())
	result := c.Run(context.Background())

	assert.Equal(t, ReasonExhausted, result.Reason)
	require.Len(t, snapshots.states, 2)

	// Every snapshot upholds the dedup invariant and records its page
	assert.Equal(t, 10, snapshots.states[0].PageNumber)
	assert.Equal(t, 20, snapshots.states[1].PageNumber)
	for _, state := range snapshots.states {
		assert.Equal(t, len(state.Records), len(state.SeenIDs))
		assert.Equal(t, ids(state.Records), state.SeenIDs)
	}
}

func TestRunIsIdempotentAcrossReruns(t *testing.T) {
	makeFetcher := func() *scriptedFetcher {
		return &scriptedFetcher{pages: []pageOrErr{
			{page: swapcard.Page{Records: attendees("a", "b"), EndCursor: "c1", HasMore: true}},
			{page: swapcard.Page{Records: attendees("b", "c"), HasMore: false}},
		}}
	}

	first := New(makeFetcher(), nil, testOptions(), logger.NewNopLogger()).Run(context.Background())
	second := New(makeFetcher(), nil, testOptions(), logger.NewNopLogger()).Run(context.Background())

	assert.Equal(t, ids(first.Records), ids(second.Records))
	assert.Equal(t, first.Reason, second.Reason)
}

func TestRunCancelledContextAborts(t *testing.T) {
	fetcher := &loopFetcher{page: swapcard.Page{
		Records:   attendees("a"),
		EndCursor: "c1",
		HasMore:   true,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := testOptions()
	opts.PageDelay = 50 * time.Millisecond // the inter-page wait observes ctx

	c := New(fetcher, nil, opts, logger.NewNopLogger())
	result := c.Run(ctx)

	assert.Equal(t, ReasonAborted, result.Reason)
	assert.Error(t, result.Err)
	// First page results are kept
	assert.Equal(t, []string{"a"}, ids(result.Records))
}
