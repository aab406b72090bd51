// Package enricher fans per-attendee detail fetches out over a bounded
// worker pool. Each task is independent (one request per known id), so
// completion order is irrelevant; failures are isolated per record and
// never abort sibling work.
package enricher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"allinattendees/pkg/logger"
	"allinattendees/pkg/swapcard"
)

// Job is a single enrichment task.
type Job struct {
	Attendee swapcard.Attendee
}

// Result is the outcome of one enrichment task.
type Result struct {
	Job      Job
	Enriched swapcard.EnrichedAttendee
	Err      error
	Duration time.Duration
}

// DetailFetcher fetches detail fields for a single attendee.
type DetailFetcher interface {
	FetchPersonDetails(ctx context.Context, personID string) (*swapcard.PersonData, error)
}

// Pool manages concurrent detail-fetch workers.
type Pool struct {
	numWorkers  int
	taskDelay   time.Duration
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	fetcher     DetailFetcher
	logger      logger.Logger
}

// NewPool creates a detail-fetch worker pool. taskDelay is the fixed
// pause each worker applies before issuing a request, to keep the
// aggregate request rate polite.
func NewPool(numWorkers int, taskDelay time.Duration, fetcher DetailFetcher, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Pool{
		numWorkers:  numWorkers,
		taskDelay:   taskDelay,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		fetcher:     fetcher,
		logger:      log,
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) {
	p.logger.InfoWithFields("Starting enrichment pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit adds an enrichment job to the queue.
func (p *Pool) Submit(job Job) {
	p.jobQueue <- job
}

// Results returns the result channel for consuming enrichment results.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// Stop closes the job queue, waits for the workers to drain it, then
// closes the result channel.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.logger.Info("Enrichment pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		p.resultQueue <- p.processJob(ctx, job, id)
	}
}

func (p *Pool) processJob(ctx context.Context, job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if p.taskDelay > 0 {
		time.Sleep(p.taskDelay)
	}

	details, err := p.fetcher.FetchPersonDetails(ctx, job.Attendee.ID)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = fmt.Errorf("detail fetch failed: %w", err)
		p.logger.ErrorWithFields("Worker failed to fetch details", map[string]interface{}{
			"worker_id":   workerID,
			"attendee_id": job.Attendee.ID,
			"error":       err.Error(),
		})
		return result
	}

	result.Enriched = merge(job.Attendee, details)

	p.logger.DebugWithFields("Worker enriched attendee", map[string]interface{}{
		"worker_id":   workerID,
		"attendee_id": job.Attendee.ID,
		"duration":    result.Duration,
	})

	return result
}

// merge overlays detail fields on the directory record. Directory
// fields win when the detail response carries an empty value.
func merge(base swapcard.Attendee, details *swapcard.PersonData) swapcard.EnrichedAttendee {
	enriched := swapcard.EnrichedAttendee{
		Attendee:        base,
		AttendeeDetails: details.AttendeeDetails,
	}
	if details.JobTitle != "" {
		enriched.JobTitle = details.JobTitle
	}
	if details.Organization != "" {
		enriched.Organization = details.Organization
	}
	if details.Biography != "" {
		enriched.Biography = details.Biography
	}
	return enriched
}

// Outcome aggregates a full enrichment batch.
type Outcome struct {
	Enriched  []swapcard.EnrichedAttendee
	FailedIDs []string
}

// Process runs the full batch: submits every attendee, waits for all
// workers to finish, and aggregates results. Ordering of the enriched
// list follows completion order, not submission order; results are
// keyed by id so this does not matter downstream.
func Process(ctx context.Context, pool *Pool, attendees []swapcard.Attendee, log logger.Logger) *Outcome {
	if log == nil {
		log = logger.GetLogger()
	}

	outcome := &Outcome{}
	pool.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		processed := 0
		for result := range pool.Results() {
			processed++
			if result.Err != nil {
				outcome.FailedIDs = append(outcome.FailedIDs, result.Job.Attendee.ID)
			} else {
				outcome.Enriched = append(outcome.Enriched, result.Enriched)
			}
			if processed%50 == 0 {
				log.InfoWithFields("Enrichment progress", map[string]interface{}{
					"processed": processed,
					"total":     len(attendees),
				})
			}
		}
	}()

	for _, attendee := range attendees {
		pool.Submit(Job{Attendee: attendee})
	}
	pool.Stop()
	wg.Wait()

	log.InfoWithFields("Enrichment batch completed", map[string]interface{}{
		"succeeded": len(outcome.Enriched),
		"failed":    len(outcome.FailedIDs),
	})

	return outcome
}
