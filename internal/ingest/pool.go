// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package ingest

import (
	"context"
	"sync"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

type job struct {
	ctx    context.Context
	raw    *models.RawSubmission
	result chan *models.SubmitResponse
}

// Pool is the bounded submission worker pool. The gateway hands it raw
// payloads and waits for the pipeline outcome; when the queue is full the
// caller gets an immediate retryable response instead of queueing
// unbounded.
type Pool struct {
	processor *Processor
	queue     chan job
	workers   int
}

// NewPool creates a pool with the given worker count and queue bound.
func NewPool(processor *Processor, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{
		processor: processor,
		queue:     make(chan job, queueSize),
		workers:   workers,
	}
}

func (p *Pool) String() string { return "ingest-pool" }

// Serve runs the workers until the context is canceled. Implements the
// supervised service contract.
func (p *Pool) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			metrics.IngestQueueDepth.Set(float64(len(p.queue)))
			if j.ctx.Err() != nil {
				// The submitting client already gave up.
				continue
			}
			resp := p.processor.Process(j.ctx, j.raw)
			select {
			case j.result <- resp:
			case <-j.ctx.Done():
			}
		}
	}
}

// Submit enqueues a submission and waits for its outcome. Returns
// retry-later immediately when the queue is full.
func (p *Pool) Submit(ctx context.Context, raw *models.RawSubmission) *models.SubmitResponse {
	j := job{ctx: ctx, raw: raw, result: make(chan *models.SubmitResponse, 1)}

	select {
	case p.queue <- j:
		metrics.IngestQueueDepth.Set(float64(len(p.queue)))
	default:
		logging.Ctx(ctx).Warn().Msg("Submission queue full")
		return &models.SubmitResponse{
			Outcome: models.OutcomeRetryLater,
			Message: "ingestion queue is full, retry shortly",
		}
	}

	select {
	case resp := <-j.result:
		return resp
	case <-ctx.Done():
		return &models.SubmitResponse{
			Outcome: models.OutcomeRetryLater,
			Message: "request canceled before processing completed",
		}
	}
}
