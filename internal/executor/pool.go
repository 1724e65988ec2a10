// Package executor runs blocking image-processing work on a bounded worker
// pool so request handlers never run inference on their own goroutine.
package executor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"go-attendance-server/internal/match"
)

// ErrQueueFull is returned by Submit when the pending queue is at capacity.
var ErrQueueFull = errors.New("request queue is full")

// Work is one image's pipeline run: decode, detect, match, annotate. It
// executes on a pool worker and must be self-contained.
type Work func() ([]match.DetectedFace, *image.NRGBA, error)

// Request is a single unit of work plus the channel its result arrives on.
type Request struct {
	SessionID  string
	ImageIndex int
	Run        Work

	ResultChan chan *Result
	QueuedAt   time.Time
}

// NewRequest wraps work for submission. The result channel is buffered so a
// worker can always deliver, even if the caller stopped waiting.
func NewRequest(sessionID string, imageIndex int, run Work) *Request {
	return &Request{
		SessionID:  sessionID,
		ImageIndex: imageIndex,
		Run:        run,
		ResultChan: make(chan *Result, 1),
	}
}

// Result is the outcome of one image's work.
type Result struct {
	ImageIndex int
	Faces      []match.DetectedFace
	Annotated  *image.NRGBA
	Err        error

	QueueTime   time.Duration
	ProcessTime time.Duration
	WorkerID    int
}

// WorkerStats is one worker's lifetime counters.
type WorkerStats struct {
	ID          int           `json:"id"`
	Processed   int64         `json:"processed"`
	Busy        bool          `json:"busy"`
	TotalActive time.Duration `json:"total_active_ns"`
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Workers       int           `json:"workers"`
	QueueDepth    int           `json:"queue_depth"`
	QueueCapacity int           `json:"queue_capacity"`
	TotalAccepted int64         `json:"total_accepted"`
	TotalRejected int64         `json:"total_rejected"`
	PerWorker     []WorkerStats `json:"per_worker"`
}

// Pool is a fixed-size worker pool with a bounded submission queue.
// Submit never blocks: a full queue rejects immediately so the serving
// layer can shed load instead of stacking it.
type Pool struct {
	workers      []*worker
	requestQueue chan *Request
	workerCount  int
	queueSize    int

	mu            sync.RWMutex
	totalAccepted int64
	totalRejected int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type worker struct {
	id          int
	pool        *Pool
	requestChan chan *Request

	mu          sync.RWMutex
	processed   int64
	totalActive time.Duration
	busy        bool
}

// NewPool starts workerCount workers sharing a queue of queueSize pending
// requests.
func NewPool(workerCount, queueSize int) *Pool {
	if workerCount < 1 {
		workerCount = 8
	}
	if queueSize < 1 {
		queueSize = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers:      make([]*worker, workerCount),
		requestQueue: make(chan *Request, queueSize),
		workerCount:  workerCount,
		queueSize:    queueSize,
		ctx:          ctx,
		cancel:       cancel,
	}

	for i := 0; i < workerCount; i++ {
		p.workers[i] = &worker{
			id:          i,
			pool:        p,
			requestChan: make(chan *Request, 1),
		}
	}

	p.wg.Add(1)
	go p.dispatcher()
	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run()
	}

	log.Printf("✅ Worker pool started with %d workers (queue size: %d)", workerCount, queueSize)
	return p
}

// Submit queues one request. It returns an error when the queue is full or
// the pool is shutting down; it never blocks the caller.
func (p *Pool) Submit(req *Request) error {
	req.QueuedAt = time.Now()

	select {
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
	}

	select {
	case p.requestQueue <- req:
		p.mu.Lock()
		p.totalAccepted++
		p.mu.Unlock()
		return nil
	default:
		p.mu.Lock()
		p.totalRejected++
		p.mu.Unlock()
		return fmt.Errorf("%w (%d/%d)", ErrQueueFull, len(p.requestQueue), p.queueSize)
	}
}

// dispatcher feeds queued requests to workers round-robin.
func (p *Pool) dispatcher() {
	defer p.wg.Done()

	idx := 0
	for {
		select {
		case req := <-p.requestQueue:
			w := p.workers[idx]
			idx = (idx + 1) % p.workerCount

			select {
			case w.requestChan <- req:
			case <-p.ctx.Done():
				return
			}

		case <-p.ctx.Done():
			return
		}
	}
}

// Stop shuts the pool down and waits for workers to exit. Requests still
// queued are dropped; callers awaiting them are expected to run under a
// deadline.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Snapshot returns current pool statistics.
func (p *Pool) Snapshot() Stats {
	p.mu.RLock()
	accepted, rejected := p.totalAccepted, p.totalRejected
	p.mu.RUnlock()

	s := Stats{
		Workers:       p.workerCount,
		QueueDepth:    len(p.requestQueue),
		QueueCapacity: p.queueSize,
		TotalAccepted: accepted,
		TotalRejected: rejected,
	}
	for _, w := range p.workers {
		w.mu.RLock()
		s.PerWorker = append(s.PerWorker, WorkerStats{
			ID:          w.id,
			Processed:   w.processed,
			Busy:        w.busy,
			TotalActive: w.totalActive,
		})
		w.mu.RUnlock()
	}
	return s
}

func (w *worker) run() {
	defer w.pool.wg.Done()

	log.Printf("🔧 Worker %d started", w.id)
	for {
		select {
		case req := <-w.requestChan:
			w.process(req)

		case <-w.pool.ctx.Done():
			log.Printf("🛑 Worker %d stopping", w.id)
			return
		}
	}
}

// process runs one request to completion. A panic inside the work function
// becomes an error result; it never takes the worker down.
func (w *worker) process(req *Request) {
	w.mu.Lock()
	w.busy = true
	w.mu.Unlock()

	result := &Result{
		ImageIndex: req.ImageIndex,
		WorkerID:   w.id,
		QueueTime:  time.Since(req.QueuedAt),
	}

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Err = fmt.Errorf("image %d processing panicked: %v", req.ImageIndex, r)
			}
		}()
		result.Faces, result.Annotated, result.Err = req.Run()
	}()
	result.ProcessTime = time.Since(start)

	w.mu.Lock()
	w.busy = false
	w.processed++
	w.totalActive += result.ProcessTime
	w.mu.Unlock()

	req.ResultChan <- result
}
