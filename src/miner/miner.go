// Package miner runs proof-of-work searches on a fixed pool of worker
// goroutines, so that CPU bound mining never runs on a message handler or
// while the chain lock is held.
package miner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/block"
	"github.com/sirupsen/logrus"
)

// ErrMinerClosed is returned for jobs submitted to, or interrupted by, a
// closed Miner.
var ErrMinerClosed = errors.New("miner closed")

// Result is delivered once per job on the channel returned by Submit.
type Result struct {
	Block    *block.Block
	Duration time.Duration
	Err      error
}

type job struct {
	ctx        context.Context
	block      *block.Block
	difficulty int
	resultCh   chan Result
}

// Miner is a pool of mining workers.
type Miner struct {
	jobs   chan *job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	logger    *logrus.Entry
}

// New starts workers mining goroutines. At least one worker is started.
func New(workers int, logger *logrus.Entry) *Miner {
	if workers < 1 {
		workers = 1
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.InfoLevel
		logger = logrus.NewEntry(log)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Miner{
		jobs:   make(chan *job, 4*workers),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.work(i)
	}

	return m
}

// Submit queues b for mining at difficulty. The block is mined in place and
// handed back on the returned channel, which receives exactly one Result.
// Cancelling ctx abandons the job.
func (m *Miner) Submit(ctx context.Context, b *block.Block, difficulty int) <-chan Result {
	resultCh := make(chan Result, 1)

	j := &job{
		ctx:        ctx,
		block:      b,
		difficulty: difficulty,
		resultCh:   resultCh,
	}

	select {
	case <-m.ctx.Done():
		resultCh <- Result{Err: ErrMinerClosed}
		return resultCh
	default:
	}

	select {
	case m.jobs <- j:
	case <-ctx.Done():
		resultCh <- Result{Err: ctx.Err()}
	case <-m.ctx.Done():
		resultCh <- Result{Err: ErrMinerClosed}
	}

	return resultCh
}

// Mine is Submit followed by a wait for the result.
func (m *Miner) Mine(ctx context.Context, b *block.Block, difficulty int) (*block.Block, error) {
	res := <-m.Submit(ctx, b, difficulty)
	return res.Block, res.Err
}

// Close cancels running jobs, fails queued ones and waits for the workers.
func (m *Miner) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		m.wg.Wait()

		for {
			select {
			case j := <-m.jobs:
				j.resultCh <- Result{Err: ErrMinerClosed}
			default:
				return
			}
		}
	})
}

func (m *Miner) work(id int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case j := <-m.jobs:
			j.resultCh <- m.run(id, j)
		}
	}
}

func (m *Miner) run(id int, j *job) Result {
	if err := j.ctx.Err(); err != nil {
		return Result{Err: err}
	}

	// the job stops on either the caller's or the miner's cancellation
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	go func() {
		select {
		case <-m.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	err := j.block.Mine(ctx, j.difficulty)
	elapsed := time.Since(start)

	if err != nil {
		if m.ctx.Err() != nil {
			err = ErrMinerClosed
		}
		m.logger.WithFields(logrus.Fields{
			"worker": id,
			"index":  j.block.Index,
			"error":  err,
		}).Debug("mining abandoned")
		return Result{Err: err, Duration: elapsed}
	}

	m.logger.WithFields(logrus.Fields{
		"worker":   id,
		"index":    j.block.Index,
		"nonce":    j.block.Nonce,
		"hash":     j.block.Hash,
		"duration": elapsed,
	}).Info("Block mined")

	return Result{Block: j.block, Duration: elapsed}
}
