package ingest

import (
	"context"
	"fmt"

	"github.com/japaniel/wikivir/pkg/wiki"
)

// DocumentProcessor turns one staged document into a record. Implementations
// must be safe for concurrent use when more than one worker is configured.
type DocumentProcessor interface {
	Process(index int) (*wiki.Record, wiki.Reason)
}

// EmitFunc receives processing results in index order. rec is nil when
// reason is not wiki.Accepted.
type EmitFunc func(index int, rec *wiki.Record, reason wiki.Reason) error

// StagedRunner processes staged documents 0..n-1 and emits results in index
// order regardless of which worker finished first.
type StagedRunner struct {
	Workers int
	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// ProcessStaged runs a StagedRunner with the given worker count.
func ProcessStaged(ctx context.Context, proc DocumentProcessor, n, workers int, emit EmitFunc) error {
	return (&StagedRunner{Workers: workers}).Run(ctx, proc, n, emit)
}

type processedDocument struct {
	index  int
	record *wiki.Record
	reason wiki.Reason
}

// Run processes n documents. An error from emit stops the run.
func (s *StagedRunner) Run(ctx context.Context, proc DocumentProcessor, n int, emit EmitFunc) error {
	if s.Workers <= 1 && s.PoolFactory == nil {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, reason := proc.Process(i)
			if err := emit(i, rec, reason); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if s.PoolFactory != nil {
		wp = s.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}
	wp.Start(ctx)

	resultCh := make(chan processedDocument, workers*2)
	submitErr := make(chan error, 1)

	// Producer: queue one job per index, then close the pool so resultCh can
	// be closed once every running job has delivered.
	go func() {
		defer close(resultCh)
		defer wp.Close()
		for i := 0; i < n; i++ {
			idx := i
			err := wp.SubmitCtx(ctx, func(ctx context.Context) error {
				rec, reason := proc.Process(idx)
				select {
				case resultCh <- processedDocument{index: idx, record: rec, reason: reason}:
				case <-ctx.Done():
				}
				return nil
			})
			if err != nil {
				if err != ctx.Err() {
					submitErr <- fmt.Errorf("submit document %d: %w", idx, err)
				}
				cancel()
				return
			}
		}
	}()

	// Consumer: reassemble in index order.
	pending := make(map[int]processedDocument)
	next := 0
	var emitErr error
	for res := range resultCh {
		if emitErr != nil {
			continue
		}
		pending[res.index] = res
		for {
			item, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := emit(item.index, item.record, item.reason); err != nil {
				emitErr = err
				cancel()
				break
			}
			next++
		}
	}

	if emitErr != nil {
		return emitErr
	}
	select {
	case err := <-submitErr:
		return err
	default:
	}
	if next < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("processed %d of %d documents", next, n)
	}
	return nil
}
