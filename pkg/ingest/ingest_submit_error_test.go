package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/japaniel/wikivir/pkg/wiki"
)

// failingPool always returns an error on Submit to simulate producer error.
type failingPool struct{}

func (f *failingPool) Start(ctx context.Context) {}
func (f *failingPool) Submit(job Job) error      { return errors.New("submit failed") }
func (f *failingPool) SubmitCtx(ctx context.Context, job Job) error {
	return errors.New("submit failed")
}
func (f *failingPool) Close() {}

func TestStagedRunnerHandlesSubmitError(t *testing.T) {
	runner := &StagedRunner{
		Workers:     2,
		PoolFactory: func(workers, queue int) WorkerPoolInterface { return &failingPool{} },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	emitted := 0
	err := runner.Run(ctx, fakeProcessor{}, 10, func(int, *wiki.Record, wiki.Reason) error {
		emitted++
		return nil
	})
	if err == nil {
		t.Fatalf("expected submit error, got nil")
	}
	if emitted != 0 {
		t.Fatalf("expected nothing emitted, got %d", emitted)
	}
}
