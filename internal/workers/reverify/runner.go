package reverify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"scandesk/internal/domain"
	"scandesk/internal/ports"
)

// Processor verifies one job and stores its new status.
type Processor interface {
	Process(ctx context.Context, category string, job ports.VerifyJob) (domain.VerificationOutcome, error)
}

// Source lists the jobs of a category that still need a confirmation.
type Source interface {
	PendingJobs(ctx context.Context, category string) ([]ports.VerifyJob, error)
}

type Summary struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
}

// Run feeds jobs to concurrency workers and blocks until all of them are
// done or ctx is cancelled. Jobs not dispatched before cancellation are
// left untouched.
func Run(ctx context.Context, category string, jobs []ports.VerifyJob, processor Processor, concurrency int, log logrus.FieldLogger) Summary {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	jobsCh := make(chan ports.VerifyJob, concurrency)

	// dispatcher
	go func() {
		defer close(jobsCh)
		for _, job := range jobs {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobsCh <- job:
			}
		}
	}()

	var (
		mu  sync.Mutex
		sum Summary
		wg  sync.WaitGroup
	)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				res, err := processor.Process(ctx, category, job)
				mu.Lock()
				sum.Checked++
				switch {
				case err != nil:
					sum.Failed++
				case res.Confirmed:
					sum.Confirmed++
				default:
					sum.Rejected++
				}
				mu.Unlock()
				if err != nil {
					log.WithFields(logrus.Fields{
						"worker":   idx,
						"category": category,
						"record":   job.RecordID,
					}).WithError(err).Error("reverify failed")
				}
			}
		}(i)
	}
	wg.Wait()
	return sum
}

// Category re-verifies every pending job of category.
func Category(ctx context.Context, src Source, processor Processor, category string, concurrency int, log logrus.FieldLogger) (Summary, error) {
	jobs, err := src.PendingJobs(ctx, category)
	if err != nil {
		return Summary{}, err
	}
	return Run(ctx, category, jobs, processor, concurrency, log), nil
}
