package alignment

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Job is one independent estimation, for example one slave band or tile.
type Job struct {
	Name    string
	Pairs   []PointPair
	Options Options
}

// JobResult pairs a job with its outcome. Exactly one of Result and Err is set.
type JobResult struct {
	Name   string
	Result *Result
	Err    error
}

// EstimateAll runs independent jobs concurrently, at most workers at a time
// (GOMAXPROCS when workers <= 0). A failing job does not stop the others.
// Jobs not yet started when ctx is cancelled report ctx.Err().
func EstimateAll(ctx context.Context, jobs []Job, workers int, logger Logger) []JobResult {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]JobResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		results[i].Name = job.Name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			e, err := NewEstimator(job.Options)
			if err != nil {
				results[i].Err = err
				return nil
			}
			if logger != nil {
				e = e.WithLogger(logger)
			}
			results[i].Result, results[i].Err = e.Estimate(job.Pairs)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
