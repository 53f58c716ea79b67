package converter

import (
	"context"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// =============================================================================
// WORKER POOL
// =============================================================================
//
// Files are processed by a bounded pool. Each job owns the result slot at its
// own index, so the output order is the job order no matter which worker
// finishes first. A failing file only fails its own slot.
//
// Row numbering is not done by the workers: the merge phase owns a Counter
// and assigns "Linhas" 1..N in file order after every job has finished.
//
// =============================================================================

// DefaultReserve is the number of CPUs left free by Workers.
const DefaultReserve = 2

// Job is one file to process.
type Job struct {
	Path     string
	Variant  types.Variant
	Encoding string
}

// RunFunc processes one job.
type RunFunc func(ctx context.Context, job Job) Result

// Workers returns max(1, NumCPU - reserve), capped by max when max > 0.
func Workers(reserve, max int) int {
	n := runtime.NumCPU() - reserve
	if n < 1 {
		n = 1
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// RunAll runs fn over jobs with at most workers running at once and
// returns the results in job order.
func RunAll(ctx context.Context, jobs []Job, workers int, fn RunFunc) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{FilePath: job.Path, Variant: job.Variant, Error: err}
				return nil
			}
			results[i] = fn(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RunFiles is RunAll with a Converter session per job.
func RunFiles(ctx context.Context, jobs []Job, workers int, cfg Config, logger Logger) []Result {
	return RunAll(ctx, jobs, workers, func(ctx context.Context, job Job) Result {
		return New(job.Path, job.Variant, job.Encoding, cfg, logger).Run(ctx)
	})
}

// =============================================================================
// MERGE
// =============================================================================

// Counter hands out consecutive row numbers starting at 1.
type Counter struct {
	n int
}

// Next returns the next number.
func (c *Counter) Next() int {
	c.n++
	return c.n
}

// Merged is the concatenation of every successful result.
type Merged struct {
	// Rows are all rows in file order, "Linhas" numbered 1..N.
	Rows []types.Row

	// ByVariant holds the same rows split by "EFD Tipo".
	ByVariant map[types.Variant][]types.Row

	// Succeeded and Failed partition the results, in file order.
	Succeeded []Result
	Failed    []Result
}

// Merge concatenates the rows of the successful results in the given order
// and renumbers "Linhas" from counter.
func Merge(results []Result, counter *Counter) Merged {
	merged := Merged{ByVariant: make(map[types.Variant][]types.Row)}
	for _, r := range results {
		if !r.Success {
			merged.Failed = append(merged.Failed, r)
			continue
		}
		merged.Succeeded = append(merged.Succeeded, r)
		for _, row := range r.Rows {
			row[catalog.ColLinhas] = strconv.Itoa(counter.Next())
			merged.Rows = append(merged.Rows, row)
			v := types.Variant(row[catalog.ColEFDTipo])
			merged.ByVariant[v] = append(merged.ByVariant[v], row)
		}
	}
	return merged
}
