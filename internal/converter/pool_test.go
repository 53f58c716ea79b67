package converter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// fakeRun returns two rows per job and fails the job named "bad". Later jobs
// finish first.
func fakeRun(total int) RunFunc {
	return func(ctx context.Context, job Job) Result {
		idx, _ := strconv.Atoi(job.Path[len("job-"):])
		time.Sleep(time.Duration(total-idx) * time.Millisecond)
		if idx == 2 {
			return Result{FilePath: job.Path, Variant: job.Variant, Error: errors.New("bad")}
		}
		var rows []types.Row
		for i := 1; i <= 2; i++ {
			rows = append(rows, types.Row{
				catalog.ColLinhas:  strconv.Itoa(i),
				catalog.ColArquivo: job.Path,
				catalog.ColEFDTipo: job.Variant.String(),
			})
		}
		return Result{FilePath: job.Path, Variant: job.Variant, Rows: rows, Success: true}
	}
}

func fakeJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		variant := types.ICMSIPI
		if i%2 == 1 {
			variant = types.Contribuicoes
		}
		jobs[i] = Job{Path: fmt.Sprintf("job-%d", i), Variant: variant}
	}
	return jobs
}

func TestRunAllKeepsJobOrder(t *testing.T) {
	jobs := fakeJobs(6)

	var first []types.Row
	for _, workers := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			results := RunAll(context.Background(), jobs, workers, fakeRun(len(jobs)))
			require.Len(t, results, len(jobs))
			for i, r := range results {
				assert.Equal(t, jobs[i].Path, r.FilePath)
				assert.Equal(t, i != 2, r.Success)
			}

			merged := Merge(results, &Counter{})
			require.Len(t, merged.Rows, 10)
			require.Len(t, merged.Failed, 1)
			assert.Equal(t, "job-2", merged.Failed[0].FilePath)
			for i, row := range merged.Rows {
				assert.Equal(t, strconv.Itoa(i+1), row[catalog.ColLinhas])
			}
			assert.Equal(t, "job-0", merged.Rows[0][catalog.ColArquivo])
			assert.Equal(t, "job-5", merged.Rows[9][catalog.ColArquivo])

			if first == nil {
				first = merged.Rows
				return
			}
			assert.Equal(t, first, merged.Rows)
		})
	}
}

func TestRunAllRespectsLimit(t *testing.T) {
	var running, peak int32
	fn := func(ctx context.Context, job Job) Result {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return Result{FilePath: job.Path, Success: true}
	}

	results := RunAll(context.Background(), fakeJobs(8), 2, fn)
	require.Len(t, results, 8)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	results := RunAll(ctx, fakeJobs(3), 2, func(ctx context.Context, job Job) Result {
		called = true
		return Result{Success: true}
	})
	require.Len(t, results, 3)
	assert.False(t, called)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("job-%d", i), r.FilePath)
		assert.ErrorIs(t, r.Error, context.Canceled)
		assert.False(t, r.Success)
	}
}

func TestWorkers(t *testing.T) {
	cpus := runtime.NumCPU()
	assert.Equal(t, 1, Workers(cpus+10, 0))
	assert.Equal(t, 1, Workers(0, 1))
	assert.Equal(t, max(1, cpus-DefaultReserve), Workers(DefaultReserve, 0))
	assert.LessOrEqual(t, Workers(0, 2), 2)
}

func TestMergeByVariant(t *testing.T) {
	results := RunAll(context.Background(), fakeJobs(4), 4, fakeRun(4))
	merged := Merge(results, &Counter{})

	icms := merged.ByVariant[types.ICMSIPI]
	contrib := merged.ByVariant[types.Contribuicoes]
	require.Len(t, icms, 2, "job-2 failed")
	require.Len(t, contrib, 4)
	assert.Equal(t, "1", icms[0][catalog.ColLinhas])
	assert.Equal(t, "3", contrib[0][catalog.ColLinhas])
	assert.Equal(t, "6", contrib[3][catalog.ColLinhas])
}

func TestCounterContinues(t *testing.T) {
	counter := &Counter{}
	assert.Equal(t, 1, counter.Next())

	results := []Result{{Success: true, Rows: []types.Row{{}, {}}}}
	merged := Merge(results, counter)
	assert.Equal(t, "2", merged.Rows[0][catalog.ColLinhas])
	assert.Equal(t, "3", merged.Rows[1][catalog.ColLinhas])
	assert.Equal(t, 4, counter.Next())
}
