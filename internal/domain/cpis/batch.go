package cpis

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchOutcome is the result for one subject of a batch. Err is set when
// that subject alone failed.
type BatchOutcome struct {
	SubjectID string
	Result    Result
	Err       error
}

// ComputeBatch scores every input on up to workers goroutines. Failures,
// including panics, stay local to their subject. Once ctx is done, subjects
// not yet started are reported with ctx.Err().
func (e *Engine) ComputeBatch(ctx context.Context, inputs []Input, workers int) []BatchOutcome {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]BatchOutcome, len(inputs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, in := range inputs {
		out[i].SubjectID = in.SubjectID
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Result, out[i].Err = e.computeIsolated(in)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) computeIsolated(in Input) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("cpis: subject %q panicked: %v", in.SubjectID, r)
		}
	}()
	return e.Compute(in)
}

// Failed counts outcomes with an error.
func Failed(outcomes []BatchOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
