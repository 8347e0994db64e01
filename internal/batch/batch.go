// Package batch calls external collaborators over fixed-size slices of input,
// isolating failures to the batch that produced them.
package batch

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/mission-cli/internal/resilience"
)

// Func calls a collaborator with one batch of items.
type Func[T, R any] func(ctx context.Context, batch []T) ([]R, error)

// Options configures a batched call.
type Options struct {
	// Name identifies the collaborator in logs.
	Name string
	// Size is the batch size. Zero or negative sends everything in one batch.
	Size int
	// Concurrency caps in-flight batches. Zero means unbounded.
	Concurrency int
	// Limiter throttles batch dispatch when set.
	Limiter *rate.Limiter
	// Retry is applied to each batch before it is recorded as failed.
	Retry resilience.Policy
	// Breaker, when set, fails batches fast while the collaborator is down.
	Breaker *resilience.Breaker
}

// Failure records one batch that produced no results.
type Failure struct {
	Index int   `json:"index"`
	Start int   `json:"start"`
	End   int   `json:"end"`
	Err   error `json:"-"`
	// Message is Err rendered for persistence.
	Message string `json:"message"`
	// Soft marks failures that are expected business noise: unparsable
	// responses and throttling.
	Soft bool `json:"soft"`
}

// Result holds the merged output of a batched call.
type Result[R any] struct {
	Accepted []R
	Failed   []Failure
	Batches  int
}

// HardFailures counts failures that were not soft.
func (r Result[R]) HardFailures() int {
	n := 0
	for _, f := range r.Failed {
		if !f.Soft {
			n++
		}
	}
	return n
}

// AllFailedHard reports whether at least one batch ran and every batch failed
// with a hard error. This is how a phase tells "the collaborator is down"
// apart from "the collaborator found nothing".
func (r Result[R]) AllFailedHard() bool {
	return r.Batches > 0 && r.HardFailures() == r.Batches
}

// FirstError returns the first recorded failure error, if any.
func (r Result[R]) FirstError() error {
	for _, f := range r.Failed {
		if !f.Soft {
			return f.Err
		}
	}
	if len(r.Failed) > 0 {
		return r.Failed[0].Err
	}
	return nil
}

// Split chunks items into batches of size. Size <= 0 yields a single batch.
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// CallBatched splits items into ceil(N/Size) batches and calls fn for each.
// A failed batch is recorded and the remaining batches still run. Accepted
// results keep each batch's own ordering, and batches are concatenated in
// request order regardless of completion order.
func CallBatched[T, R any](ctx context.Context, items []T, opts Options, fn Func[T, R]) Result[R] {
	batches := Split(items, opts.Size)
	res := Result[R]{Batches: len(batches)}
	if len(batches) == 0 {
		return res
	}

	log := zap.L().With(zap.String("collaborator", opts.Name))
	retry := opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.LogRetries(opts.Name, "batch")
	}

	outputs := make([][]R, len(batches))
	errs := make([]error, len(batches))

	var g errgroup.Group
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i, b := range batches {
		g.Go(func() error {
			out, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]R, error) {
				return resilience.Call(ctx, opts.Breaker, func(ctx context.Context) ([]R, error) {
					if opts.Limiter != nil {
						if err := opts.Limiter.Wait(ctx); err != nil {
							return nil, eris.Wrap(err, "batch: rate limit wait")
						}
					}
					return fn(ctx, b)
				})
			})
			outputs[i] = out
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	start := 0
	for i, b := range batches {
		end := start + len(b)
		if err := errs[i]; err != nil {
			f := Failure{
				Index:   i,
				Start:   start,
				End:     end,
				Err:     err,
				Message: err.Error(),
				Soft:    IsSoft(err),
			}
			res.Failed = append(res.Failed, f)
			log.Warn("batch: collaborator batch failed",
				zap.Int("batch", i),
				zap.Int("start", start),
				zap.Int("end", end),
				zap.Bool("soft", f.Soft),
				zap.Error(err),
			)
		} else {
			res.Accepted = append(res.Accepted, outputs[i]...)
		}
		start = end
	}

	log.Debug("batch: call complete",
		zap.Int("items", len(items)),
		zap.Int("batches", res.Batches),
		zap.Int("failed", len(res.Failed)),
		zap.Int("accepted", len(res.Accepted)),
	)
	return res
}

// IsSoft reports whether err is an expected, non-fatal batch failure. A
// batch skipped by an open breaker is soft so one outage does not push the
// phase into error on its own; the failed range stays retryable.
func IsSoft(err error) bool {
	return errors.Is(err, ErrNoJSON) || resilience.IsThrottled(err) || errors.Is(err, resilience.ErrCircuitOpen)
}

// TripsBreaker reports whether err counts against a collaborator's breaker.
// Soft failures come from a collaborator that answered.
func TripsBreaker(err error) bool {
	return !IsSoft(err) && !errors.Is(err, context.Canceled)
}
