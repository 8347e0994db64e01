package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/mission-cli/internal/resilience"
)

var noRetry = resilience.Policy{MaxAttempts: 1}

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSplit(t *testing.T) {
	assert.Nil(t, Split([]int{}, 3))
	assert.Len(t, Split(ints(10), 3), 4)
	assert.Len(t, Split(ints(9), 3), 3)
	assert.Len(t, Split(ints(10), 0), 1)
	assert.Len(t, Split(ints(2), 25), 1)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4}}, Split(ints(5), 2))
}

func TestCallBatched_IssuesCeilBatches(t *testing.T) {
	tests := []struct{ n, size, want int }{
		{0, 25, 0},
		{1, 25, 1},
		{25, 25, 1},
		{26, 25, 2},
		{100, 25, 4},
		{101, 25, 5},
	}
	for _, tt := range tests {
		var calls atomic.Int32
		res := CallBatched(context.Background(), ints(tt.n), Options{Size: tt.size, Retry: noRetry},
			func(_ context.Context, b []int) ([]int, error) {
				calls.Add(1)
				return b, nil
			})
		assert.Equal(t, tt.want, int(calls.Load()), "n=%d size=%d", tt.n, tt.size)
		assert.Equal(t, tt.want, res.Batches)
		assert.Len(t, res.Accepted, tt.n)
	}
}

func TestCallBatched_FailureDoesNotAbortLaterBatches(t *testing.T) {
	var calls atomic.Int32
	res := CallBatched(context.Background(), ints(10), Options{Size: 3, Concurrency: 1, Retry: noRetry},
		func(_ context.Context, b []int) ([]int, error) {
			calls.Add(1)
			if b[0] == 3 {
				return nil, errors.New("provider exploded")
			}
			return b, nil
		})

	assert.Equal(t, int32(4), calls.Load())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.Failed[0].Index)
	assert.Equal(t, 3, res.Failed[0].Start)
	assert.Equal(t, 6, res.Failed[0].End)
	assert.False(t, res.Failed[0].Soft)
	assert.Equal(t, []int{0, 1, 2, 6, 7, 8, 9}, res.Accepted)
	assert.False(t, res.AllFailedHard())
	assert.Equal(t, 1, res.HardFailures())
}

func TestCallBatched_PreservesRequestOrderUnderConcurrency(t *testing.T) {
	res := CallBatched(context.Background(), ints(20), Options{Size: 4, Retry: noRetry},
		func(_ context.Context, b []int) ([]int, error) {
			// Earlier batches finish last.
			time.Sleep(time.Duration(20-b[0]) * time.Millisecond)
			out := make([]int, len(b))
			for i := range b {
				out[i] = b[len(b)-1-i]
			}
			return out, nil
		})

	require.Len(t, res.Accepted, 20)
	assert.Equal(t, []int{3, 2, 1, 0}, res.Accepted[:4])
	assert.Equal(t, []int{19, 18, 17, 16}, res.Accepted[16:])
}

func TestCallBatched_SoftFailures(t *testing.T) {
	res := CallBatched(context.Background(), ints(6), Options{Size: 2, Retry: noRetry},
		func(_ context.Context, b []int) ([]int, error) {
			switch b[0] {
			case 0:
				return nil, ErrNoJSON
			case 2:
				return nil, resilience.NewTransientError(errors.New("slow down"), 429)
			}
			return b, nil
		})

	require.Len(t, res.Failed, 2)
	assert.True(t, res.Failed[0].Soft)
	assert.True(t, res.Failed[1].Soft)
	assert.Equal(t, 0, res.HardFailures())
	assert.False(t, res.AllFailedHard())
	assert.Equal(t, []int{4, 5}, res.Accepted)
}

func TestCallBatched_AllFailedHard(t *testing.T) {
	res := CallBatched(context.Background(), ints(4), Options{Size: 2, Retry: noRetry},
		func(context.Context, []int) ([]int, error) {
			return nil, errors.New("401 unauthorized")
		})
	assert.True(t, res.AllFailedHard())
	assert.Error(t, res.FirstError())
	assert.Empty(t, res.Accepted)
}

func TestCallBatched_RetriesTransientBeforeFailing(t *testing.T) {
	var calls atomic.Int32
	res := CallBatched(context.Background(), ints(2), Options{
		Size:  2,
		Retry: resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}, func(_ context.Context, b []int) ([]int, error) {
		if calls.Add(1) < 3 {
			return nil, resilience.NewTransientError(errors.New("503"), 503)
		}
		return b, nil
	})
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, res.Failed)
	assert.Equal(t, []int{0, 1}, res.Accepted)
}

func TestCallBatched_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	CallBatched(context.Background(), ints(12), Options{Size: 1, Concurrency: 2, Retry: noRetry},
		func(_ context.Context, b []int) ([]int, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return b, nil
		})
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCallBatched_LimiterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := CallBatched(ctx, ints(2), Options{
		Size:    1,
		Limiter: rate.NewLimiter(rate.Every(time.Hour), 1),
		Retry:   noRetry,
	}, func(_ context.Context, b []int) ([]int, error) {
		return b, nil
	})
	assert.Len(t, res.Failed, 2)
}

func TestCallBatched_OpenBreakerFailsFastAndSoft(t *testing.T) {
	breaker := resilience.NewBreaker("company-scorer", resilience.BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Hour,
		ShouldTrip:       TripsBreaker,
	})
	retry := resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	var calls atomic.Int32
	res := CallBatched(context.Background(), ints(10), Options{Size: 2, Concurrency: 1, Retry: retry, Breaker: breaker},
		func(context.Context, []int) ([]int, error) {
			calls.Add(1)
			return nil, resilience.NewTransientError(errors.New("bad gateway"), 502)
		})

	// The first batch's retries open the breaker; every later attempt is
	// refused without reaching the collaborator.
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, resilience.BreakerOpen, breaker.State())
	require.Len(t, res.Failed, 5)
	for _, f := range res.Failed {
		assert.True(t, f.Soft)
		assert.ErrorIs(t, f.Err, resilience.ErrCircuitOpen)
	}
	assert.False(t, res.AllFailedHard())
	assert.Empty(t, res.Accepted)
}

func TestTripsBreaker(t *testing.T) {
	assert.False(t, TripsBreaker(ErrNoJSON))
	assert.False(t, TripsBreaker(resilience.NewTransientError(errors.New("slow down"), 429)))
	assert.False(t, TripsBreaker(resilience.ErrCircuitOpen))
	assert.False(t, TripsBreaker(context.Canceled))
	assert.True(t, TripsBreaker(errors.New("401 unauthorized")))
}
