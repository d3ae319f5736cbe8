// Package retrypolicy holds the pure, side-effect-free retry decisions used
// by the uploader, the queued client and the managed dispatcher. A policy
// never sleeps or retries anything itself — it only answers "given this
// attempt index, should the caller try again, and after how long".
package retrypolicy

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy decides whether attempt should be retried and, if so, how long the
// caller should wait first. attempt is zero-based: the first retry
// decision is made with attempt == 0, after the first try has already
// failed.
type Policy interface {
	MoveNext(attempt uint32) (shouldRetry bool, delay time.Duration)
}

// None never retries. It backs validation-style call sites where a single
// attempt is all the spec allows.
type None struct{}

func (None) MoveNext(uint32) (bool, time.Duration) { return false, 0 }

// Simple retries up to totalRetries times with a fixed interval between
// attempts.
type Simple struct {
	TotalRetries uint32
	Interval     time.Duration
}

func (s Simple) MoveNext(attempt uint32) (bool, time.Duration) {
	if attempt >= s.TotalRetries {
		return false, 0
	}
	return true, s.Interval
}

// Custom retries once per entry in Intervals, in order, then stops. (The
// uploader's container-cycling retry and the queued client's three-attempt
// queue post both default to Simple, not Custom.)
type Custom struct {
	Intervals []time.Duration
}

func (c Custom) MoveNext(attempt uint32) (bool, time.Duration) {
	if int(attempt) >= len(c.Intervals) {
		return false, 0
	}
	return true, c.Intervals[attempt]
}

// Managed is Custom with up to JitterMilli ms of uniform random jitter added
// to each interval, matching §4.5's streaming retry delays of
// [1s, 2s, 4s] + jitter in [0, 1000)ms.
type Managed struct {
	Intervals   []time.Duration
	JitterMilli int
}

func (m Managed) MoveNext(attempt uint32) (bool, time.Duration) {
	if int(attempt) >= len(m.Intervals) {
		return false, 0
	}
	delay := m.Intervals[attempt]
	if m.JitterMilli > 0 {
		delay += time.Duration(rand.Intn(m.JitterMilli)) * time.Millisecond
	}
	return true, delay
}

// DefaultManagedStreaming builds the managed-streaming retry policy named
// in §4.5: delays of 1s, 2s, 4s plus jitter in [0, 1000)ms.
func DefaultManagedStreaming() Managed {
	return Managed{
		Intervals:   []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		JitterMilli: 1000,
	}
}

// ExponentialBackOff adapts cenkalti/backoff's exponential algorithm into
// the Policy interface, for call sites that want unbounded-attempt,
// capped-delay exponential backoff rather than a fixed interval list. No
// component uses it by default; a caller opts in, e.g. through the
// uploader's WithRetryPolicy.
type ExponentialBackOff struct {
	bo         backoff.BackOff
	maxRetries uint32
}

// NewExponentialBackOff wraps backoff.NewExponentialBackOff with a hard cap
// on the number of retries, since backoff.BackOff on its own has no notion
// of "give up after N attempts" — only of "give up after MaxElapsedTime".
func NewExponentialBackOff(maxRetries uint32, initialInterval, maxInterval time.Duration) *ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0 // the attempt cap governs termination, not elapsed time
	return &ExponentialBackOff{bo: b, maxRetries: maxRetries}
}

func (e *ExponentialBackOff) MoveNext(attempt uint32) (bool, time.Duration) {
	if attempt >= e.maxRetries {
		return false, 0
	}
	d := e.bo.NextBackOff()
	if d == backoff.Stop {
		return false, 0
	}
	return true, d
}
