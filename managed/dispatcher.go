// Package managed implements the ManagedDispatcher from §4.5: decides
// between streaming and queued ingestion per request, maintains per-table
// backoff state, and performs bounded streaming retries before falling
// back.
package managed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/flowline-data/ingest-go/ingesterr"
	"github.com/flowline-data/ingest-go/queued"
	"github.com/flowline-data/ingest-go/request"
	"github.com/flowline-data/ingest-go/retrypolicy"
	"github.com/flowline-data/ingest-go/source"
	"github.com/flowline-data/ingest-go/streaming"
)

// OperationKind mirrors streaming.OperationKind/queued.OperationKind at
// this layer.
type OperationKind string

const (
	KindStreaming OperationKind = "STREAMING"
	KindQueued    OperationKind = "QUEUED"
)

// Response is what Ingest returns on success.
type Response struct {
	Kind      OperationKind
	Streaming *streaming.Response
	Queued    *queued.Response
}

const defaultStreamingMaxBodyBytes = 10 * 1024 * 1024

// backoff reset durations from §4.5's decision table.
const (
	throttledResetAfter = 10 * time.Second
	disabledResetAfter  = 15 * time.Minute
)

// SuccessCallback and ErrorCallback are invoked synchronously before
// Ingest returns to its caller, per §4.5; they must not panic.
type SuccessCallback func(duration time.Duration)
type ErrorCallback func(duration time.Duration, isPermanent bool, category ingesterr.Category, cause error)

// Dispatcher routes each request between streaming and queued ingestion,
// per §4.5.
type Dispatcher struct {
	streamClient *streaming.Client
	queuedClient *queued.Client
	backoff      *backoffMap
	policy       retrypolicy.Policy
	log          *zap.Logger

	sizeThreshold                             int64
	continueWhenStreamingIngestionUnavailable bool

	onStreamingSuccess SuccessCallback
	onStreamingError   ErrorCallback
}

// Option customizes a Dispatcher at construction.
type Option func(*Dispatcher)

func WithSizeThreshold(bytes int64) Option {
	return func(d *Dispatcher) { d.sizeThreshold = bytes }
}
func WithContinueWhenStreamingIngestionUnavailable(v bool) Option {
	return func(d *Dispatcher) { d.continueWhenStreamingIngestionUnavailable = v }
}
func WithStreamingRetryPolicy(p retrypolicy.Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}
func WithOnStreamingSuccess(cb SuccessCallback) Option {
	return func(d *Dispatcher) { d.onStreamingSuccess = cb }
}
func WithOnStreamingError(cb ErrorCallback) Option {
	return func(d *Dispatcher) { d.onStreamingError = cb }
}

// New builds a Dispatcher. sizeThreshold defaults to
// streamingMaxBodyBytes × 1.0, per §4.5.
func New(streamClient *streaming.Client, queuedClient *queued.Client, log *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		streamClient:  streamClient,
		queuedClient:  queuedClient,
		backoff:       newBackoffMap(),
		policy:        retrypolicy.DefaultManagedStreaming(),
		log:           log,
		sizeThreshold: defaultStreamingMaxBodyBytes,
	}
	for _, o := range opts {
		o(d)
	}
	if d.onStreamingSuccess == nil {
		d.onStreamingSuccess = func(time.Duration) {}
	}
	if d.onStreamingError == nil {
		d.onStreamingError = func(time.Duration, bool, ingesterr.Category, error) {}
	}
	return d
}

// Ingest routes a single request per the decision table in §4.5.
func (d *Dispatcher) Ingest(ctx context.Context, db, table string, src source.Source, props request.Properties) (*Response, error) {
	size, _ := src.Size()
	if size > d.sizeThreshold {
		return d.goQueued(ctx, db, table, src, props)
	}

	if e, ok := d.backoff.get(db, table); ok {
		switch e.category {
		case ingesterr.StreamingDisabledCluster:
			if !d.continueWhenStreamingIngestionUnavailable {
				return nil, ingesterr.New(ingesterr.StreamingDisabledCluster, "streaming ingestion is disabled at the cluster level")
			}
			return d.goQueued(ctx, db, table, src, props)
		case ingesterr.StreamingDisabledTable, ingesterr.RequestPropertiesPreventStreaming:
			return d.goQueued(ctx, db, table, src, props)
		case ingesterr.Throttled:
			return d.goQueued(ctx, db, table, src, props)
		}
	}

	return d.attemptStreaming(ctx, db, table, src, props)
}

func (d *Dispatcher) attemptStreaming(ctx context.Context, db, table string, src source.Source, props request.Properties) (*Response, error) {
	for attempt := uint32(0); ; attempt++ {
		started := time.Now()
		resp, err := d.streamClient.Ingest(ctx, db, table, src, props)
		duration := time.Since(started)

		if err == nil {
			d.backoff.clear(db, table)
			d.onStreamingSuccess(duration)
			return &Response{Kind: KindStreaming, Streaming: resp}, nil
		}

		ie, _ := ingesterr.As(err)
		category := ingesterr.Unknown
		permanent := true
		if ie != nil {
			category = ie.Category
			permanent = ie.IsPermanent
		}
		d.onStreamingError(duration, permanent, category, err)

		switch category {
		case ingesterr.Throttled:
			d.backoff.set(db, table, ingesterr.Throttled, time.Now().Add(throttledResetAfter))
			return d.fallback(ctx, db, table, src, props)

		case ingesterr.StreamingDisabledCluster:
			d.backoff.set(db, table, ingesterr.StreamingDisabledCluster, time.Now().Add(disabledResetAfter))
			if !d.continueWhenStreamingIngestionUnavailable {
				return nil, err
			}
			return d.fallback(ctx, db, table, src, props)

		case ingesterr.StreamingDisabledTable, ingesterr.RequestPropertiesPreventStreaming:
			d.backoff.set(db, table, category, time.Now().Add(disabledResetAfter))
			return d.fallback(ctx, db, table, src, props)

		case ingesterr.SourceTooLarge:
			// "payload too large": no per-table state change, per §4.5.
			return d.fallback(ctx, db, table, src, props)

		case ingesterr.Network:
			shouldRetry, delay := d.policy.MoveNext(attempt)
			if shouldRetry {
				select {
				case <-ctx.Done():
					return nil, ingesterr.Wrap(ingesterr.Cancelled, true, "streaming retry cancelled", ctx.Err())
				case <-time.After(delay):
				}
				continue
			}
			return d.fallback(ctx, db, table, src, props)

		default: // Unknown/unclassifiable
			return d.fallback(ctx, db, table, src, props)
		}
	}
}

// fallback rewinds src (required for LocalStream, trivial otherwise) and
// dispatches via the queued channel, per §4.5.
func (d *Dispatcher) fallback(ctx context.Context, db, table string, src source.Source, props request.Properties) (*Response, error) {
	if err := rewind(src); err != nil {
		return nil, err
	}
	return d.goQueued(ctx, db, table, src, props)
}

func (d *Dispatcher) goQueued(ctx context.Context, db, table string, src source.Source, props request.Properties) (*Response, error) {
	resp, err := d.queuedClient.Ingest(ctx, db, table, src, props)
	if err != nil {
		return nil, err
	}
	return &Response{Kind: KindQueued, Queued: resp}, nil
}

// rewind ensures src can be read again after a streaming attempt already
// consumed it. LocalFile and Remote are trivially rewindable (a fresh
// reader is opened by whatever next calls OpenReader); a LocalStream must
// have opted in via source.WithResettable, per §4.5.
func rewind(src source.Source) error {
	ls, ok := src.(*source.LocalStream)
	if !ok {
		return nil
	}
	if err := ls.Reset(); err != nil {
		return ingesterr.Wrap(ingesterr.SourceNotReadable, true, "source must be rewindable to fall back to queued ingestion", err)
	}
	return nil
}
