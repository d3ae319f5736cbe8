// Package queued implements the QueuedClient from §4.4: stage a source via
// the uploader, post a queue message describing it, and return a
// trackable operation.
package queued

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowline-data/ingest-go/ingesterr"
	"github.com/flowline-data/ingest-go/internal/engineclient"
	"github.com/flowline-data/ingest-go/internal/resources"
	"github.com/flowline-data/ingest-go/request"
	"github.com/flowline-data/ingest-go/retrypolicy"
	"github.com/flowline-data/ingest-go/source"
	"github.com/flowline-data/ingest-go/upload"
)

// OperationKind mirrors streaming.OperationKind without importing the
// streaming package, since both sit at the same layer and neither depends
// on the other.
type OperationKind string

const KindQueued OperationKind = "QUEUED"

// Operation is the IngestionOperation value from §3.
type Operation struct {
	OperationID string
	Database    string
	Table       string
	Kind        OperationKind
}

// Response is what Ingest returns on success.
type Response struct {
	Operation Operation
}

// queuePostAttempts is §4.4 step 3's "up to 3 attempts".
const queuePostAttempts = 3

// Client stages sources and posts queue messages, per §4.4.
type Client struct {
	uploader *upload.Uploader
	engine   *engineclient.Client
	cache    *resources.Cache
	policy   retrypolicy.Policy
	log      *zap.Logger
}

func New(uploader *upload.Uploader, engine *engineclient.Client, cache *resources.Cache, log *zap.Logger) *Client {
	return &Client{
		uploader: uploader,
		engine:   engine,
		cache:    cache,
		policy:   retrypolicy.Simple{TotalRetries: queuePostAttempts - 1, Interval: 2 * time.Second},
		log:      log,
	}
}

// IngestOption customizes a single Ingest call.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	rawSizeOverride       *int64
	authorizationContext string
}

// WithRawSizeOverride supplies the true uncompressed size when the caller
// knows it, bypassing the ×11 compression-expansion heuristic, per §9.
func WithRawSizeOverride(n int64) IngestOption {
	return func(o *ingestOptions) { o.rawSizeOverride = &n }
}

func WithAuthorizationContext(ctx string) IngestOption {
	return func(o *ingestOptions) { o.authorizationContext = ctx }
}

// Ingest runs the pipeline from §4.4: upload (unless src is already
// Remote), build the queue message, post it to a queue selected from the
// cache's shuffled queue list, cycling queues on retry.
func (c *Client) Ingest(ctx context.Context, db, table string, src source.Source, props request.Properties, opts ...IngestOption) (*Response, error) {
	var o ingestOptions
	for _, opt := range opts {
		opt(&o)
	}

	blobURL, size, err := c.stage(ctx, src)
	if err != nil {
		return nil, err
	}

	format := src.Format()
	if props.Format != "" {
		format = props.Format
	}

	msg := queueMessage{
		BlobURL:               blobURL,
		Database:              db,
		Table:                 table,
		Format:                string(format),
		MappingReference:      props.MappingName(),
		InlineMapping:         props.InlineMapping(),
		AdditionalTags:        props.AdditionalTags,
		DropByTags:            props.DropByTags,
		IngestByTags:          props.IngestByTags,
		IngestIfNotExists:     props.IngestIfNotExists,
		AuthorizationContext:  o.authorizationContext,
		RawSizeHint:           rawSizeHint(blobURL, size, o.rawSizeOverride),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.QueuePostFailed, true, "encoding queue message", err)
	}

	if err := c.postWithRetry(ctx, payload); err != nil {
		return nil, err
	}

	return &Response{Operation: Operation{
		OperationID: uuid.NewString(),
		Database:    db,
		Table:       table,
		Kind:        KindQueued,
	}}, nil
}

// stage returns the blob URL and size to put in the queue message: the
// source as-is when it's already Remote, or the result of uploading it
// otherwise, per §4.4 step 1.
func (c *Client) stage(ctx context.Context, src source.Source) (blobURL string, size int64, err error) {
	if remote, ok := src.(*source.Remote); ok {
		return remote.URL, -1, nil
	}
	result, err := c.uploader.UploadOne(ctx, src)
	if err != nil {
		return "", 0, err
	}
	return result.BlobURL, result.SizeBytes, nil
}

// postWithRetry posts msg to a queue selected from the cache's shuffled
// queue list, cycling to the next queue in that shuffled order on each
// retry, per §4.4 step 3.
func (c *Client) postWithRetry(ctx context.Context, payload []byte) error {
	topo, err := c.cache.GetConfiguration(ctx)
	if err != nil {
		return err
	}
	queues := topo.ShuffledQueues()
	if len(queues) == 0 {
		return ingesterr.New(ingesterr.NoContainersAvailable, "no queues are configured")
	}

	var lastErr error
	for attempt := uint32(0); ; attempt++ {
		q := queues[int(attempt)%len(queues)]
		err := postQueueMessage(ctx, c.engine, q.URL, payload)
		if err == nil {
			return nil
		}
		if ingesterr.IsPermanent(err) {
			return err
		}
		lastErr = err

		shouldRetry, delay := c.policy.MoveNext(attempt)
		if !shouldRetry || attempt+1 >= queuePostAttempts {
			return ingesterr.WrapExhausted(ingesterr.QueuePostFailed, lastErr)
		}
		select {
		case <-ctx.Done():
			return ingesterr.Wrap(ingesterr.Cancelled, true, "queue post cancelled", ctx.Err())
		case <-time.After(delay):
		}
	}
}
