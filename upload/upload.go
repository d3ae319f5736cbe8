// Package upload implements the Uploader from §4.2: staging local sources
// into cloud containers with validation, compression, round-robin
// container selection, cycling retry, and batch semantics.
package upload

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/flowline-data/ingest-go/ingesterr"
	"github.com/flowline-data/ingest-go/internal/engineclient"
	"github.com/flowline-data/ingest-go/internal/resources"
	"github.com/flowline-data/ingest-go/retrypolicy"
	"github.com/flowline-data/ingest-go/source"
)

const defaultPrefix = "ingestion"

// Result is what a single successful upload produces: a URL of the form
// `containerBase + "/" + blobName + signedQuery`, per §4.2.
type Result struct {
	BlobURL   string
	SizeBytes int64
}

// Uploader stages LocalFile/LocalStream sources into one of several cloud
// containers, per §4.2.
type Uploader struct {
	cache  *resources.Cache
	client *engineclient.Client
	policy retrypolicy.Policy
	log    *zap.Logger

	maxConcurrency  int
	maxDataSize     int64
	uploadMethod    resources.UploadMethod
	ignoreSizeLimit bool
	blobPrefix      string
	blockWorkers    int
}

// Option customizes an Uploader at construction.
type Option func(*Uploader)

func WithMaxConcurrency(n int) Option  { return func(u *Uploader) { u.maxConcurrency = n } }
func WithMaxDataSize(n int64) Option   { return func(u *Uploader) { u.maxDataSize = n } }
func WithUploadMethod(m resources.UploadMethod) Option {
	return func(u *Uploader) { u.uploadMethod = m }
}
func WithIgnoreSizeLimit(v bool) Option { return func(u *Uploader) { u.ignoreSizeLimit = v } }
func WithBlobPrefix(p string) Option    { return func(u *Uploader) { u.blobPrefix = p } }
func WithBlockWorkers(n int) Option     { return func(u *Uploader) { u.blockWorkers = n } }
func WithRetryPolicy(p retrypolicy.Policy) Option {
	return func(u *Uploader) { u.policy = p }
}

// New builds an Uploader bound to the given ConfigurationCache and engine
// client.
func New(cache *resources.Cache, client *engineclient.Client, log *zap.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		cache:          cache,
		client:         client,
		log:            log,
		maxConcurrency: 4,
		maxDataSize:    1 << 30, // 1 GiB default ceiling
		uploadMethod:   resources.MethodDefault,
		blobPrefix:     defaultPrefix,
		policy:         retrypolicy.Simple{TotalRetries: 2, Interval: time.Second},
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Close releases owned resources. The Uploader holds no resources of its
// own beyond the shared cache/client it was given, so this is a no-op
// kept to satisfy the contract in §4.2.
func (u *Uploader) Close() error { return nil }

// validate applies the pre-upload validation order from §4.2: non-null,
// readable, non-empty, within the size ceiling.
func (u *Uploader) validate(src source.Source) error {
	if src == nil {
		return ingesterr.New(ingesterr.SourceNull, "source is nil")
	}

	size, err := src.Size()
	if err != nil {
		return ingesterr.Wrap(ingesterr.SourceNotReadable, true, "source size could not be determined", err)
	}
	// A size of -1 means "unknown" (LocalStream without a hint, Remote):
	// that is a legitimate readable source, not a validation failure.
	if size == 0 {
		return ingesterr.New(ingesterr.SourceEmpty, "source is empty")
	}
	if !u.ignoreSizeLimit && size > 0 && size > u.maxDataSize {
		return ingesterr.New(ingesterr.SourceTooLarge, "source exceeds the configured maximum data size")
	}
	return nil
}

// UploadOne stages a single source and returns its remote location.
func (u *Uploader) UploadOne(ctx context.Context, src source.Source) (*Result, error) {
	if err := u.validate(src); err != nil {
		return nil, err
	}

	topo, err := u.cache.GetConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	list, rr, err := topo.SelectContainer(u.uploadMethod)
	if err != nil {
		return nil, err
	}
	method := resolveContainerMethod(list)

	startIdx := rr.next(len(list))

	var lastErr error
	for attempt := uint32(0); ; attempt++ {
		idx := (startIdx + int(attempt)) % len(list)
		container := list[idx]

		result, err := u.attemptUpload(ctx, container, method, src)
		if err == nil {
			return result, nil
		}

		ie, _ := ingesterr.As(err)
		if ie != nil && ie.IsPermanent {
			return nil, err
		}
		lastErr = err

		shouldRetry, delay := u.policy.MoveNext(attempt)
		if !shouldRetry {
			return nil, ingesterr.WrapExhausted(ingesterr.UploadFailed, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ingesterr.Wrap(ingesterr.Cancelled, true, "upload cancelled", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func resolveContainerMethod(list []resources.Container) resources.UploadMethod {
	if len(list) == 0 {
		return resources.MethodStorage
	}
	return list[0].UploadMethod
}

func (u *Uploader) attemptUpload(ctx context.Context, container resources.Container, method resources.UploadMethod, src source.Source) (*Result, error) {
	reader, err := src.OpenReader()
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.SourceNotReadable, true, "opening source reader", err)
	}
	if ls, ok := src.(*source.LocalStream); !ok || !ls.LeaveOpen {
		defer reader.Close()
	}

	body, compressed := maybeCompress(reader, src)
	name := blobName(u.blobPrefix, src)
	if compressed {
		name += source.CompressionGzip.Extension()
	}

	var blobURL string
	switch method {
	case resources.MethodLake:
		blobURL, err = putLakeFile(ctx, u.client, container.URL, name, body)
	default:
		blobURL, err = putBlockBlob(ctx, container.URL, name, body, u.blockWorkers)
	}
	if err != nil {
		return nil, err
	}

	size, _ := src.Size()
	return &Result{BlobURL: blobURL, SizeBytes: size}, nil
}

// SuccessRecord and FailureRecord are the per-source outcomes UploadMany
// produces, per §4.2.
type SuccessRecord struct {
	SourceName  string
	StartedAt   time.Time
	CompletedAt time.Time
	BlobURL     string
	SizeBytes   int64
}

type FailureRecord struct {
	SourceName  string
	StartedAt   time.Time
	CompletedAt time.Time
	ErrorCode   ingesterr.Category
	ErrorMessage string
	IsPermanent bool
	Cause       error
}

// BatchResult is the outcome of UploadMany: it never surfaces a per-source
// failure as an error from the call itself, per §4.2/§7.
type BatchResult struct {
	Successes []SuccessRecord
	Failures  []FailureRecord
}

func (b *BatchResult) HasFailures() bool  { return len(b.Failures) > 0 }
func (b *BatchResult) AllSucceeded() bool { return len(b.Failures) == 0 }
func (b *BatchResult) TotalCount() int    { return len(b.Successes) + len(b.Failures) }

// UploadMany processes sources in chunks sized maxConcurrency, each chunk
// executed in parallel, per §4.2/§5. Ordering is preserved within a chunk
// but not guaranteed across chunks.
func (u *Uploader) UploadMany(ctx context.Context, sources []source.Source) (*BatchResult, error) {
	result := &BatchResult{}

	chunkSize := u.maxConcurrency
	if chunkSize <= 0 {
		chunkSize = 1
	}

	for start := 0; start < len(sources); start += chunkSize {
		end := start + chunkSize
		if end > len(sources) {
			end = len(sources)
		}
		chunk := sources[start:end]

		successes := make([]*SuccessRecord, len(chunk))
		failures := make([]*FailureRecord, len(chunk))

		done := make(chan int, len(chunk))
		for i, src := range chunk {
			go func(i int, src source.Source) {
				startedAt := time.Now()
				res, err := u.UploadOne(ctx, src)
				completedAt := time.Now()
				name := src.Identifier()
				if err != nil {
					ie, _ := ingesterr.As(err)
					code := ingesterr.Unknown
					permanent := true
					if ie != nil {
						code = ie.Category
						permanent = ie.IsPermanent
					}
					failures[i] = &FailureRecord{
						SourceName:   name,
						StartedAt:    startedAt,
						CompletedAt:  completedAt,
						ErrorCode:    code,
						ErrorMessage: err.Error(),
						IsPermanent:  permanent,
						Cause:        err,
					}
				} else {
					successes[i] = &SuccessRecord{
						SourceName:  name,
						StartedAt:   startedAt,
						CompletedAt: completedAt,
						BlobURL:     res.BlobURL,
						SizeBytes:   res.SizeBytes,
					}
				}
				done <- i
			}(i, src)
		}
		for range chunk {
			<-done
		}

		for i := range chunk {
			if successes[i] != nil {
				result.Successes = append(result.Successes, *successes[i])
			}
			if failures[i] != nil {
				result.Failures = append(result.Failures, *failures[i])
			}
		}
	}

	return result, nil
}

// randomStartIndex is kept for callers/tests that want an independent
// uniformly-random starting point rather than the shared round-robin
// counter; the Uploader itself uses the counter so concurrent uploaders
// against the same cache distribute evenly (§8's "within ⌈NK/|list|⌉ ± 1"
// property requires the tighter round-robin guarantee, not pure chance).
func randomStartIndex(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.Intn(n)
}
