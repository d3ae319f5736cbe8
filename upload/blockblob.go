package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"runtime"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/flowline-data/ingest-go/ingesterr"
)

const (
	blockSize            = 4 * 1024 * 1024   // §4.2: "block size 4 MiB"
	maxSingleShotSize    = 256 * 1024 * 1024 // §4.2: "maximum single-shot size 256 MiB"
	defaultBlockWorkers  = 8
)

// blockWorkerCount returns min(configured, available cores), per §4.2/§5.
func blockWorkerCount(configured int) int {
	if configured <= 0 {
		configured = defaultBlockWorkers
	}
	cores := runtime.NumCPU()
	if configured > cores {
		return cores
	}
	return configured
}

// putBlockBlob stages r into containerURL as blobName using block-based
// parallel PUT, per §4.2/§6: StageBlock for every 4 MiB block, then a
// single CommitBlockList. Small payloads under maxSingleShotSize still go
// through the block path uniformly — the spec's single-shot ceiling bounds
// what may be staged as ONE block, not whether staging is skipped.
func putBlockBlob(ctx context.Context, containerURL, blobName string, r io.Reader, workers int) (string, error) {
	base, query, err := splitContainerURL(containerURL)
	if err != nil {
		return "", ingesterr.Wrap(ingesterr.UploadFailed, true, "malformed container URL", err)
	}
	blobURL := base + "/" + blobName + query

	client, err := blockblob.NewClientWithNoCredential(blobURL, nil)
	if err != nil {
		return "", ingesterr.Wrap(ingesterr.UploadFailed, true, "constructing blob client", err)
	}

	sem := semaphore.NewWeighted(int64(blockWorkerCount(workers)))
	g, gctx := errgroup.WithContext(ctx)

	var blockIDs []string
	buf := make([]byte, blockSize)
	blockIndex := 0
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			blockID := base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "block-%010d", blockIndex))
			blockIDs = append(blockIDs, blockID)

			if err := sem.Acquire(gctx, 1); err != nil {
				return "", classifyTransportError(err)
			}
			g.Go(func() error {
				defer sem.Release(1)
				_, err := client.StageBlock(gctx, blockID, newBytesReadSeekCloser(chunk), nil)
				if err != nil {
					return classifyTransportError(err)
				}
				return nil
			})
			blockIndex++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", ingesterr.Wrap(ingesterr.UploadFailed, false, "reading source for upload", readErr)
		}
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	if _, err := client.CommitBlockList(ctx, blockIDs, nil); err != nil {
		return "", classifyTransportError(err)
	}

	return blobURL, nil
}

func splitContainerURL(containerURL string) (base, query string, err error) {
	u, err := url.Parse(containerURL)
	if err != nil {
		return "", "", err
	}
	rawQuery := u.RawQuery
	u.RawQuery = ""
	base = u.String()
	if rawQuery != "" {
		query = "?" + rawQuery
	}
	return base, query, nil
}

// classifyTransportError maps an Azure SDK error into the [200,299]
// success / [400,499] permanent / other-transient taxonomy from §4.2.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	code := azureStatusCode(err)
	if code >= 400 && code <= 499 {
		return ingesterr.Wrap(ingesterr.UploadFailed, true, "blob upload rejected", err)
	}
	return ingesterr.Wrap(ingesterr.UploadFailed, false, "blob upload failed", err)
}
