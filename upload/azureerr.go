package upload

import (
	"bytes"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// azureStatusCode extracts the HTTP status code the Azure SDK observed, or
// 0 when err isn't a *azcore.ResponseError (e.g. a dial/timeout failure,
// which the caller treats as transient).
func azureStatusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// bytesReadSeekCloser adapts an in-memory block to the
// io.ReadSeekCloser StageBlock requires, mirroring the adapter shape used
// elsewhere in the pack for Azure's block-blob client.
type bytesReadSeekCloser struct {
	*bytes.Reader
}

func newBytesReadSeekCloser(b []byte) *bytesReadSeekCloser {
	return &bytesReadSeekCloser{Reader: bytes.NewReader(b)}
}

func (b *bytesReadSeekCloser) Close() error { return nil }
