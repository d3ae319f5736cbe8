package upload

import (
	"bufio"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowline-data/ingest-go/internal/engineclient"
	"github.com/flowline-data/ingest-go/internal/resources"
	"github.com/flowline-data/ingest-go/source"
)

func TestBlobNameFormatForLocalFile(t *testing.T) {
	src := source.NewLocalFile("/tmp/data.csv", source.CSV)
	name := blobName("ingestion", src)

	assert.True(t, strings.HasPrefix(name, "ingestion/"))
	assert.True(t, strings.HasSuffix(name, ".csv"))

	rest := strings.TrimPrefix(name, "ingestion/")
	parts := strings.SplitN(rest, "_", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 8)
}

func TestBlobNameSkipsCompressionSuffixForBinaryFormats(t *testing.T) {
	src := source.NewLocalFile("/tmp/data.parquet", source.Parquet, source.WithFileCompression(source.CompressionGzip))
	name := blobName("", src)
	assert.True(t, strings.HasSuffix(name, ".parquet"))
	assert.False(t, strings.HasSuffix(name, ".parquet.gz"))
}

func TestMaybeCompressProducesValidGzipForNonBinaryUncompressed(t *testing.T) {
	src := source.NewStream(strings.NewReader("a,b,c\n1,2,3\n"), source.CSV, source.CompressionNone)
	reader, err := src.OpenReader()
	require.NoError(t, err)
	defer reader.Close()

	out, compressed := maybeCompress(reader, src)
	require.True(t, compressed)

	gr, err := gzip.NewReader(bufio.NewReader(out))
	require.NoError(t, err)
	defer gr.Close()
}

func TestMaybeCompressLeavesBinaryFormatsAsIs(t *testing.T) {
	src := source.NewStream(strings.NewReader("raw-bytes"), source.Parquet, source.CompressionNone)
	reader, err := src.OpenReader()
	require.NoError(t, err)
	defer reader.Close()

	_, compressed := maybeCompress(reader, src)
	assert.False(t, compressed)
}

func TestValidateRejectsEmptySource(t *testing.T) {
	u := New(nil, nil, zap.NewNop())
	src := source.NewStream(strings.NewReader(""), source.JSON, source.CompressionNone, source.WithStreamSizeHint(0))
	err := u.validate(src)
	assert.Error(t, err)
}

func TestValidateRejectsTooLargeSource(t *testing.T) {
	u := New(nil, nil, zap.NewNop(), WithMaxDataSize(10))
	src := source.NewStream(strings.NewReader("payload"), source.JSON, source.CompressionNone, source.WithStreamSizeHint(1000))
	err := u.validate(src)
	assert.Error(t, err)
}

func TestValidateAllowsUnknownSizeStream(t *testing.T) {
	u := New(nil, nil, zap.NewNop())
	src := source.NewStream(strings.NewReader("payload"), source.JSON, source.CompressionNone)
	err := u.validate(src)
	assert.NoError(t, err)
}

func TestValidateIgnoreSizeLimitOverride(t *testing.T) {
	u := New(nil, nil, zap.NewNop(), WithMaxDataSize(10), WithIgnoreSizeLimit(true))
	src := source.NewStream(strings.NewReader("payload"), source.JSON, source.CompressionNone, source.WithStreamSizeHint(1000))
	err := u.validate(src)
	assert.NoError(t, err)
}

// azureBlobStub fakes just enough of the block-blob REST surface (stage
// block, commit block list) for putBlockBlob to succeed end to end.
func azureBlobStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-request-id", "test-request-id")
		w.Header().Set("x-ms-version", engineclient.APIVersion)
		w.WriteHeader(http.StatusCreated)
	}))
}

func TestPutBlockBlobEndToEnd(t *testing.T) {
	srv := azureBlobStub(t)
	defer srv.Close()

	blobURL, err := putBlockBlob(context.Background(), srv.URL+"/container?sv=sas", "prefix/blob.csv", strings.NewReader("a,b,c\n1,2,3\n"), 2)
	require.NoError(t, err)
	assert.Contains(t, blobURL, "/container/prefix/blob.csv")
	assert.Contains(t, blobURL, "?sv=sas")
}

func TestUploadManyTotalCountMatchesInput(t *testing.T) {
	srv := azureBlobStub(t)
	defer srv.Close()

	cache, stopConfig := newUploadTestCache(t, srv.URL)
	defer stopConfig()

	u := New(cache, nil, zap.NewNop(), WithMaxConcurrency(2))

	sources := []source.Source{
		source.NewStream(strings.NewReader("payload-1"), source.JSON, source.CompressionNone, source.WithStreamSizeHint(9)),
		source.NewStream(strings.NewReader(""), source.JSON, source.CompressionNone, source.WithStreamSizeHint(0)),
		source.NewStream(strings.NewReader("payload-3"), source.JSON, source.CompressionNone, source.WithStreamSizeHint(9)),
	}

	result, err := u.UploadMany(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, len(sources), result.TotalCount())
	assert.True(t, result.HasFailures())
	assert.Len(t, result.Failures, 1)
	assert.Len(t, result.Successes, 2)
}

func newUploadTestCache(t *testing.T, containerURL string) (*resources.Cache, func()) {
	t.Helper()
	dmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"containerSettings": {
				"containers": [{"path": "` + containerURL + `/container?sv=sas"}],
				"lakeFolders": [],
				"refreshInterval": "01:00:00",
				"preferredUploadMethod": "Storage"
			},
			"queues": []
		}`))
	}))
	client := engineclient.New(dmSrv.URL, dmSrv.URL, nopCredential{}, zap.NewNop())
	return resources.New(client, time.Hour, zap.NewNop()), dmSrv.Close
}

type nopCredential struct{}

func (nopCredential) GetToken(ctx context.Context, scopes ...string) (string, error) {
	return "test-token", nil
}
