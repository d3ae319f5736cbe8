package managed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowline-data/ingest-go/ingesterr"
	"github.com/flowline-data/ingest-go/internal/engineclient"
	"github.com/flowline-data/ingest-go/internal/resources"
	"github.com/flowline-data/ingest-go/queued"
	"github.com/flowline-data/ingest-go/request"
	"github.com/flowline-data/ingest-go/source"
	"github.com/flowline-data/ingest-go/streaming"
	"github.com/flowline-data/ingest-go/upload"
)

type staticCredential struct{}

func (staticCredential) GetToken(ctx context.Context, scopes ...string) (string, error) {
	return "token", nil
}

// harness wires a dispatcher against a fake engine (streaming + DM config)
// and a fake queue, counting streaming hits.
type harness struct {
	dispatcher    *Dispatcher
	streamingHits *int
}

func newHarness(t *testing.T, streamingHandler http.HandlerFunc, queueHandler http.HandlerFunc) *harness {
	t.Helper()
	hits := 0
	countingStreaming := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		streamingHandler(w, r)
	})
	streamSrv := httptest.NewServer(countingStreaming)
	t.Cleanup(streamSrv.Close)

	if queueHandler == nil {
		queueHandler = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }
	}
	queueSrv := httptest.NewServer(queueHandler)
	t.Cleanup(queueSrv.Close)

	blobSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-request-id", "test-request-id")
		w.Header().Set("x-ms-version", engineclient.APIVersion)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(blobSrv.Close)

	dmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"containerSettings": {
				"containers": [{"path": "` + blobSrv.URL + `/container?sv=sas"}],
				"lakeFolders": [],
				"refreshInterval": "01:00:00",
				"preferredUploadMethod": "Storage"
			},
			"queues": [{"path": "` + queueSrv.URL + `/q1?sv=sas"}]
		}`))
	}))
	t.Cleanup(dmSrv.Close)

	engine := engineclient.New(streamSrv.URL, dmSrv.URL, staticCredential{}, zap.NewNop())
	cache := resources.New(engine, time.Hour, zap.NewNop())
	uploader := upload.New(cache, engine, zap.NewNop())

	streamClient := streaming.New(engine, zap.NewNop())
	queuedClient := queued.New(uploader, engine, cache, zap.NewNop())

	d := New(streamClient, queuedClient, zap.NewNop())
	return &harness{dispatcher: d, streamingHits: &hits}
}

func remoteSource() source.Source {
	return source.NewRemote("https://acct.blob.core.windows.net/c/blob.csv?sv=sas", source.CSV, source.CompressionNone)
}

func TestStreamingSuccessClearsBackoffState(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-operation-id", "op-1")
		w.WriteHeader(http.StatusOK)
	}, nil)

	db, table := "db", "table"
	h.dispatcher.backoff.set(db, table, ingesterr.Throttled, time.Now().Add(-time.Second))

	resp, err := h.dispatcher.Ingest(context.Background(), db, table, remoteSource(), request.New())
	require.NoError(t, err)
	assert.Equal(t, KindStreaming, resp.Kind)

	_, ok := h.dispatcher.backoff.get(db, table)
	assert.False(t, ok, "backoff entry should be cleared on a successful streaming attempt")
}

func TestThrottledResponseFallsBackAndGatesNextDispatch(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, nil)

	db, table := "db", "table"
	resp, err := h.dispatcher.Ingest(context.Background(), db, table, remoteSource(), request.New())
	require.NoError(t, err)
	assert.Equal(t, KindQueued, resp.Kind)
	assert.Equal(t, 1, *h.streamingHits)

	resp2, err := h.dispatcher.Ingest(context.Background(), db, table, remoteSource(), request.New())
	require.NoError(t, err)
	assert.Equal(t, KindQueued, resp2.Kind)
	assert.Equal(t, 1, *h.streamingHits, "second dispatch within the throttle window must not reattempt streaming")
}

func TestStreamingDisabledAtTableFallsBack(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BadRequest","message":"Table does not have a streaming policy defined","@permanent":true}}`))
	}, nil)

	db, table := "db", "table"
	resp, err := h.dispatcher.Ingest(context.Background(), db, table, remoteSource(), request.New())
	require.NoError(t, err)
	assert.Equal(t, KindQueued, resp.Kind)

	e, ok := h.dispatcher.backoff.get(db, table)
	require.True(t, ok)
	assert.Equal(t, ingesterr.StreamingDisabledTable, e.category)

	resp2, err := h.dispatcher.Ingest(context.Background(), db, table, remoteSource(), request.New())
	require.NoError(t, err)
	assert.Equal(t, KindQueued, resp2.Kind)
	assert.Equal(t, 1, *h.streamingHits, "table-disabled state must gate the next dispatch without a streaming attempt")
}

func TestThrottledThenRecovered(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-operation-id", "op-2")
		w.WriteHeader(http.StatusOK)
	}, nil)

	db, table := "db", "table"
	h.dispatcher.backoff.set(db, table, ingesterr.Throttled, time.Now().Add(-time.Millisecond))

	resp, err := h.dispatcher.Ingest(context.Background(), db, table, remoteSource(), request.New())
	require.NoError(t, err)
	assert.Equal(t, KindStreaming, resp.Kind, "an expired throttle entry must not gate the dispatch")
	assert.Equal(t, 1, *h.streamingHits)
}

func TestSizeThresholdBoundary(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-operation-id", "op-3")
		w.WriteHeader(http.StatusOK)
	}, nil)
	h.dispatcher.sizeThreshold = 100

	atThreshold := source.NewStream(strings.NewReader(strings.Repeat("a", 100)), source.JSON, source.CompressionNone, source.WithStreamSizeHint(100))
	resp, err := h.dispatcher.Ingest(context.Background(), "db", "t1", atThreshold, request.New())
	require.NoError(t, err)
	assert.Equal(t, KindStreaming, resp.Kind, "a size exactly at the threshold must still attempt streaming")

	overThreshold := source.NewStream(strings.NewReader(strings.Repeat("a", 101)), source.JSON, source.CompressionNone, source.WithStreamSizeHint(101))
	resp2, err := h.dispatcher.Ingest(context.Background(), "db", "t2", overThreshold, request.New())
	require.NoError(t, err)
	assert.Equal(t, KindQueued, resp2.Kind, "a size over the threshold must go straight to queued")
	assert.Equal(t, 1, *h.streamingHits, "the over-threshold dispatch must not touch the streaming endpoint")
}

func TestStreamingDisabledClusterWithoutContinueReturnsPermanentError(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BadRequest","message":"Streaming ingestion is not enabled for this cluster","@permanent":true}}`))
	}, nil)

	_, err := h.dispatcher.Ingest(context.Background(), "db", "table", remoteSource(), request.New())
	require.Error(t, err)
	ie, ok := ingesterr.As(err)
	require.True(t, ok)
	assert.Equal(t, ingesterr.StreamingDisabledCluster, ie.Category)
}
