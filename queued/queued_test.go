package queued

import (
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
	"github.com/flowline-data/ingest-go/request"
	"github.com/flowline-data/ingest-go/source"
	"github.com/flowline-data/ingest-go/upload"
)

func TestIngestRemoteSourceSkipsUpload(t *testing.T) {
	var posted bool
	queueSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posted = true
		w.WriteHeader(http.StatusCreated)
	}))
	defer queueSrv.Close()

	dmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"containerSettings": {"containers": [], "lakeFolders": [], "refreshInterval": "01:00:00", "preferredUploadMethod": "Storage"},
			"queues": [{"path": "` + queueSrv.URL + `/q1?sv=sas"}]
		}`))
	}))
	defer dmSrv.Close()

	engine := engineclient.New(dmSrv.URL, dmSrv.URL, staticCredential{}, zap.NewNop())
	cache := resources.New(engine, time.Hour, zap.NewNop())
	uploader := upload.New(cache, engine, zap.NewNop())
	client := New(uploader, engine, cache, zap.NewNop())

	src := source.NewRemote("https://acct.blob.core.windows.net/c/blob.csv?sv=sas", source.CSV, source.CompressionNone)
	resp, err := client.Ingest(context.Background(), "db", "table", src, request.New())
	require.NoError(t, err)
	assert.Equal(t, KindQueued, resp.Operation.Kind)
	assert.True(t, posted)
}

func TestPostWithRetryCyclesQueuesOnFailure(t *testing.T) {
	var hits []string
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, "bad")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badSrv.Close()
	goodSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, "good")
		w.WriteHeader(http.StatusCreated)
	}))
	defer goodSrv.Close()

	dmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"containerSettings": {"containers": [], "lakeFolders": [], "refreshInterval": "01:00:00", "preferredUploadMethod": "Storage"},
			"queues": [{"path": "` + badSrv.URL + `/q1?sv=sas"}, {"path": "` + goodSrv.URL + `/q2?sv=sas"}]
		}`))
	}))
	defer dmSrv.Close()

	engine := engineclient.New(dmSrv.URL, dmSrv.URL, staticCredential{}, zap.NewNop())
	cache := resources.New(engine, time.Hour, zap.NewNop())
	uploader := upload.New(cache, engine, zap.NewNop())
	client := New(uploader, engine, cache, zap.NewNop())
	client.policy = nonJitteredRetryPolicy{}

	src := source.NewRemote("https://acct.blob.core.windows.net/c/blob.csv?sv=sas", source.CSV, source.CompressionNone)
	_, err := client.Ingest(context.Background(), "db", "table", src, request.New())

	require.NoError(t, err)
	assert.Contains(t, hits, "good")
}

type nonJitteredRetryPolicy struct{}

func (nonJitteredRetryPolicy) MoveNext(attempt uint32) (bool, time.Duration) {
	return attempt < 2, time.Millisecond
}

func TestIngestPropagatesUploadValidationFailure(t *testing.T) {
	dmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"containerSettings": {"containers": [{"path": "https://acct.blob.core.windows.net/c1?sv=sas"}], "lakeFolders": [], "refreshInterval": "01:00:00", "preferredUploadMethod": "Storage"},
			"queues": []
		}`))
	}))
	defer dmSrv.Close()

	engine := engineclient.New(dmSrv.URL, dmSrv.URL, staticCredential{}, zap.NewNop())
	cache := resources.New(engine, time.Hour, zap.NewNop())
	uploader := upload.New(cache, engine, zap.NewNop())
	client := New(uploader, engine, cache, zap.NewNop())

	src := source.NewStream(strings.NewReader(""), source.JSON, source.CompressionNone, source.WithStreamSizeHint(0))
	_, err := client.Ingest(context.Background(), "db", "table", src, request.New())
	assert.Error(t, err)
}
