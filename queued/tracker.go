package queued

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowline-data/ingest-go/ingesterr"
	"github.com/flowline-data/ingest-go/internal/engineclient"
)

// BlobStatus is a single row of the engine's status query, per §4.4/§6.
type BlobStatus struct {
	SourceID       string
	Status         string // Pending|Started|Succeeded|Failed|Skipped
	Details        string
	ErrorCode      string
	StartedAt      time.Time
	LastUpdateTime time.Time
}

// AggregateStatus is the derived summary §4.4 describes: a count per
// terminal class plus an in-progress count.
type AggregateStatus struct {
	Pending    int
	Started    int
	Succeeded  int
	Failed     int
	Skipped    int
	InProgress int
	Records    []BlobStatus
}

// Tracker polls the engine's status surface to a terminal state, per
// §4.4/§4.6.
type Tracker struct {
	engine *engineclient.Client
	log    *zap.Logger
}

func NewTracker(engine *engineclient.Client, log *zap.Logger) *Tracker {
	return &Tracker{engine: engine, log: log}
}

// GetOperationDetails returns the raw per-blob status rows for op.
// STREAMING operations are not trackable: an empty result with a logged
// warning is returned, per §3.
func (t *Tracker) GetOperationDetails(ctx context.Context, op Operation) ([]BlobStatus, error) {
	if op.Kind != KindQueued {
		t.log.Warn("operation is not trackable", zap.String("kind", string(op.Kind)))
		return nil, nil
	}

	req, err := t.engine.NewRequest(ctx)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.AuthorizationFailure, true, "authorizing status query", err)
	}

	var rows []BlobStatus
	resp, err := req.SetResult(&rows).SetQueryParam("operationId", op.OperationID).
		Get(t.engine.DMURL() + "/v1/rest/ingestion/status")
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.Network, false, "status query failed", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, ingesterr.New(ingesterr.ParseFailure, fmt.Sprintf("status query returned %d", resp.StatusCode()))
	}
	return rows, nil
}

// GetOperationSummary aggregates GetOperationDetails into per-class
// counts, per §4.4.
func (t *Tracker) GetOperationSummary(ctx context.Context, op Operation) (*AggregateStatus, error) {
	rows, err := t.GetOperationDetails(ctx, op)
	if err != nil {
		return nil, err
	}
	return summarize(rows), nil
}

func summarize(rows []BlobStatus) *AggregateStatus {
	agg := &AggregateStatus{Records: rows}
	for _, r := range rows {
		switch r.Status {
		case "Pending":
			agg.Pending++
			agg.InProgress++
		case "Started":
			agg.Started++
			agg.InProgress++
		case "Succeeded":
			agg.Succeeded++
		case "Failed":
			agg.Failed++
		case "Skipped":
			agg.Skipped++
		}
	}
	return agg
}

// PollForCompletion sleeps interval, re-queries the summary, and
// terminates when InProgress reaches 0 or the timeout elapses, per §4.4.
// On timeout it returns the last observed status without error.
func (t *Tracker) PollForCompletion(ctx context.Context, op Operation, interval, timeout time.Duration) (*AggregateStatus, error) {
	start := time.Now()

	summary, err := t.GetOperationSummary(ctx, op)
	if err != nil {
		return nil, err
	}
	for summary.InProgress > 0 && time.Since(start) < timeout {
		select {
		case <-ctx.Done():
			return summary, nil
		case <-time.After(interval):
		}
		summary, err = t.GetOperationSummary(ctx, op)
		if err != nil {
			return nil, err
		}
	}
	return summary, nil
}
