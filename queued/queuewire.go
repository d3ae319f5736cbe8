package queued

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/flowline-data/ingest-go/ingesterr"
	"github.com/flowline-data/ingest-go/internal/engineclient"
)

// queueMessageEnvelope is the Azure Storage Queue wire body: a base64
// payload inside a <QueueMessage> element, per the Queue Storage REST
// protocol. No Go SDK for Azure Queue Storage appears anywhere in the
// retrieval pack (only the blob data-plane client does), so the POST to
// {queueURL}/messages is issued directly through the shared resty-backed
// engineclient.Client, the same way the LAKE upload path talks to the ADLS
// Gen2 REST surface.
type queueMessageEnvelope struct {
	XMLName     xml.Name `xml:"QueueMessage"`
	MessageText string   `xml:"MessageText"`
}

// postQueueMessage posts payload (already-serialized JSON) to queueURL's
// messages endpoint, base64-encoded per the queue wire format.
func postQueueMessage(ctx context.Context, client *engineclient.Client, queueURL string, payload []byte) error {
	base, query, err := splitQueueURL(queueURL)
	if err != nil {
		return ingesterr.Wrap(ingesterr.QueuePostFailed, true, "malformed queue URL", err)
	}

	envelope := queueMessageEnvelope{MessageText: base64.StdEncoding.EncodeToString(payload)}
	body, err := xml.Marshal(envelope)
	if err != nil {
		return ingesterr.Wrap(ingesterr.QueuePostFailed, true, "encoding queue message envelope", err)
	}

	req, err := client.NewRequest(ctx)
	if err != nil {
		return ingesterr.Wrap(ingesterr.AuthorizationFailure, true, "authorizing queue post", err)
	}

	resp, err := req.
		SetHeader("Content-Type", "application/xml").
		SetBody(bytes.NewReader(body)).
		Post(base + "/messages" + query)
	if err != nil {
		return ingesterr.Wrap(ingesterr.Network, false, "queue POST failed", err)
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code <= 299:
		return nil
	case code >= 400 && code <= 499:
		return ingesterr.New(ingesterr.QueuePostFailed, fmt.Sprintf("queue POST rejected with status %d", code))
	default:
		return ingesterr.Wrap(ingesterr.QueuePostFailed, false, fmt.Sprintf("queue POST failed with status %d", code), nil)
	}
}

func splitQueueURL(queueURL string) (base, query string, err error) {
	idx := len(queueURL)
	for i, r := range queueURL {
		if r == '?' {
			idx = i
			break
		}
	}
	base = queueURL[:idx]
	if idx < len(queueURL) {
		query = queueURL[idx:]
	}
	return base, query, nil
}
