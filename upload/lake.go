package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/flowline-data/ingest-go/ingesterr"
	"github.com/flowline-data/ingest-go/internal/engineclient"
)

// putLakeFile uploads to an ADLS Gen2 ("LAKE") folder. No Go SDK for the
// Data Lake Storage Gen2 REST surface is available anywhere in the
// retrieval pack (only the blob client is), so this is a direct
// HTTP implementation of the three-call DFS protocol — create, append,
// flush — issued through the same resty-backed engineclient.Client every
// other HTTP call in this module goes through, authorized with the bearer
// token credential per §6 ("Lake uploads use bearer-token auth").
//
// The source is buffered fully in memory before the append call: the DFS
// append endpoint needs an explicit Content-Length and position, which a
// plain io.Reader can't provide without buffering somewhere. Large LAKE
// uploads should prefer STORAGE containers, which stream via block PUT.
func putLakeFile(ctx context.Context, client *engineclient.Client, folderURL, blobName string, r io.Reader) (string, error) {
	base, query, err := splitContainerURL(folderURL)
	if err != nil {
		return "", ingesterr.Wrap(ingesterr.UploadFailed, true, "malformed lake folder URL", err)
	}
	fileBase := base + "/" + blobName

	body, err := io.ReadAll(r)
	if err != nil {
		return "", ingesterr.Wrap(ingesterr.UploadFailed, false, "reading source for lake upload", err)
	}

	if err := lakeCreate(ctx, client, fileBase, query); err != nil {
		return "", err
	}
	if len(body) > 0 {
		if err := lakeAppend(ctx, client, fileBase, query, body); err != nil {
			return "", err
		}
	}
	if err := lakeFlush(ctx, client, fileBase, query, int64(len(body))); err != nil {
		return "", err
	}

	return fileBase + query, nil
}

func lakeCreate(ctx context.Context, client *engineclient.Client, fileBase, query string) error {
	req, err := client.NewRequest(ctx)
	if err != nil {
		return ingesterr.Wrap(ingesterr.AuthorizationFailure, true, "authorizing lake create", err)
	}
	resp, err := req.Put(fileBase + appendQuery(query, "resource=file"))
	return classifyLakeResponse("lake create", resp, err)
}

func lakeAppend(ctx context.Context, client *engineclient.Client, fileBase, query string, body []byte) error {
	req, err := client.NewRequest(ctx)
	if err != nil {
		return ingesterr.Wrap(ingesterr.AuthorizationFailure, true, "authorizing lake append", err)
	}
	resp, err := req.
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(bytes.NewReader(body)).
		Patch(fileBase + appendQuery(query, "action=append&position=0"))
	return classifyLakeResponse("lake append", resp, err)
}

func lakeFlush(ctx context.Context, client *engineclient.Client, fileBase, query string, size int64) error {
	req, err := client.NewRequest(ctx)
	if err != nil {
		return ingesterr.Wrap(ingesterr.AuthorizationFailure, true, "authorizing lake flush", err)
	}
	resp, err := req.Patch(fileBase + appendQuery(query, fmt.Sprintf("action=flush&position=%d", size)))
	return classifyLakeResponse("lake flush", resp, err)
}

func appendQuery(existing, addition string) string {
	if existing == "" {
		return "?" + addition
	}
	return existing + "&" + addition
}

func classifyLakeResponse(step string, resp interface{ StatusCode() int }, err error) error {
	if err != nil {
		return ingesterr.Wrap(ingesterr.Network, false, step+" request failed", err)
	}
	code := resp.StatusCode()
	switch {
	case code >= 200 && code <= 299:
		return nil
	case code >= 400 && code <= 499:
		return ingesterr.New(ingesterr.UploadFailed, fmt.Sprintf("%s rejected with status %d", step, code))
	default:
		return ingesterr.Wrap(ingesterr.UploadFailed, false, fmt.Sprintf("%s failed with status %d", step, code), nil)
	}
}
