package queued

import "strings"

// queueMessage describes a staged blob to the engine, per §4.4 step 2.
type queueMessage struct {
	BlobURL               string   `json:"blobUrl"`
	Database              string   `json:"db"`
	Table                 string   `json:"table"`
	Format                string   `json:"format"`
	MappingReference      string   `json:"mappingReference,omitempty"`
	InlineMapping         string   `json:"inlineMapping,omitempty"`
	AdditionalTags        []string `json:"additionalTags,omitempty"`
	DropByTags            []string `json:"dropByTags,omitempty"`
	IngestByTags          []string `json:"ingestByTags,omitempty"`
	IngestIfNotExists     []string `json:"ingestIfNotExists,omitempty"`
	AuthorizationContext  string   `json:"authorizationContext,omitempty"`
	RawSizeHint           int64    `json:"rawSizeBytes"`
}

// compressionExpansionFactor is the crude server-side hint from §9's open
// question: ".gz"/".zip" blobs are assumed to expand roughly 11x
// uncompressed.
const compressionExpansionFactor = 11

// rawSizeHint implements §4.4 step 2's sizing heuristic: multiply a known
// blob length by 11 when the blob path (the SAS query string is stripped
// first) ends in .gz/.zip, otherwise use the literal size. A
// caller-supplied override (when the true uncompressed size is known)
// always takes priority, per §9's open question ("The core must accept
// either").
func rawSizeHint(blobURL string, size int64, override *int64) int64 {
	if override != nil {
		return *override
	}
	if size < 0 {
		return 0
	}
	path := blobURL
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".zip") {
		return size * compressionExpansionFactor
	}
	return size
}
