package upload

import (
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/flowline-data/ingest-go/source"
)

// maybeCompress wraps r in a GZIP encoder pipe when src's declared
// compression is NONE and its format is not binary, per §4.2's compression
// rule. Binary formats and already-compressed sources are returned as-is.
//
// A pipe-backed encoder is used rather than buffering the whole source in
// memory first: per §9's open question on buffer-vs-pipeline, the spec
// leaves this choice to the implementer provided the result is a valid
// GZIP member, and piping keeps memory use bounded for large sources.
func maybeCompress(r io.Reader, src source.Source) (io.Reader, bool) {
	if src.Format().IsBinary() || src.Compression() != source.CompressionNone {
		return r, false
	}

	pr, pw := io.Pipe()
	gw := gzip.NewWriter(pw)
	go func() {
		_, err := io.Copy(gw, r)
		closeErr := gw.Close()
		if err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()
	return pr, true
}
