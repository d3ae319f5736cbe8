package source

import "strings"

// Format is the wire/record format of a source, per §3. A subset is
// "binary" — those must never be recompressed by the uploader.
type Format string

const (
	CSV           Format = "csv"
	TSV           Format = "tsv"
	JSON          Format = "json"
	MultiJSON     Format = "multijson"
	Avro          Format = "avro"
	ApacheAvro    Format = "apacheavro"
	Parquet       Format = "parquet"
	ORC           Format = "orc"
	SStream       Format = "sstream"
	W3CLogFile    Format = "w3clogfile"
	PSV           Format = "psv"
	TXT           Format = "txt"
	FormatUnknown Format = ""
)

var binaryFormats = map[Format]bool{
	Avro:       true,
	ApacheAvro: true,
	Parquet:    true,
	ORC:        true,
}

// IsBinary reports whether f must never be recompressed by the uploader.
func (f Format) IsBinary() bool {
	return binaryFormats[f]
}

// Extension returns the blob-name suffix used for f, e.g. ".csv". Formats
// not in this table (custom/unknown) fall back to a "." + the format
// string itself.
func (f Format) Extension() string {
	switch f {
	case MultiJSON:
		return ".multijson"
	case ApacheAvro:
		return ".avro"
	case FormatUnknown:
		return ""
	default:
		return "." + string(f)
	}
}

// CompressionType is the compression applied to a source's bytes on the
// wire, per §3. ZIP is rejected for streaming ingestion.
type CompressionType string

const (
	CompressionNone CompressionType = "NONE"
	CompressionGzip CompressionType = "GZIP"
	CompressionZip  CompressionType = "ZIP"
)

// Extension returns the blob-name compression suffix for c, empty for
// CompressionNone.
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZip:
		return ".zip"
	default:
		return ""
	}
}

// DetectCompressionFromName infers a CompressionType from a file name
// suffix per §3: ".gz" -> GZIP, ".zip" -> ZIP, else NONE.
func DetectCompressionFromName(name string) CompressionType {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".zip"):
		return CompressionZip
	default:
		return CompressionNone
	}
}
