package upload

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/flowline-data/ingest-go/source"
)

// blobName builds the "<prefix>/<8-hex>_<original-or-uuid><format-ext>
// [+compression-ext]" naming scheme from §4.2.
func blobName(prefix string, src source.Source) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	base := originalOrUUID(src)
	name := fmt.Sprintf("%s_%s%s", token, base, src.Format().Extension())
	if !src.Format().IsBinary() && src.Compression() == source.CompressionGzip {
		name += src.Compression().Extension()
	}
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func originalOrUUID(src source.Source) string {
	if lf, ok := src.(*source.LocalFile); ok {
		base := path.Base(lf.Path)
		base = strings.TrimSuffix(base, path.Ext(base))
		if base != "" && base != "." && base != "/" {
			return sanitize(base)
		}
	}
	return sanitize(src.Identifier())
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return uuid.NewString()
	}
	return s
}
