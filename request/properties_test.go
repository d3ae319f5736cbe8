package request

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowline-data/ingest-go/source"
)

func TestMostRecentMappingOptionWins(t *testing.T) {
	p := New(WithIngestionMappingReference("ref1"), WithInlineMapping("inline-body"))
	assert.Equal(t, "", p.MappingName())
	assert.Equal(t, "inline-body", p.InlineMapping())

	p2 := New(WithInlineMapping("inline-body"), WithIngestionMappingReference("ref1"))
	assert.Equal(t, "ref1", p2.MappingName())
	assert.Equal(t, "", p2.InlineMapping())
}

func TestFormatOverride(t *testing.T) {
	p := New(WithFormat(source.Parquet))
	assert.Equal(t, source.Parquet, p.Format)
}

func TestTagOptions(t *testing.T) {
	p := New(WithAdditionalTags("a", "b"), WithDropByTags("c"))
	assert.Equal(t, []string{"a", "b"}, p.AdditionalTags)
	assert.Equal(t, []string{"c"}, p.DropByTags)
}
