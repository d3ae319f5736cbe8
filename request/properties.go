// Package request holds the value object describing per-call ingestion
// options, per §3's IngestRequestProperties table.
package request

import "github.com/flowline-data/ingest-go/source"

// mappingKind distinguishes which of the two mutually-exclusive mapping
// options was set most recently.
type mappingKind int

const (
	mappingNone mappingKind = iota
	mappingReference
	mappingInline
)

// Properties is a value object built once per request; it carries no
// mutable state beyond its own fields once constructed via New.
type Properties struct {
	Format source.Format

	mappingKind  mappingKind
	mappingValue string

	EnableTracking bool

	SkipBatching     bool
	FlushImmediately bool

	IgnoreFirstRecord          bool
	IgnoreLastRecordIfInvalid bool

	AdditionalTags    []string
	DropByTags        []string
	IngestByTags      []string
	IngestIfNotExists []string

	ValidationPolicy string
	ZipPattern       string
	ExtendSchema     bool
	RecreateSchema   bool
}

// Option customizes Properties at construction.
type Option func(*Properties)

// New builds a Properties value from zero or more Options, applied in
// order — for the mutually-exclusive mapping options, whichever was
// applied last wins, per §3.
func New(opts ...Option) Properties {
	var p Properties
	for _, o := range opts {
		o(&p)
	}
	return p
}

func WithFormat(f source.Format) Option {
	return func(p *Properties) { p.Format = f }
}

// WithIngestionMappingReference selects a server-side mapping by name.
// Mutually exclusive with WithInlineMapping: whichever is applied last to
// the same Properties wins.
func WithIngestionMappingReference(name string) Option {
	return func(p *Properties) {
		p.mappingKind = mappingReference
		p.mappingValue = name
	}
}

// WithInlineMapping ships a mapping definition inline with the request.
// Mutually exclusive with WithIngestionMappingReference.
func WithInlineMapping(mapping string) Option {
	return func(p *Properties) {
		p.mappingKind = mappingInline
		p.mappingValue = mapping
	}
}

func WithEnableTracking(v bool) Option { return func(p *Properties) { p.EnableTracking = v } }
func WithSkipBatching(v bool) Option   { return func(p *Properties) { p.SkipBatching = v } }
func WithFlushImmediately(v bool) Option {
	return func(p *Properties) { p.FlushImmediately = v }
}
func WithIgnoreFirstRecord(v bool) Option {
	return func(p *Properties) { p.IgnoreFirstRecord = v }
}
func WithIgnoreLastRecordIfInvalid(v bool) Option {
	return func(p *Properties) { p.IgnoreLastRecordIfInvalid = v }
}
func WithAdditionalTags(tags ...string) Option {
	return func(p *Properties) { p.AdditionalTags = tags }
}
func WithDropByTags(tags ...string) Option {
	return func(p *Properties) { p.DropByTags = tags }
}
func WithIngestByTags(tags ...string) Option {
	return func(p *Properties) { p.IngestByTags = tags }
}
func WithIngestIfNotExists(tags ...string) Option {
	return func(p *Properties) { p.IngestIfNotExists = tags }
}
func WithValidationPolicy(v string) Option { return func(p *Properties) { p.ValidationPolicy = v } }
func WithZipPattern(v string) Option       { return func(p *Properties) { p.ZipPattern = v } }
func WithExtendSchema(v bool) Option       { return func(p *Properties) { p.ExtendSchema = v } }
func WithRecreateSchema(v bool) Option     { return func(p *Properties) { p.RecreateSchema = v } }

// MappingName returns the server-side mapping reference name, or "" when
// no mapping was set or the most recently set mapping is inline.
func (p Properties) MappingName() string {
	if p.mappingKind == mappingReference {
		return p.mappingValue
	}
	return ""
}

// InlineMapping returns the inline mapping body, or "" when no mapping was
// set or the most recently set mapping is a reference.
func (p Properties) InlineMapping() string {
	if p.mappingKind == mappingInline {
		return p.mappingValue
	}
	return ""
}
